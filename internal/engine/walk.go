package engine

import (
	"context"
	"math"

	"github.com/roach88/sprig/internal/affine"
	"github.com/roach88/sprig/internal/color"
	"github.com/roach88/sprig/internal/ir"
	"github.com/roach88/sprig/internal/rng"
)

// frame is one entry of the traversal stack.
type frame struct {
	matrix affine.Matrix
	color  color.Color
	scope  ir.RuleID
}

// walker holds the state of one build.
type walker struct {
	ctx      context.Context
	prog     *ir.Program
	gen      *rng.Generator
	fn       Callback
	estimate bool

	frames []frame
	depth  *depthCounters
	quota  *ObjectQuota
	lo, hi float64

	status Status
	hasher *ir.TraceHasher
	labels map[string]int
	stats  Stats
	err    error
}

func newWalker(ctx context.Context, prog *ir.Program, gen *rng.Generator, fn Callback, estimate bool) *walker {
	lo, hi := prog.Criteria.SizeWindow()
	return &walker{
		ctx:      ctx,
		prog:     prog,
		gen:      gen,
		fn:       fn,
		estimate: estimate,
		depth:    newDepthCounters(),
		quota:    NewObjectQuota(prog.Criteria.MaxObjects()),
		lo:       lo,
		hi:       hi,
		hasher:   ir.NewTraceHasher(),
		labels:   make(map[string]int),
	}
}

func (w *walker) top() *frame {
	return &w.frames[len(w.frames)-1]
}

func (w *walker) push(f frame) {
	w.frames = append(w.frames, f)
}

func (w *walker) pop() {
	w.frames = w.frames[:len(w.frames)-1]
}

// walkRoot builds the root rule. The root is not depth limited.
func (w *walker) walkRoot() {
	w.push(frame{matrix: affine.Identity(), color: color.Default(), scope: ir.RootID})
	w.walkSeq(w.prog.Root().Body)
	w.pop()
}

// walkSeq walks a sequence. An operator consumes the rest of the sequence,
// walking it once per repetition.
func (w *walker) walkSeq(nodes []ir.Node) Control {
	for i, n := range nodes {
		switch n := n.(type) {
		case *ir.Operator:
			return w.operator(n, nodes[i+1:])
		case *ir.Reference:
			if w.reference(n) == Stop {
				return Stop
			}
		}
	}
	return Continue
}

func (w *walker) operator(op *ir.Operator, rest []ir.Node) Control {
	w.push(*w.top())
	defer w.pop()

	for i := 0; i < op.Repeat; i++ {
		f := w.top()
		f.matrix = f.matrix.Mul(op.Delta)
		if op.Color != nil {
			if w.estimate {
				op.Color.Advance(w.gen)
				f.color = *op.Color
			} else {
				f.color = op.Color.Resolve(w.gen)
			}
		}
		if op.ColorDelta != nil {
			f.color = f.color.Multiply(*op.ColorDelta)
		}
		if op.Blend != nil {
			f.color = f.color.Blend(op.Blend.Target, op.Blend.Ratio)
		}

		if w.walkSeq(rest) == Stop {
			return Stop
		}
	}
	return Continue
}

func (w *walker) reference(ref *ir.Reference) Control {
	key, group, ok := w.prog.Lookup(w.top().scope, ref.Label)
	if !ok {
		return w.emit(ref)
	}
	return w.enter(key, w.choose(group), true)
}

// choose picks one rule of a group by cumulative weight. A group of one
// takes no draw.
func (w *walker) choose(group []ir.RuleID) ir.RuleID {
	if len(group) == 1 {
		return group[0]
	}
	total := 0.0
	for _, id := range group {
		total += w.prog.Rule(id).Weight
	}
	r := w.gen.Float64() * total
	acc := 0.0
	for _, id := range group {
		acc += w.prog.Rule(id).Weight
		if r < acc {
			return id
		}
	}
	return group[len(group)-1]
}

// enter builds rule id of group key if the group is within the rule's
// maxdepth. Otherwise the rule's fallback, if any, is built once; a
// fallback never falls back again.
func (w *walker) enter(key ir.GroupKey, id ir.RuleID, allowFallback bool) Control {
	r := w.prog.Rule(id)
	depth := w.depth.enter(key)
	defer w.depth.leave(key)

	if depth > r.MaxDepth {
		w.stats.DepthExceeded++
		if r.Fallback == "" || !allowFallback {
			return Continue
		}
		return w.fallback(r)
	}

	w.depth.admit(depth)
	w.stats.RulesBuilt++

	f := *w.top()
	f.scope = id
	w.push(f)
	defer w.pop()
	return w.walkSeq(r.Body)
}

// fallback resolves r's fallback from r's own scope: its children first,
// then the scopes enclosing its declaration. The caller's scope plays no
// part.
func (w *walker) fallback(r *ir.Rule) Control {
	key, group, ok := w.prog.Lookup(r.ID, r.Fallback)
	if !ok {
		w.err = NewUndefinedFallbackError(w.prog.Path(r.ID), r.Fallback)
		return Stop
	}
	w.stats.Fallbacks++
	return w.enter(key, w.choose(group), false)
}

// emit offers a terminal object: it is dropped outside the size window or
// when its transform has overflowed, and ends the build once the object
// quota is used up.
func (w *walker) emit(ref *ir.Reference) Control {
	if w.ctx != nil {
		if err := w.ctx.Err(); err != nil {
			w.err = err
			w.stats.Stopped = true
			return Stop
		}
	}

	f := w.top()
	det := math.Abs(f.matrix.Det3())
	if !(det > w.lo && det < w.hi) || !f.matrix.IsFinite() {
		w.stats.SizeRejected++
		return Continue
	}

	if !w.quota.Admit() {
		w.stats.CapReached = true
		return Stop
	}
	w.stats.Emitted++
	w.labels[ref.Label]++

	if !w.estimate {
		w.status = Status{event: ir.Event{
			Seq:    int64(w.quota.Current()),
			Matrix: f.matrix,
			Color:  f.color,
			Label:  ref.Label,
			Param:  ref.Param,
		}}
		if err := w.hasher.Add(w.status.event); err != nil {
			w.err = err
			return Stop
		}
		if w.fn != nil {
			if w.fn(&w.status) == Stop || w.status.stop {
				w.stats.Stopped = true
				return Stop
			}
		}
	}

	if w.quota.Reached() {
		w.stats.CapReached = true
		return Stop
	}
	return Continue
}

func (w *walker) finishStats() Stats {
	s := w.stats
	s.MaxDepth = w.depth.deepest()
	return s
}
