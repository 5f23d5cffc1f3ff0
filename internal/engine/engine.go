package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/sprig/internal/criteria"
	"github.com/roach88/sprig/internal/ir"
	"github.com/roach88/sprig/internal/rng"
)

// Control is the result of every traversal step.
type Control int

const (
	// Continue proceeds with the next node.
	Continue Control = iota

	// Stop unwinds every enclosing frame and ends the build.
	Stop
)

func (c Control) String() string {
	if c == Stop {
		return "stop"
	}
	return "continue"
}

// Callback receives each emitted object. The Status is only valid for the
// duration of the call.
type Callback func(s *Status) Control

// Observer is notified when a build or estimate finishes.
type Observer interface {
	ObserveBuild(r *Result)
}

// Engine builds a compiled program.
//
// The program is never mutated. Each Build creates its own traversal
// state and, unless a generator was injected, its own generator seeded
// with the engine seed.
type Engine struct {
	prog      *ir.Program
	seed      uint32
	seedSet   bool
	gen       *rng.Generator
	runIDs    RunIDGenerator
	logger    *slog.Logger
	observers []Observer

	building atomic.Bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithSeed fixes the seed, taking precedence over the program's seed.
func WithSeed(seed uint32) EngineOption {
	return func(e *Engine) {
		e.seed = seed
		e.seedSet = true
		e.gen = nil
	}
}

// WithGenerator makes every build draw from g as it is, without
// reseeding. Use it to share one stream between passes; by default each
// build gets a fresh generator.
func WithGenerator(g *rng.Generator) EngineOption {
	return func(e *Engine) {
		e.gen = g
		e.seed = g.SeedValue()
		e.seedSet = true
	}
}

// WithRunIDGenerator sets how builds are named (default UUIDv7).
func WithRunIDGenerator(g RunIDGenerator) EngineOption {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithObserver registers an observer of finished builds.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// New creates an Engine for prog.
//
// The seed is, in order of precedence: WithSeed/WithGenerator, the
// program's seed setting, or a value derived from the clock. A
// clock-derived seed is logged so the build can be reproduced.
func New(prog *ir.Program, opts ...EngineOption) *Engine {
	e := &Engine{
		prog:   prog,
		runIDs: UUIDv7Generator{},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if !e.seedSet {
		if seed, ok := prog.Criteria.Seed(); ok {
			e.seed = seed
		} else {
			e.seed = uint32(time.Now().UnixNano())
			e.logger.Debug("seed derived from clock", "seed", e.seed)
		}
	}
	return e
}

// Program returns the compiled program.
func (e *Engine) Program() *ir.Program {
	return e.prog
}

// Criteria returns the program's settings.
func (e *Engine) Criteria() *criteria.Criteria {
	return e.prog.Criteria
}

// Seed returns the seed builds start from.
func (e *Engine) Seed() uint32 {
	return e.seed
}

// Result describes a finished build.
type Result struct {
	RunID string `json:"run_id"`
	Seed  uint32 `json:"seed"`
	Stats Stats  `json:"stats"`

	// TraceHash is the hash of the emitted events (empty for estimates).
	TraceHash string `json:"trace_hash,omitempty"`

	// Draws is the number of 32-bit words the build took from the
	// generator.
	Draws uint64 `json:"draws"`

	// Estimate marks results of Estimate.
	Estimate bool `json:"estimate,omitempty"`

	// Labels counts emitted objects per label.
	Labels map[string]int `json:"labels"`
}

// Build walks the program and calls fn for every emitted object.
//
// fn may be nil. The build ends when the program is exhausted, fn returns
// Stop (or calls Status.Stop), the object quota is reached, or ctx is
// cancelled. A cancelled build returns its partial Result together with
// ctx.Err().
func (e *Engine) Build(ctx context.Context, fn Callback) (*Result, error) {
	return e.run(ctx, fn, false)
}

// Collect builds and returns the emitted events in order.
func (e *Engine) Collect(ctx context.Context) ([]ir.Event, *Result, error) {
	var events []ir.Event
	res, err := e.Build(ctx, func(s *Status) Control {
		events = append(events, s.Event())
		return Continue
	})
	return events, res, err
}

// Estimate walks the program exactly as Build does but materialises no
// colours: pool draws are replaced by Pool.Advance, so the generator ends
// in the same state and the same objects are counted. Result.Labels holds
// the per-label counts.
func (e *Engine) Estimate(ctx context.Context) (*Result, error) {
	return e.run(ctx, nil, true)
}

func (e *Engine) run(ctx context.Context, fn Callback, estimate bool) (*Result, error) {
	if !e.building.CompareAndSwap(false, true) {
		return nil, &RuntimeError{Code: ErrCodeReentrantBuild, Message: "a build of this engine is already running"}
	}
	defer e.building.Store(false)

	gen := e.gen
	if gen == nil {
		gen = rng.New(e.seed)
	}
	startDraws := gen.Draws()

	w := newWalker(ctx, e.prog, gen, fn, estimate)
	w.walkRoot()

	res := &Result{
		RunID:    e.runIDs.Generate(),
		Seed:     e.seed,
		Stats:    w.finishStats(),
		Draws:    gen.Draws() - startDraws,
		Estimate: estimate,
		Labels:   w.labels,
	}
	if !estimate {
		res.TraceHash = w.hasher.Sum()
	}

	e.logger.Debug("build finished",
		"run_id", res.RunID,
		"seed", res.Seed,
		"estimate", estimate,
		"objects", res.Stats.Emitted,
		"size_rejected", res.Stats.SizeRejected,
		"depth_exceeded", res.Stats.DepthExceeded,
		"cap_reached", res.Stats.CapReached)

	for _, o := range e.observers {
		o.ObserveBuild(res)
	}

	if w.err != nil {
		return res, w.err
	}
	return res, nil
}
