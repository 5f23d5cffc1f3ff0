package ir

import (
	"sort"

	"github.com/roach88/sprig/internal/affine"
	"github.com/roach88/sprig/internal/color"
	"github.com/roach88/sprig/internal/criteria"
)

// RuleID addresses a rule in a Program's arena.
type RuleID int

const (
	// RootID is the implicit rule holding a script's top-level statements.
	RootID RuleID = 0

	// NoRule is the parent of the root.
	NoRule RuleID = -1
)

// Rule is one named scope. Same-named siblings are weighted alternatives
// of one group.
type Rule struct {
	ID     RuleID
	Name   string
	Parent RuleID

	// Weight is the relative weight within the rule's group (default 1).
	Weight float64

	// MaxDepth bounds how many times the rule's group may be active on
	// one path (default: the criteria maxdepth).
	MaxDepth int

	// Fallback names the rule built once when MaxDepth is exceeded.
	Fallback string

	// Children maps a name to the IDs of the same-named child rules, in
	// declaration order.
	Children map[string][]RuleID

	// Body is the rule's sequence of Operator and Reference nodes.
	Body []Node

	// Line is the script line of the rule header (0 for the root).
	Line int
}

// IsRoot reports whether r is the program's root rule.
func (r *Rule) IsRoot() bool {
	return r.ID == RootID
}

// ChildNames returns the names of r's child groups, sorted.
func (r *Rule) ChildNames() []string {
	names := make([]string, 0, len(r.Children))
	for name := range r.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Node is one element of a rule body: *Operator or *Reference.
type Node interface {
	isNode()
}

// Operator applies a transform and colour delta Repeat times, walking the
// rest of its sequence once per iteration.
type Operator struct {
	Repeat int

	// Delta is the composed transform of the operator string.
	Delta affine.Matrix

	// Color replaces the running colour when set. It may be bound to a
	// pool, in which case each application draws.
	Color *color.Color

	// ColorDelta is multiplied into the running colour when set.
	ColorDelta *color.Color

	// Blend moves the running colour toward a target when set.
	Blend *Blend

	// Text is the operator source, kept for diagnostics.
	Text string
}

// Blend is a blend target and its per-channel ratio.
type Blend struct {
	Target color.Color
	Ratio  color.Ratio
}

// Reference names a rule to build or, when nothing in scope has that
// name, a terminal object to emit.
type Reference struct {
	Label    string
	Param    string
	HasParam bool
}

func (*Operator) isNode()  {}
func (*Reference) isNode() {}

// GroupKey identifies a rule group: the scope that declares it plus the
// shared name. Depth counters are kept per group.
type GroupKey struct {
	Scope RuleID
	Name  string
}

// Program is a compiled script.
type Program struct {
	// Rules is the arena; Rules[i].ID == RuleID(i) and Rules[0] is the root.
	Rules []*Rule

	// Criteria holds the settings read during compilation.
	Criteria *criteria.Criteria

	// Source is the script text and SourceHash its content hash.
	Source     string
	SourceHash string
}

// Root returns the root rule.
func (p *Program) Root() *Rule {
	return p.Rules[RootID]
}

// Rule returns the rule with the given ID, or nil.
func (p *Program) Rule(id RuleID) *Rule {
	if id < 0 || int(id) >= len(p.Rules) {
		return nil
	}
	return p.Rules[id]
}

// Lookup resolves label from scope: the scope's own children first, then
// each ancestor in turn. It returns the declaring scope and the group's
// rule IDs, or ok=false when label names no rule (a terminal).
func (p *Program) Lookup(scope RuleID, label string) (GroupKey, []RuleID, bool) {
	for id := scope; id != NoRule; {
		r := p.Rule(id)
		if r == nil {
			break
		}
		if group, ok := r.Children[label]; ok && len(group) > 0 {
			return GroupKey{Scope: id, Name: label}, group, true
		}
		id = r.Parent
	}
	return GroupKey{}, nil, false
}

// Path returns the rule's scope path from the root, e.g. "Tree/Leaf".
func (p *Program) Path(id RuleID) string {
	r := p.Rule(id)
	if r == nil || r.IsRoot() {
		return ""
	}
	if parent := p.Path(r.Parent); parent != "" {
		return parent + "/" + r.Name
	}
	return r.Name
}

// Stats summarises a program's shape.
type Stats struct {
	Rules      int `json:"rules"`
	Groups     int `json:"groups"`
	Operators  int `json:"operators"`
	References int `json:"references"`
}

// Stats counts rules, groups and body nodes. The root is not counted as
// a rule.
func (p *Program) Stats() Stats {
	var s Stats
	for _, r := range p.Rules {
		if !r.IsRoot() {
			s.Rules++
		}
		s.Groups += len(r.Children)
		for _, n := range r.Body {
			switch n.(type) {
			case *Operator:
				s.Operators++
			case *Reference:
				s.References++
			}
		}
	}
	return s
}
