package script

import "fmt"

// Pos is a location in script source. Line and Column are 1-based.
type Pos struct {
	Offset int
	Line   int
	Column int
}

// IsValid reports whether the position was set.
func (p Pos) IsValid() bool {
	return p.Line > 0
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Node is one statement of a script body. The concrete types are
// *Setting, *RuleDef, *Transform and *Reference.
type Node interface {
	Position() Pos
	node()
}

// Setting is `set key value` or `@key value`.
type Setting struct {
	Key   string
	Value string
	Pos   Pos
}

// RuleDef is `rule Name options { body }` or `#Name options { body }`.
type RuleDef struct {
	Name    string
	Options RuleOptions
	Body    []Node
	Pos     Pos
}

// RuleOptions are the options parsed from a rule header.
type RuleOptions struct {
	// Weight is the relative weight among same-named siblings. Zero means
	// unset (weight 1).
	Weight float64

	// MaxDepth is the rule's own recursion limit. Zero means unset
	// (inherit the script's maxdepth).
	MaxDepth int

	// Fallback names the rule built once when MaxDepth is exceeded.
	Fallback string

	// Text is the raw option text from the header.
	Text string
}

// Transform is `{ops}` or `N{ops}`.
type Transform struct {
	Repeat int
	Ops    string
	Pos    Pos

	// OpsPos is the position of the first character inside the braces.
	OpsPos Pos
}

// Reference is `Name` or `Name[param]`.
type Reference struct {
	Label    string
	Param    string
	HasParam bool
	Pos      Pos
}

// Script is a parsed script: the statements of the implicit root rule.
type Script struct {
	Body []Node
}

func (n *Setting) Position() Pos { return n.Pos }
func (n *RuleDef) Position() Pos { return n.Pos }
func (n *Transform) Position() Pos { return n.Pos }
func (n *Reference) Position() Pos { return n.Pos }

func (*Setting) node() {}
func (*RuleDef) node() {}
func (*Transform) node() {}
func (*Reference) node() {}

// Walk visits every node depth-first, descending into rule bodies. It
// stops early when fn returns false.
func Walk(nodes []Node, fn func(Node) bool) bool {
	for _, n := range nodes {
		if !fn(n) {
			return false
		}
		if def, ok := n.(*RuleDef); ok {
			if !Walk(def.Body, fn) {
				return false
			}
		}
	}
	return true
}
