package queryir

import "fmt"

// Predicate is a filter condition over one event.
//
// Sealed: only Equals, Compare and And implement it.
type Predicate interface {
	predicateNode()
}

// Field names an event column a predicate can test.
type Field string

// Filterable fields.
const (
	FieldLabel      Field = "label"
	FieldParam      Field = "param"
	FieldSeq        Field = "seq"
	FieldX          Field = "x"
	FieldY          Field = "y"
	FieldZ          Field = "z"
	FieldHue        Field = "hue"
	FieldSaturation Field = "saturation"
	FieldBrightness Field = "brightness"
	FieldAlpha      Field = "alpha"
)

// fieldKinds maps each field to whether it holds text.
var fieldKinds = map[Field]bool{
	FieldLabel:      true,
	FieldParam:      true,
	FieldSeq:        false,
	FieldX:          false,
	FieldY:          false,
	FieldZ:          false,
	FieldHue:        false,
	FieldSaturation: false,
	FieldBrightness: false,
	FieldAlpha:      false,
}

// IsText reports whether f is a text field. The second result is false
// for unknown fields.
func (f Field) IsText() (text, ok bool) {
	text, ok = fieldKinds[f]
	return text, ok
}

// Op is a numeric comparison operator.
type Op string

// Comparison operators.
const (
	OpEq Op = "="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Apply evaluates a op b.
func (o Op) Apply(a, b float64) (bool, error) {
	switch o {
	case OpEq:
		return a == b, nil
	case OpNe:
		return a != b, nil
	case OpLt:
		return a < b, nil
	case OpLe:
		return a <= b, nil
	case OpGt:
		return a > b, nil
	case OpGe:
		return a >= b, nil
	default:
		return false, fmt.Errorf("unknown operator %q", string(o))
	}
}

// Equals tests a text field for an exact value.
//
//	label = 'box'
type Equals struct {
	Field Field
	Value string
}

func (Equals) predicateNode() {}

// Compare tests a numeric field against a constant.
//
//	x >= 2
type Compare struct {
	Field Field
	Op    Op
	Value float64
}

func (Compare) predicateNode() {}

// And holds when every predicate holds. An empty And always holds.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Select reads the events of one run, in emission order.
//
//	SELECT ... FROM events WHERE run_id = <Run> AND <Filter>
//	ORDER BY seq LIMIT <Limit>
type Select struct {
	Run    string
	Filter Predicate // nil = every event
	Limit  int       // 0 = no limit
}

// Conj joins predicates into one, dropping nils. It returns nil when
// nothing is left and the predicate itself when only one is.
func Conj(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}
