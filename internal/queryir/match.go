package queryir

import (
	"fmt"

	"github.com/roach88/sprig/internal/ir"
)

// Match evaluates a predicate against an event in memory. A nil predicate
// matches every event.
func Match(p Predicate, e ir.Event) (bool, error) {
	switch pred := p.(type) {
	case nil:
		return true, nil
	case Equals:
		return matchEquals(pred, e)
	case *Equals:
		return matchEquals(*pred, e)
	case Compare:
		return matchCompare(pred, e)
	case *Compare:
		return matchCompare(*pred, e)
	case And:
		return matchAll(pred.Predicates, e)
	case *And:
		return matchAll(pred.Predicates, e)
	default:
		return false, fmt.Errorf("unknown predicate type %T", p)
	}
}

func matchAll(preds []Predicate, e ir.Event) (bool, error) {
	for _, p := range preds {
		ok, err := Match(p, e)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchEquals(eq Equals, e ir.Event) (bool, error) {
	switch eq.Field {
	case FieldLabel:
		return e.Label == eq.Value, nil
	case FieldParam:
		return e.Param == eq.Value, nil
	default:
		return false, fmt.Errorf("field %q cannot be compared as text", eq.Field)
	}
}

func matchCompare(c Compare, e ir.Event) (bool, error) {
	v, err := numericField(c.Field, e)
	if err != nil {
		return false, err
	}
	return c.Op.Apply(v, c.Value)
}

func numericField(f Field, e ir.Event) (float64, error) {
	x, y, z := e.Position()
	switch f {
	case FieldSeq:
		return float64(e.Seq), nil
	case FieldX:
		return x, nil
	case FieldY:
		return y, nil
	case FieldZ:
		return z, nil
	case FieldHue:
		return e.Color.H, nil
	case FieldSaturation:
		return e.Color.S, nil
	case FieldBrightness:
		return e.Color.B, nil
	case FieldAlpha:
		return e.Color.A, nil
	default:
		return 0, fmt.Errorf("field %q is not numeric", f)
	}
}
