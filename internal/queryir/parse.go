package queryir

import (
	"fmt"
	"strconv"
	"strings"
)

// operators in match order; two-character operators first.
var operators = []Op{OpGe, OpLe, OpNe, OpGt, OpLt, OpEq}

// ParseExpr parses one "field op value" expression. Text fields accept
// only "=".
func ParseExpr(expr string) (Predicate, error) {
	for _, op := range operators {
		i := strings.Index(expr, string(op))
		if i < 0 {
			continue
		}
		field := Field(strings.ToLower(strings.TrimSpace(expr[:i])))
		value := strings.TrimSpace(expr[i+len(op):])
		if field == "" {
			return nil, fmt.Errorf("filter %q: missing field", expr)
		}

		text, ok := field.IsText()
		if !ok {
			return nil, fmt.Errorf("filter %q: unknown field %q", expr, field)
		}
		if text {
			if op != OpEq {
				return nil, fmt.Errorf("filter %q: text field %s only supports =", expr, field)
			}
			return Equals{Field: field, Value: value}, nil
		}

		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %q is not a number", expr, value)
		}
		return Compare{Field: field, Op: op, Value: n}, nil
	}
	return nil, fmt.Errorf("filter %q: expected field, operator and value", expr)
}

// ParseFilter parses expressions and joins them with And. No expressions
// yields a nil filter.
func ParseFilter(exprs []string) (Predicate, error) {
	preds := make([]Predicate, 0, len(exprs))
	for _, e := range exprs {
		p, err := ParseExpr(e)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return Conj(preds...), nil
}
