package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/sprig/internal/queryir"
)

// EventColumns is the column list every compiled query selects, in the
// order the store scans them.
const EventColumns = "seq, label, param, matrix, hue, saturation, brightness, alpha"

// columns maps filter fields to SQL expressions over the events table.
// Matrices are stored as row-major JSON arrays, so the translation is
// elements 3, 7 and 11.
var columns = map[queryir.Field]string{
	queryir.FieldLabel:      "label",
	queryir.FieldParam:      "param",
	queryir.FieldSeq:        "seq",
	queryir.FieldX:          "json_extract(matrix, '$[3]')",
	queryir.FieldY:          "json_extract(matrix, '$[7]')",
	queryir.FieldZ:          "json_extract(matrix, '$[11]')",
	queryir.FieldHue:        "hue",
	queryir.FieldSaturation: "saturation",
	queryir.FieldBrightness: "brightness",
	queryir.FieldAlpha:      "alpha",
}

// Compile converts a query to parameterised SQLite SQL.
//
// Every query is ordered by seq, so results come back in emission order.
// Values are always bound as parameters, never interpolated.
func Compile(q queryir.Select) (string, []any, error) {
	if err := queryir.Validate(q).Err(); err != nil {
		return "", nil, fmt.Errorf("invalid query: %w", err)
	}

	var b strings.Builder
	b.WriteString("SELECT " + EventColumns + " FROM events WHERE run_id = ?")
	params := []any{q.Run}

	if q.Filter != nil {
		where, filterParams, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" AND " + where)
		params = append(params, filterParams...)
	}

	b.WriteString(" ORDER BY seq ASC")
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return b.String(), params, nil
}

func compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return compileEquals(pred)
	case *queryir.Equals:
		return compileEquals(*pred)
	case queryir.Compare:
		return compileCompare(pred)
	case *queryir.Compare:
		return compileCompare(*pred)
	case queryir.And:
		return compileAnd(pred)
	case *queryir.And:
		return compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq queryir.Equals) (string, []any, error) {
	col, ok := columns[eq.Field]
	if !ok {
		return "", nil, fmt.Errorf("unknown field %q", eq.Field)
	}
	return col + " = ?", []any{eq.Value}, nil
}

func compileCompare(c queryir.Compare) (string, []any, error) {
	col, ok := columns[c.Field]
	if !ok {
		return "", nil, fmt.Errorf("unknown field %q", c.Field)
	}
	op := string(c.Op)
	if c.Op == queryir.OpNe {
		op = "<>"
	}
	return fmt.Sprintf("%s %s ?", col, op), []any{c.Value}, nil
}

func compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, predParams, err := compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		if _, nested := pred.(queryir.And); nested {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, predParams...)
	}
	return strings.Join(parts, " AND "), params, nil
}
