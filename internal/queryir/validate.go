package queryir

import (
	"errors"
	"fmt"
)

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	Problems []string
}

// Err returns the problems as one error, or nil.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	errs := make([]error, len(r.Problems))
	for i, p := range r.Problems {
		errs[i] = errors.New(p)
	}
	return errors.Join(errs...)
}

// Validate checks that a query names a run, uses known fields with the
// right predicate for their kind and has a non-negative limit.
func Validate(q Select) ValidationResult {
	v := &validator{problems: []string{}}
	if q.Run == "" {
		v.addProblem("query names no run")
	}
	if q.Limit < 0 {
		v.addProblem("negative limit %d", q.Limit)
	}
	v.validatePredicate(q.Filter)
	return ValidationResult{Valid: len(v.problems) == 0, Problems: v.problems}
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case Compare:
		v.validateCompare(pred)
	case *Compare:
		v.validateCompare(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	text, ok := eq.Field.IsText()
	switch {
	case !ok:
		v.addProblem("unknown field %q", eq.Field)
	case !text:
		v.addProblem("field %q is numeric; compare it with a number", eq.Field)
	}
}

func (v *validator) validateCompare(c Compare) {
	text, ok := c.Field.IsText()
	switch {
	case !ok:
		v.addProblem("unknown field %q", c.Field)
	case text:
		v.addProblem("field %q is text; only = applies", c.Field)
	}
	if _, err := c.Op.Apply(0, 0); err != nil {
		v.addProblem("field %q: %v", c.Field, err)
	}
}
