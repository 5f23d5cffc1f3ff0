package harness

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/roach88/sprig/internal/engine"
	"github.com/roach88/sprig/internal/queryir"
	"github.com/roach88/sprig/internal/store"
)

// maxTraceLines bounds the trace printed with a failed assertion.
const maxTraceLines = 20

const defaultTolerance = 1e-9

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for i, ev := range e.Trace {
			if i == maxTraceLines {
				fmt.Fprintf(&buf, "  ... %d more\n", len(e.Trace)-maxTraceLines)
				break
			}
			fmt.Fprintf(&buf, "  [%d] %s", ev.Seq, ev.Label)
			if ev.Param != "" {
				fmt.Fprintf(&buf, "[%s]", ev.Param)
			}
			fmt.Fprintf(&buf, " at (%g, %g, %g) %s\n", ev.Position[0], ev.Position[1], ev.Position[2], ev.Color)
		}
	}

	return buf.String()
}

// AssertionContext provides the recorded run for assertions that query
// the store.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
	RunID string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertEventCount:
			err = assertEventCount(result.Trace, assertion)
		case AssertLabelCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: label_count requires database context", i)
			} else {
				err = assertLabelCount(actx, result.Trace, assertion)
			}
		case AssertLabelOrder:
			err = assertLabelOrder(result.Trace, assertion)
		case AssertEvent:
			err = assertEvent(result.Trace, assertion)
		case AssertStat:
			err = assertStat(result.Stats, assertion)
		case AssertTraceHash:
			err = assertTraceHash(result, assertion)
		case AssertMatchCount:
			err = assertMatchCount(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func assertEventCount(trace []TraceEvent, a Assertion) error {
	if len(trace) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventCount,
		Expected: fmt.Sprintf("%d objects", a.Count),
		Actual:   fmt.Sprintf("%d objects", len(trace)),
		Trace:    trace,
	}
}

// assertLabelCount counts through the store's label index rather than the
// in-memory trace, so it also checks what was recorded.
func assertLabelCount(actx *AssertionContext, trace []TraceEvent, a Assertion) error {
	counts, err := actx.Store.LabelCounts(actx.Ctx, actx.RunID)
	if err != nil {
		return fmt.Errorf("label_count: %w", err)
	}
	if counts[a.Label] == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertLabelCount,
		Expected: fmt.Sprintf("%d objects labelled %q", a.Count, a.Label),
		Actual:   fmt.Sprintf("%d", counts[a.Label]),
		Trace:    trace,
	}
}

// assertLabelOrder checks that labels first appear in the given order.
// Other labels may appear in between.
func assertLabelOrder(trace []TraceEvent, a Assertion) error {
	first := make(map[string]int)
	for i, ev := range trace {
		if _, seen := first[ev.Label]; !seen {
			first[ev.Label] = i + 1
		}
	}

	for _, label := range a.Labels {
		if first[label] == 0 {
			return &AssertionError{
				Type:     AssertLabelOrder,
				Expected: fmt.Sprintf("all labels present: %v", a.Labels),
				Actual:   fmt.Sprintf("missing label: %s", label),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Labels); i++ {
		prev, curr := a.Labels[i-1], a.Labels[i]
		if first[prev] >= first[curr] {
			return &AssertionError{
				Type:     AssertLabelOrder,
				Expected: fmt.Sprintf("labels in order: %v", a.Labels),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, first[prev], curr, first[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertEvent(trace []TraceEvent, a Assertion) error {
	var ev *TraceEvent
	for i := range trace {
		if trace[i].Seq == a.Seq {
			ev = &trace[i]
			break
		}
	}
	if ev == nil {
		return &AssertionError{
			Type:     AssertEvent,
			Expected: fmt.Sprintf("object %d", a.Seq),
			Actual:   fmt.Sprintf("trace has %d objects", len(trace)),
			Trace:    trace,
		}
	}

	var mismatches []string
	if a.Label != "" && ev.Label != a.Label {
		mismatches = append(mismatches, fmt.Sprintf("label %q, want %q", ev.Label, a.Label))
	}
	if a.Param != nil && ev.Param != *a.Param {
		mismatches = append(mismatches, fmt.Sprintf("param %q, want %q", ev.Param, *a.Param))
	}
	if a.Position != nil {
		tol := a.Tolerance
		if tol == 0 {
			tol = defaultTolerance
		}
		for i, want := range a.Position {
			if math.Abs(ev.Position[i]-want) > tol {
				mismatches = append(mismatches, fmt.Sprintf("position %v, want %v", ev.Position, a.Position))
				break
			}
		}
	}
	if a.Color != "" && !strings.EqualFold(ev.Color, a.Color) {
		mismatches = append(mismatches, fmt.Sprintf("color %s, want %s", ev.Color, a.Color))
	}

	if len(mismatches) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertEvent,
		Expected: fmt.Sprintf("object %d to match", a.Seq),
		Actual:   strings.Join(mismatches, "; "),
		Trace:    trace,
	}
}

// statValue reads a named statistic. Booleans read as 0 or 1. With a nil
// Stats it only reports whether the name is known.
func statValue(name string, st *engine.Stats) (int, bool) {
	if st == nil {
		st = &engine.Stats{}
	}
	b := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}
	switch name {
	case "emitted":
		return st.Emitted, true
	case "size_rejected":
		return st.SizeRejected, true
	case "depth_exceeded":
		return st.DepthExceeded, true
	case "fallbacks":
		return st.Fallbacks, true
	case "rules_built":
		return st.RulesBuilt, true
	case "max_depth":
		return st.MaxDepth, true
	case "cap_reached":
		return b(st.CapReached), true
	case "stopped":
		return b(st.Stopped), true
	}
	return 0, false
}

func assertStat(st engine.Stats, a Assertion) error {
	got, ok := statValue(a.Stat, &st)
	if !ok {
		return fmt.Errorf("stat: unknown statistic %q", a.Stat)
	}
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertStat,
		Expected: fmt.Sprintf("%s = %d", a.Stat, a.Count),
		Actual:   fmt.Sprintf("%s = %d", a.Stat, got),
	}
}

func assertTraceHash(result *Result, a Assertion) error {
	if result.TraceHash == a.Hash {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceHash,
		Expected: a.Hash,
		Actual:   result.TraceHash,
	}
}

// assertMatchCount filters the stored events in memory with the same
// expressions trace --where pushes down to SQL.
func assertMatchCount(result *Result, a Assertion) error {
	filter, err := queryir.ParseFilter(a.Where)
	if err != nil {
		return fmt.Errorf("match_count: %w", err)
	}

	n := 0
	for _, ev := range result.Events {
		ok, err := queryir.Match(filter, ev)
		if err != nil {
			return fmt.Errorf("match_count: %w", err)
		}
		if ok {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertMatchCount,
		Expected: fmt.Sprintf("%d objects where %s", a.Count, strings.Join(a.Where, " and ")),
		Actual:   fmt.Sprintf("%d", n),
		Trace:    result.Trace,
	}
}
