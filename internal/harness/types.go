package harness

import (
	"github.com/roach88/sprig/internal/engine"
	"github.com/roach88/sprig/internal/ir"
)

// TraceEvent is the readable form of one emitted object.
type TraceEvent struct {
	Seq      int64      `json:"seq"`
	Label    string     `json:"label"`
	Param    string     `json:"param,omitempty"`
	Position [3]float64 `json:"position"`
	Color    string     `json:"color"`
	Alpha    float64    `json:"alpha"`
}

func traceEvent(e ir.Event) TraceEvent {
	x, y, z := e.Position()
	return TraceEvent{
		Seq:      e.Seq,
		Label:    e.Label,
		Param:    e.Param,
		Position: [3]float64{x, y, z},
		Color:    e.Color.Hex(),
		Alpha:    e.Color.A,
	}
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Name is the scenario name.
	Name string `json:"name"`

	// Pass indicates overall success: every assertion held.
	Pass bool `json:"pass"`

	// Trace contains the emitted objects in order, as read back from the
	// store.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	RunID     string       `json:"run_id"`
	Seed      uint32       `json:"seed"`
	TraceHash string       `json:"trace_hash"`
	Stats     engine.Stats `json:"stats"`

	// Events are the raw stored events behind Trace.
	Events []ir.Event `json:"-"`
}

// NewResult creates a new passing result.
func NewResult(name string) *Result {
	return &Result{
		Name:   name,
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
