package engine

import (
	"github.com/roach88/sprig/internal/affine"
	"github.com/roach88/sprig/internal/color"
	"github.com/roach88/sprig/internal/ir"
)

// Status is the view of an emitted object handed to a Callback. It is
// reused between calls; copy what must outlive the call (Event does).
type Status struct {
	event ir.Event
	stop  bool
}

// Matrix returns the object's accumulated transform.
func (s *Status) Matrix() affine.Matrix {
	return s.event.Matrix
}

// Color returns the object's colour.
func (s *Status) Color() color.Color {
	return s.event.Color
}

// Label returns the terminal name.
func (s *Status) Label() string {
	return s.event.Label
}

// Param returns the bracketed parameter, or "".
func (s *Status) Param() string {
	return s.event.Param
}

// ObjectCount returns the number of objects emitted so far, this one
// included.
func (s *Status) ObjectCount() int {
	return int(s.event.Seq)
}

// Event returns a copy of the object as an event.
func (s *Status) Event() ir.Event {
	return s.event
}

// Stop asks the build to end after the callback returns, as if it had
// returned Stop.
func (s *Status) Stop() {
	s.stop = true
}
