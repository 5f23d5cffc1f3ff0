package ir

import (
	"github.com/roach88/sprig/internal/affine"
	"github.com/roach88/sprig/internal/color"
)

// Event is one emitted terminal object.
type Event struct {
	// Seq is the 1-based emission index within a build.
	Seq int64 `json:"seq"`

	Matrix affine.Matrix `json:"matrix"`
	Color  color.Color   `json:"color"`
	Label  string        `json:"label"`
	Param  string        `json:"param,omitempty"`
}

// Position returns the translation component of the event's transform.
func (e Event) Position() (x, y, z float64) {
	return e.Matrix.Translation()
}
