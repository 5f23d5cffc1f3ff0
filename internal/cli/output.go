package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/sprig/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Scenario failures, replay divergence, failed build
	ExitCommandError = 2 // Command error (bad script, missing file, database error)
)

// ExitError carries the exit code a command wants the process to end with.
type ExitError struct {
	Code    int    // Exit code (ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure for errors that are not an
// ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the JSON envelope every command writes in --format json.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
	RunID  string    `json:"run_id,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E101", ...
	Message string `json:"message"`           // human-readable message
	Line    int    `json:"line,omitempty"`    // script line, when known
	Column  int    `json:"column,omitempty"`  // script column, when known
	Details any    `json:"details,omitempty"` // additional context
}

// IsJSON reports whether the formatter writes JSON.
func (f *OutputFormatter) IsJSON() bool {
	return f.Format == "json"
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.IsJSON() {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	return f.ErrorAt(CLIError{Code: code, Message: message, Details: details})
}

// ErrorAt outputs a fully populated error, including its script position.
func (f *OutputFormatter) ErrorAt(e CLIError) error {
	if f.IsJSON() {
		return f.encode(CLIResponse{Status: "error", Error: &e})
	}

	if e.Line > 0 {
		fmt.Fprintf(f.Writer, "Error [%s] at %d:%d: %s\n", e.Code, e.Line, e.Column, e.Message)
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", e.Code, e.Message)
	}
	if f.Verbose && e.Details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", e.Details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled. It writes
// to ErrWriter so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func (f *OutputFormatter) encode(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// EventView is the JSON shape of an emitted object.
type EventView struct {
	Seq      int64      `json:"seq"`
	Label    string     `json:"label"`
	Param    string     `json:"param,omitempty"`
	Position [3]float64 `json:"position"`
	Matrix   []float64  `json:"matrix"`
	Color    string     `json:"color"`
	HSBA     [4]float64 `json:"hsba"`
}

// NewEventView converts an event for output.
func NewEventView(e ir.Event) EventView {
	x, y, z := e.Position()
	return EventView{
		Seq:      e.Seq,
		Label:    e.Label,
		Param:    e.Param,
		Position: [3]float64{x, y, z},
		Matrix:   e.Matrix.Elements(),
		Color:    e.Color.Hex(),
		HSBA:     [4]float64{e.Color.H, e.Color.S, e.Color.B, e.Color.A},
	}
}

// FormatEventLine renders an event as one line of text:
//
//	3 box[tag] at (3, 0, 0) #00ffff a=1
func FormatEventLine(e ir.Event) string {
	var b strings.Builder
	x, y, z := e.Position()
	fmt.Fprintf(&b, "%d %s", e.Seq, e.Label)
	if e.Param != "" {
		fmt.Fprintf(&b, "[%s]", e.Param)
	}
	fmt.Fprintf(&b, " at (%g, %g, %g) %s a=%g", x, y, z, e.Color.Hex(), e.Color.A)
	return b.String()
}
