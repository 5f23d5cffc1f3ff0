package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sprig/internal/affine"
	"github.com/roach88/sprig/internal/color"
	"github.com/roach88/sprig/internal/ir"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"result": "success"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONErrorWithPosition(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.ErrorAt(CLIError{Code: ErrCodeSyntax, Message: "unexpected input", Line: 2, Column: 5}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSyntax, resp.Error.Code)
	assert.Equal(t, 2, resp.Error.Line)
	assert.Equal(t, 5, resp.Error.Column)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error("E001", "something failed", "hidden"))
	assert.Equal(t, "Error [E001]: something failed\n", buf.String())

	buf.Reset()
	require.NoError(t, formatter.ErrorAt(CLIError{Code: "E101", Message: "bad", Line: 3, Column: 1}))
	assert.Equal(t, "Error [E101] at 3:1: bad\n", buf.String())
}

func TestOutputFormatter_VerboseDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error("E001", "failed", "more context"))
	assert.Contains(t, buf.String(), "Details: more context")
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}

	formatter.VerboseLog("compiling %s", "tree.sprig")
	assert.Empty(t, out.String())
	assert.Equal(t, "compiling tree.sprig\n", diag.String())

	quiet := &OutputFormatter{Format: "text", Writer: out}
	quiet.VerboseLog("not shown")
	assert.Empty(t, out.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "diverged", errors.New("inner")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "outer: diverged: inner", wrapped.Error())
}

func TestFormatEventLine(t *testing.T) {
	e := ir.Event{
		Seq:    3,
		Matrix: affine.Translate(1.5, -2, 0),
		Color:  color.HSBA(120, 1, 1, 0.5),
		Label:  "box",
		Param:  "tag",
	}
	assert.Equal(t, "3 box[tag] at (1.5, -2, 0) #00ff00 a=0.5", FormatEventLine(e))

	e.Param = ""
	assert.Equal(t, "3 box at (1.5, -2, 0) #00ff00 a=0.5", FormatEventLine(e))
}

func TestNewEventView(t *testing.T) {
	e := ir.Event{Seq: 1, Matrix: affine.Translate(1, 2, 3), Color: color.Default(), Label: "sphere"}
	v := NewEventView(e)

	assert.Equal(t, [3]float64{1, 2, 3}, v.Position)
	assert.Len(t, v.Matrix, 16)
	assert.Equal(t, "#ff0000", v.Color)
	assert.Equal(t, [4]float64{0, 1, 1, 1}, v.HSBA)
}
