package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/sprig/internal/script"
)

// CompileError reports a well-formed statement whose content is invalid:
// a bad setting value, an unknown operator token or an undefined
// variable. Malformed statements are reported by the parser as
// *script.SyntaxError.
type CompileError struct {
	Field   string
	Message string
	Pos     script.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsCompileError reports whether err is a *CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// IsSyntaxError reports whether err is a *script.SyntaxError.
func IsSyntaxError(err error) bool {
	var se *script.SyntaxError
	return errors.As(err, &se)
}

// Position returns the script position carried by a compile or syntax
// error.
func Position(err error) (script.Pos, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Pos, ce.Pos.IsValid()
	}
	var se *script.SyntaxError
	if errors.As(err, &se) {
		return se.Pos, se.Pos.IsValid()
	}
	return script.Pos{}, false
}
