package script

import (
	"fmt"
	"strings"
)

// SyntaxError reports a script position no grammar production matches,
// or a malformed production.
type SyntaxError struct {
	Pos     Pos
	Message string

	// Text is the offending substring.
	Text string
}

func (e *SyntaxError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("%s: %s: %q", e.Pos, e.Message, e.Text)
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

// Context renders the source line holding the error with a caret under
// the error column.
func (e *SyntaxError) Context(src string) string {
	return SourceContext(src, e.Pos)
}

// SourceContext renders line pos.Line of src with a caret at pos.Column.
func SourceContext(src string, pos Pos) string {
	if !pos.IsValid() {
		return ""
	}
	lines := strings.Split(src, "\n")
	if pos.Line > len(lines) {
		return ""
	}
	line := strings.TrimRight(lines[pos.Line-1], "\r")
	prefix := fmt.Sprintf("%4d | ", pos.Line)
	caret := strings.Repeat(" ", len(prefix)+pos.Column-1) + "^"
	return prefix + line + "\n" + caret + "\n"
}

// excerpt returns up to n characters of s starting at i, cut at the first
// newline.
func excerpt(s string, i, n int) string {
	end := i + n
	if end > len(s) {
		end = len(s)
	}
	out := s[i:end]
	if nl := strings.IndexByte(out, '\n'); nl >= 0 {
		out = out[:nl]
	}
	return strings.TrimSpace(out)
}
