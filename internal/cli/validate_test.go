package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tree.sprig", treeScript)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "5 rule(s), 2 setting(s)")
}

func TestValidate_IgnoresOperatorContent(t *testing.T) {
	// Syntax only: the unknown operator is a compile error, not a syntax error.
	path := writeFile(t, t.TempDir(), "ops.sprig", "{q1} box\n")

	_, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	assert.NoError(t, err)
}

func TestValidate_SyntaxError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.sprig", "box\n#R { sphere\n")

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, ErrCodeSyntax)
	assert.Contains(t, out, "^")
}

func TestValidate_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.sprig", "#R { sphere\n")

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), path)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSyntax, resp.Error.Code)
	assert.Greater(t, resp.Error.Line, 0)
}
