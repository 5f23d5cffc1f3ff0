package harness

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_ConcreteScenario(t *testing.T) {
	// Regenerate with:
	//   go test ./internal/harness -run TestRunWithGolden_ConcreteScenario -update
	result, err := RunWithGolden(t, loadScenario(t, "testdata/scenarios/concrete.yaml"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestSnapshot_Format(t *testing.T) {
	result, err := Run(t.Context(), loadScenario(t, "testdata/scenarios/concrete.yaml"))
	require.NoError(t, err)

	data, err := Snapshot(result)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "# scenario: concrete_translation", lines[0])
	assert.Equal(t, "# seed: 42", lines[1])
	assert.Equal(t, "# objects: 3", lines[2])
	assert.Equal(t, "# trace: "+result.TraceHash, lines[3])
	assert.Equal(t, `[1,"box","tag",[1,0,0,1,0,1,0,0,0,0,1,0,0,0,0,1],[0,1,1,1]]`, lines[4])
}

func TestCompareGolden(t *testing.T) {
	result, err := Run(t.Context(), loadScenario(t, "testdata/scenarios/concrete.yaml"))
	require.NoError(t, err)

	require.NoError(t, CompareGolden(GoldenDir, result))

	changed := *result
	changed.Events = append(changed.Events[:0:0], result.Events...)
	changed.Events[1].Label = "sphere"
	err = CompareGolden(GoldenDir, &changed)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGoldenMismatch))
	assert.Contains(t, err.Error(), "line 6")
}

func TestUpdateGolden(t *testing.T) {
	dir := t.TempDir()
	result, err := Run(t.Context(), loadScenario(t, "testdata/scenarios/override.yaml"))
	require.NoError(t, err)

	err = CompareGolden(dir, result)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	require.NoError(t, UpdateGolden(dir, result))
	assert.NoError(t, CompareGolden(dir, result))
	assert.FileExists(t, GoldenPath(dir, "depth_override"))
}
