package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sprig/internal/store"
)

// concreteScript emits box[tag] at x = 1, 2, 3 and then hits maxdepth.
const concreteScript = `@maxdepth 3
#R { {x1} box[tag] R }
R
`

const concreteTraceHash = "b323a5d3ce5fd755b4373ec1064bbe3ff97c0f755ad710253f671d3fb0406ad4"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func openTestStore(t *testing.T, path string) *store.Store {
	t.Helper()
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// recordConcrete builds the concrete script into db and returns the run ID.
func recordConcrete(t *testing.T, db string) string {
	t.Helper()
	path := writeFile(t, t.TempDir(), "concrete.sprig", concreteScript)
	report := buildJSON(t, "--db", db, path)
	require.Len(t, report.Builds, 1)
	return report.Builds[0].RunID
}
