package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplay_Deterministic(t *testing.T) {
	db := filepath.Join(t.TempDir(), "sprig.db")
	runID := recordConcrete(t, db)

	src := "@maxdepth 12\n#R { {x 1 ry 10} box R }\n#R w 2 { {y 1 rz 15 hue 20} sphere R }\nR\n"
	path := writeFile(t, t.TempDir(), "random.sprig", src)
	buildJSON(t, "--db", db, "--seed", "1234", path)

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+runID+" (concrete): 3 object(s)")
	assert.Contains(t, out, "✓ 2 run(s) replayed deterministically")

	out, err = execute(t, NewReplayCommand(&RootOptions{Format: "json"}), "--db", db, "latest")
	require.NoError(t, err)
	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Runs, 1)
	assert.True(t, resp.Data.Runs[0].Deterministic)
	assert.Equal(t, uint32(1234), resp.Data.Runs[0].Seed)
	assert.Equal(t, resp.Data.Runs[0].RecordedHash, resp.Data.Runs[0].ReplayedHash)
}

func TestReplay_Overrides(t *testing.T) {
	db := filepath.Join(t.TempDir(), "sprig.db")
	path := writeFile(t, t.TempDir(), "step.sprig", "#R { {x $step} box R }\nR\nset $step 1\n")
	buildJSON(t, "--db", db, "--set", "$step=5", "--set", "maxdepth=2", path)

	_, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", db, "latest")
	assert.NoError(t, err)
}

func TestReplay_LimitedRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "sprig.db")
	path := writeFile(t, t.TempDir(), "concrete.sprig", concreteScript)
	buildJSON(t, "--db", db, "--limit", "2", path)

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", db, "latest")
	require.NoError(t, err)
	assert.Contains(t, out, "2 object(s)")
}

func TestReplay_Diverged(t *testing.T) {
	db := filepath.Join(t.TempDir(), "sprig.db")
	runID := recordConcrete(t, db)

	st := openTestStore(t, db)
	_, err := st.DB().Exec(`UPDATE events SET label = 'sphere' WHERE run_id = ? AND seq = 2`, runID)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", db, runID)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `object 2: recorded "sphere", replayed "box"`)
	assert.Contains(t, out, "✗ Replay diverged from the recorded trace")

	out, err = execute(t, NewReplayCommand(&RootOptions{Format: "json"}), "--db", db, runID)
	require.Error(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeDiverged, resp.Error.Code)
}

func TestReplay_Empty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "sprig.db")

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No complete runs to replay.")
}

func TestReplay_RunNotFound(t *testing.T) {
	db := filepath.Join(t.TempDir(), "sprig.db")

	_, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", db, "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
