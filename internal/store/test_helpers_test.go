package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sprig/internal/compiler"
	"github.com/roach88/sprig/internal/engine"
	"github.com/roach88/sprig/internal/ir"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestEngine compiles src into an engine seeded with 42 that hands out
// the given run ids in order.
func newTestEngine(t *testing.T, src string, runIDs ...string) *engine.Engine {
	t.Helper()
	prog, err := compiler.Compile(src, compiler.WithLogger(quiet))
	require.NoError(t, err)
	return engine.New(prog,
		engine.WithSeed(42),
		engine.WithLogger(quiet),
		engine.WithRunIDGenerator(engine.NewFixedGenerator(runIDs...)),
	)
}

// buildTestTrace compiles and builds src with a fixed seed and run id.
func buildTestTrace(t *testing.T, src, runID string) ([]ir.Event, *engine.Result, *engine.Engine) {
	t.Helper()
	e := newTestEngine(t, src, runID)
	events, res, err := e.Collect(context.Background())
	require.NoError(t, err)
	return events, res, e
}

// recordTestTrace builds src and writes it to s.
func recordTestTrace(t *testing.T, s *Store, src, runID string) (Run, []ir.Event) {
	t.Helper()
	events, res, e := buildTestTrace(t, src, runID)
	run, err := s.WriteRun(context.Background(), NewRun(res.RunID, "", src, e.Seed()), events, res)
	require.NoError(t, err)
	return run, events
}
