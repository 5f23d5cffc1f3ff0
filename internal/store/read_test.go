package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sprig/internal/ir"
	"github.com/roach88/sprig/internal/queryir"
)

func TestReadEvents_LabelFilter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	recordTestTrace(t, s, branchScript, "run-1")

	spheres, err := s.ReadEvents(ctx, "run-1", "sphere")
	require.NoError(t, err)
	require.Len(t, spheres, 3)

	var seqs []int64
	var xs []float64
	for _, e := range spheres {
		assert.Equal(t, "sphere", e.Label)
		seqs = append(seqs, e.Seq)
		x, _, _ := e.Position()
		xs = append(xs, x)
	}
	assert.Equal(t, []int64{4, 5, 6}, seqs)
	assert.Equal(t, []float64{3, 2, 1}, xs)

	none, err := s.ReadEvents(ctx, "run-1", "cone")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestReadEvents_UnknownRun(t *testing.T) {
	s := createTestStore(t)

	events, err := s.ReadEvents(context.Background(), "missing", "")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestListRuns_InsertionOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)

	recordTestTrace(t, s, branchScript, "b")
	recordTestTrace(t, s, "box", "a")
	recordTestTrace(t, s, branchScript, "c")

	runs, err = s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "b", runs[0].ID)
	assert.Equal(t, "a", runs[1].ID)
	assert.Equal(t, "c", runs[2].ID)
	assert.Less(t, runs[0].Seq, runs[1].Seq)
	assert.Less(t, runs[1].Seq, runs[2].Seq)

	same, err := s.RunsForScript(ctx, ir.ScriptHash(branchScript))
	require.NoError(t, err)
	require.Len(t, same, 2)
	assert.Equal(t, "b", same[0].ID)
	assert.Equal(t, "c", same[1].ID)
	assert.Equal(t, same[0].TraceHash, same[1].TraceHash)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", latest.ID)
}

func TestLatestRun_Empty(t *testing.T) {
	s := createTestStore(t)

	_, err := s.LatestRun(context.Background())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestLabelCounts(t *testing.T) {
	s := createTestStore(t)

	recordTestTrace(t, s, branchScript, "run-1")

	counts, err := s.LabelCounts(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"box": 3, "sphere": 3}, counts)
}

func TestScanEvents_StopsOnError(t *testing.T) {
	s := createTestStore(t)

	recordTestTrace(t, s, branchScript, "run-1")

	halt := errors.New("halt")
	var seen int
	err := s.ScanEvents(context.Background(), "run-1", "", func(ir.Event) error {
		seen++
		if seen == 2 {
			return halt
		}
		return nil
	})
	assert.ErrorIs(t, err, halt)
	assert.Equal(t, 2, seen)
}

func TestScanQuery_Filter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	recordTestTrace(t, s, branchScript, "run-1")

	filter, err := queryir.ParseFilter([]string{"label=sphere", "x>=2"})
	require.NoError(t, err)

	var seqs []int64
	err = s.ScanQuery(ctx, queryir.Select{Run: "run-1", Filter: filter}, func(e ir.Event) error {
		seqs = append(seqs, e.Seq)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, seqs)

	seqs = nil
	err = s.ScanQuery(ctx, queryir.Select{Run: "run-1", Filter: filter, Limit: 1}, func(e ir.Event) error {
		seqs = append(seqs, e.Seq)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, seqs)
}

func TestScanQuery_Invalid(t *testing.T) {
	s := createTestStore(t)

	err := s.ScanQuery(context.Background(), queryir.Select{}, func(ir.Event) error { return nil })
	assert.Error(t, err)
}
