package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare_IdenticalReplay(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	recordTestTrace(t, s, branchScript, "run-1")
	replayed, _, _ := buildTestTrace(t, branchScript, "replay")

	div, err := s.Compare(ctx, "run-1", replayed)
	require.NoError(t, err)
	assert.Nil(t, div)
}

func TestCompare_Divergence(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, recorded := recordTestTrace(t, s, branchScript, "run-1")

	t.Run("changed event", func(t *testing.T) {
		replayed := append(recorded[:0:0], recorded...)
		replayed[3].Matrix[0][3] += 0.5

		div, err := s.Compare(ctx, "run-1", replayed)
		require.NoError(t, err)
		require.NotNil(t, div)
		assert.Equal(t, int64(4), div.Seq)
		require.NotNil(t, div.Recorded)
		require.NotNil(t, div.Replayed)
		assert.Equal(t, `object 4: recorded "sphere", replayed "sphere"`, div.String())
	})

	t.Run("replay too short", func(t *testing.T) {
		div, err := s.Compare(ctx, "run-1", recorded[:4])
		require.NoError(t, err)
		require.NotNil(t, div)
		assert.Equal(t, int64(5), div.Seq)
		assert.Nil(t, div.Replayed)
		assert.Contains(t, div.String(), "replay ended before")
	})

	t.Run("replay too long", func(t *testing.T) {
		extra := recorded[5]
		extra.Seq = 7
		replayed := append(append(recorded[:0:0], recorded...), extra)

		div, err := s.Compare(ctx, "run-1", replayed)
		require.NoError(t, err)
		require.NotNil(t, div)
		assert.Equal(t, int64(7), div.Seq)
		assert.Nil(t, div.Recorded)
		assert.Contains(t, div.String(), "past the end")
	})
}

func TestCompare_UnknownRun(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Compare(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrRunNotFound)
}
