package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUint32_ReferenceSequence checks the first words of the reference
// MT19937 output for the canonical default seed 5489.
func TestUint32_ReferenceSequence(t *testing.T) {
	g := New(5489)

	expected := []uint32{3499211612, 581869302, 3890346734, 3586334585, 545404204}
	for i, want := range expected {
		assert.Equal(t, want, g.Uint32(), "word %d", i)
	}
}

// TestFloat64_Seed42 documents the first five doubles for seed 42.
func TestFloat64_Seed42(t *testing.T) {
	expected := []float64{
		0.3745401188473625,
		0.9507143064099162,
		0.7319939418114051,
		0.5986584841970366,
		0.15601864044243652,
	}

	g := New(42)
	for i, want := range expected {
		assert.InDelta(t, want, g.Next(), 1e-15, "draw %d", i)
	}

	// Re-instantiating reproduces the sequence exactly.
	g2 := New(42)
	for i, want := range expected {
		assert.InDelta(t, want, g2.Next(), 1e-15, "draw %d after reseed", i)
	}
}

func TestFloat64_Range(t *testing.T) {
	g := New(7)
	for i := 0; i < 10000; i++ {
		v := g.Float64()
		require.GreaterOrEqual(t, v, 0.0)
		require.Less(t, v, 1.0)
	}
}

func TestSeed_ResetsState(t *testing.T) {
	g := New(1)
	first := []float64{g.Float64(), g.Float64(), g.Float64()}

	g.Seed(1)
	assert.Equal(t, uint64(0), g.Draws())
	assert.Equal(t, first, []float64{g.Float64(), g.Float64(), g.Float64()})
	assert.Equal(t, uint32(1), g.SeedValue())
}

func TestDraws_CountsWords(t *testing.T) {
	g := New(3)
	g.Uint32()
	g.Float64()
	assert.Equal(t, uint64(3), g.Draws())

	g.Skip(4)
	assert.Equal(t, uint64(11), g.Draws())
}

func TestSkip_MatchesDrawing(t *testing.T) {
	a := New(99)
	b := New(99)

	a.Skip(5)
	for i := 0; i < 5; i++ {
		b.Float64()
	}
	assert.Equal(t, b.Float64(), a.Float64())
}
