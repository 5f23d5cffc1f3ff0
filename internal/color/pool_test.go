package color

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sprig/internal/rng"
)

func TestParsePool(t *testing.T) {
	tests := []struct {
		def    string
		scheme string
		draws  int
	}{
		{"randomrgb", "randomrgb", 3},
		{"RandomHue", "randomhue", 1},
		{"greyscale", "grayscale", 1},
		{"hue12", "hue12", 1},
		{"grey4", "gray4", 1},
		{"list:red,#00f", "list", 1},
	}

	for _, tt := range tests {
		t.Run(tt.def, func(t *testing.T) {
			p, err := ParsePool(tt.def)
			require.NoError(t, err)
			assert.Equal(t, tt.scheme, p.Scheme())
			assert.Equal(t, tt.draws, p.DrawCount())
		})
	}

	for _, bad := range []string{"plaid", "hue0", "list:", "list:red,nocolour"} {
		_, err := ParsePool(bad)
		assert.Error(t, err, bad)
	}
}

func TestHueRamp(t *testing.T) {
	p, err := NewHueRamp(4)
	require.NoError(t, err)
	colors := p.Colors()
	require.Len(t, colors, 4)
	for i, c := range colors {
		assert.InDelta(t, float64(i)*90, c.H, eps)
	}
}

func TestGrayRamp(t *testing.T) {
	p, err := NewGrayRamp(3)
	require.NoError(t, err)
	colors := p.Colors()
	assert.InDelta(t, 0.0, colors[0].B, eps)
	assert.InDelta(t, 0.5, colors[1].B, eps)
	assert.InDelta(t, 1.0, colors[2].B, eps)
}

func TestDraw_Deterministic(t *testing.T) {
	for _, p := range []*Pool{NewRandomRGB(), NewRandomHue(), NewGrayscale()} {
		a := rng.New(11)
		b := rng.New(11)
		for i := 0; i < 20; i++ {
			assert.Equal(t, p.Draw(a), p.Draw(b), p.Scheme())
		}
	}
}

func TestDraw_List(t *testing.T) {
	red, _ := Parse("red")
	blue, _ := Parse("blue")
	p, err := NewList(red, blue)
	require.NoError(t, err)

	g := rng.New(5)
	seen := map[string]int{}
	for i := 0; i < 200; i++ {
		seen[p.Draw(g).Hex()]++
	}
	assert.Len(t, seen, 2)
	assert.Greater(t, seen["#ff0000"], 0)
	assert.Greater(t, seen["#0000ff"], 0)
}

// TestAdvance_KeepsGeneratorsInStep checks that a pass using Advance
// leaves the generator where a pass using Draw does.
func TestAdvance_KeepsGeneratorsInStep(t *testing.T) {
	for _, p := range []*Pool{NewRandomRGB(), NewRandomHue(), NewGrayscale()} {
		drawing := rng.New(21)
		advancing := rng.New(21)

		for i := 0; i < 10; i++ {
			p.Draw(drawing)
			p.Advance(advancing)
		}

		assert.Equal(t, drawing.Draws(), advancing.Draws(), p.Scheme())
		assert.Equal(t, drawing.Float64(), advancing.Float64(), p.Scheme())
	}
}

func TestResolve(t *testing.T) {
	plain := HSBA(30, 1, 1, 1)
	assert.Equal(t, plain, plain.Resolve(rng.New(1)))

	bound := Color{A: 0.25, Pool: NewGrayscale()}
	got := bound.Resolve(rng.New(1))
	assert.Nil(t, got.Pool)
	assert.Equal(t, 0.25, got.A)
	assert.True(t, bound.Bound())

	g := rng.New(1)
	bound.Advance(g)
	assert.Equal(t, uint64(2), g.Draws())
}
