// Package color implements the hue/saturation/brightness/alpha colour
// algebra applied by operators during traversal, and the randomised
// palettes (pools) a colour may be bound to.
//
// Conversions to and from RGB go through go-colorful; named colours come
// from the SVG 1.1 table in golang.org/x/image/colornames.
package color

import (
	"fmt"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Color is an HSBA value. H is in degrees and wraps modulo 360; S, B and
// A are clamped to [0,1].
//
// A Color may be bound to a Pool, in which case Resolve replaces it with
// a fresh pool draw each time it is applied.
type Color struct {
	H float64 `json:"h"`
	S float64 `json:"s"`
	B float64 `json:"b"`
	A float64 `json:"a"`

	Pool *Pool `json:"-"`
}

// Ratio weights a blend per channel.
type Ratio struct {
	H, S, B float64
}

// FullRatio blends every channel all the way to the target.
var FullRatio = Ratio{H: 1, S: 1, B: 1}

// IdentityDelta is the multiplicative delta that leaves a colour unchanged.
var IdentityDelta = Color{H: 0, S: 1, B: 1, A: 1}

// HSBA builds a colour, normalising hue and clamping the other channels.
func HSBA(h, s, b, a float64) Color {
	return Color{H: wrapHue(h), S: clamp01(s), B: clamp01(b), A: clamp01(a)}
}

// Default is the colour a build starts from: opaque, fully saturated red.
func Default() Color {
	return HSBA(0, 1, 1, 1)
}

// Gray returns an opaque grey of brightness v.
func Gray(v float64) Color {
	return HSBA(0, 0, v, 1)
}

// FromRGB converts RGB components in [0,1] to HSBA.
func FromRGB(r, g, b, a float64) Color {
	h, s, v := colorful.Color{R: r, G: g, B: b}.Hsv()
	return HSBA(h, s, v, a)
}

// Multiply composes a delta: hue is added, s/b/a are multiplied.
func (c Color) Multiply(d Color) Color {
	return Color{
		H:    wrapHue(c.H + d.H),
		S:    clamp01(c.S * d.S),
		B:    clamp01(c.B * d.B),
		A:    clamp01(c.A * d.A),
		Pool: c.Pool,
	}
}

// Blend moves c toward target. Each channel moves by its ratio scaled by
// the target's alpha; hue takes the short way round the colour wheel.
// Alpha itself is not blended.
func (c Color) Blend(target Color, r Ratio) Color {
	w := target.A
	dh := target.H - c.H
	for dh > 180 {
		dh -= 360
	}
	for dh <= -180 {
		dh += 360
	}
	return Color{
		H:    wrapHue(c.H + dh*r.H*w),
		S:    clamp01(c.S + (target.S-c.S)*r.S*w),
		B:    clamp01(c.B + (target.B-c.B)*r.B*w),
		A:    c.A,
		Pool: c.Pool,
	}
}

// WithAlpha returns c with its alpha replaced.
func (c Color) WithAlpha(a float64) Color {
	c.A = clamp01(a)
	return c
}

// Resolve returns the concrete colour for c: a pool draw when c is bound
// to a pool (keeping c's alpha), c itself otherwise.
func (c Color) Resolve(src Source) Color {
	if c.Pool == nil {
		return c
	}
	drawn := c.Pool.Draw(src)
	drawn.A = c.A
	return drawn
}

// Advance consumes the draws Resolve would without producing a colour.
func (c Color) Advance(src Source) {
	if c.Pool != nil {
		c.Pool.Advance(src)
	}
}

// Bound reports whether c is bound to a pool.
func (c Color) Bound() bool {
	return c.Pool != nil
}

// RGBA converts to RGB using the six-sector HSB split.
func (c Color) RGBA() (r, g, b, a float64) {
	rgb := colorful.Hsv(wrapHue(c.H), clamp01(c.S), clamp01(c.B))
	return rgb.R, rgb.G, rgb.B, c.A
}

// Hex returns the #rrggbb form of the colour, ignoring alpha.
func (c Color) Hex() string {
	r, g, b, _ := c.RGBA()
	return colorful.Color{R: r, G: g, B: b}.Clamped().Hex()
}

// ApproxEqual compares two colours channel by channel, hue modulo 360.
func (c Color) ApproxEqual(o Color, eps float64) bool {
	dh := math.Abs(c.H - o.H)
	if dh > 180 {
		dh = 360 - dh
	}
	return dh <= eps &&
		math.Abs(c.S-o.S) <= eps &&
		math.Abs(c.B-o.B) <= eps &&
		math.Abs(c.A-o.A) <= eps
}

func (c Color) String() string {
	if c.Pool != nil {
		return fmt.Sprintf("random(%s)", c.Pool.Scheme())
	}
	return fmt.Sprintf("hsba(%g,%g,%g,%g)", c.H, c.S, c.B, c.A)
}

func wrapHue(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h = 0
	}
	return h
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
