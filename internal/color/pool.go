package color

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Source is the random source a pool draws from. *rng.Generator
// satisfies it.
type Source interface {
	Float64() float64
}

// Scheme identifies how a pool produces colours.
type Scheme string

const (
	// SchemeRandomRGB draws r, g and b independently (3 draws).
	SchemeRandomRGB Scheme = "randomrgb"

	// SchemeRandomHue draws a hue at full saturation and brightness.
	SchemeRandomHue Scheme = "randomhue"

	// SchemeGrayscale draws a brightness with zero saturation.
	SchemeGrayscale Scheme = "grayscale"

	// SchemeList draws an index into a fixed list of colours. Hue and
	// grey ramps are precomputed lists.
	SchemeList Scheme = "list"
)

// Pool is a randomised colour palette.
type Pool struct {
	scheme Scheme
	colors []Color
	name   string
}

// NewRandomRGB returns a pool of uniformly random RGB colours.
func NewRandomRGB() *Pool {
	return &Pool{scheme: SchemeRandomRGB, name: string(SchemeRandomRGB)}
}

// NewRandomHue returns a pool of random fully saturated hues.
func NewRandomHue() *Pool {
	return &Pool{scheme: SchemeRandomHue, name: string(SchemeRandomHue)}
}

// NewGrayscale returns a pool of random greys.
func NewGrayscale() *Pool {
	return &Pool{scheme: SchemeGrayscale, name: string(SchemeGrayscale)}
}

// NewList returns a pool choosing uniformly among colors.
func NewList(colors ...Color) (*Pool, error) {
	if len(colors) == 0 {
		return nil, fmt.Errorf("colour list pool needs at least one colour")
	}
	cp := make([]Color, len(colors))
	copy(cp, colors)
	return &Pool{scheme: SchemeList, colors: cp, name: string(SchemeList)}, nil
}

// NewHueRamp returns a list pool of n evenly spaced hues.
func NewHueRamp(n int) (*Pool, error) {
	if n < 1 {
		return nil, fmt.Errorf("hue ramp needs at least one step, got %d", n)
	}
	colors := make([]Color, n)
	for i := range colors {
		colors[i] = HSBA(float64(i)*360/float64(n), 1, 1, 1)
	}
	return &Pool{scheme: SchemeList, colors: colors, name: fmt.Sprintf("hue%d", n)}, nil
}

// NewGrayRamp returns a list pool of n evenly spaced greys from black
// to white.
func NewGrayRamp(n int) (*Pool, error) {
	if n < 1 {
		return nil, fmt.Errorf("grey ramp needs at least one step, got %d", n)
	}
	colors := make([]Color, n)
	for i := range colors {
		v := 1.0
		if n > 1 {
			v = float64(i) / float64(n-1)
		}
		colors[i] = Gray(v)
	}
	return &Pool{scheme: SchemeList, colors: colors, name: fmt.Sprintf("gray%d", n)}, nil
}

var rampPattern = regexp.MustCompile(`^(hue|gray|grey)(\d+)$`)

// ParsePool reads a colorpool setting. Accepted forms: randomrgb,
// randomhue, grayscale (greyscale), hueN, grayN (greyN), list:c1,c2,...
func ParsePool(def string) (*Pool, error) {
	s := strings.ToLower(strings.TrimSpace(def))
	switch s {
	case "randomrgb":
		return NewRandomRGB(), nil
	case "randomhue":
		return NewRandomHue(), nil
	case "grayscale", "greyscale":
		return NewGrayscale(), nil
	}

	if m := rampPattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("invalid ramp size in %q: %w", def, err)
		}
		if m[1] == "hue" {
			return NewHueRamp(n)
		}
		return NewGrayRamp(n)
	}

	if rest, ok := strings.CutPrefix(s, "list:"); ok {
		return ParseListPool(strings.Split(rest, ","))
	}

	return nil, fmt.Errorf("unknown colour pool %q", def)
}

// ParseListPool builds a list pool from colour literals.
func ParseListPool(items []string) (*Pool, error) {
	colors := make([]Color, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		c, err := Parse(item)
		if err != nil {
			return nil, fmt.Errorf("colour pool: %w", err)
		}
		colors = append(colors, c)
	}
	return NewList(colors...)
}

// Scheme returns the pool's scheme name; ramps report hueN / grayN.
func (p *Pool) Scheme() string {
	return p.name
}

// Colors returns a copy of the fixed colours of a list pool.
func (p *Pool) Colors() []Color {
	out := make([]Color, len(p.colors))
	copy(out, p.colors)
	return out
}

// DrawCount is the number of doubles one Draw consumes.
func (p *Pool) DrawCount() int {
	if p.scheme == SchemeRandomRGB {
		return 3
	}
	return 1
}

// Draw samples a colour.
func (p *Pool) Draw(src Source) Color {
	switch p.scheme {
	case SchemeRandomRGB:
		r := src.Float64()
		g := src.Float64()
		b := src.Float64()
		return FromRGB(r, g, b, 1)
	case SchemeRandomHue:
		return HSBA(src.Float64()*360, 1, 1, 1)
	case SchemeGrayscale:
		return Gray(src.Float64())
	default:
		idx := int(src.Float64() * float64(len(p.colors)))
		if idx >= len(p.colors) {
			idx = len(p.colors) - 1
		}
		return p.colors[idx]
	}
}

// Advance consumes exactly the draws of one Draw without building a
// colour. A size-estimation pass calls Advance where the materialising
// pass calls Draw so both leave the generator in the same state.
func (p *Pool) Advance(src Source) {
	for i := 0; i < p.DrawCount(); i++ {
		src.Float64()
	}
}
