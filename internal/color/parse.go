package color

import (
	"fmt"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// Parse reads a colour literal: #rgb, #rrggbb or an SVG colour name.
func Parse(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		if len(s) != 4 && len(s) != 7 {
			return Color{}, fmt.Errorf("invalid hex colour %q: want #rgb or #rrggbb", s)
		}
		c, err := colorful.Hex(strings.ToLower(s))
		if err != nil {
			return Color{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
		}
		return FromRGB(c.R, c.G, c.B, 1), nil
	}

	if rgba, ok := colornames.Map[strings.ToLower(s)]; ok {
		return FromRGB(float64(rgba.R)/255, float64(rgba.G)/255, float64(rgba.B)/255, 1), nil
	}

	return Color{}, fmt.Errorf("unknown colour %q", s)
}

// IsName reports whether s is a known colour name.
func IsName(s string) bool {
	_, ok := colornames.Map[strings.ToLower(s)]
	return ok
}

// ParseOrGray parses a colour literal, falling back to a grey whose
// brightness is s read as a percentage ("50" -> 50% grey).
func ParseOrGray(s string) (Color, error) {
	if c, err := Parse(s); err == nil {
		return c, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil {
		return Color{}, fmt.Errorf("not a colour or grey percentage: %q", s)
	}
	return Gray(v / 100), nil
}
