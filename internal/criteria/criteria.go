// Package criteria holds the script's configuration store: recursion and
// object limits, the size window, the seed, scene colours, the colour pool
// and free-form extension keys.
//
// Criteria is written only while a script compiles ("set" directives and
// caller overrides) and read thereafter.
package criteria

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/roach88/sprig/internal/color"
)

// Defaults applied when a script does not set a limit.
const (
	DefaultMaxDepth   = 100
	DefaultMaxObjects = 100000
	DefaultMinSize    = 0.0
	DefaultMaxSize    = 1000.0
)

// Recognised keys.
const (
	KeyMaxDepth   = "maxdepth"
	KeyMaxObjects = "maxobjects"
	KeyMinSize    = "minsize"
	KeyMaxSize    = "maxsize"
	KeySeed       = "seed"
	KeyBackground = "background"
	KeyFloor      = "floor"
	KeySky        = "sky"
	KeyColorPool  = "colorpool"
)

var keyAliases = map[string]string{
	"md":         KeyMaxDepth,
	"mo":         KeyMaxObjects,
	"bg":         KeyBackground,
	"pool":       KeyColorPool,
	"colourpool": KeyColorPool,
}

// Criteria is the typed key/value store.
type Criteria struct {
	values map[string]Value
	order  []string

	maxDepth   int
	maxObjects int
	minSize    float64
	maxSize    float64
	seed       uint32
	seeded     bool
	pool       *color.Pool
}

// New returns a store holding the defaults.
func New() *Criteria {
	return &Criteria{
		values:     make(map[string]Value),
		maxDepth:   DefaultMaxDepth,
		maxObjects: DefaultMaxObjects,
		minSize:    DefaultMinSize,
		maxSize:    DefaultMaxSize,
		pool:       color.NewRandomHue(),
	}
}

// NormalizeKey lower-cases a key and resolves aliases. Variable keys
// ($name) keep their case.
func NormalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if strings.HasPrefix(key, "$") {
		return key
	}
	key = strings.ToLower(key)
	if alias, ok := keyAliases[key]; ok {
		return alias
	}
	return key
}

// Set applies one setting. Recognised keys are validated; anything else
// is stored verbatim for the surrounding application to read.
func (c *Criteria) Set(key, raw string) error {
	key = NormalizeKey(key)
	if key == "" || key == "$" {
		return fmt.Errorf("empty setting key")
	}
	v := ParseValue(raw)

	switch key {
	case KeyMaxDepth:
		n, err := nonNegativeInt(key, v)
		if err != nil {
			return err
		}
		c.maxDepth = n
	case KeyMaxObjects:
		n, err := nonNegativeInt(key, v)
		if err != nil {
			return err
		}
		c.maxObjects = n
	case KeyMinSize, KeyMaxSize:
		if !v.IsNumeric() || v.Num < 0 {
			return fmt.Errorf("%s must be a non-negative number, got %q", key, raw)
		}
		if key == KeyMinSize {
			c.minSize = v.Num
		} else {
			c.maxSize = v.Num
		}
	case KeySeed:
		if v.Kind != KindInt || v.Int < 0 || v.Int > math.MaxUint32 {
			return fmt.Errorf("seed must be an integer in [0, %d], got %q", uint32(math.MaxUint32), raw)
		}
		c.seed = uint32(v.Int)
		c.seeded = true
	case KeyBackground, KeyFloor, KeySky:
		col, err := color.ParseOrGray(v.Raw)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		v.Kind = KindColor
		v.Color = col
	case KeyColorPool:
		var (
			p   *color.Pool
			err error
		)
		if v.Kind == KindList {
			p, err = color.ParseListPool(v.List)
		} else {
			p, err = color.ParsePool(v.Raw)
		}
		if err != nil {
			return err
		}
		c.pool = p
	default:
		if strings.HasPrefix(key, "$") && !v.IsNumeric() {
			return fmt.Errorf("variable %s must be numeric, got %q", key, raw)
		}
	}

	if _, exists := c.values[key]; !exists {
		c.order = append(c.order, key)
	}
	c.values[key] = v
	return nil
}

func nonNegativeInt(key string, v Value) (int, error) {
	if v.Kind != KindInt || v.Int < 0 || v.Int > math.MaxInt32 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, v.Raw)
	}
	return int(v.Int), nil
}

// Get returns the stored value for key.
func (c *Criteria) Get(key string) (Value, bool) {
	v, ok := c.values[NormalizeKey(key)]
	return v, ok
}

// Keys returns every key that was set, in the order first set.
func (c *Criteria) Keys() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Extensions returns the keys the store does not interpret, sorted.
// Variables are excluded.
func (c *Criteria) Extensions() map[string]Value {
	out := make(map[string]Value)
	for k, v := range c.values {
		if isRecognised(k) || strings.HasPrefix(k, "$") {
			continue
		}
		out[k] = v
	}
	return out
}

// ExtensionKeys returns the sorted extension key names.
func (c *Criteria) ExtensionKeys() []string {
	ext := c.Extensions()
	keys := make([]string, 0, len(ext))
	for k := range ext {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isRecognised(key string) bool {
	switch key {
	case KeyMaxDepth, KeyMaxObjects, KeyMinSize, KeyMaxSize, KeySeed,
		KeyBackground, KeyFloor, KeySky, KeyColorPool:
		return true
	}
	return false
}

// Variable returns the numeric value of a script variable ($name).
func (c *Criteria) Variable(name string) (float64, bool) {
	if !strings.HasPrefix(name, "$") {
		name = "$" + name
	}
	v, ok := c.values[name]
	if !ok || !v.IsNumeric() {
		return 0, false
	}
	return v.Num, true
}

func (c *Criteria) MaxDepth() int { return c.maxDepth }
func (c *Criteria) MaxObjects() int { return c.maxObjects }
func (c *Criteria) MinSize() float64 { return c.minSize }
func (c *Criteria) MaxSize() float64 { return c.maxSize }
func (c *Criteria) Pool() *color.Pool { return c.pool }

// Seed returns the script seed and whether one was set.
func (c *Criteria) Seed() (uint32, bool) {
	return c.seed, c.seeded
}

// SetSeed overrides the seed without going through a setting string.
func (c *Criteria) SetSeed(seed uint32) {
	c.seed = seed
	c.seeded = true
	v := Value{Raw: fmt.Sprintf("%d", seed), Kind: KindInt, Int: int64(seed), Num: float64(seed)}
	if _, exists := c.values[KeySeed]; !exists {
		c.order = append(c.order, KeySeed)
	}
	c.values[KeySeed] = v
}

// Color returns a scene colour setting (background, floor, sky).
func (c *Criteria) Color(key string) (color.Color, bool) {
	v, ok := c.Get(key)
	if !ok || v.Kind != KindColor {
		return color.Color{}, false
	}
	return v.Color, true
}

// SizeWindow returns the exclusive bounds on |det3|: minsize^3 and
// maxsize^3.
func (c *Criteria) SizeWindow() (lo, hi float64) {
	return c.minSize * c.minSize * c.minSize, c.maxSize * c.maxSize * c.maxSize
}

// Clone returns an independent copy.
func (c *Criteria) Clone() *Criteria {
	cp := *c
	cp.values = make(map[string]Value, len(c.values))
	for k, v := range c.values {
		cp.values[k] = v
	}
	cp.order = append([]string(nil), c.order...)
	return &cp
}
