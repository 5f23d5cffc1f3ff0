package criteria

import (
	"strconv"
	"strings"

	"github.com/roach88/sprig/internal/color"
)

// Kind classifies a normalised setting value.
type Kind string

const (
	KindInt    Kind = "int"
	KindNumber Kind = "number"
	KindColor  Kind = "color"
	KindList   Kind = "list"
	KindString Kind = "string"
)

// Value is a setting value normalised at parse time. Raw always holds
// the text exactly as written in the script.
type Value struct {
	Raw   string
	Kind  Kind
	Int   int64
	Num   float64
	Color color.Color
	List  []string
}

// ParseValue normalises raw in priority order: integer, number, bracketed
// list, colour literal, string.
func ParseValue(raw string) Value {
	raw = strings.TrimSpace(raw)
	v := Value{Raw: raw, Kind: KindString}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		v.Kind = KindInt
		v.Int = n
		v.Num = float64(n)
		return v
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		v.Kind = KindNumber
		v.Num = f
		return v
	}
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		v.Kind = KindList
		inner := strings.TrimSpace(raw[1 : len(raw)-1])
		if inner != "" {
			for _, item := range strings.Split(inner, ",") {
				v.List = append(v.List, strings.TrimSpace(item))
			}
		}
		return v
	}
	if c, err := color.Parse(raw); err == nil {
		v.Kind = KindColor
		v.Color = c
		return v
	}
	return v
}

// IsNumeric reports whether the value is an integer or a number.
func (v Value) IsNumeric() bool {
	return v.Kind == KindInt || v.Kind == KindNumber
}

func (v Value) String() string {
	return v.Raw
}
