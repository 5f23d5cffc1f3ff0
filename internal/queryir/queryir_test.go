package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sprig/internal/affine"
	"github.com/roach88/sprig/internal/color"
	"github.com/roach88/sprig/internal/ir"
)

func TestParseExpr(t *testing.T) {
	tests := []struct {
		expr string
		want Predicate
	}{
		{"label=box", Equals{Field: FieldLabel, Value: "box"}},
		{" param = tag ", Equals{Field: FieldParam, Value: "tag"}},
		{"x>=2", Compare{Field: FieldX, Op: OpGe, Value: 2}},
		{"seq<10", Compare{Field: FieldSeq, Op: OpLt, Value: 10}},
		{"Alpha != 0.5", Compare{Field: FieldAlpha, Op: OpNe, Value: 0.5}},
		{"z=-1.5", Compare{Field: FieldZ, Op: OpEq, Value: -1.5}},
		{"hue>120", Compare{Field: FieldHue, Op: OpGt, Value: 120}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseExpr(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseExpr_Errors(t *testing.T) {
	for _, expr := range []string{
		"label",
		"=box",
		"colour=red",
		"label>box",
		"x=far",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseExpr(expr)
			assert.Error(t, err)
		})
	}
}

func TestParseFilter(t *testing.T) {
	p, err := ParseFilter(nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = ParseFilter([]string{"label=box"})
	require.NoError(t, err)
	assert.Equal(t, Equals{Field: FieldLabel, Value: "box"}, p)

	p, err = ParseFilter([]string{"label=box", "x>1"})
	require.NoError(t, err)
	and, ok := p.(And)
	require.True(t, ok)
	assert.Len(t, and.Predicates, 2)
}

func TestValidate(t *testing.T) {
	res := Validate(Select{Run: "r", Filter: Conj(
		Equals{Field: FieldLabel, Value: "box"},
		Compare{Field: FieldY, Op: OpLe, Value: 3},
	)})
	assert.True(t, res.Valid)
	assert.NoError(t, res.Err())

	res = Validate(Select{Filter: And{Predicates: []Predicate{
		Equals{Field: FieldSeq, Value: "1"},
		&Compare{Field: FieldParam, Op: OpLt, Value: 1},
	}}})
	assert.False(t, res.Valid)
	assert.Len(t, res.Problems, 3)
	assert.Error(t, res.Err())
}

func TestConj(t *testing.T) {
	eq := Equals{Field: FieldLabel, Value: "box"}
	assert.Nil(t, Conj())
	assert.Nil(t, Conj(nil, nil))
	assert.Equal(t, eq, Conj(nil, eq))
	assert.Equal(t, And{Predicates: []Predicate{eq, eq}}, Conj(eq, nil, eq))
}

func TestMatch(t *testing.T) {
	e := ir.Event{
		Seq:    4,
		Label:  "box",
		Param:  "tag",
		Matrix: affine.Translate(2, -1, 0.5),
		Color:  color.Color{H: 120, S: 1, B: 0.5, A: 1},
	}

	tests := []struct {
		name string
		p    Predicate
		want bool
	}{
		{"nil", nil, true},
		{"label", Equals{Field: FieldLabel, Value: "box"}, true},
		{"other label", Equals{Field: FieldLabel, Value: "sphere"}, false},
		{"param", &Equals{Field: FieldParam, Value: "tag"}, true},
		{"seq", Compare{Field: FieldSeq, Op: OpLe, Value: 4}, true},
		{"x", Compare{Field: FieldX, Op: OpGt, Value: 1}, true},
		{"y", Compare{Field: FieldY, Op: OpGe, Value: 0}, false},
		{"z", Compare{Field: FieldZ, Op: OpEq, Value: 0.5}, true},
		{"brightness", Compare{Field: FieldBrightness, Op: OpLt, Value: 1}, true},
		{"and", And{Predicates: []Predicate{
			Equals{Field: FieldLabel, Value: "box"},
			Compare{Field: FieldHue, Op: OpNe, Value: 120},
		}}, false},
		{"empty and", And{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Match(tt.p, e)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Match(Equals{Field: FieldX, Value: "2"}, e)
	assert.Error(t, err)
}
