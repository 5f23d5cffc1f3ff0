package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sprig/internal/ir"
)

func TestCompile_RecursiveRule(t *testing.T) {
	prog, err := Compile(`@maxdepth 3 #R { {x1} box[tag] R } R`)
	require.NoError(t, err)

	require.Len(t, prog.Rules, 2)
	root := prog.Root()
	assert.Equal(t, []ir.RuleID{1}, root.Children["R"])
	require.Len(t, root.Body, 1)
	assert.Equal(t, &ir.Reference{Label: "R"}, root.Body[0])

	r := prog.Rule(1)
	assert.Equal(t, "R", r.Name)
	assert.Equal(t, ir.RootID, r.Parent)
	assert.Equal(t, 3, r.MaxDepth)
	assert.Equal(t, 1.0, r.Weight)
	require.Len(t, r.Body, 3)

	op, ok := r.Body[0].(*ir.Operator)
	require.True(t, ok)
	assert.Equal(t, 1, op.Repeat)
	x, _, _ := op.Delta.Translation()
	assert.Equal(t, 1.0, x)

	assert.Equal(t, &ir.Reference{Label: "box", Param: "tag", HasParam: true}, r.Body[1])
	assert.Equal(t, ir.ScriptHash(prog.Source), prog.SourceHash)
}

func TestCompile_MaxDepthDefaultsAfterAllSettings(t *testing.T) {
	prog, err := Compile(`#R { R } #S md 2 { S } @maxdepth 7`)
	require.NoError(t, err)

	assert.Equal(t, 7, prog.Rule(1).MaxDepth, "R takes the criteria maxdepth")
	assert.Equal(t, 2, prog.Rule(2).MaxDepth, "S keeps its own")
	assert.Equal(t, 0, prog.Root().MaxDepth, "the root is never limited")
}

func TestCompile_WeightedAlternatives(t *testing.T) {
	prog, err := Compile(`#A w 2 > B { a } #A { b } #B { c } A`)
	require.NoError(t, err)

	group := prog.Root().Children["A"]
	require.Len(t, group, 2)
	assert.Equal(t, 2.0, prog.Rule(group[0]).Weight)
	assert.Equal(t, "B", prog.Rule(group[0]).Fallback)
	assert.Equal(t, 1.0, prog.Rule(group[1]).Weight)
}

func TestCompile_NestedScopes(t *testing.T) {
	prog, err := Compile(`
rule Tree {
	{ y 1 } Leaf
	rule Leaf { leaf }
}
Tree
`)
	require.NoError(t, err)

	tree := prog.Rule(prog.Root().Children["Tree"][0])
	leaf := prog.Rule(tree.Children["Leaf"][0])
	assert.Equal(t, tree.ID, leaf.Parent)
	assert.Equal(t, 4, leaf.Line)
	assert.Equal(t, "Tree/Leaf", prog.Path(leaf.ID))

	_, _, ok := prog.Lookup(ir.RootID, "Leaf")
	assert.False(t, ok, "Leaf is only visible inside Tree")
}

func TestCompile_SettingsInsideRules(t *testing.T) {
	prog, err := Compile(`#R { @maxobjects 5 box } R`)
	require.NoError(t, err)
	assert.Equal(t, 5, prog.Criteria.MaxObjects())
}

func TestCompile_ExtensionKeys(t *testing.T) {
	prog, err := Compile("set material glossy\n@background #fff\nbox")
	require.NoError(t, err)

	v, ok := prog.Criteria.Get("material")
	require.True(t, ok)
	assert.Equal(t, "glossy", v.Raw)
	assert.Equal(t, []string{"material"}, prog.Criteria.ExtensionKeys())

	bg, ok := prog.Criteria.Color("background")
	require.True(t, ok)
	assert.Equal(t, 1.0, bg.B)
}

func TestCompile_Options(t *testing.T) {
	prog, err := Compile(`set $len 1 @seed 3 {x $len} box`,
		WithSeed(7),
		WithVariables(map[string]float64{"len": 3}),
		WithCriteria(map[string]string{"maxobjects": "10", "md": "4"}),
	)
	require.NoError(t, err)

	seed, ok := prog.Criteria.Seed()
	assert.True(t, ok)
	assert.Equal(t, uint32(7), seed)
	assert.Equal(t, 10, prog.Criteria.MaxObjects())
	assert.Equal(t, 4, prog.Criteria.MaxDepth())

	op := prog.Root().Body[0].(*ir.Operator)
	x, _, _ := op.Delta.Translation()
	assert.Equal(t, 3.0, x)
}

func TestCompile_ScriptSeed(t *testing.T) {
	prog, err := Compile(`@seed 42 box`)
	require.NoError(t, err)
	seed, ok := prog.Criteria.Seed()
	assert.True(t, ok)
	assert.Equal(t, uint32(42), seed)

	prog, err = Compile(`box`)
	require.NoError(t, err)
	_, ok = prog.Criteria.Seed()
	assert.False(t, ok)
}

func TestCompile_RepeatCount(t *testing.T) {
	prog, err := Compile(`12 * { rz 30 } spoke`)
	require.NoError(t, err)

	op := prog.Root().Body[0].(*ir.Operator)
	assert.Equal(t, 12, op.Repeat)
	assert.Equal(t, "rz 30", op.Text)
}

func TestCompile_SettingError(t *testing.T) {
	_, err := Compile("box\n@maxdepth -1")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "set maxdepth", ce.Field)
	assert.Equal(t, 2, ce.Pos.Line)
	assert.Contains(t, ce.Error(), "2:1: set maxdepth:")
	assert.True(t, IsCompileError(err))
}

func TestCompile_OperatorError(t *testing.T) {
	_, err := Compile("box\n  { x 1 q 2 } box")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "operator", ce.Field)
	assert.Contains(t, ce.Message, `unknown operator "q"`)
	assert.Contains(t, ce.Message, "{x 1 q 2}")

	pos, ok := Position(err)
	assert.True(t, ok)
	assert.Equal(t, 2, pos.Line)
	assert.Equal(t, 3, pos.Column)
}

func TestCompile_UndefinedVariable(t *testing.T) {
	_, err := Compile(`{ x $nope } box`)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "variable $nope", ce.Field)
}

func TestCompile_SyntaxErrorPassesThrough(t *testing.T) {
	_, err := Compile(`#R { box`)
	require.Error(t, err)
	assert.True(t, IsSyntaxError(err))
	assert.False(t, IsCompileError(err))
}

func TestCompile_OverrideError(t *testing.T) {
	_, err := Compile(`box`, WithCriteria(map[string]string{"maxobjects": "many"}))

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "override maxobjects", ce.Field)
	assert.False(t, ce.Pos.IsValid())
}

// TestCompile_HeaderBraceOpensBody pins how the compact "#R{x1}box R[tag]"
// form compiles: the brace opens R's body, so x1 is a terminal of R and
// box is a top-level terminal.
func TestCompile_HeaderBraceOpensBody(t *testing.T) {
	prog, err := Compile(`#R{x1}box R[tag] @maxdepth3`)
	require.NoError(t, err)
	assert.Equal(t, 3, prog.Criteria.MaxDepth())

	key, group, ok := prog.Lookup(ir.RootID, "R")
	require.True(t, ok)
	assert.Equal(t, ir.GroupKey{Scope: ir.RootID, Name: "R"}, key)
	require.Len(t, group, 1)
	r := prog.Rule(group[0])
	require.Len(t, r.Body, 1)
	assert.Equal(t, &ir.Reference{Label: "x1"}, r.Body[0])

	root := prog.Root().Body
	require.Len(t, root, 2)
	assert.Equal(t, &ir.Reference{Label: "box"}, root[0])
	assert.Equal(t, &ir.Reference{Label: "R", Param: "tag", HasParam: true}, root[1])
}

func TestCompile_NumberOutsideTransform(t *testing.T) {
	_, err := Compile(`#R{s0.99}R[a]`)
	require.Error(t, err)
	assert.True(t, IsSyntaxError(err))
	assert.Contains(t, err.Error(), `1:6: number outside a transform block; the "{" after rule R opened the rule body`)
}
