package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripComments(t *testing.T) {
	src := "a // line\nb /* block\nstill */ c"
	got := StripComments(src)

	assert.Equal(t, len(src), len(got), "positions are preserved")
	assert.Equal(t, []string{"a", "b", "c"}, fieldsOf(got))
	assert.Equal(t, 2, countNewlines(got))
}

func TestLexer_Productions(t *testing.T) {
	toks, err := NewLexer("set maxdepth 3 @seed 42 #R w2 { 3{x1 s0.5} box[tag] } R").All()
	require.NoError(t, err)

	kinds := make([]TokenKind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	assert.Equal(t, []TokenKind{
		TokSetting, TokSetting, TokRuleHeader, TokTransform, TokReference, TokScopeEnd, TokReference, TokEOF,
	}, kinds)

	assert.Equal(t, "maxdepth", toks[0].Key)
	assert.Equal(t, "3", toks[0].Value)
	assert.Equal(t, "seed", toks[1].Key)
	assert.Equal(t, "42", toks[1].Value)
	assert.Equal(t, "R", toks[2].Name)
	assert.Equal(t, "w2", toks[2].Options)
	assert.Equal(t, 3, toks[3].Repeat)
	assert.Equal(t, "x1 s0.5", toks[3].Ops)
	assert.Equal(t, "box", toks[4].Label)
	assert.Equal(t, "tag", toks[4].Param)
	assert.True(t, toks[4].HasParam)
	assert.False(t, toks[6].HasParam)
}

func TestLexer_CompactSetting(t *testing.T) {
	toks, err := NewLexer("@maxdepth3 @$len 2.5 @colorpool [red, blue]").All()
	require.NoError(t, err)
	require.Len(t, toks, 4)

	assert.Equal(t, "maxdepth", toks[0].Key)
	assert.Equal(t, "3", toks[0].Value)
	assert.Equal(t, "$len", toks[1].Key)
	assert.Equal(t, "2.5", toks[1].Value)
	assert.Equal(t, "colorpool", toks[2].Key)
	assert.Equal(t, "[red, blue]", toks[2].Value)
}

func TestLexer_Positions(t *testing.T) {
	toks, err := NewLexer("box\n  // note\n  rule R {\n  }").All()
	require.NoError(t, err)

	assert.Equal(t, Pos{Offset: 0, Line: 1, Column: 1}, toks[0].Pos)
	assert.Equal(t, 3, toks[1].Pos.Line)
	assert.Equal(t, 3, toks[1].Pos.Column)
	assert.Equal(t, 4, toks[2].Pos.Line)
}

func TestLexer_RepeatWithStar(t *testing.T) {
	toks, err := NewLexer("12 * { rz 30 } spoke").All()
	require.NoError(t, err)
	assert.Equal(t, TokTransform, toks[0].Kind)
	assert.Equal(t, 12, toks[0].Repeat)
	assert.Equal(t, "rz 30", toks[0].Ops)
}

func TestParse_NestedRules(t *testing.T) {
	src := `
set maxdepth 10
rule Tree md 4 > Leaf {
	{ y 1 s 0.8 } Tree
	rule Leaf { leaf[green] }
}
#Leaf w 2 { sphere }
Tree
`
	sc, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, sc.Body, 4)

	setting, ok := sc.Body[0].(*Setting)
	require.True(t, ok)
	assert.Equal(t, "maxdepth", setting.Key)

	tree, ok := sc.Body[1].(*RuleDef)
	require.True(t, ok)
	assert.Equal(t, "Tree", tree.Name)
	assert.Equal(t, 4, tree.Options.MaxDepth)
	assert.Equal(t, "Leaf", tree.Options.Fallback)
	require.Len(t, tree.Body, 3)

	inner, ok := tree.Body[2].(*RuleDef)
	require.True(t, ok)
	assert.Equal(t, "Leaf", inner.Name)
	require.Len(t, inner.Body, 1)
	ref := inner.Body[0].(*Reference)
	assert.Equal(t, "leaf", ref.Label)
	assert.Equal(t, "green", ref.Param)

	leaf := sc.Body[2].(*RuleDef)
	assert.Equal(t, 2.0, leaf.Options.Weight)

	top := sc.Body[3].(*Reference)
	assert.Equal(t, "Tree", top.Label)
}

// TestParse_HeaderBraceOpensBody tests that the first "{" after a rule
// name always opens the rule body, even with no space before it.
func TestParse_HeaderBraceOpensBody(t *testing.T) {
	sc, err := Parse("#R{x1}box R[tag] @maxdepth3")
	require.NoError(t, err)
	require.Len(t, sc.Body, 4)

	rule, ok := sc.Body[0].(*RuleDef)
	require.True(t, ok)
	assert.Equal(t, "R", rule.Name)
	require.Len(t, rule.Body, 1)
	assert.Equal(t, "x1", rule.Body[0].(*Reference).Label)

	assert.Equal(t, "box", sc.Body[1].(*Reference).Label)
	call := sc.Body[2].(*Reference)
	assert.Equal(t, "R", call.Label)
	assert.Equal(t, "tag", call.Param)
	setting := sc.Body[3].(*Setting)
	assert.Equal(t, "maxdepth", setting.Key)
	assert.Equal(t, "3", setting.Value)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		text string
		msg  string
	}{
		{"unmatched text", "box ?? sphere", "?? sphere", "unexpected input"},
		{"stray brace", "box }", "}", "unexpected closing brace"},
		{"missing brace", "#R { box", "#R", "missing closing brace for rule R"},
		{"unterminated transform", "{ x 1 box", "{ x 1 box", "unterminated transform block"},
		{"unterminated param", "box[abc", "box[abc", "unterminated parameter"},
		{"bad option", "#R sparkle { }", "sparkle", "unknown rule option"},
		{"bad weight", "#R w 0 { }", "0", "weight must be a positive number"},
		{"setting without value", "@maxdepth", "@maxdepth", "setting maxdepth has no value"},
		{"nameless rule", "# { }", "# { }", "rule definition has no name"},
		{"bare number", "box 0.5", "0.5", "number outside a transform block"},
		{
			"transform glued to rule name", "#R{s0.99}R[a]", ".99}R[a]",
			`number outside a transform block; the "{" after rule R opened the rule body, so transforms need their own braces inside it`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)

			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.text, se.Text)
			assert.Equal(t, tt.msg, se.Message)
			assert.True(t, se.Pos.IsValid())
		})
	}
}

func TestParseRuleOptions(t *testing.T) {
	tests := []struct {
		text string
		want RuleOptions
	}{
		{"", RuleOptions{}},
		{"weight 0.5", RuleOptions{Weight: 0.5}},
		{"@w2", RuleOptions{Weight: 2}},
		{"maxdepth 7", RuleOptions{MaxDepth: 7}},
		{"@ 3 > End", RuleOptions{MaxDepth: 3, Fallback: "End"}},
		{"md5 w3 >Stop", RuleOptions{MaxDepth: 5, Weight: 3, Fallback: "Stop"}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ParseRuleOptions(tt.text)
			require.NoError(t, err)
			tt.want.Text = tt.text
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseRuleOptions("md 2.5")
	assert.Error(t, err)
	_, err = ParseRuleOptions(">")
	assert.Error(t, err)
}

func TestWalk(t *testing.T) {
	sc, err := Parse("#A { #B { b } a } c")
	require.NoError(t, err)

	var labels []string
	Walk(sc.Body, func(n Node) bool {
		switch v := n.(type) {
		case *RuleDef:
			labels = append(labels, "#"+v.Name)
		case *Reference:
			labels = append(labels, v.Label)
		}
		return true
	})
	assert.Equal(t, []string{"#A", "#B", "b", "a", "c"}, labels)
}

func TestSourceContext(t *testing.T) {
	_, err := Parse("box\nsphere ?")
	var se *SyntaxError
	require.ErrorAs(t, err, &se)

	ctx := se.Context("box\nsphere ?")
	assert.Contains(t, ctx, "sphere ?")
	assert.Contains(t, ctx, "^")
	assert.Equal(t, 2, se.Pos.Line)
	assert.Equal(t, 8, se.Pos.Column)
}

func fieldsOf(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == ' ' || r == '\n' {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func countNewlines(s string) int {
	n := 0
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}
