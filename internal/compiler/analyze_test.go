package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyze(t *testing.T, src string) []Warning {
	t.Helper()
	prog, err := Compile(src)
	require.NoError(t, err)
	return Analyze(prog)
}

func byLevel(ws []Warning, level string) []Warning {
	var out []Warning
	for _, w := range ws {
		if w.Level == level {
			out = append(out, w)
		}
	}
	return out
}

func TestAnalyze_NoFindings(t *testing.T) {
	assert.Empty(t, analyze(t, `#A { box } A`))
	assert.Empty(t, analyze(t, `box`))
}

func TestAnalyze_SelfRecursion(t *testing.T) {
	ws := analyze(t, `#R { {x1} box R } R`)
	require.Len(t, ws, 1)
	assert.Equal(t, LevelInfo, ws[0].Level)
	assert.Equal(t, []string{"R", "R"}, ws[0].Path)
}

func TestAnalyze_MutualRecursion(t *testing.T) {
	ws := analyze(t, `#A { B } #B { A } A`)
	require.Len(t, ws, 1)
	assert.Equal(t, []string{"A", "B", "A"}, ws[0].Path)
	assert.Contains(t, ws[0].Message, "A → B → A")
}

func TestAnalyze_UndefinedFallback(t *testing.T) {
	ws := byLevel(analyze(t, `#R md 2 > Missing { R } R`), LevelWarning)
	require.Len(t, ws, 1)
	assert.Contains(t, ws[0].Message, `fallback "Missing" of rule R`)
}

func TestAnalyze_FallbackInScope(t *testing.T) {
	ws := byLevel(analyze(t, `#R md 2 > End { R } #End { cap } R`), LevelWarning)
	assert.Empty(t, ws)
}

// TestAnalyze_FallbackToOwnChild tests that a rule's nested fallback
// counts as in scope and as referenced.
func TestAnalyze_FallbackToOwnChild(t *testing.T) {
	ws := analyze(t, `#A md 2 > F { #F { leaf } A } A`)
	require.Len(t, ws, 1)
	assert.Equal(t, LevelInfo, ws[0].Level)
	assert.Equal(t, []string{"A", "A"}, ws[0].Path)
}

// TestAnalyze_FallbackIgnoresCallerScope tests that the graph edge for a
// fallback goes to the rule the declaring scope sees, even when the caller
// declares a rule of the same name.
func TestAnalyze_FallbackIgnoresCallerScope(t *testing.T) {
	ws := analyze(t, `#F { outer } #A md 1 > F { #G { #F { inner } A } G } A`)

	assert.Empty(t, byLevel(ws, LevelWarning))
	var unreferenced []string
	for _, w := range byLevel(ws, LevelInfo) {
		if len(w.Path) == 1 {
			unreferenced = append(unreferenced, w.Path[0])
		}
	}
	assert.Equal(t, []string{"A/G/F"}, unreferenced)
}

func TestAnalyze_Unreferenced(t *testing.T) {
	ws := analyze(t, `#Unused { box } #Used { sphere } Used`)
	require.Len(t, ws, 1)
	assert.Equal(t, []string{"Unused"}, ws[0].Path)
	assert.Equal(t, "rule Unused is never referenced", ws[0].Message)
}

func TestAnalyze_NestedGroupNames(t *testing.T) {
	ws := analyze(t, `#Tree { #Branch { Branch } Branch } Tree`)
	require.Len(t, ws, 1)
	assert.Equal(t, []string{"Tree/Branch", "Tree/Branch"}, ws[0].Path)
}

// TestAnalyze_TransformGluedToRuleName tests the warning for "#R{x1}": the
// brace opened R's body, leaving x1 as a terminal.
func TestAnalyze_TransformGluedToRuleName(t *testing.T) {
	ws := byLevel(analyze(t, `#R{x1}box R[tag] @maxdepth3`), LevelWarning)
	require.Len(t, ws, 1)
	assert.Equal(t, []string{"R"}, ws[0].Path)
	assert.Contains(t, ws[0].Message, `body of rule R is the terminal list "x1"`)
	assert.Contains(t, ws[0].Message, "write #R { {x1} ... }")
}

func TestAnalyze_TerminalBodiesAreNotTransforms(t *testing.T) {
	for _, src := range []string{
		`#R { box } R`,
		`#R { a } R`,
		`#R { red[x] } R`,
		`#R { {x 1} red } R`,
		`#R { R } R`,
	} {
		assert.Empty(t, byLevel(analyze(t, src), LevelWarning), src)
	}
}
