package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/sprig/internal/ir"
)

// GoldenDir is where golden traces live, relative to the test package.
const GoldenDir = "testdata/golden"

// ErrGoldenMismatch is returned by CompareGolden when a trace differs
// from its golden file.
var ErrGoldenMismatch = errors.New("trace differs from golden file")

// Snapshot renders a result as golden trace text: a short header followed
// by one canonical event encoding per line, the same bytes the trace hash
// is computed over.
func Snapshot(r *Result) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# scenario: %s\n", r.Name)
	fmt.Fprintf(&buf, "# seed: %d\n", r.Seed)
	fmt.Fprintf(&buf, "# objects: %d\n", len(r.Events))
	fmt.Fprintf(&buf, "# trace: %s\n", r.TraceHash)
	for _, e := range r.Events {
		enc, err := ir.EncodeEvent(e)
		if err != nil {
			return nil, fmt.Errorf("snapshot event %d: %w", e.Seq, err)
		}
		buf.Write(enc)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against its golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// GoldenPath returns the golden file of a scenario under dir.
func GoldenPath(dir, name string) string {
	return filepath.Join(dir, name+".golden")
}

// CompareGolden checks a result against dir/<name>.golden outside of go
// test. It returns ErrGoldenMismatch, wrapped with the first differing
// line, when the trace changed.
func CompareGolden(dir string, result *Result) error {
	want, err := os.ReadFile(GoldenPath(dir, result.Name))
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	got, err := Snapshot(result)
	if err != nil {
		return err
	}
	if bytes.Equal(want, got) {
		return nil
	}

	wantLines := bytes.Split(want, []byte{'\n'})
	gotLines := bytes.Split(got, []byte{'\n'})
	for i := 0; i < len(wantLines) || i < len(gotLines); i++ {
		var w, g []byte
		if i < len(wantLines) {
			w = wantLines[i]
		}
		if i < len(gotLines) {
			g = gotLines[i]
		}
		if !bytes.Equal(w, g) {
			return fmt.Errorf("%w: line %d: want %q, got %q", ErrGoldenMismatch, i+1, w, g)
		}
	}
	return ErrGoldenMismatch
}

// UpdateGolden writes the result's snapshot to dir/<name>.golden.
func UpdateGolden(dir string, result *Result) error {
	data, err := Snapshot(result)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create golden dir: %w", err)
	}
	if err := os.WriteFile(GoldenPath(dir, result.Name), data, 0o644); err != nil {
		return fmt.Errorf("write golden file: %w", err)
	}
	return nil
}
