package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/sprig/internal/affine"
	"github.com/roach88/sprig/internal/color"
	"github.com/roach88/sprig/internal/ir"
	"github.com/roach88/sprig/internal/queryir"
	"github.com/roach88/sprig/internal/querysql"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `seq, id, name, script_hash, script, seed, object_count, trace_hash,
	draws, stats, complete, engine_version, trace_version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run      Run
		seed     int64
		draws    int64
		stats    string
		complete int
	)
	err := row.Scan(&run.Seq, &run.ID, &run.Name, &run.ScriptHash, &run.Script, &seed,
		&run.ObjectCount, &run.TraceHash, &draws, &stats, &complete,
		&run.EngineVersion, &run.TraceVersion)
	if err != nil {
		return run, err
	}
	run.Seed = uint32(seed)
	run.Draws = uint64(draws)
	run.Complete = complete != 0
	if run.Stats, err = unmarshalStats(stats); err != nil {
		return run, err
	}
	return run, nil
}

// ReadRun returns the run with the given id.
func (s *Store) ReadRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", runID, err)
	}
	return run, nil
}

// LatestRun returns the most recently recorded complete run.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE complete = 1 ORDER BY seq DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read latest run: %w", ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns every run in insertion order. Returns an empty slice,
// not nil, when the store is empty.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	return s.queryRuns(ctx, `SELECT `+runColumns+` FROM runs ORDER BY seq ASC`)
}

// RunsForScript returns the runs recorded for a script hash, oldest first.
func (s *Store) RunsForScript(ctx context.Context, scriptHash string) ([]Run, error) {
	return s.queryRuns(ctx,
		`SELECT `+runColumns+` FROM runs WHERE script_hash = ? ORDER BY seq ASC`, scriptHash)
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ScanEvents calls fn for each event of a run in emission order. An empty
// label selects every event; otherwise only events with that label are
// visited. Iteration stops at the first error fn returns.
func (s *Store) ScanEvents(ctx context.Context, runID, label string, fn func(ir.Event) error) error {
	q := queryir.Select{Run: runID}
	if label != "" {
		q.Filter = queryir.Equals{Field: queryir.FieldLabel, Value: label}
	}
	return s.ScanQuery(ctx, q, fn)
}

// ScanQuery calls fn for each event the query selects, in emission order.
func (s *Store) ScanQuery(ctx context.Context, q queryir.Select, fn func(ir.Event) error) error {
	query, args, err := querysql.Compile(q)
	if err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e      ir.Event
			matrix string
			c      color.Color
		)
		if err := rows.Scan(&e.Seq, &e.Label, &e.Param, &matrix, &c.H, &c.S, &c.B, &c.A); err != nil {
			return fmt.Errorf("scan event: %w", err)
		}
		if e.Matrix, err = unmarshalMatrix(matrix); err != nil {
			return fmt.Errorf("event %d: %w", e.Seq, err)
		}
		e.Color = c
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate events: %w", err)
	}
	return nil
}

// ReadEvents returns the events of a run, optionally filtered by label.
// Returns an empty slice, not nil, when nothing matches.
func (s *Store) ReadEvents(ctx context.Context, runID, label string) ([]ir.Event, error) {
	events := []ir.Event{}
	err := s.ScanEvents(ctx, runID, label, func(e ir.Event) error {
		events = append(events, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read events of %s: %w", runID, err)
	}
	return events, nil
}

// LabelCounts returns the number of stored events per label.
func (s *Store) LabelCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, COUNT(*) FROM events WHERE run_id = ?
		GROUP BY label ORDER BY label ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query label counts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			label string
			n     int
		)
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("scan label count: %w", err)
		}
		counts[label] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate label counts: %w", err)
	}
	return counts, nil
}

func unmarshalMatrix(s string) (affine.Matrix, error) {
	var elems []float64
	if err := json.Unmarshal([]byte(s), &elems); err != nil {
		return affine.Matrix{}, fmt.Errorf("unmarshal matrix: %w", err)
	}
	return affine.FromElements(elems)
}
