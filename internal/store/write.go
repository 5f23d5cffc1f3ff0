package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/sprig/internal/engine"
	"github.com/roach88/sprig/internal/ir"
)

// ErrRecorderClosed is returned by a Recorder after Commit or Rollback.
var ErrRecorderClosed = errors.New("recorder closed")

// Recorder streams one build into the store.
//
// The run row and every event are written in a single transaction; the
// run is marked complete by Commit. A Recorder is not safe for concurrent
// use, which matches the engine calling its callback from one goroutine.
type Recorder struct {
	tx     *sql.Tx
	insert *sql.Stmt
	run    Run
	hasher *ir.TraceHasher
	err    error
	closed bool
}

// BeginRun starts recording run. The caller must Commit or Rollback.
func (s *Store) BeginRun(ctx context.Context, run Run) (*Recorder, error) {
	if run.ID == "" {
		return nil, fmt.Errorf("begin run: run id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, name, script_hash, script, seed, engine_version, trace_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Name, run.ScriptHash, run.Script, int64(run.Seed), run.EngineVersion, run.TraceVersion)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("write run %s: %w", run.ID, err)
	}
	if run.Seq, err = res.LastInsertId(); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("write run %s: %w", run.ID, err)
	}

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO events (run_id, seq, label, param, matrix, hue, saturation, brightness, alpha)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("prepare event insert: %w", err)
	}

	return &Recorder{tx: tx, insert: insert, run: run, hasher: ir.NewTraceHasher()}, nil
}

// Record writes one event.
func (r *Recorder) Record(ctx context.Context, e ir.Event) error {
	if r.closed {
		return ErrRecorderClosed
	}
	if err := r.hasher.Add(e); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	matrix, err := marshalMatrix(e)
	if err != nil {
		return err
	}
	_, err = r.insert.ExecContext(ctx, r.run.ID, e.Seq, e.Label, e.Param, matrix,
		e.Color.H, e.Color.S, e.Color.B, e.Color.A)
	if err != nil {
		return fmt.Errorf("write event %d: %w", e.Seq, err)
	}
	return nil
}

// Callback adapts the recorder to an engine callback. A write failure
// stops the build; Commit then reports it.
func (r *Recorder) Callback(ctx context.Context) engine.Callback {
	return func(st *engine.Status) engine.Control {
		if err := r.Record(ctx, st.Event()); err != nil {
			r.err = err
			return engine.Stop
		}
		return engine.Continue
	}
}

// Err returns the first error met by Callback.
func (r *Recorder) Err() error {
	return r.err
}

// Commit finalises the run with the build result and returns the stored
// run. The trace hash is the one computed over the recorded events; a
// result carrying a different hash is rejected.
func (r *Recorder) Commit(ctx context.Context, res *engine.Result) (Run, error) {
	if r.closed {
		return Run{}, ErrRecorderClosed
	}
	if r.err != nil {
		r.Rollback()
		return Run{}, fmt.Errorf("commit run %s: %w", r.run.ID, r.err)
	}

	run := r.run
	run.ObjectCount = r.hasher.Count()
	run.TraceHash = r.hasher.Sum()
	run.Complete = true
	if res != nil {
		if res.TraceHash != "" && res.TraceHash != run.TraceHash {
			r.Rollback()
			return Run{}, fmt.Errorf("commit run %s: recorded trace %s does not match build trace %s",
				run.ID, run.TraceHash, res.TraceHash)
		}
		run.Draws = res.Draws
		run.Stats = res.Stats
	}

	stats, err := marshalStats(run.Stats)
	if err != nil {
		r.Rollback()
		return Run{}, err
	}

	_, err = r.tx.ExecContext(ctx, `
		UPDATE runs
		SET object_count = ?, trace_hash = ?, draws = ?, stats = ?, complete = 1
		WHERE id = ?
	`, run.ObjectCount, run.TraceHash, int64(run.Draws), stats, run.ID)
	if err != nil {
		r.Rollback()
		return Run{}, fmt.Errorf("write run %s: %w", run.ID, err)
	}

	r.insert.Close()
	r.closed = true
	if err := r.tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return run, nil
}

// Rollback discards everything recorded. It is a no-op after Commit.
func (r *Recorder) Rollback() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.insert.Close()
	return r.tx.Rollback()
}

// WriteRun records an already collected build in one call.
func (s *Store) WriteRun(ctx context.Context, run Run, events []ir.Event, res *engine.Result) (Run, error) {
	rec, err := s.BeginRun(ctx, run)
	if err != nil {
		return Run{}, err
	}
	for _, e := range events {
		if err := rec.Record(ctx, e); err != nil {
			rec.Rollback()
			return Run{}, err
		}
	}
	return rec.Commit(ctx, res)
}

// DeleteRun removes a run and its events.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("delete run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}
