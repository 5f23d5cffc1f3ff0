package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/sprig/internal/compiler"
	"github.com/roach88/sprig/internal/engine"
	"github.com/roach88/sprig/internal/store"
	"github.com/roach88/sprig/internal/testutil"
)

// Harness is the scenario execution environment.
// Every scenario gets its own harness and in-memory store.
type Harness struct {
	store  *store.Store
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Create a fresh in-memory database
//  2. Compile the script with the scenario's settings and variables
//  3. Build it with a fixed seed and run id, recording every object
//  4. Read the trace back from the store
//  5. Evaluate assertions against the recorded trace
//
// Compile and build failures are reported in the result, not as errors,
// so expect_error scenarios can assert on them. The returned error is for
// harness failures only.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return h.run(ctx, scenario)
}

// RunAll executes independent scenarios concurrently, at most parallel at
// a time (GOMAXPROCS when parallel is 0). Results are in scenario order.
// The first harness failure cancels the remaining scenarios.
func RunAll(ctx context.Context, scenarios []*Scenario, parallel int) ([]*Result, error) {
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}

	results := make([]*Result, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, s := range scenarios {
		g.Go(func() error {
			r, err := Run(ctx, s)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", s.Name, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (h *Harness) run(ctx context.Context, s *Scenario) (*Result, error) {
	result := NewResult(s.Name)

	src, err := s.Source()
	if err != nil {
		return nil, err
	}

	prog, err := compiler.Compile(src,
		compiler.WithCriteria(s.Set),
		compiler.WithVariables(s.Variables),
		compiler.WithLogger(h.logger),
	)
	if err != nil {
		h.expectFailure(result, s, "compile", err)
		return result, nil
	}

	opts := []engine.EngineOption{
		engine.WithLogger(h.logger),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(s.Name)),
	}
	switch {
	case s.Seed != nil:
		opts = append(opts, engine.WithSeed(*s.Seed))
	default:
		if _, ok := prog.Criteria.Seed(); !ok {
			opts = append(opts, engine.WithSeed(testutil.DefaultSeed))
		}
	}
	eng := engine.New(prog, opts...)

	rec, err := h.store.BeginRun(ctx, store.NewRun(s.Name, s.Name, src, eng.Seed()))
	if err != nil {
		return nil, err
	}
	record := rec.Callback(ctx)
	collector := testutil.NewEventCollector(s.Limit)
	collect := collector.Callback()

	res, err := eng.Build(ctx, func(st *engine.Status) engine.Control {
		if record(st) == engine.Stop {
			return engine.Stop
		}
		return collect(st)
	})
	if err != nil {
		rec.Rollback()
		h.expectFailure(result, s, "build", err)
		return result, nil
	}

	run, err := rec.Commit(ctx, res)
	if err != nil {
		return nil, err
	}

	events, err := h.store.ReadEvents(ctx, run.ID, "")
	if err != nil {
		return nil, err
	}
	result.Events = events
	for _, e := range events {
		result.Trace = append(result.Trace, traceEvent(e))
	}
	result.RunID = run.ID
	result.Seed = run.Seed
	result.TraceHash = run.TraceHash
	result.Stats = res.Stats

	if s.ExpectError != "" {
		result.AddError(fmt.Sprintf("expected an error containing %q, but the build succeeded", s.ExpectError))
	}
	if collector.Len() != len(events) {
		result.AddError(fmt.Sprintf("recorded %d objects, callback saw %d", len(events), collector.Len()))
	}
	if s.Limit == 0 {
		h.checkEstimate(ctx, eng, res, result)
	}

	actx := &AssertionContext{
		Store: h.store,
		Ctx:   ctx,
		RunID: run.ID,
	}
	for _, msg := range EvaluateAssertions(result, s.Assertions, actx) {
		result.AddError(msg)
	}

	h.logger.Info("scenario finished",
		"scenario", s.Name,
		"objects", len(events),
		"pass", result.Pass,
	)
	return result, nil
}

// expectFailure records a compile or build error, which is a pass only
// for scenarios expecting it.
func (h *Harness) expectFailure(result *Result, s *Scenario, stage string, err error) {
	if s.ExpectError != "" && strings.Contains(err.Error(), s.ExpectError) {
		return
	}
	result.AddError(fmt.Sprintf("%s: %v", stage, err))
}

// checkEstimate verifies that an estimate pass with the same seed visits
// the same objects as the build.
func (h *Harness) checkEstimate(ctx context.Context, eng *engine.Engine, built *engine.Result, result *Result) {
	est, err := eng.Estimate(ctx)
	if err != nil {
		result.AddError(fmt.Sprintf("estimate: %v", err))
		return
	}
	if est.Stats.Emitted != built.Stats.Emitted || est.Draws != built.Draws {
		result.AddError(fmt.Sprintf("estimate counted %d objects in %d draws, build emitted %d in %d",
			est.Stats.Emitted, est.Draws, built.Stats.Emitted, built.Draws))
	}
}
