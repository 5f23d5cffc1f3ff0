package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/sprig/internal/compiler"
	"github.com/roach88/sprig/internal/engine"
	"github.com/roach88/sprig/internal/ir"
	"github.com/roach88/sprig/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID         string `json:"run_id"`
	Name          string `json:"name,omitempty"`
	Seed          uint32 `json:"seed"`
	Objects       int64  `json:"objects"`
	RecordedHash  string `json:"recorded_hash"`
	ReplayedHash  string `json:"replayed_hash"`
	Deterministic bool   `json:"deterministic"`
	Divergence    string `json:"divergence,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [run-id|latest]",
		Short: "Rebuild recorded runs and verify determinism",
		Long: `Rebuild recorded runs from their stored script and seed and compare the
result with the recorded trace, object by object.

Without a run ID every complete run in the database is replayed.

Exit codes:
  0 - All replayed runs match their recording
  1 - A replay diverged from its recording
  2 - Command error (database not found, unknown run, etc.)

Examples:
  sprig replay --db ./sprig.db
  sprig replay --db ./sprig.db latest
  sprig replay --db ./sprig.db --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runReplay(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(opts *ReplayOptions, runID string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	ctx, stop := signalContext(cmd)
	defer stop()

	st, err := openStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var runs []store.Run
	if runID != "" {
		run, err := findRun(ctx, st, runID)
		if errors.Is(err, store.ErrRunNotFound) {
			return outputCommandError(formatter, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("run %s not found", runID)})
		}
		if err != nil {
			return outputCommandError(formatter, &LoadError{Code: ErrCodeDatabase, Message: err.Error()})
		}
		if !run.Complete {
			return outputCommandError(formatter, &LoadError{Code: ErrCodeDatabase, Message: fmt.Sprintf("run %s was never completed", run.ID)})
		}
		runs = append(runs, run)
	} else {
		all, err := st.ListRuns(ctx)
		if err != nil {
			return outputCommandError(formatter, &LoadError{Code: ErrCodeDatabase, Message: err.Error()})
		}
		for _, r := range all {
			if r.Complete {
				runs = append(runs, r)
			}
		}
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:        len(runs),
		AllDeterministic: true,
	}
	for _, run := range runs {
		formatter.VerboseLog("Replaying run %s (%s), seed %d", run.ID, run.Name, run.Seed)
		rr, err := replayRun(ctx, st, run)
		if err != nil {
			return outputCommandError(formatter, err)
		}
		if !rr.Deterministic {
			result.AllDeterministic = false
		}
		result.Runs = append(result.Runs, *rr)
	}

	if formatter.IsJSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.AllDeterministic {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeDiverged, Message: "replay diverged from the recorded trace"}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result)
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay diverged from the recorded trace")
	}
	return nil
}

// replayRun rebuilds run and compares it with the recorded trace. A run
// that was stopped early is replayed to the same object count.
func replayRun(ctx context.Context, st *store.Store, run store.Run) (*ReplayRunResult, error) {
	prog, err := compiler.Compile(run.Script, compiler.WithSeed(run.Seed))
	if err != nil {
		return nil, fmt.Errorf("recompiling run %s: %w", run.ID, err)
	}
	eng := engine.New(prog, engine.WithLogger(slog.Default()))

	var events []ir.Event
	res, err := eng.Build(ctx, func(s *engine.Status) engine.Control {
		events = append(events, s.Event())
		if run.Stats.Stopped && int64(s.ObjectCount()) >= run.ObjectCount {
			return engine.Stop
		}
		return engine.Continue
	})
	if err != nil {
		return nil, fmt.Errorf("rebuilding run %s: %w", run.ID, err)
	}

	rr := &ReplayRunResult{
		RunID:        run.ID,
		Name:         run.Name,
		Seed:         run.Seed,
		Objects:      run.ObjectCount,
		RecordedHash: run.TraceHash,
		ReplayedHash: res.TraceHash,
	}

	div, err := st.Compare(ctx, run.ID, events)
	if err != nil {
		return nil, err
	}
	switch {
	case div != nil:
		rr.Divergence = div.String()
	case res.TraceHash != run.TraceHash:
		rr.Divergence = fmt.Sprintf("trace hash %s, recorded %s", shortHash(res.TraceHash), shortHash(run.TraceHash))
	default:
		rr.Deterministic = true
	}
	return rr, nil
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) {
	w := formatter.Writer
	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No complete runs to replay.")
		return
	}

	for _, r := range result.Runs {
		if r.Deterministic {
			fmt.Fprintf(w, "✓ %s (%s): %d object(s), trace %s\n", r.RunID, r.Name, r.Objects, shortHash(r.RecordedHash))
			continue
		}
		fmt.Fprintf(w, "✗ %s (%s): %s\n", r.RunID, r.Name, r.Divergence)
	}

	fmt.Fprintln(w)
	if result.AllDeterministic {
		fmt.Fprintf(w, "✓ %d run(s) replayed deterministically\n", result.TotalRuns)
		return
	}
	fmt.Fprintln(w, "✗ Replay diverged from the recorded trace")
}
