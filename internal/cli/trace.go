package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/sprig/internal/ir"
	"github.com/roach88/sprig/internal/queryir"
	"github.com/roach88/sprig/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Label    string   // optional - filter to one label
	Where    []string // optional - field filters (x>=2, param=tag)
	Limit    int      // 0 = every matching object
	Script   bool     // print the recorded script
}

// RunView is a recorded run without its script text.
type RunView struct {
	Seq        int64  `json:"seq"`
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Seed       uint32 `json:"seed"`
	Objects    int64  `json:"objects"`
	TraceHash  string `json:"trace_hash"`
	ScriptHash string `json:"script_hash"`
	Complete   bool   `json:"complete"`
}

// TraceResult holds the events of one recorded run.
type TraceResult struct {
	Run    store.Run      `json:"run"`
	Label  string         `json:"label,omitempty"`
	Where  []string       `json:"where,omitempty"`
	Events []EventView    `json:"events"`
	Labels map[string]int `json:"labels"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id|latest]",
		Short: "Inspect recorded builds",
		Long: `Inspect builds recorded with build --db.

Without a run ID, lists the recorded runs. With a run ID (or "latest"),
prints the run's objects in emission order. --label and --where narrow
the objects shown; each --where is a "field op value" filter over label,
param, seq, x, y, z, hue, saturation, brightness or alpha.

Examples:
  sprig trace --db ./sprig.db
  sprig trace --db ./sprig.db latest
  sprig trace --db ./sprig.db 0192f3c1-... --label box --format json
  sprig trace --db ./sprig.db latest --where 'y>=10' --where 'alpha<1'`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runListRuns(opts, cmd)
			}
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Label, "label", "", "only show objects with this label")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "only show objects matching this filter (field op value)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show at most this many objects (0 = no limit)")
	cmd.Flags().BoolVar(&opts.Script, "script", false, "print the recorded script")

	return cmd
}

func openStore(formatter *OutputFormatter, path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, outputCommandError(formatter, &LoadError{Code: ErrCodeDatabase, Message: fmt.Sprintf("opening database: %v", err)})
	}
	return st, nil
}

// findRun resolves a run ID, or "latest" for the newest complete run.
func findRun(ctx context.Context, st *store.Store, id string) (store.Run, error) {
	if id == "latest" {
		return st.LatestRun(ctx)
	}
	return st.ReadRun(ctx, id)
}

func runListRuns(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	ctx := context.Background()

	st, err := openStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return outputCommandError(formatter, &LoadError{Code: ErrCodeDatabase, Message: err.Error()})
	}

	views := make([]RunView, len(runs))
	for i, r := range runs {
		views[i] = RunView{
			Seq:        r.Seq,
			ID:         r.ID,
			Name:       r.Name,
			Seed:       r.Seed,
			Objects:    r.ObjectCount,
			TraceHash:  r.TraceHash,
			ScriptHash: r.ScriptHash,
			Complete:   r.Complete,
		}
	}

	if formatter.IsJSON() {
		return formatter.Success(views)
	}

	w := formatter.Writer
	if len(views) == 0 {
		fmt.Fprintf(w, "No runs recorded in %s\n", opts.Database)
		return nil
	}
	for _, v := range views {
		status := "complete"
		if !v.Complete {
			status = "incomplete"
		}
		fmt.Fprintf(w, "%4d  %s  %-16s seed %-10d %8d object(s)  %s  %s\n",
			v.Seq, v.ID, v.Name, v.Seed, v.Objects, shortHash(v.TraceHash), status)
	}
	return nil
}

func runTrace(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	ctx := context.Background()

	st, err := openStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	filter, err := traceFilter(opts)
	if err != nil {
		return outputCommandError(formatter, &LoadError{Code: ErrCodeBadFilter, Message: err.Error()})
	}

	run, err := findRun(ctx, st, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		return outputCommandError(formatter, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("run %s not found", runID)})
	}
	if err != nil {
		return outputCommandError(formatter, &LoadError{Code: ErrCodeDatabase, Message: err.Error()})
	}
	query := queryir.Select{Run: run.ID, Filter: filter, Limit: opts.Limit}

	labels, err := st.LabelCounts(ctx, run.ID)
	if err != nil {
		return outputCommandError(formatter, &LoadError{Code: ErrCodeDatabase, Message: err.Error()})
	}

	if formatter.IsJSON() {
		result := TraceResult{Run: run, Label: opts.Label, Where: opts.Where, Events: []EventView{}, Labels: labels}
		if !opts.Script {
			result.Run.Script = ""
		}
		err := st.ScanQuery(ctx, query, func(e ir.Event) error {
			result.Events = append(result.Events, NewEventView(e))
			return nil
		})
		if err != nil {
			return outputCommandError(formatter, &LoadError{Code: ErrCodeDatabase, Message: err.Error()})
		}
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Run %s (%s)\n", run.ID, run.Name)
	fmt.Fprintf(w, "  seed %d, %d object(s), %d draw(s)\n", run.Seed, run.ObjectCount, run.Draws)
	fmt.Fprintf(w, "  trace  %s\n", run.TraceHash)
	fmt.Fprintf(w, "  script %s\n", run.ScriptHash)
	if !run.Complete {
		fmt.Fprintln(w, "  (incomplete)")
	}
	if opts.Script {
		fmt.Fprintln(w)
		fmt.Fprintln(w, run.Script)
	}
	fmt.Fprintln(w)

	shown := 0
	err = st.ScanQuery(ctx, query, func(e ir.Event) error {
		fmt.Fprintln(w, FormatEventLine(e))
		shown++
		return nil
	})
	if err != nil {
		return outputCommandError(formatter, &LoadError{Code: ErrCodeDatabase, Message: err.Error()})
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d object(s) shown\n", shown)
	names := make([]string, 0, len(labels))
	for l := range labels {
		names = append(names, l)
	}
	sort.Strings(names)
	for _, l := range names {
		fmt.Fprintf(w, "  %-12s %d\n", l, labels[l])
	}
	return nil
}

// traceFilter combines --label and --where into one predicate.
func traceFilter(opts *TraceOptions) (queryir.Predicate, error) {
	if opts.Limit < 0 {
		return nil, fmt.Errorf("--limit must not be negative")
	}
	where, err := queryir.ParseFilter(opts.Where)
	if err != nil {
		return nil, err
	}
	var label queryir.Predicate
	if opts.Label != "" {
		label = queryir.Equals{Field: queryir.FieldLabel, Value: opts.Label}
	}
	return queryir.Conj(label, where), nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
