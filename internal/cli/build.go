package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/sprig/internal/engine"
	"github.com/roach88/sprig/internal/ir"
	"github.com/roach88/sprig/internal/store"
	"github.com/roach88/sprig/internal/telemetry"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Seed        uint32
	Set         []string
	Database    string
	Limit       int
	MetricsFile string
	Scene       string
	Estimate    bool
	Quiet       bool

	seedSet bool
}

// BuildSummary describes one finished build.
type BuildSummary struct {
	Scene     string         `json:"scene"`
	RunID     string         `json:"run_id"`
	Seed      uint32         `json:"seed"`
	Objects   int            `json:"objects"`
	TraceHash string         `json:"trace_hash,omitempty"`
	Draws     uint64         `json:"draws"`
	Estimate  bool           `json:"estimate,omitempty"`
	Recorded  bool           `json:"recorded"`
	Stats     engine.Stats   `json:"stats"`
	Labels    map[string]int `json:"labels"`
	Events    []EventView    `json:"events,omitempty"`
}

// BuildReport is the JSON payload of the build command.
type BuildReport struct {
	Builds []BuildSummary `json:"builds"`
}

type compiledScene struct {
	Scene   *Scene
	Program *ir.Program
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build <script|manifest-dir>",
		Short: "Build a script and emit its objects",
		Long: `Build a script, or every scene of a CUE scene manifest, and print the
emitted objects in order.

With --db the build is recorded into a SQLite trace database so it can be
inspected with trace and verified with replay.

Examples:
  sprig build tree.sprig --seed 7
  sprig build tree.sprig --set maxdepth=8 --set '$angle=30'
  sprig build ./scenes --scene forest --db ./sprig.db
  sprig build tree.sprig --estimate --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.seedSet = cmd.Flags().Changed("seed")
			return runBuild(opts, args[0], cmd)
		},
	}

	cmd.Flags().Uint32Var(&opts.Seed, "seed", 0, "random seed (overrides the script's seed)")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "override a setting (key=value, $var=value)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the build into this SQLite database")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "stop after this many objects (0 = no limit)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write build metrics in Prometheus text format to this file")
	cmd.Flags().StringVar(&opts.Scene, "scene", "", "build only this scene of a manifest")
	cmd.Flags().BoolVar(&opts.Estimate, "estimate", false, "count objects per label without emitting them")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "print only the build summary")

	return cmd
}

func runBuild(opts *BuildOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Limit < 0 {
		return outputCommandError(formatter, &LoadError{Code: ErrCodeGeneric, Message: "--limit must not be negative"})
	}
	if opts.Estimate && opts.Database != "" {
		return outputCommandError(formatter, &LoadError{Code: ErrCodeGeneric, Message: "--estimate cannot be recorded with --db"})
	}

	flagSet, err := ParseSetFlags(opts.Set)
	if err != nil {
		return outputCommandError(formatter, &LoadError{Code: ErrCodeBadOverride, Message: err.Error()})
	}

	scenes, err := LoadScenes(path)
	if err != nil {
		return outputCommandError(formatter, err)
	}
	if opts.Scene != "" {
		scenes, err = selectScene(scenes, opts.Scene)
		if err != nil {
			return outputCommandError(formatter, err)
		}
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return outputCommandError(formatter, &LoadError{Code: ErrCodeDatabase, Message: fmt.Sprintf("opening database: %v", err)})
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
	}

	var collector *telemetry.Collector
	if opts.MetricsFile != "" {
		collector = telemetry.NewCollector(telemetry.Config{}, nil)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	report := BuildReport{Builds: make([]BuildSummary, 0, len(scenes))}
	for i := range scenes {
		scene := &scenes[i]
		applyFlagOverrides(scene, opts, flagSet)

		compiled, err := compileScene(scene)
		if err != nil {
			return outputCommandError(formatter, err)
		}

		b := &builder{opts: opts, formatter: formatter, store: st, collector: collector}
		summary, err := b.build(ctx, compiled)
		if err != nil {
			return err
		}
		report.Builds = append(report.Builds, *summary)
	}

	if collector != nil {
		if err := collector.WriteTextfile(opts.MetricsFile); err != nil {
			return outputCommandError(formatter, &LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing metrics: %v", err)})
		}
		formatter.VerboseLog("Wrote metrics to %s", opts.MetricsFile)
	}

	if formatter.IsJSON() {
		return formatter.Success(report)
	}
	return nil
}

// selectScene returns the named scene.
func selectScene(scenes []Scene, name string) ([]Scene, error) {
	for _, s := range scenes {
		if s.Name == name {
			return []Scene{s}, nil
		}
	}
	names := make([]string, len(scenes))
	for i, s := range scenes {
		names[i] = s.Name
	}
	return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scene %q not found (have %v)", name, names)}
}

// applyFlagOverrides layers command-line --seed and --set over the
// scene's own.
func applyFlagOverrides(scene *Scene, opts *BuildOptions, flagSet map[string]string) {
	if opts.seedSet {
		seed := opts.Seed
		scene.Seed = &seed
	}
	if len(flagSet) == 0 {
		return
	}
	merged := make(map[string]string, len(scene.Set)+len(flagSet))
	for k, v := range scene.Set {
		merged[k] = v
	}
	for k, v := range flagSet {
		merged[k] = v
	}
	scene.Set = merged
}

// builder runs one scene and reports it.
type builder struct {
	opts      *BuildOptions
	formatter *OutputFormatter
	store     *store.Store
	collector *telemetry.Collector
}

func (b *builder) engineFor(c *compiledScene, runID string) *engine.Engine {
	engOpts := []engine.EngineOption{engine.WithLogger(slog.Default())}
	if runID != "" {
		engOpts = append(engOpts, engine.WithRunIDGenerator(engine.NewFixedGenerator(runID)))
	}
	if b.collector != nil {
		engOpts = append(engOpts, engine.WithObserver(b.collector))
	}
	return engine.New(c.Program, engOpts...)
}

func (b *builder) build(ctx context.Context, c *compiledScene) (*BuildSummary, error) {
	if b.opts.Estimate {
		return b.estimate(ctx, c)
	}

	runID := engine.UUIDv7Generator{}.Generate()
	eng := b.engineFor(c, runID)
	slog.Debug("building scene", "scene", c.Scene.Name, "seed", eng.Seed(), "run_id", runID)

	var rec *store.Recorder
	if b.store != nil {
		var err error
		rec, err = b.store.BeginRun(ctx, store.NewRun(runID, c.Scene.Name, c.Scene.RecordedSource(), eng.Seed()))
		if err != nil {
			return nil, outputCommandError(b.formatter, &LoadError{Code: ErrCodeDatabase, Message: err.Error()})
		}
	}

	if !b.formatter.IsJSON() && !b.opts.Quiet {
		fmt.Fprintf(b.formatter.Writer, "# scene %s seed %d\n", c.Scene.Name, eng.Seed())
	}

	var events []EventView
	var record engine.Callback
	if rec != nil {
		record = rec.Callback(ctx)
	}
	res, err := eng.Build(ctx, func(s *engine.Status) engine.Control {
		if record != nil && record(s) == engine.Stop {
			return engine.Stop
		}
		switch {
		case b.opts.Quiet:
		case b.formatter.IsJSON():
			events = append(events, NewEventView(s.Event()))
		default:
			fmt.Fprintln(b.formatter.Writer, FormatEventLine(s.Event()))
		}
		if b.opts.Limit > 0 && s.ObjectCount() >= b.opts.Limit {
			return engine.Stop
		}
		return engine.Continue
	})
	if err != nil {
		if rec != nil {
			_ = rec.Rollback()
		}
		return nil, b.buildError(c, err)
	}

	summary := &BuildSummary{
		Scene:     c.Scene.Name,
		RunID:     res.RunID,
		Seed:      res.Seed,
		Objects:   res.Stats.Emitted,
		TraceHash: res.TraceHash,
		Draws:     res.Draws,
		Stats:     res.Stats,
		Labels:    res.Labels,
		Events:    events,
	}

	if rec != nil {
		if _, err := rec.Commit(ctx, res); err != nil {
			_ = rec.Rollback()
			return nil, outputCommandError(b.formatter, &LoadError{Code: ErrCodeDatabase, Message: fmt.Sprintf("recording run: %v", err)})
		}
		summary.Recorded = true
		slog.Info("run recorded", "run_id", res.RunID, "objects", res.Stats.Emitted, "db", b.opts.Database)
	}

	if !b.formatter.IsJSON() {
		printBuildSummary(b.formatter, summary)
	}
	return summary, nil
}

func (b *builder) estimate(ctx context.Context, c *compiledScene) (*BuildSummary, error) {
	eng := b.engineFor(c, "")
	res, err := eng.Estimate(ctx)
	if err != nil {
		return nil, b.buildError(c, err)
	}

	summary := &BuildSummary{
		Scene:    c.Scene.Name,
		RunID:    res.RunID,
		Seed:     res.Seed,
		Objects:  res.Stats.Emitted,
		Draws:    res.Draws,
		Estimate: true,
		Stats:    res.Stats,
		Labels:   res.Labels,
	}
	if !b.formatter.IsJSON() {
		printBuildSummary(b.formatter, summary)
	}
	return summary, nil
}

// buildError reports a failed build. Interruptions and runtime errors are
// build failures (exit code 1).
func (b *builder) buildError(c *compiledScene, err error) error {
	if errors.Is(err, context.Canceled) {
		_ = b.formatter.Error(ErrCodeBuildError, fmt.Sprintf("build of %s interrupted", c.Scene.Name), nil)
		return WrapExitError(ExitFailure, "build interrupted", err)
	}
	e := describeError(err)
	if e.Code == ErrCodeGeneric {
		e.Code = ErrCodeBuildError
	}
	_ = b.formatter.ErrorAt(e)
	return WrapExitError(ExitFailure, fmt.Sprintf("build of %s failed", c.Scene.Name), err)
}

func printBuildSummary(formatter *OutputFormatter, s *BuildSummary) {
	w := formatter.Writer
	kind := "Built"
	if s.Estimate {
		kind = "Estimated"
	}
	fmt.Fprintf(w, "✓ %s %s: %d object(s), seed %d, %d draw(s)\n", kind, s.Scene, s.Objects, s.Seed, s.Draws)
	if s.TraceHash != "" {
		fmt.Fprintf(w, "  trace %s\n", s.TraceHash)
	}
	if s.Recorded {
		fmt.Fprintf(w, "  recorded as run %s\n", s.RunID)
	}
	st := s.Stats
	fmt.Fprintf(w, "  size rejected %d, depth exceeded %d, fallbacks %d, max depth %d\n",
		st.SizeRejected, st.DepthExceeded, st.Fallbacks, st.MaxDepth)
	if st.CapReached {
		fmt.Fprintln(w, "  stopped at maxobjects")
	}

	if formatter.Verbose || s.Estimate {
		labels := make([]string, 0, len(s.Labels))
		for l := range s.Labels {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		for _, l := range labels {
			fmt.Fprintf(w, "  %-12s %d\n", l, s.Labels[l])
		}
	}
}
