package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sprig/internal/store"
	"github.com/roach88/sprig/internal/telemetry"
	"github.com/roach88/sprig/internal/watch"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Seed        uint32
	Set         []string
	Database    string
	Limit       int
	MetricsAddr string
	Debounce    time.Duration
	Quiet       bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <script>",
		Short: "Rebuild a script whenever it changes",
		Long: `Build a script, then rebuild it every time the file is saved.

Compile and build errors are reported and watching continues. With
--metrics-addr the build metrics are served for Prometheus at /metrics.

Examples:
  sprig watch tree.sprig --quiet
  sprig watch tree.sprig --seed 7 --metrics-addr :9464`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			buildOpts := &BuildOptions{
				RootOptions: opts.RootOptions,
				Seed:        opts.Seed,
				Set:         opts.Set,
				Database:    opts.Database,
				Limit:       opts.Limit,
				Quiet:       opts.Quiet,
				seedSet:     cmd.Flags().Changed("seed"),
			}
			return runWatch(opts, buildOpts, args[0], cmd)
		},
	}

	cmd.Flags().Uint32Var(&opts.Seed, "seed", 0, "random seed (overrides the script's seed)")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "override a setting (key=value, $var=value)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record every build into this SQLite database")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "stop each build after this many objects (0 = no limit)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", watch.DefaultDebounce, "quiet period before rebuilding")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "print only build summaries")

	return cmd
}

func runWatch(opts *WatchOptions, buildOpts *BuildOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	flagSet, err := ParseSetFlags(opts.Set)
	if err != nil {
		return outputCommandError(formatter, &LoadError{Code: ErrCodeBadOverride, Message: err.Error()})
	}

	var st *store.Store
	if opts.Database != "" {
		if st, err = openStore(formatter, opts.Database); err != nil {
			return err
		}
		defer st.Close()
	}

	w, err := watch.New(watch.Config{Path: path, Debounce: opts.Debounce, Logger: slog.Default()})
	if err != nil {
		return outputCommandError(formatter, &LoadError{Code: ErrCodeNotFound, Message: err.Error()})
	}

	collector := telemetry.NewCollector(telemetry.Config{}, nil)

	ctx, stop := signalContext(cmd)
	defer stop()

	errChan := make(chan error, 1)
	if opts.MetricsAddr != "" {
		srv := startMetricsServer(opts.MetricsAddr, collector, errChan)
		defer shutdownMetricsServer(srv)
	}

	reload := func(ctx context.Context, path string) error {
		scene, err := LoadScript(path)
		if err != nil {
			return err
		}
		applyFlagOverrides(scene, buildOpts, flagSet)
		compiled, err := compileScene(scene)
		if err != nil {
			_ = formatter.ErrorAt(describeError(err))
			return err
		}
		b := &builder{opts: buildOpts, formatter: formatter, store: st, collector: collector}
		summary, err := b.build(ctx, compiled)
		if err != nil {
			return err
		}
		if formatter.IsJSON() {
			return formatter.Success(summary)
		}
		return nil
	}

	watchErr := make(chan error, 1)
	go func() { watchErr <- w.Watch(ctx, reload) }()

	select {
	case err := <-watchErr:
		if err != nil {
			return WrapExitError(ExitFailure, "watch failed", err)
		}
		return nil
	case err := <-errChan:
		stop()
		<-watchErr
		return WrapExitError(ExitCommandError, "metrics server failed", err)
	}
}

// startMetricsServer serves the collector at /metrics. Listen errors are
// sent on errChan.
func startMetricsServer(addr string, collector *telemetry.Collector, errChan chan<- error) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("serving metrics", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	return srv
}

func shutdownMetricsServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("error stopping metrics server", "error", err)
	}
}
