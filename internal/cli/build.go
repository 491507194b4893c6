package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/roach88/minipack/internal/compiler"
	"github.com/roach88/minipack/internal/plugins"
	"github.com/roach88/minipack/internal/render"
	"github.com/roach88/minipack/internal/store"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Mode       string // overrides the config's mode
	Cache      string // cache database path; enables the cache plugin
	Metrics    string // Prometheus textfile path; enables the timing plugin
	Trace      string // span output path; enables the tracing plugin
	EmitAssets bool   // write loader-emitted files next to the bundle

	// IDs overrides the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs compiler.IDGenerator
}

// BuildSummary is the result of a successful build.
type BuildSummary struct {
	Stats   compiler.Stats `json:"stats"`
	Cache   *CacheCounts   `json:"cache,omitempty"`
	Written []string       `json:"assets_written,omitempty"`
	Metrics string         `json:"metrics,omitempty"`
	Trace   string         `json:"trace,omitempty"`
}

// CacheCounts reports the cache plugin's hits and misses for one run.
type CacheCounts struct {
	Hits   int `json:"hits"`
	Misses int `json:"misses"`
}

func (s BuildSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s → %s\n", successStyle.Render("✓ Built"), s.Stats.EntryID, s.Stats.Output)
	fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("run    "), s.Stats.RunID)
	fmt.Fprintf(&b, "  %s %d module(s), %d asset(s)\n", mutedStyle.Render("modules"), s.Stats.Modules, s.Stats.Assets)
	fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("time   "), s.Stats.Duration.Round(time.Millisecond))
	if s.Cache != nil {
		fmt.Fprintf(&b, "  %s %d hit(s), %d miss(es)\n", mutedStyle.Render("cache  "), s.Cache.Hits, s.Cache.Misses)
	}
	for _, f := range s.Written {
		fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("asset  "), f)
	}
	for _, w := range s.Stats.Cycles {
		fmt.Fprintf(&b, "  %s %s\n", warningStyle.Render("cycle  "), strings.Join(w.Path, " → "))
	}
	if s.Metrics != "" {
		fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("metrics"), s.Metrics)
	}
	if s.Trace != "" {
		fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("trace  "), s.Trace)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Bundle the entry file and its dependencies",
		Long: `Run one build with the configuration found by --config.

Example:
  minipack build
  minipack build -c ./site/minipack.yaml --mode production
  minipack build --cache .minipack/cache.db --metrics build.prom`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", "", "build mode (development|production), overrides the config")
	cmd.Flags().StringVar(&opts.Cache, "cache", "", "path to the SQLite transform cache")
	cmd.Flags().StringVar(&opts.Metrics, "metrics", "", "write Prometheus metrics to this textfile")
	cmd.Flags().StringVar(&opts.Trace, "trace", "", "write OpenTelemetry spans to this file")
	cmd.Flags().BoolVar(&opts.EmitAssets, "emit-assets", false, "write emitted assets into the output directory")

	return cmd
}

func runBuild(opts *BuildOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	so := sessionOptions{mode: opts.Mode, logger: logger}
	so.env.Logger = logger
	if opts.IDs != nil {
		so.compilerOpts = append(so.compilerOpts, compiler.WithIDGenerator(opts.IDs))
	}

	if opts.Cache != "" {
		st, err := store.Open(opts.Cache)
		if err != nil {
			_ = formatter.Error(ErrCodeCacheFailed, fmt.Sprintf("opening cache: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to open cache", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing cache", "error", closeErr)
			}
		}()
		so.env.Store = st
		so.require = append(so.require, "cache")
	}

	var registry *prometheus.Registry
	if opts.Metrics != "" {
		registry = prometheus.NewRegistry()
		so.env.Registerer = registry
		so.require = append(so.require, "timing")
	}

	if opts.Trace != "" {
		tp, shutdown, err := newTraceProvider(opts.Trace)
		if err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("opening trace file: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to open trace file", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("error flushing trace", "error", err)
			}
		}()
		so.env.TracerProvider = tp
		so.require = append(so.require, "tracing")
	}

	sess, err := opts.openSession(so)
	if err != nil {
		return outputConfigError(formatter, err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Error("error stopping plugins", "error", err)
		}
	}()
	formatter.VerboseLog("Loaded %s", sess.path)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := sess.compiler.Run(ctx)
	if err != nil {
		_ = formatter.Error(ErrCodeBuildFailed, err.Error(), nil)
		return WrapExitError(ExitFailure, "build failed", err)
	}

	summary := BuildSummary{Stats: res.Stats, Metrics: opts.Metrics, Trace: opts.Trace}
	summary.Cache = cacheCounts(sess.compiler)

	if opts.EmitAssets {
		written, err := render.WriteAssets(res.Assets, sess.compiler.Config().Output)
		if err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), written)
			return WrapExitError(ExitFailure, "writing assets", err)
		}
		summary.Written = written
	}

	if registry != nil {
		if err := prometheus.WriteToTextfile(opts.Metrics, registry); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing metrics: %v", err), nil)
			return WrapExitError(ExitFailure, "writing metrics", err)
		}
	}

	return formatter.Success(summary)
}

// cacheCounts reads what the cache plugin recorded in the run context, or
// nil when no cache plugin ran.
func cacheCounts(c *compiler.Compiler) *CacheCounts {
	rc := c.Hooks().Context()
	hits, ok := rc.Get(plugins.ContextCacheHits)
	if !ok {
		return nil
	}
	misses, _ := rc.Get(plugins.ContextCacheMisses)
	h, _ := hits.(int)
	m, _ := misses.(int)
	return &CacheCounts{Hits: h, Misses: m}
}

// newTraceProvider exports spans synchronously as indented JSON to path.
func newTraceProvider(path string) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(f), stdouttrace.WithPrettyPrint())
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	shutdown := func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		return err
	}
	return tp, shutdown, nil
}
