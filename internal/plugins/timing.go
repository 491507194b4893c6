package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/minipack/internal/compiler"
	"github.com/roach88/minipack/internal/hooks"
)

// MetricsNamespace prefixes every metric the timing plugin exports.
const MetricsNamespace = "minipack"

// Timing measures each run from the run stage to the done stage and the
// time spent between consecutive core stages.
type Timing struct {
	hooks.Base
	logger *slog.Logger
	now    func() time.Time

	buildDuration prometheus.Histogram
	stageDuration *prometheus.HistogramVec
	builds        *prometheus.CounterVec
	modules       prometheus.Counter
	assets        prometheus.Counter

	mu    sync.Mutex
	start time.Time
	marks []stageMark
	last  time.Duration
}

type stageMark struct {
	stage string
	at    time.Time
}

// TimingOption configures a Timing plugin.
type TimingOption func(*Timing)

// WithTimingClock sets the time source.
func WithTimingClock(now func() time.Time) TimingOption {
	return func(t *Timing) {
		t.now = now
	}
}

// NewTiming creates a Timing plugin and registers its collectors with reg.
// A nil reg gets a private registry.
func NewTiming(opts hooks.Options, reg prometheus.Registerer, logger *slog.Logger, topts ...TimingOption) (*Timing, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &Timing{
		Base:   hooks.NewBase("timing", opts),
		logger: logger,
		now:    time.Now,

		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of a build from the run stage to the done stage",
			Buckets:   prometheus.DefBuckets,
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "stage_duration_seconds",
			Help:      "Time between the start of a core stage and the start of the next",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "builds_total",
			Help:      "Total number of builds by outcome",
		}, []string{"status"}),
		modules: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "modules_built_total",
			Help:      "Total number of modules placed in a bundle",
		}),
		assets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "assets_emitted_total",
			Help:      "Total number of assets emitted",
		}),
	}
	for _, opt := range topts {
		opt(t)
	}

	for _, c := range []prometheus.Collector{t.buildDuration, t.stageDuration, t.builds, t.modules, t.assets} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register timing metrics: %w", err)
		}
	}
	return t, nil
}

// Apply attaches a stage mark to every core stage, the build clock to run
// and done, and a failure counter to failed.
func (t *Timing) Apply(d *hooks.Dispatcher) error {
	for _, stage := range compiler.CoreStages {
		err := d.Attach(stage, func(context.Context, ...any) (any, error) {
			t.mark(stage)
			return nil, nil
		}, hooks.WithPriority(0))
		if err != nil {
			return err
		}
	}

	if err := d.Attach(compiler.HookRun, func(context.Context, ...any) (any, error) {
		t.mu.Lock()
		t.start = t.now()
		t.mu.Unlock()
		return nil, nil
	}, hooks.WithPriority(1)); err != nil {
		return err
	}

	if err := d.Attach(compiler.HookDone, func(ctx context.Context, args ...any) (any, error) {
		elapsed := t.finish()
		t.builds.WithLabelValues("success").Inc()
		if ev, ok := firstArg[*compiler.DoneEvent](args); ok && ev.Stats != nil {
			t.modules.Add(float64(ev.Stats.Modules))
			t.assets.Add(float64(ev.Stats.Assets))
		}
		t.logger.InfoContext(ctx, fmt.Sprintf("[timing] build finished in %d ms", elapsed.Milliseconds()))
		return nil, nil
	}, hooks.WithPriority(1)); err != nil {
		return err
	}

	return d.Attach(compiler.HookFailed, func(context.Context, ...any) (any, error) {
		t.finish()
		t.builds.WithLabelValues("failure").Inc()
		return nil, nil
	})
}

// Last returns the duration of the most recent finished build.
func (t *Timing) Last() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func (t *Timing) mark(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if stage == compiler.HookBeforeRun {
		t.marks = t.marks[:0]
	}
	t.marks = append(t.marks, stageMark{stage: stage, at: t.now()})
}

// finish observes the build and stage durations and resets the marks.
func (t *Timing) finish() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	end := t.now()
	for i, m := range t.marks {
		next := end
		if i+1 < len(t.marks) {
			next = t.marks[i+1].at
		}
		t.stageDuration.WithLabelValues(m.stage).Observe(next.Sub(m.at).Seconds())
	}
	t.marks = t.marks[:0]

	var elapsed time.Duration
	if !t.start.IsZero() {
		elapsed = end.Sub(t.start)
		t.buildDuration.Observe(elapsed.Seconds())
	}
	t.start = time.Time{}
	t.last = elapsed
	return elapsed
}

// firstArg returns args[0] as T.
func firstArg[T any](args []any) (T, bool) {
	var zero T
	if len(args) == 0 {
		return zero, false
	}
	v, ok := args[0].(T)
	return v, ok
}
