package plugins

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/minipack/internal/compiler"
	"github.com/roach88/minipack/internal/graph"
	"github.com/roach88/minipack/internal/hooks"
)

// Tracing names.
const (
	TracerName  = "github.com/roach88/minipack"
	RunSpanName = "minipack.run"
)

// Tracing records one span per run, opened on beforeRun and ended on done
// or failed. Each core stage and each built module adds an event.
type Tracing struct {
	hooks.Base
	tracer trace.Tracer

	mu   sync.Mutex
	span trace.Span
}

// NewTracing creates a Tracing plugin. A nil tp uses the global provider.
func NewTracing(opts hooks.Options, tp trace.TracerProvider) *Tracing {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracing{
		Base:   hooks.NewBase("tracing", opts),
		tracer: tp.Tracer(TracerName),
	}
}

// Apply attaches at priority 0 so spans bracket other plugins' work.
func (t *Tracing) Apply(d *hooks.Dispatcher) error {
	if err := d.Attach(compiler.HookBeforeRun, func(ctx context.Context, _ ...any) (any, error) {
		runID, _ := d.Context().GetString(compiler.ContextRunID)
		t.start(ctx, runID)
		return nil, nil
	}, hooks.WithPriority(0)); err != nil {
		return err
	}

	for _, stage := range compiler.CoreStages {
		err := d.Attach(stage, func(context.Context, ...any) (any, error) {
			t.event(stage)
			return nil, nil
		}, hooks.WithPriority(0))
		if err != nil {
			return err
		}
	}

	if err := d.Attach(compiler.HookModuleBuilt, func(_ context.Context, args ...any) (any, error) {
		if m, ok := firstArg[*graph.Module](args); ok {
			t.event("module", attribute.String("module.id", m.ID), attribute.Int("module.dependencies", len(m.Dependencies)))
		}
		return nil, nil
	}); err != nil {
		return err
	}

	if err := d.Attach(compiler.HookDone, func(_ context.Context, args ...any) (any, error) {
		var attrs []attribute.KeyValue
		if ev, ok := firstArg[*compiler.DoneEvent](args); ok && ev.Stats != nil {
			attrs = append(attrs,
				attribute.Int("build.modules", ev.Stats.Modules),
				attribute.Int("build.assets", ev.Stats.Assets),
				attribute.String("build.output", ev.Stats.Output),
			)
		}
		t.end(nil, attrs...)
		return nil, nil
	}, hooks.WithPriority(100)); err != nil {
		return err
	}

	return d.Attach(compiler.HookFailed, func(_ context.Context, args ...any) (any, error) {
		cause, _ := firstArg[error](args)
		t.end(cause)
		return nil, nil
	}, hooks.WithPriority(100))
}

func (t *Tracing) start(ctx context.Context, runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.span != nil {
		t.span.End()
	}
	_, t.span = t.tracer.Start(ctx, RunSpanName, trace.WithAttributes(attribute.String("run.id", runID)))
}

func (t *Tracing) event(name string, attrs ...attribute.KeyValue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.span == nil {
		return
	}
	t.span.AddEvent(name, trace.WithAttributes(attrs...))
}

func (t *Tracing) end(cause error, attrs ...attribute.KeyValue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.span == nil {
		return
	}
	t.span.SetAttributes(attrs...)
	if cause != nil {
		t.span.RecordError(cause)
		t.span.SetStatus(codes.Error, cause.Error())
	} else {
		t.span.SetStatus(codes.Ok, "")
	}
	t.span.End()
	t.span = nil
}
