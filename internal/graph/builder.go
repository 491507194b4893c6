package graph

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/roach88/minipack/internal/loader"
	"github.com/roach88/minipack/internal/resolve"
)

// BeforeLoadFunc may return a cached transform for req. A nil Cached runs
// the loader pipeline as usual.
type BeforeLoadFunc func(ctx context.Context, req *Request) (*Cached, error)

// AfterModuleFunc observes each module right after it is inserted.
type AfterModuleFunc func(ctx context.Context, m *Module) error

// Builder walks the dependency graph from an entry file.
type Builder struct {
	resolver    *resolve.Resolver
	rules       []loader.Rule
	mode        loader.Mode
	emit        func(name, content string)
	beforeLoad  BeforeLoadFunc
	afterModule AfterModuleFunc
	logger      *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithRules sets the loader rules.
func WithRules(rules []loader.Rule) Option {
	return func(b *Builder) {
		b.rules = rules
	}
}

// WithMode sets the build mode passed to loaders.
func WithMode(mode loader.Mode) Option {
	return func(b *Builder) {
		b.mode = mode
	}
}

// WithEmitFile receives files emitted by loaders, including files replayed
// from a cached transform.
func WithEmitFile(emit func(name, content string)) Option {
	return func(b *Builder) {
		b.emit = emit
	}
}

// WithBeforeLoad installs a cache lookup consulted before each pipeline run.
func WithBeforeLoad(fn BeforeLoadFunc) Option {
	return func(b *Builder) {
		b.beforeLoad = fn
	}
}

// WithAfterModule installs an observer called after each insert.
func WithAfterModule(fn AfterModuleFunc) Option {
	return func(b *Builder) {
		b.afterModule = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder creates a Builder resolving through r.
func NewBuilder(r *resolve.Resolver, opts ...Option) *Builder {
	b := &Builder{
		resolver: r,
		mode:     loader.Development,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build walks the graph from entry and returns it with the entry's id.
// Modules are built one at a time, depth first; each is inserted before
// its dependencies are visited, so cycles terminate.
func (b *Builder) Build(ctx context.Context, entry string) (*Graph, string, error) {
	abs, err := filepath.Abs(entry)
	if err != nil {
		return nil, "", fmt.Errorf("resolve entry %s: %w", entry, err)
	}

	g := New()
	if err := b.buildModule(ctx, g, abs, ""); err != nil {
		return nil, "", err
	}
	return g, b.resolver.ID(abs), nil
}

func (b *Builder) buildModule(ctx context.Context, g *Graph, resource, requester string) error {
	if g.Has(resource) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := os.ReadFile(resource)
	if err != nil {
		return &ReadError{Resource: resource, Requester: requester, Err: err}
	}

	req := &Request{
		ID:          b.resolver.ID(resource),
		Resource:    resource,
		Source:      string(raw),
		Loaders:     loader.Collect(b.rules, resource, b.resolver.RootContext()),
		Mode:        b.mode,
		RootContext: b.resolver.RootContext(),
	}

	code, applied, emitted, err := b.transform(ctx, req)
	if err != nil {
		return err
	}

	deps := b.resolver.Dependencies(code, resource)
	mapping := make(map[string]string, len(deps))
	for _, d := range deps {
		mapping[d.Request] = d.ID
	}

	m := &Module{
		ID:           req.ID,
		Resource:     resource,
		Source:       req.Source,
		Transformed:  code,
		Dependencies: deps,
		Mapping:      mapping,
		Loaders:      applied,
		Emitted:      emitted,
	}
	g.Add(m)
	b.logger.Debug("module built", "id", m.ID, "deps", len(deps), "loaders", applied)

	if b.afterModule != nil {
		if err := b.afterModule(ctx, m); err != nil {
			return err
		}
	}

	for _, d := range deps {
		if err := b.buildModule(ctx, g, d.Resolved, m.ID); err != nil {
			return err
		}
	}
	return nil
}

// transform returns the module's code from the cache hook if it has one,
// otherwise from the loader pipeline.
func (b *Builder) transform(ctx context.Context, req *Request) (string, []string, map[string]string, error) {
	if b.beforeLoad != nil {
		cached, err := b.beforeLoad(ctx, req)
		if err != nil {
			return "", nil, nil, err
		}
		if cached != nil {
			b.logger.Debug("module transform reused", "id", req.ID)
			b.replay(cached.Emitted)
			return cached.Code, slices.Clone(cached.Loaders), maps.Clone(cached.Emitted), nil
		}
	}

	out, err := loader.Run(ctx, loader.Input{
		Resource:    req.Resource,
		Source:      req.Source,
		Loaders:     req.Loaders,
		RootContext: b.resolver.RootContext(),
		Mode:        req.Mode,
		EmitFile:    b.emit,
	})
	if err != nil {
		return "", nil, nil, err
	}
	return out.Code, out.Applied, out.Emitted, nil
}

func (b *Builder) replay(emitted map[string]string) {
	if b.emit == nil {
		return
	}
	for _, name := range slices.Sorted(maps.Keys(emitted)) {
		b.emit(name, emitted[name])
	}
}
