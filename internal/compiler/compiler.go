// Package compiler composes the hook dispatcher, loader pipeline, resolver,
// graph builder and renderer into a single build run.
package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/roach88/minipack/internal/asset"
	"github.com/roach88/minipack/internal/graph"
	"github.com/roach88/minipack/internal/hooks"
	"github.com/roach88/minipack/internal/loader"
	"github.com/roach88/minipack/internal/render"
	"github.com/roach88/minipack/internal/resolve"
)

// Core lifecycle hooks, in run order.
const (
	HookBeforeRun     = "beforeRun"
	HookRun           = "run"
	HookBeforeCompile = "beforeCompile"
	HookCompile       = "compile"
	HookMake          = "make"
	HookEmit          = "emit"
	HookDone          = "done"
)

// Supplemental hooks.
const (
	// HookLoadModule may return a *graph.Cached to skip the loader pipeline.
	HookLoadModule = "loadModule"

	// HookModuleBuilt observes each *graph.Module after insertion.
	HookModuleBuilt = "moduleBuilt"

	// HookValidateModule receives each *graph.Module; an error result aborts the run.
	HookValidateModule = "validateModule"

	// HookProcessBundle threads the rendered bundle text.
	HookProcessBundle = "processBundle"

	// HookFailed observes a fatal error before Run returns it.
	HookFailed = "failed"
)

// CoreStages lists the core hooks in run order.
var CoreStages = []string{
	HookBeforeRun, HookRun, HookBeforeCompile, HookCompile, HookMake, HookEmit, HookDone,
}

var declarations = []struct {
	name string
	mode hooks.Mode
}{
	{HookBeforeRun, hooks.SequentialVoid},
	{HookRun, hooks.SequentialVoid},
	{HookBeforeCompile, hooks.SequentialVoid},
	{HookCompile, hooks.SequentialVoid},
	{HookMake, hooks.SequentialAwaited},
	{HookEmit, hooks.SequentialAwaited},
	{HookDone, hooks.SequentialVoid},
	{HookLoadModule, hooks.ShortCircuit},
	{HookModuleBuilt, hooks.SequentialVoid},
	{HookValidateModule, hooks.ShortCircuit},
	{HookProcessBundle, hooks.ValueThreading},
	{HookFailed, hooks.SequentialVoid},
}

// ContextRunID is the run context key holding the current run id.
const ContextRunID = "run.id"

// ModuleRequest is the argument of HookLoadModule.
type ModuleRequest = graph.Request

// Output names the bundle's directory and file name.
type Output = render.Output

// Config is the build configuration. It is read, never mutated.
type Config struct {
	// Entry is the entry file, relative to the working directory or absolute.
	Entry string

	Output Output

	// Rules select loaders per resource.
	Rules []loader.Rule

	// Plugins are registered in order when the compiler is created.
	Plugins []hooks.Plugin

	// Mode defaults to development.
	Mode loader.Mode

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// EmitEvent is the argument of HookEmit.
type EmitEvent struct {
	Assets *asset.Set
	// Output is the path the bundle was written to.
	Output string
}

// DoneEvent is the argument of HookDone.
type DoneEvent struct {
	Assets  *asset.Set
	Modules []*graph.Module
	Stats   *Stats
}

// Stats summarises a run.
type Stats struct {
	RunID    string         `json:"run_id"`
	EntryID  string         `json:"entry_id"`
	Modules  int            `json:"modules"`
	Assets   int            `json:"assets"`
	Output   string         `json:"output"`
	Duration time.Duration  `json:"duration_ns"`
	Cycles   []CycleWarning `json:"cycles,omitempty"`
}

// Result is what a successful run produces.
type Result struct {
	Assets  *asset.Set
	Modules []*graph.Module
	Stats   Stats
}

// Compiler runs builds for one configuration.
type Compiler struct {
	cfg       Config
	hooks     *hooks.Dispatcher
	logger    *slog.Logger
	ids       IDGenerator
	now       func() time.Time
	extractor resolve.Extractor
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithIDGenerator sets the run id source. Default is UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *Compiler) {
		c.ids = g
	}
}

// WithClock sets the time source used for Stats.Duration.
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) {
		c.now = now
	}
}

// WithExtractor replaces the default request extractor.
func WithExtractor(e resolve.Extractor) Option {
	return func(c *Compiler) {
		c.extractor = e
	}
}

// New validates cfg, declares every hook and registers cfg.Plugins in order.
func New(cfg Config, opts ...Option) (*Compiler, error) {
	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, &ConfigError{Errors: errs}
	}
	if cfg.Mode == "" {
		cfg.Mode = loader.Development
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Compiler{
		cfg:    cfg,
		hooks:  hooks.New(hooks.WithLogger(cfg.Logger)),
		logger: cfg.Logger,
		ids:    UUIDv7Generator{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, decl := range declarations {
		if err := c.hooks.Declare(decl.name, decl.mode); err != nil {
			return nil, err
		}
	}
	for _, p := range cfg.Plugins {
		if err := c.hooks.Register(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Hooks returns the dispatcher, for plugins registered after New.
func (c *Compiler) Hooks() *hooks.Dispatcher {
	return c.hooks
}

// Config returns the configuration the compiler was created with.
func (c *Compiler) Config() Config {
	return c.cfg
}

// Logger returns the compiler's logger.
func (c *Compiler) Logger() *slog.Logger {
	return c.logger
}

// Run performs one build:
//
//	beforeRun → run → beforeCompile → compile → make → emit → done
//
// The first failure aborts the run, is passed to the failed hook and is
// returned. No bundle is written unless the whole graph was built.
func (c *Compiler) Run(ctx context.Context) (*Result, error) {
	start := c.now()
	runID := c.ids.Generate()
	c.hooks.Context().Set(ContextRunID, runID)
	log := c.logger.With("run", runID)

	res, err := c.run(ctx, log, runID, start)
	if err != nil {
		c.fail(ctx, log, err)
		return nil, err
	}
	return res, nil
}

func (c *Compiler) run(ctx context.Context, log *slog.Logger, runID string, start time.Time) (*Result, error) {
	for _, stage := range []string{HookBeforeRun, HookRun, HookBeforeCompile, HookCompile} {
		log.Debug("stage", "hook", stage)
		if err := c.hooks.CallSync(ctx, stage, c); err != nil {
			return nil, err
		}
	}

	log.Debug("stage", "hook", HookMake)
	if err := c.hooks.CallAsync(ctx, HookMake, c); err != nil {
		return nil, err
	}
	assets := asset.NewSet()
	g, entryID, err := c.make(ctx, log, assets)
	if err != nil {
		return nil, err
	}
	modules := g.Modules()

	cycles := AnalyzeCycles(modules)
	for _, w := range cycles {
		log.Debug("cycle", "path", w.Path)
	}

	log.Debug("stage", "hook", HookEmit)
	file, err := c.emit(ctx, assets, modules, entryID)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Assets:  assets,
		Modules: modules,
		Stats: Stats{
			RunID:    runID,
			EntryID:  entryID,
			Modules:  len(modules),
			Assets:   assets.Len(),
			Output:   file,
			Duration: c.now().Sub(start),
			Cycles:   cycles,
		},
	}

	log.Debug("stage", "hook", HookDone)
	if err := c.hooks.CallSync(ctx, HookDone, &DoneEvent{Assets: assets, Modules: modules, Stats: &res.Stats}); err != nil {
		return nil, err
	}

	log.Info("build complete", "modules", res.Stats.Modules, "assets", res.Stats.Assets, "output", file)
	return res, nil
}

// make builds the module graph from the entry.
func (c *Compiler) make(ctx context.Context, log *slog.Logger, assets *asset.Set) (*graph.Graph, string, error) {
	entry, err := filepath.Abs(c.cfg.Entry)
	if err != nil {
		return nil, "", fmt.Errorf("resolve entry %s: %w", c.cfg.Entry, err)
	}

	var ropts []resolve.Option
	if c.extractor != nil {
		ropts = append(ropts, resolve.WithExtractor(c.extractor))
	}
	resolver := resolve.New(filepath.Dir(entry), ropts...)

	builder := graph.NewBuilder(resolver,
		graph.WithRules(c.cfg.Rules),
		graph.WithMode(c.cfg.Mode),
		graph.WithEmitFile(assets.Set),
		graph.WithBeforeLoad(c.loadModule),
		graph.WithAfterModule(c.moduleBuilt),
		graph.WithLogger(log),
	)
	return builder.Build(ctx, entry)
}

func (c *Compiler) loadModule(ctx context.Context, req *graph.Request) (*graph.Cached, error) {
	v, err := c.hooks.CallBail(ctx, HookLoadModule, req)
	if err != nil || v == nil {
		return nil, err
	}
	cached, ok := v.(*graph.Cached)
	if !ok {
		return nil, fmt.Errorf("%s hook returned %T, want *graph.Cached", HookLoadModule, v)
	}
	return cached, nil
}

func (c *Compiler) moduleBuilt(ctx context.Context, m *graph.Module) error {
	if err := c.hooks.CallSync(ctx, HookModuleBuilt, m); err != nil {
		return err
	}
	verdict, err := c.hooks.CallBail(ctx, HookValidateModule, m)
	if err != nil {
		return err
	}
	if verr, ok := verdict.(error); ok {
		return fmt.Errorf("module %s rejected: %w", m.ID, verr)
	}
	return nil
}

// emit renders the bundle, lets plugins rewrite it, writes it and then
// calls the emit hook.
func (c *Compiler) emit(ctx context.Context, assets *asset.Set, modules []*graph.Module, entryID string) (string, error) {
	bundle, err := render.Render(modules, entryID)
	if err != nil {
		return "", err
	}

	v, err := c.hooks.CallWaterfall(ctx, HookProcessBundle, bundle)
	if err != nil {
		return "", err
	}
	processed, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s hook returned %T, want string", HookProcessBundle, v)
	}

	file, err := render.Emit(assets, c.cfg.Output, processed)
	if err != nil {
		return "", err
	}

	if err := c.hooks.CallAsync(ctx, HookEmit, &EmitEvent{Assets: assets, Output: file}); err != nil {
		return "", err
	}
	return file, nil
}

// fail reports err to the failed hook. Errors from the hook itself are
// logged; the original error is what Run returns.
func (c *Compiler) fail(ctx context.Context, log *slog.Logger, err error) {
	log.Error("build failed", "error", err)
	if herr := c.hooks.CallSync(context.WithoutCancel(ctx), HookFailed, err); herr != nil {
		log.Warn("failed hook returned an error", "error", herr)
	}
}
