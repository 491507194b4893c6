package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/minipack/internal/compiler"
	"github.com/roach88/minipack/internal/config"
	"github.com/roach88/minipack/internal/graph"
	"github.com/roach88/minipack/internal/hooks"
	"github.com/roach88/minipack/internal/loader"
	"github.com/roach88/minipack/internal/plugins"
	"github.com/roach88/minipack/internal/store"
	"github.com/roach88/minipack/internal/testutil"
)

// epoch starts the scenario clock so durations are reproducible.
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// recorder is a plugin that appends every hook firing to a Result. It
// attaches ahead of all other callbacks so short-circuiting hooks are
// still recorded, and passes threaded values through unchanged.
type recorder struct {
	result *Result
	run    int
	seq    int
}

func (r *recorder) Name() string { return "harness.recorder" }

func (r *recorder) Apply(d *hooks.Dispatcher) error {
	for _, info := range d.Hooks() {
		name, threads := info.Name, info.Mode == hooks.ValueThreading
		err := d.Attach(name, func(ctx context.Context, args ...any) (any, error) {
			r.record(name, args)
			if threads && len(args) > 0 {
				return args[0], nil
			}
			return nil, nil
		}, hooks.WithPriority(math.MinInt))
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *recorder) record(hook string, args []any) {
	if hook == compiler.HookBeforeRun {
		r.run++
		r.seq = 0
	}
	r.seq++
	ev := TraceEvent{Run: r.run, Seq: r.seq, Hook: hook}
	if len(args) > 0 {
		switch v := args[0].(type) {
		case *graph.Request:
			ev.Module = v.ID
		case *graph.Module:
			ev.Module = v.ID
		}
	}
	r.result.Trace = append(r.result.Trace, ev)
}

// Run executes a scenario and returns the result.
//
// Each scenario builds in a fresh scratch directory with a fixed run id
// and a step clock, so traces are reproducible. The returned error covers
// setup problems only; build failures and failed assertions are reported
// in the Result.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "minipack-scenario-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}

	for name, content := range scenario.Files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	env := plugins.Env{Logger: logger}

	if scenario.Cache {
		st, err := store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
		env.Store = st
	}

	cfg, err := config.Resolve(&scenario.Config, config.ResolveOptions{
		BaseDir: dir,
		Mode:    loader.Mode(scenario.Mode),
		Env:     env,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config: %w", err)
	}

	result := NewResult()
	if scenario.Cache {
		cache, err := plugins.New("cache", nil, env)
		if err != nil {
			return nil, err
		}
		cfg.Plugins = append(cfg.Plugins, cache)
	}
	cfg.Plugins = append(cfg.Plugins, &recorder{result: result})

	clock := testutil.NewStepClock(epoch, time.Millisecond)
	c, err := compiler.New(cfg,
		compiler.WithIDGenerator(testutil.NewFixedIDGenerator(scenario.RunID)),
		compiler.WithClock(clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create compiler: %w", err)
	}
	defer c.Hooks().Clear()

	runs := max(scenario.Runs, 1)
	ctx := context.Background()
	for i := range runs {
		res, err := c.Run(ctx)
		if i < runs-1 {
			if err != nil {
				return nil, fmt.Errorf("run %d failed: %w", i+1, err)
			}
			continue
		}
		if err != nil {
			result.BuildError = err.Error()
			break
		}
		collect(result, res, c)
	}

	checkOutcome(result, scenario.ExpectError)
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// collect copies the last run's output into result.
func collect(result *Result, res *compiler.Result, c *compiler.Compiler) {
	for _, m := range res.Modules {
		deps := make([]string, 0, len(m.Dependencies))
		for _, d := range m.Dependencies {
			deps = append(deps, d.ID)
		}
		result.Modules = append(result.Modules, ModuleSummary{ID: m.ID, Loaders: m.Loaders, Dependencies: deps})
	}
	maps.Copy(result.Assets, res.Assets.Map())
	result.Bundle, _ = res.Assets.Get(c.Config().Output.Filename)
	if hits, ok := c.Hooks().Context().Get(plugins.ContextCacheHits); ok {
		result.CacheHits, _ = hits.(int)
	}
}

// checkOutcome compares the build outcome against expect_error.
func checkOutcome(result *Result, expectError string) {
	switch {
	case expectError == "" && result.BuildError != "":
		result.AddError(fmt.Sprintf("build failed: %s", result.BuildError))
	case expectError != "" && result.BuildError == "":
		result.AddError(fmt.Sprintf("build succeeded, expected an error containing %q", expectError))
	case expectError != "" && !strings.Contains(result.BuildError, expectError):
		result.AddError(fmt.Sprintf("build error %q does not contain %q", result.BuildError, expectError))
	}
}
