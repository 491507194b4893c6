package plugins

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/minipack/internal/hooks"
	"github.com/roach88/minipack/internal/store"
)

// DefaultCachePath is where the cache plugin opens its store when neither
// the environment nor the path option names one.
var DefaultCachePath = filepath.Join(".minipack", "cache.db")

// ErrUnknownPlugin is returned by New for a name it does not know.
var ErrUnknownPlugin = errors.New("unknown plugin")

// Env carries the shared resources plugins are built with. Zero fields get
// defaults.
type Env struct {
	Logger *slog.Logger

	// Store backs the cache plugin. When nil the plugin opens its own.
	Store *store.Store

	// Registerer receives the timing plugin's collectors.
	Registerer prometheus.Registerer

	// TracerProvider serves the tracing plugin.
	TracerProvider trace.TracerProvider
}

type factory func(opts hooks.Options, env Env) (hooks.Plugin, error)

var factories = map[string]factory{
	"logger": func(opts hooks.Options, env Env) (hooks.Plugin, error) {
		return NewLogger(opts, env.Logger), nil
	},
	"timing": func(opts hooks.Options, env Env) (hooks.Plugin, error) {
		return NewTiming(opts, env.Registerer, env.Logger)
	},
	"tracing": func(opts hooks.Options, env Env) (hooks.Plugin, error) {
		return NewTracing(opts, env.TracerProvider), nil
	},
	"cache": newCacheFromEnv,
	"validation": func(opts hooks.Options, env Env) (hooks.Plugin, error) {
		return NewValidation(opts, env.Logger)
	},
	"transform": func(opts hooks.Options, env Env) (hooks.Plugin, error) {
		return NewTransform(opts), nil
	},
}

// names lists the plugins in documentation order.
var names = []string{"logger", "timing", "tracing", "cache", "validation", "transform"}

// Names returns the plugin names New accepts.
func Names() []string {
	return slices.Clone(names)
}

// New builds the named plugin.
func New(name string, opts hooks.Options, env Env) (hooks.Plugin, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlugin, name)
	}
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	p, err := f(opts, env)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", name, err)
	}
	return p, nil
}

func newCacheFromEnv(opts hooks.Options, env Env) (hooks.Plugin, error) {
	if env.Store != nil {
		return NewCache(opts, env.Store, env.Logger), nil
	}

	c := NewCache(opts, nil, env.Logger)
	st, err := store.Open(c.StringOption("path", DefaultCachePath))
	if err != nil {
		return nil, err
	}
	c.store = st
	c.owned = true
	return c, nil
}
