package plugins

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/minipack/internal/compiler"
	"github.com/roach88/minipack/internal/graph"
	"github.com/roach88/minipack/internal/hooks"
	"github.com/roach88/minipack/internal/loader"
	"github.com/roach88/minipack/internal/store"
)

// Run context keys set by the cache plugin when a build completes.
const (
	ContextCacheHits   = "cache.hits"
	ContextCacheMisses = "cache.misses"
)

// Fingerprinter is implemented by loaders whose behaviour can change
// without their name or options changing.
type Fingerprinter interface {
	Fingerprint() string
}

// Cache replays stored loader pipeline results.
//
// On loadModule it looks the request up by store.TransformKey and returns
// a *graph.Cached on a hit. Misses are written back on moduleBuilt. On done
// it records the build and publishes hit and miss counts in the run
// context. Option maxSize bounds the number of stored transforms.
type Cache struct {
	hooks.Base
	store  *store.Store
	owned  bool
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]string // resource -> key of a miss
	hits    int
	misses  int
}

// NewCache creates a Cache over st. The caller keeps ownership of st.
func NewCache(opts hooks.Options, st *store.Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		Base:    hooks.NewBase("cache", opts),
		store:   st,
		logger:  logger,
		pending: make(map[string]string),
	}
}

// Store returns the backing store.
func (c *Cache) Store() *store.Store {
	return c.store
}

// Stop closes the store if the plugin opened it.
func (c *Cache) Stop() error {
	if !c.owned {
		return nil
	}
	return c.store.Close()
}

// Apply attaches the lookup, write-back and bookkeeping callbacks.
func (c *Cache) Apply(d *hooks.Dispatcher) error {
	if err := d.Attach(compiler.HookBeforeRun, func(context.Context, ...any) (any, error) {
		c.reset()
		return nil, nil
	}); err != nil {
		return err
	}

	if err := d.Attach(compiler.HookLoadModule, func(ctx context.Context, args ...any) (any, error) {
		req, ok := firstArg[*compiler.ModuleRequest](args)
		if !ok {
			return nil, nil
		}
		return c.lookup(ctx, req)
	}, hooks.WithPriority(5)); err != nil {
		return err
	}

	if err := d.Attach(compiler.HookModuleBuilt, func(ctx context.Context, args ...any) (any, error) {
		m, ok := firstArg[*graph.Module](args)
		if !ok {
			return nil, nil
		}
		return nil, c.writeBack(ctx, m)
	}, hooks.WithPriority(5)); err != nil {
		return err
	}

	return d.Attach(compiler.HookDone, func(ctx context.Context, args ...any) (any, error) {
		ev, ok := firstArg[*compiler.DoneEvent](args)
		if !ok || ev.Stats == nil {
			return nil, nil
		}
		return nil, c.record(ctx, d.Context(), ev.Stats)
	}, hooks.WithPriority(5))
}

func (c *Cache) lookup(ctx context.Context, req *graph.Request) (*graph.Cached, error) {
	// Nothing to save for a module no loader touches.
	if len(req.Loaders) == 0 {
		return nil, nil
	}

	key, err := store.TransformKey(store.TransformInput{
		Resource:    req.Resource,
		RootContext: req.RootContext,
		Source:      req.Source,
		Mode:        string(req.Mode),
		Loaders:     loaderSpecs(req.Loaders),
	})
	if err != nil {
		c.logger.WarnContext(ctx, "cache key unavailable, module not cached", "module", req.ID, "error", err)
		return nil, nil
	}

	t, found, err := c.store.GetTransform(ctx, key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !found {
		c.misses++
		c.pending[req.Resource] = key
		return nil, nil
	}
	c.hits++
	c.logger.DebugContext(ctx, "cache hit", "module", req.ID)
	return &graph.Cached{Code: t.Code, Loaders: t.Loaders, Emitted: t.Emitted}, nil
}

func (c *Cache) writeBack(ctx context.Context, m *graph.Module) error {
	c.mu.Lock()
	key, ok := c.pending[m.Resource]
	delete(c.pending, m.Resource)
	c.mu.Unlock()
	if !ok {
		return nil
	}

	c.logger.DebugContext(ctx, "cache store", "module", m.ID)
	return c.store.PutTransform(ctx, store.Transform{
		Key:      key,
		Resource: m.Resource,
		Code:     m.Transformed,
		Loaders:  m.Loaders,
		Emitted:  m.Emitted,
	})
}

func (c *Cache) record(ctx context.Context, rc *hooks.RunContext, stats *compiler.Stats) error {
	c.mu.Lock()
	hits, misses := c.hits, c.misses
	c.mu.Unlock()

	rc.Set(ContextCacheHits, hits)
	rc.Set(ContextCacheMisses, misses)

	err := c.store.WriteBuild(ctx, store.Build{
		RunID:       stats.RunID,
		EntryID:     stats.EntryID,
		Output:      stats.Output,
		Modules:     stats.Modules,
		Assets:      stats.Assets,
		CacheHits:   hits,
		CacheMisses: misses,
		Duration:    stats.Duration,
	})
	if err != nil {
		return err
	}

	if limit := c.IntOption("maxSize", 0); limit > 0 {
		removed, err := c.store.Prune(ctx, limit)
		if err != nil {
			return err
		}
		if removed > 0 {
			c.logger.DebugContext(ctx, "cache pruned", "removed", removed)
		}
	}
	return nil
}

func (c *Cache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits, c.misses = 0, 0
	clear(c.pending)
}

// loaderSpecs describes refs for keying, in declaration order.
func loaderSpecs(refs []loader.Ref) []store.LoaderSpec {
	specs := make([]store.LoaderSpec, 0, len(refs))
	for _, ref := range refs {
		spec := store.LoaderSpec{Name: ref.AppliedName(), Options: ref.Options}
		if f, ok := ref.Loader.(Fingerprinter); ok {
			spec.Fingerprint = f.Fingerprint()
		}
		specs = append(specs, spec)
	}
	return specs
}
