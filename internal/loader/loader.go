package loader

import (
	"context"
	"errors"
	"maps"
	"sync"
)

// Mode is the build mode exposed to loaders.
type Mode string

const (
	// Development is the default build mode.
	Development Mode = "development"
	// Production enables production-only behavior in loaders.
	Production Mode = "production"
)

// Valid reports whether m is a known build mode.
func (m Mode) Valid() bool {
	return m == Development || m == Production
}

// Loader transforms one resource's source text.
type Loader interface {
	Load(lc *Context, source string) (Result, error)
}

// Func adapts a function to the Loader interface.
type Func func(lc *Context, source string) (Result, error)

// Load calls f.
func (f Func) Load(lc *Context, source string) (Result, error) {
	return f(lc, source)
}

// Ref is a loader reference that the host has already resolved.
type Ref struct {
	// Name is recorded in Module.Loaders. Empty means "anonymousLoader".
	Name string

	// Loader is the resolved transform.
	Loader Loader

	// Options are exposed to the loader through Context.Options.
	Options map[string]any
}

// AnonymousName is recorded for refs without a name.
const AnonymousName = "anonymousLoader"

// AppliedName returns the name recorded when r runs.
func (r Ref) AppliedName() string {
	if r.Name == "" {
		return AnonymousName
	}
	return r.Name
}

// Result is what a loader returns. The zero Result passes the input through.
type Result struct {
	code     string
	set      bool
	deferred *Deferred
}

// Text returns a synchronous result.
func Text(code string) Result {
	return Result{code: code, set: true}
}

// Pass returns a pass-through result: the loader's input becomes its output.
func Pass() Result {
	return Result{}
}

// Await returns a result that completes when d settles.
func Await(d *Deferred) Result {
	return Result{deferred: d}
}

// Deferred is a completion handle resolved after the loader returns.
// Only the first settlement counts; later calls are ignored.
type Deferred struct {
	once sync.Once
	done chan struct{}
	code string
	set  bool
	err  error
}

// NewDeferred creates an unsettled Deferred.
func NewDeferred() *Deferred {
	return &Deferred{done: make(chan struct{})}
}

// Resolve completes with code.
func (d *Deferred) Resolve(code string) {
	d.settle(code, true, nil)
}

// Done completes without a result; the loader input passes through.
func (d *Deferred) Done() {
	d.settle("", false, nil)
}

// Reject completes with err.
func (d *Deferred) Reject(err error) {
	if err == nil {
		err = errors.New("deferred rejected")
	}
	d.settle("", false, err)
}

// Complete settles d callback-style: a non-nil err rejects, otherwise a
// non-nil code resolves and a nil code passes the input through.
func (d *Deferred) Complete(err error, code *string) {
	switch {
	case err != nil:
		d.Reject(err)
	case code != nil:
		d.Resolve(*code)
	default:
		d.Done()
	}
}

func (d *Deferred) settle(code string, set bool, err error) {
	d.once.Do(func() {
		d.code, d.set, d.err = code, set, err
		close(d.done)
	})
}

// wait blocks until d settles or ctx is done.
func (d *Deferred) wait(ctx context.Context) (string, bool, error) {
	select {
	case <-d.done:
		return d.code, d.set, d.err
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// Context is handed to each loader invocation. Its fields are read-only;
// EmitFile and AddDependency are the only side effects.
type Context struct {
	ctx          context.Context
	resourcePath string
	rootContext  string
	mode         Mode
	options      map[string]any
	emit         func(name, content string)
	addDep       func(path string)

	mu       sync.Mutex
	deferred *Deferred
}

// Context returns the build's context.Context.
func (lc *Context) Context() context.Context {
	return lc.ctx
}

// ResourcePath is the absolute path of the file being transformed.
func (lc *Context) ResourcePath() string {
	return lc.resourcePath
}

// RootContext is the entry file's directory.
func (lc *Context) RootContext() string {
	return lc.rootContext
}

// Mode is the build mode.
func (lc *Context) Mode() Mode {
	return lc.mode
}

// Options returns a copy of the loader's options.
func (lc *Context) Options() map[string]any {
	return maps.Clone(lc.options)
}

// Option returns one option, or def when unset.
func (lc *Context) Option(key string, def any) any {
	if v, ok := lc.options[key]; ok && v != nil {
		return v
	}
	return def
}

// EmitFile adds an extra output asset.
func (lc *Context) EmitFile(name, content string) {
	if lc.emit != nil {
		lc.emit(name, content)
	}
}

// AddDependency declares an extra file dependency. It is recorded in
// Output.Dependencies but does not affect the module graph.
func (lc *Context) AddDependency(path string) {
	if lc.addDep != nil {
		lc.addDep(path)
	}
}

// Async switches the current loader to deferred completion and returns the
// handle the pipeline waits on. The loader's return value is then ignored.
// Repeated calls return the same handle.
func (lc *Context) Async() *Deferred {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.deferred == nil {
		lc.deferred = NewDeferred()
	}
	return lc.deferred
}

func (lc *Context) asyncHandle() *Deferred {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.deferred
}
