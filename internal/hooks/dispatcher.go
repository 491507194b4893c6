package hooks

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Mode is the dispatch mode a hook is declared with.
type Mode int

const (
	// SequentialVoid calls every callback in order and ignores results.
	SequentialVoid Mode = iota + 1
	// SequentialAwaited calls every callback in order; each completes before the next starts.
	SequentialAwaited
	// ConcurrentAwaited runs all callbacks concurrently and waits for all of them.
	ConcurrentAwaited
	// ShortCircuit stops at the first callback returning a non-nil value.
	ShortCircuit
	// ValueThreading threads an accumulator through every callback.
	ValueThreading
)

// String returns the mode name used in errors and logs.
func (m Mode) String() string {
	switch m {
	case SequentialVoid:
		return "sequential-void"
	case SequentialAwaited:
		return "sequential-awaited"
	case ConcurrentAwaited:
		return "concurrent-awaited"
	case ShortCircuit:
		return "short-circuit"
	case ValueThreading:
		return "value-threading"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// DefaultPriority is used by Attach when no WithPriority option is given.
const DefaultPriority = 10

// Callback is attached to a hook.
//
// A nil result means "absent". For ValueThreading hooks args[0] is the
// current accumulator and the result replaces it.
type Callback func(ctx context.Context, args ...any) (any, error)

// AttachOption configures a single Attach call.
type AttachOption func(*entry)

// WithPriority sets the callback priority. Lower runs first.
func WithPriority(priority int) AttachOption {
	return func(e *entry) {
		e.priority = priority
	}
}

type entry struct {
	callback Callback
	priority int
}

type hook struct {
	mode    Mode
	entries []entry
}

// HookInfo describes a declared hook.
type HookInfo struct {
	Name      string
	Mode      Mode
	Callbacks int
}

// Dispatcher is the hook registry and plugin manager.
//
// Declare, Attach, Register, Remove and Clear are expected to be called
// from the single control flow that owns the build. Invocation takes a
// snapshot of the callback list, so a callback may attach further callbacks
// without affecting the stage already in progress.
type Dispatcher struct {
	mu      sync.RWMutex
	hooks   map[string]*hook
	order   []string // declaration order, for introspection
	plugins []Plugin
	context *RunContext
	logger  *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for warnings and debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates an empty Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		hooks:   make(map[string]*hook),
		context: NewRunContext(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Declare registers a hook name with a dispatch mode.
//
// Redeclaring with the same mode is a no-op. Redeclaring with a different
// mode fails with MODE_CONFLICT.
func (d *Dispatcher) Declare(name string, mode Mode) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.hooks[name]; ok {
		if existing.mode != mode {
			return &Error{
				Code:    ErrCodeModeConflict,
				Hook:    name,
				Message: fmt.Sprintf("already declared as %s, cannot redeclare as %s", existing.mode, mode),
			}
		}
		return nil
	}

	d.hooks[name] = &hook{mode: mode}
	d.order = append(d.order, name)
	return nil
}

// Attach adds a callback to a declared hook.
//
// Fails with UNKNOWN_HOOK if name was never declared. The callback list is
// re-sorted by priority after every insert; the sort is stable so equal
// priorities keep attachment order.
func (d *Dispatcher) Attach(name string, cb Callback, opts ...AttachOption) error {
	e := entry{callback: cb, priority: DefaultPriority}
	for _, opt := range opts {
		opt(&e)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	h, ok := d.hooks[name]
	if !ok {
		return unknownHookError(name)
	}

	h.entries = append(h.entries, e)
	slices.SortStableFunc(h.entries, func(a, b entry) int {
		return cmp.Compare(a.priority, b.priority)
	})
	return nil
}

// lookup returns the mode and a snapshot of the callbacks for name.
func (d *Dispatcher) lookup(name string) (Mode, []entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	h, ok := d.hooks[name]
	if !ok {
		return 0, nil, false
	}
	return h.mode, slices.Clone(h.entries), true
}

// Invoke dispatches name according to its declared mode.
//
// Undeclared hooks are a silent no-op returning (nil, nil). For
// ValueThreading hooks args[0] is the seed.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	mode, entries, ok := d.lookup(name)
	if !ok {
		return nil, nil
	}

	d.logger.Debug("invoking hook", "hook", name, "mode", mode.String(), "callbacks", len(entries))

	switch mode {
	case SequentialVoid:
		return nil, d.callSeries(ctx, name, entries, args, false)
	case SequentialAwaited:
		return nil, d.callSeries(ctx, name, entries, args, true)
	case ConcurrentAwaited:
		return nil, d.callParallel(ctx, name, entries, args)
	case ShortCircuit:
		return d.callBail(ctx, name, entries, args)
	case ValueThreading:
		var seed any
		if len(args) > 0 {
			seed = args[0]
		}
		return d.callWaterfall(ctx, name, entries, seed, args)
	default:
		return nil, fmt.Errorf("hook %q has invalid mode %s", name, mode)
	}
}

// CallSync invokes a SequentialVoid hook.
func (d *Dispatcher) CallSync(ctx context.Context, name string, args ...any) error {
	mode, entries, ok := d.lookup(name)
	if !ok {
		return nil
	}
	if mode != SequentialVoid {
		return modeMismatchError(name, mode, SequentialVoid.String())
	}
	d.logger.Debug("invoking hook", "hook", name, "mode", mode.String(), "callbacks", len(entries))
	return d.callSeries(ctx, name, entries, args, false)
}

// CallAsync invokes a SequentialAwaited or ConcurrentAwaited hook.
func (d *Dispatcher) CallAsync(ctx context.Context, name string, args ...any) error {
	mode, entries, ok := d.lookup(name)
	if !ok {
		return nil
	}
	d.logger.Debug("invoking hook", "hook", name, "mode", mode.String(), "callbacks", len(entries))
	switch mode {
	case SequentialAwaited:
		return d.callSeries(ctx, name, entries, args, true)
	case ConcurrentAwaited:
		return d.callParallel(ctx, name, entries, args)
	default:
		return modeMismatchError(name, mode, "awaited")
	}
}

// CallBail invokes a ShortCircuit hook and returns the first non-nil result.
func (d *Dispatcher) CallBail(ctx context.Context, name string, args ...any) (any, error) {
	mode, entries, ok := d.lookup(name)
	if !ok {
		return nil, nil
	}
	if mode != ShortCircuit {
		return nil, modeMismatchError(name, mode, ShortCircuit.String())
	}
	d.logger.Debug("invoking hook", "hook", name, "mode", mode.String(), "callbacks", len(entries))
	return d.callBail(ctx, name, entries, args)
}

// CallWaterfall invokes a ValueThreading hook seeded with initial.
// An undeclared hook returns initial unchanged.
func (d *Dispatcher) CallWaterfall(ctx context.Context, name string, initial any, args ...any) (any, error) {
	mode, entries, ok := d.lookup(name)
	if !ok {
		return initial, nil
	}
	if mode != ValueThreading {
		return nil, modeMismatchError(name, mode, ValueThreading.String())
	}
	d.logger.Debug("invoking hook", "hook", name, "mode", mode.String(), "callbacks", len(entries))
	return d.callWaterfall(ctx, name, entries, initial, append([]any{initial}, args...))
}

func (d *Dispatcher) callSeries(ctx context.Context, name string, entries []entry, args []any, awaited bool) error {
	for _, e := range entries {
		if awaited {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if _, err := invokeEntry(ctx, name, e, args); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) callParallel(ctx context.Context, name string, entries []entry, args []any) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		g.Go(func() error {
			_, err := invokeEntry(gctx, name, e, args)
			return err
		})
	}
	return g.Wait()
}

func (d *Dispatcher) callBail(ctx context.Context, name string, entries []entry, args []any) (any, error) {
	for _, e := range entries {
		result, err := invokeEntry(ctx, name, e, args)
		if err != nil {
			return nil, err
		}
		if !isAbsent(result) {
			return result, nil
		}
	}
	return nil, nil
}

// callWaterfall threads acc through entries. args[0] is the seed slot and
// is replaced by the accumulator for every call; the remaining args are
// passed through unchanged.
func (d *Dispatcher) callWaterfall(ctx context.Context, name string, entries []entry, acc any, args []any) (any, error) {
	callArgs := slices.Clone(args)
	if len(callArgs) == 0 {
		callArgs = []any{acc}
	}
	for _, e := range entries {
		callArgs[0] = acc
		result, err := invokeEntry(ctx, name, e, callArgs)
		if err != nil {
			return nil, err
		}
		acc = result
	}
	return acc, nil
}

// invokeEntry runs one callback, turning panics into errors.
func invokeEntry(ctx context.Context, name string, e entry, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{
				Code:    ErrCodeCallback,
				Hook:    name,
				Message: "callback panicked",
				Err:     fmt.Errorf("%v", r),
			}
		}
	}()

	result, err = e.callback(ctx, args...)
	if err != nil {
		return nil, &Error{
			Code:    ErrCodeCallback,
			Hook:    name,
			Message: "callback failed",
			Err:     err,
		}
	}
	return result, nil
}

// isAbsent reports whether v is nil or a typed nil pointer, map, slice,
// func, chan or interface.
func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// Context returns the run context shared by all plugins.
func (d *Dispatcher) Context() *RunContext {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.context
}

// Hooks lists declared hooks in declaration order.
func (d *Dispatcher) Hooks() []HookInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	infos := make([]HookInfo, 0, len(d.order))
	for _, name := range d.order {
		h := d.hooks[name]
		infos = append(infos, HookInfo{Name: name, Mode: h.mode, Callbacks: len(h.entries)})
	}
	return infos
}
