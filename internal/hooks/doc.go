// Package hooks implements the named-hook dispatcher that the compiler uses
// to expose its lifecycle to plugins.
//
// A hook is declared once with a dispatch Mode. Plugins attach prioritized
// callbacks to declared hooks from their Apply method, and the compiler
// invokes hooks by name at well-defined points of a run.
//
// Dispatch modes:
//   - SequentialVoid: every callback in order, results ignored
//   - SequentialAwaited: every callback in order, each completes before the next
//   - ConcurrentAwaited: all callbacks at once, the stage waits for all of them
//   - ShortCircuit: callbacks in order until one returns a non-nil value
//   - ValueThreading: an accumulator is passed through every callback
//
// Callbacks run in ascending priority order. Callbacks with equal priority
// keep their attachment order.
//
// Attaching to an undeclared hook is an error (UNKNOWN_HOOK). Invoking an
// undeclared hook is a silent no-op, so callers may probe optional
// extension points without declaring them first.
//
// The dispatcher also owns the run context, a key/value store that plugins
// use to hand data to each other across stages. It is only reset by Clear.
package hooks
