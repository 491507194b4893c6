// Package loader runs the chain of source-to-source transforms configured
// for a single resource.
//
// Rules select loaders: every rule whose pattern matches the resource
// contributes its loaders, in rule order, to one combined list. The list is
// then applied right to left, so for [A, B] the output is A(B(source)).
//
// A loader completes in one of three ways:
//   - it returns Text(s) synchronously
//   - it returns Pass() (or the zero Result) and the input passes through
//   - it returns Await(d) or calls Context.Async, and the pipeline waits
//     until the Deferred is resolved, rejected or marked done
//
// Any returned error, panic or rejected Deferred aborts the pipeline with a
// *Error (LoaderFailure).
package loader
