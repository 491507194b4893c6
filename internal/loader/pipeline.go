package loader

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Input describes one pipeline run.
type Input struct {
	// Resource is the absolute path of the file.
	Resource string

	// Source is the file's current text.
	Source string

	// Loaders is the combined list from Collect, in declaration order.
	Loaders []Ref

	// RootContext is the entry file's directory.
	RootContext string

	// Mode is the build mode.
	Mode Mode

	// EmitFile receives files emitted by loaders. May be nil.
	EmitFile func(name, content string)
}

// Output is the result of a pipeline run.
type Output struct {
	// Code is the transformed text.
	Code string

	// Applied lists the loader names in the order they ran.
	Applied []string

	// Emitted holds the files emitted during this run.
	Emitted map[string]string

	// Dependencies holds paths declared via Context.AddDependency.
	Dependencies []string
}

// Run applies in.Loaders right to left: the last loader receives the
// original source and each earlier loader receives the previous output.
func Run(ctx context.Context, in Input) (*Output, error) {
	rec := &recorder{emitted: make(map[string]string), forward: in.EmitFile}
	out := &Output{Code: in.Source, Applied: make([]string, 0, len(in.Loaders))}

	for i := len(in.Loaders) - 1; i >= 0; i-- {
		ref := in.Loaders[i]
		name := ref.AppliedName()
		out.Applied = append(out.Applied, name)

		lc := &Context{
			ctx:          ctx,
			resourcePath: in.Resource,
			rootContext:  in.RootContext,
			mode:         in.Mode,
			options:      ref.Options,
			emit:         rec.emit,
			addDep:       rec.addDependency,
		}

		code, err := runOne(ctx, ref, lc, out.Code)
		if err != nil {
			return nil, &Error{Loader: name, Resource: in.Resource, Err: err}
		}
		out.Code = code
	}

	out.Emitted, out.Dependencies = rec.snapshot()
	return out, nil
}

// runOne executes a single loader and waits for its completion.
func runOne(ctx context.Context, ref Ref, lc *Context, input string) (string, error) {
	if ref.Loader == nil {
		return "", errors.New("loader is nil")
	}

	res, err := call(ref.Loader, lc, input)
	if err != nil {
		return "", err
	}

	// Async was requested: the return value is ignored.
	d := lc.asyncHandle()
	if d == nil {
		d = res.deferred
	}
	if d != nil {
		code, set, err := d.wait(ctx)
		if err != nil {
			return "", err
		}
		if !set {
			return input, nil
		}
		return code, nil
	}

	if !res.set {
		return input, nil
	}
	return res.code, nil
}

// call invokes l, converting a panic into an error.
func call(l Loader, lc *Context, input string) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return l.Load(lc, input)
}

// recorder collects side effects. Deferred loaders may settle from other
// goroutines, so access is guarded.
type recorder struct {
	mu      sync.Mutex
	emitted map[string]string
	deps    []string
	forward func(name, content string)
}

func (r *recorder) emit(name, content string) {
	r.mu.Lock()
	r.emitted[name] = content
	r.mu.Unlock()
	if r.forward != nil {
		r.forward(name, content)
	}
}

func (r *recorder) addDependency(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deps = append(r.deps, path)
}

func (r *recorder) snapshot() (map[string]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.emitted), slices.Clone(r.deps)
}
