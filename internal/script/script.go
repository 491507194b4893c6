// Package script runs loaders written in Starlark.
//
// A loader script defines a transform function:
//
//	def transform(source, ctx):
//	    ctx.emit_file(ctx.resource_path + ".len", str(len(source)))
//	    return source.replace("__MODE__", ctx.mode)
//
// Returning None passes the source through unchanged. ctx exposes
// resource_path, root_context, mode, options (a dict), emit_file(name,
// content) and add_dependency(path).
package script

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/roach88/minipack/internal/loader"
)

// EntryPoint is the function a loader script must define.
const EntryPoint = "transform"

// DefaultMaxSteps bounds one transform call.
const DefaultMaxSteps = 10_000_000

// Script is a compiled Starlark loader. Its globals are frozen after
// loading, so one Script may serve concurrent pipeline runs.
type Script struct {
	name      string
	digest    string
	transform starlark.Callable
	maxSteps  uint64
	logger    *slog.Logger
}

// Option configures a Script.
type Option func(*Script)

// WithMaxSteps overrides DefaultMaxSteps. Zero means unlimited.
func WithMaxSteps(n uint64) Option {
	return func(s *Script) {
		s.maxSteps = n
	}
}

// WithLogger receives the script's print output at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Script) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// LoadFile reads and compiles the script at path.
func LoadFile(path string, opts ...Option) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read loader script: %w", err)
	}
	return Compile(path, string(src), opts...)
}

// Compile executes src once to collect its globals and checks that it
// defines EntryPoint.
func Compile(filename, src string, opts ...Option) (*Script, error) {
	s := &Script{
		name:     strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)),
		digest:   digest(src),
		maxSteps: DefaultMaxSteps,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	thread := s.thread()
	predeclared := starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
	globals, err := starlark.ExecFile(thread, filename, src, predeclared)
	if err != nil {
		return nil, fmt.Errorf("starlark execution failed: %w", err)
	}
	globals.Freeze()

	fn, ok := globals[EntryPoint].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("%s: script must define a %s(source, ctx) function", filename, EntryPoint)
	}
	s.transform = fn
	return s, nil
}

// Name is the script's base name without extension.
func (s *Script) Name() string {
	return s.name
}

// Fingerprint identifies the script text. Caches fold it into their keys
// so editing a script invalidates what it produced.
func (s *Script) Fingerprint() string {
	return s.digest
}

func digest(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}

func (s *Script) thread() *starlark.Thread {
	thread := &starlark.Thread{
		Name: "minipack/" + s.name,
		Print: func(_ *starlark.Thread, msg string) {
			s.logger.Debug("loader script", "script", s.name, "msg", msg)
		},
	}
	if s.maxSteps > 0 {
		thread.SetMaxExecutionSteps(s.maxSteps)
	}
	return thread
}

// Load implements loader.Loader.
func (s *Script) Load(lc *loader.Context, source string) (loader.Result, error) {
	ctxValue, err := contextValue(lc)
	if err != nil {
		return loader.Result{}, err
	}

	thread := s.thread()
	stop := context.AfterFunc(lc.Context(), func() {
		thread.Cancel(lc.Context().Err().Error())
	})
	defer stop()

	v, err := starlark.Call(thread, s.transform, starlark.Tuple{starlark.String(source), ctxValue}, nil)
	if err != nil {
		return loader.Result{}, fmt.Errorf("starlark execution failed: %w", err)
	}

	switch out := v.(type) {
	case starlark.NoneType:
		return loader.Pass(), nil
	case starlark.String:
		return loader.Text(string(out)), nil
	default:
		return loader.Result{}, fmt.Errorf("%s must return a string or None, got %s", EntryPoint, v.Type())
	}
}

// contextValue exposes the loader context to the script as a struct.
func contextValue(lc *loader.Context) (starlark.Value, error) {
	options, err := toStarlarkValue(map[string]any(lc.Options()))
	if err != nil {
		return nil, fmt.Errorf("convert loader options: %w", err)
	}

	emitFile := starlark.NewBuiltin("emit_file", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name, content string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "content", &content); err != nil {
			return nil, err
		}
		lc.EmitFile(name, content)
		return starlark.None, nil
	})
	addDependency := starlark.NewBuiltin("add_dependency", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var path string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &path); err != nil {
			return nil, err
		}
		lc.AddDependency(path)
		return starlark.None, nil
	})

	return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"resource_path":  starlark.String(lc.ResourcePath()),
		"root_context":   starlark.String(lc.RootContext()),
		"mode":           starlark.String(string(lc.Mode())),
		"options":        options,
		"emit_file":      emitFile,
		"add_dependency": addDependency,
	}), nil
}
