package config

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"strings"

	"github.com/roach88/minipack/internal/compiler"
	"github.com/roach88/minipack/internal/hooks"
	"github.com/roach88/minipack/internal/loader"
	"github.com/roach88/minipack/internal/loaders"
	"github.com/roach88/minipack/internal/plugins"
	"github.com/roach88/minipack/internal/script"
)

// ScriptExt marks a loader handle as a Starlark script path.
const ScriptExt = ".star"

// ResolveOptions controls Resolve.
type ResolveOptions struct {
	// BaseDir anchors relative paths. Normally the config file's directory.
	BaseDir string

	// Mode, when set, overrides the file's mode.
	Mode loader.Mode

	// Env is handed to plugin constructors.
	Env plugins.Env

	Logger *slog.Logger
}

// Resolve turns f into a compiler.Config: paths are made absolute, loader
// handles and plugin names are looked up. Plugins already built are stopped
// if a later one fails.
func Resolve(f *File, opts ResolveOptions) (compiler.Config, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Env.Logger == nil {
		opts.Env.Logger = opts.Logger
	}

	mode := loader.Mode(f.Mode)
	if opts.Mode != "" {
		mode = opts.Mode
	}
	if mode != "" && !mode.Valid() {
		return compiler.Config{}, &Error{
			Code:    ErrCodeInvalid,
			Message: fmt.Sprintf("mode must be one of development, production, got %q", mode),
		}
	}

	cfg := compiler.Config{
		Entry: absPath(opts.BaseDir, f.Entry),
		Output: compiler.Output{
			Path:     absPath(opts.BaseDir, f.Output.Path),
			Filename: f.Output.Filename,
		},
		Mode:   mode,
		Logger: opts.Logger,
	}

	for i, spec := range f.Rules {
		rule, err := resolveRule(spec, opts)
		if err != nil {
			return compiler.Config{}, fmt.Errorf("rules[%d]: %w", i, err)
		}
		cfg.Rules = append(cfg.Rules, rule)
	}

	for i, spec := range f.Plugins {
		p, err := resolvePlugin(spec, opts)
		if err != nil {
			stopAll(cfg.Plugins, opts.Logger)
			return compiler.Config{}, fmt.Errorf("plugins[%d]: %w", i, err)
		}
		cfg.Plugins = append(cfg.Plugins, p)
	}
	return cfg, nil
}

func resolveRule(spec RuleSpec, opts ResolveOptions) (loader.Rule, error) {
	var patterns []loader.Pattern
	if spec.Test != "" {
		p, err := loader.Regexp(spec.Test)
		if err != nil {
			return loader.Rule{}, &Error{Code: ErrCodeInvalid, Message: err.Error(), Err: err}
		}
		patterns = append(patterns, p)
	}
	if spec.Include != "" {
		p, err := loader.Glob(spec.Include)
		if err != nil {
			return loader.Rule{}, &Error{Code: ErrCodeInvalid, Message: err.Error(), Err: err}
		}
		patterns = append(patterns, p)
	}
	if len(patterns) == 0 {
		return loader.Rule{}, &Error{Code: ErrCodeInvalid, Message: "test or include is required"}
	}

	rule := loader.Rule{Pattern: loader.All(patterns...)}
	for _, use := range spec.Use {
		ref, err := resolveLoader(use, opts)
		if err != nil {
			return loader.Rule{}, err
		}
		rule.Use = append(rule.Use, ref)
	}
	return rule, nil
}

// resolveLoader maps a handle to a builtin or, for *.star, a script.
func resolveLoader(use UseSpec, opts ResolveOptions) (loader.Ref, error) {
	ref := loader.Ref{Name: use.Loader, Options: maps.Clone(use.Options)}

	if strings.EqualFold(filepath.Ext(use.Loader), ScriptExt) {
		s, err := script.LoadFile(absPath(opts.BaseDir, use.Loader), script.WithLogger(opts.Logger))
		if err != nil {
			return loader.Ref{}, &Error{
				Code:    ErrCodeLoaderUnresolved,
				Message: fmt.Sprintf("loader script %s: %v", use.Loader, err),
				Err:     err,
			}
		}
		ref.Name = s.Name()
		ref.Loader = s
		return ref, nil
	}

	l, ok := loaders.Lookup(use.Loader)
	if !ok {
		return loader.Ref{}, &Error{
			Code:    ErrCodeLoaderUnresolved,
			Message: fmt.Sprintf("unknown loader %q (builtins: %s; or a %s script path)", use.Loader, strings.Join(loaders.Names(), ", "), ScriptExt),
		}
	}
	ref.Loader = l
	return ref, nil
}

// resolvePlugin builds a plugin. A string option named path is resolved
// against BaseDir.
func resolvePlugin(spec PluginSpec, opts ResolveOptions) (hooks.Plugin, error) {
	options := hooks.Options(maps.Clone(spec.Options))
	if p, ok := options["path"].(string); ok && p != "" {
		options["path"] = absPath(opts.BaseDir, p)
	}

	p, err := plugins.New(spec.Name, options, opts.Env)
	if err != nil {
		if errors.Is(err, plugins.ErrUnknownPlugin) {
			return nil, &Error{
				Code:    ErrCodePluginUnknown,
				Message: fmt.Sprintf("unknown plugin %q (known: %s)", spec.Name, strings.Join(plugins.Names(), ", ")),
				Err:     err,
			}
		}
		return nil, &Error{Code: ErrCodeInvalid, Message: err.Error(), Err: err}
	}
	return p, nil
}

func stopAll(ps []hooks.Plugin, logger *slog.Logger) {
	for _, p := range ps {
		if s, ok := p.(hooks.Stopper); ok {
			if err := s.Stop(); err != nil {
				logger.Warn("stopping plugin", "plugin", p.Name(), "error", err)
			}
		}
	}
}

func absPath(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, filepath.FromSlash(path))
}
