package cli

import (
	"errors"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/roach88/minipack/internal/compiler"
	"github.com/roach88/minipack/internal/config"
	"github.com/roach88/minipack/internal/hooks"
	"github.com/roach88/minipack/internal/loader"
	"github.com/roach88/minipack/internal/plugins"
)

// Error codes reported by commands. Config package codes are passed through.
const (
	ErrCodeBuildFailed = "BUILD_FAILED"
	ErrCodeCacheFailed = "CACHE_FAILED"
	ErrCodeWriteFailed = "WRITE_FAILED"
)

// sessionOptions controls openSession.
type sessionOptions struct {
	mode   string
	env    plugins.Env
	logger *slog.Logger

	// require names plugins added with default options when the config
	// does not list them.
	require []string

	compilerOpts []compiler.Option
}

// session is a loaded config with its compiler ready to run.
type session struct {
	path     string
	file     *config.File
	compiler *compiler.Compiler
}

// Close stops every registered plugin.
func (s *session) Close() error {
	return s.compiler.Hooks().Clear()
}

// openSession loads the config named by the root flags, resolves it and
// creates the compiler.
func (o *RootOptions) openSession(so sessionOptions) (*session, error) {
	path, f, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Resolve(f, config.ResolveOptions{
		BaseDir: filepath.Dir(path),
		Mode:    loader.Mode(so.mode),
		Env:     so.env,
		Logger:  so.logger,
	})
	if err != nil {
		return nil, err
	}

	for _, name := range so.require {
		if slices.ContainsFunc(cfg.Plugins, func(p hooks.Plugin) bool { return p.Name() == name }) {
			continue
		}
		p, err := plugins.New(name, nil, so.env)
		if err != nil {
			stopPlugins(cfg.Plugins)
			return nil, err
		}
		cfg.Plugins = append(cfg.Plugins, p)
	}

	c, err := compiler.New(cfg, so.compilerOpts...)
	if err != nil {
		stopPlugins(cfg.Plugins)
		return nil, err
	}
	return &session{path: path, file: f, compiler: c}, nil
}

func stopPlugins(ps []hooks.Plugin) {
	for _, p := range ps {
		if s, ok := p.(hooks.Stopper); ok {
			_ = s.Stop()
		}
	}
}

// configErrorCode picks the code reported for a failure to open a session.
func configErrorCode(err error) string {
	var cerr *config.Error
	if errors.As(err, &cerr) {
		return cerr.Code
	}
	return config.ErrCodeInvalid
}

// outputConfigError reports a config problem. These are command errors
// (exit code 2).
func outputConfigError(formatter *OutputFormatter, err error) error {
	code := configErrorCode(err)
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, code, err)
}
