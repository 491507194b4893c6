package plugins

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/minipack/internal/compiler"
	"github.com/roach88/minipack/internal/hooks"
)

// DefaultLoggerPrefix labels stage lines when the name option is unset.
const DefaultLoggerPrefix = "minipack"

// Logger writes one line per core stage:
//
//	[minipack] -> beforeRun
//
// It attaches at priority 1 so its line precedes other plugins' work.
type Logger struct {
	hooks.Base
	logger *slog.Logger
}

// NewLogger creates a Logger. Option name sets the prefix.
func NewLogger(opts hooks.Options, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{Base: hooks.NewBase("logger", opts), logger: logger}
}

// Apply attaches to every core stage and to the failed hook.
func (l *Logger) Apply(d *hooks.Dispatcher) error {
	prefix := l.StringOption("name", DefaultLoggerPrefix)

	for _, stage := range compiler.CoreStages {
		line := fmt.Sprintf("[%s] -> %s", prefix, stage)
		err := d.Attach(stage, func(ctx context.Context, _ ...any) (any, error) {
			l.logger.InfoContext(ctx, line)
			return nil, nil
		}, hooks.WithPriority(1))
		if err != nil {
			return err
		}
	}

	return d.Attach(compiler.HookFailed, func(ctx context.Context, args ...any) (any, error) {
		var cause error
		if len(args) > 0 {
			cause, _ = args[0].(error)
		}
		l.logger.ErrorContext(ctx, fmt.Sprintf("[%s] -> %s", prefix, compiler.HookFailed), "error", cause)
		return nil, nil
	}, hooks.WithPriority(1))
}
