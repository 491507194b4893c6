package plugins

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/minipack/internal/compiler"
	"github.com/roach88/minipack/internal/hooks"
	"github.com/roach88/minipack/internal/testutil"
)

var simpleProject = map[string]string{
	"src/index.js": "const msg = require('./msg')\nconsole.log(msg)",
	"src/msg.js":   "module.exports = 'hi'",
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func configFor(root string) compiler.Config {
	return compiler.Config{
		Entry:  filepath.Join(root, "src", "index.js"),
		Output: compiler.Output{Path: filepath.Join(root, "dist"), Filename: "bundle.js"},
		Logger: discardLogger(),
	}
}

// build runs one compile with plugins registered and run id "run-1".
func build(t *testing.T, cfg compiler.Config, plugins ...hooks.Plugin) (*compiler.Compiler, *compiler.Result, error) {
	t.Helper()
	return buildWithIDs(t, cfg, testutil.NewFixedIDGenerator("run-1"), plugins...)
}

func buildWithIDs(t *testing.T, cfg compiler.Config, ids compiler.IDGenerator, plugins ...hooks.Plugin) (*compiler.Compiler, *compiler.Result, error) {
	t.Helper()
	cfg.Plugins = plugins
	c, err := compiler.New(cfg, compiler.WithIDGenerator(ids))
	require.NoError(t, err)
	res, err := c.Run(context.Background())
	return c, res, err
}

// failing aborts every run at the compile stage.
func failing() hooks.Plugin {
	return hooks.NewFunc("failing", func(d *hooks.Dispatcher) error {
		return d.Attach(compiler.HookCompile, func(context.Context, ...any) (any, error) {
			return nil, errBoom
		})
	})
}

var errBoom = errors.New("boom")
