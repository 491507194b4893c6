package plugins

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/minipack/internal/compiler"
	"github.com/roach88/minipack/internal/hooks"
)

func TestNewBuildsEveryNamedPlugin(t *testing.T) {
	env := Env{
		Logger:     discardLogger(),
		Store:      openStore(t),
		Registerer: prometheus.NewRegistry(),
	}

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			p, err := New(name, nil, env)

			require.NoError(t, err)
			assert.Equal(t, name, p.Name())
		})
	}
}

func TestNewUnknownPlugin(t *testing.T) {
	_, err := New("minify", nil, Env{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownPlugin))
	assert.Contains(t, err.Error(), `"minify"`)
}

func TestNewWrapsConstructorErrors(t *testing.T) {
	_, err := New("validation", hooks.Options{"rules": map[string]any{"nope": map[string]any{}}}, Env{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "plugin validation")
}

func TestNewCacheOpensAndOwnsStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	p, err := New("cache", hooks.Options{"path": path}, Env{Logger: discardLogger()})
	require.NoError(t, err)

	c := p.(*Cache)
	require.NotNil(t, c.Store())
	assert.FileExists(t, path)
	require.NoError(t, c.Stop())
}

func TestNewCacheBorrowsEnvStore(t *testing.T) {
	st := openStore(t)

	p, err := New("cache", nil, Env{Store: st})
	require.NoError(t, err)

	c := p.(*Cache)
	assert.Same(t, st, c.Store())
	require.NoError(t, c.Stop())
	// Still usable: the plugin did not close a store it does not own.
	require.NoError(t, st.DB().Ping())
}

func TestPluginsRegisterOnCompiler(t *testing.T) {
	env := Env{Logger: discardLogger(), Store: openStore(t), Registerer: prometheus.NewRegistry()}
	cfg := configFor(t.TempDir())
	for _, name := range Names() {
		p, err := New(name, nil, env)
		require.NoError(t, err)
		cfg.Plugins = append(cfg.Plugins, p)
	}

	c, err := compiler.New(cfg)
	require.NoError(t, err)

	callbacks := map[string]int{}
	for _, info := range c.Hooks().Hooks() {
		callbacks[info.Name] = info.Callbacks
	}
	assert.Len(t, c.Hooks().Plugins(), len(Names()))
	assert.Equal(t, 1, callbacks[compiler.HookLoadModule])
	assert.Equal(t, 1, callbacks[compiler.HookValidateModule])
	assert.Equal(t, 0, callbacks[compiler.HookProcessBundle])
	// logger and cache once, timing and tracing twice each
	assert.Equal(t, 6, callbacks[compiler.HookDone])
}
