package graph

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/minipack/internal/loader"
	"github.com/roach88/minipack/internal/resolve"
	"github.com/roach88/minipack/internal/testutil"
)

func newBuilder(root string, opts ...Option) *Builder {
	return NewBuilder(resolve.New(root), opts...)
}

func ids(g *Graph) []string {
	var out []string
	for _, m := range g.Modules() {
		out = append(out, m.ID)
	}
	return out
}

func TestBuildThreeModuleGraph(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"index.js":  "const a = require('./a')\nconst b = require('./lib/b.js')",
		"a.js":      "module.exports = 'a'",
		"lib/b.js":  "module.exports = 'b'",
		"unused.js": "",
	})

	g, entryID, err := newBuilder(root).Build(context.Background(), filepath.Join(root, "index.js"))

	require.NoError(t, err)
	assert.Equal(t, "./index.js", entryID)
	assert.Equal(t, []string{"./index.js", "./a.js", "./lib/b.js"}, ids(g))

	entry, ok := g.Get(filepath.Join(root, "index.js"))
	require.True(t, ok)
	assert.Equal(t, map[string]string{"./a": "./a.js", "./lib/b.js": "./lib/b.js"}, entry.Mapping)
	assert.Equal(t, entry.Source, entry.Transformed)
	assert.Empty(t, entry.Loaders)
}

func TestBuildCycleTerminates(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"a.js": "require('./b')",
		"b.js": "require('./a')",
	})

	g, _, err := newBuilder(root).Build(context.Background(), filepath.Join(root, "a.js"))

	require.NoError(t, err)
	assert.Equal(t, []string{"./a.js", "./b.js"}, ids(g))
	b, _ := g.Get(filepath.Join(root, "b.js"))
	assert.Equal(t, map[string]string{"./a": "./a.js"}, b.Mapping)
}

func TestSharedDependencyBuiltOnce(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"index.js":  "require('./x'); require('./y')",
		"x.js":      "require('./shared')",
		"y.js":      "require('./shared')",
		"shared.js": "",
	})

	g, _, err := newBuilder(root).Build(context.Background(), filepath.Join(root, "index.js"))

	require.NoError(t, err)
	// Depth first: shared is reached through x before y is visited.
	assert.Equal(t, []string{"./index.js", "./x.js", "./shared.js", "./y.js"}, ids(g))
}

func TestMissingDependencyFailsAtRead(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"index.js": "require('./missing')",
	})

	_, _, err := newBuilder(root).Build(context.Background(), filepath.Join(root, "index.js"))

	require.Error(t, err)
	assert.True(t, IsReadError(err))
	assert.ErrorIs(t, err, os.ErrNotExist)

	var re *ReadError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, filepath.Join(root, "missing"), re.Resource)
	assert.Equal(t, "./index.js", re.Requester)
	assert.Contains(t, err.Error(), "required by ./index.js")
}

func TestMissingEntry(t *testing.T) {
	root := t.TempDir()

	_, _, err := newBuilder(root).Build(context.Background(), filepath.Join(root, "nope.js"))

	require.Error(t, err)
	assert.True(t, IsReadError(err))
	assert.Contains(t, err.Error(), "cannot read entry")
}

func TestDependenciesComeFromTransformedCode(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"index.js": "ENTRY",
		"dep.js":   "",
	})
	inject := loader.Ref{Name: "inject", Loader: loader.Func(func(lc *loader.Context, source string) (loader.Result, error) {
		if source == "ENTRY" {
			return loader.Text("require('./dep')"), nil
		}
		return loader.Pass(), nil
	})}

	b := newBuilder(root, WithRules([]loader.Rule{{Pattern: loader.MustRegexp(`\.js$`), Use: []loader.Ref{inject}}}))
	g, _, err := b.Build(context.Background(), filepath.Join(root, "index.js"))

	require.NoError(t, err)
	assert.Equal(t, []string{"./index.js", "./dep.js"}, ids(g))
	entry, _ := g.Get(filepath.Join(root, "index.js"))
	assert.Equal(t, "ENTRY", entry.Source)
	assert.Equal(t, []string{"inject"}, entry.Loaders)
}

func TestLoaderFailureAbortsBuild(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{"index.js": ""})
	failing := loader.Ref{Name: "bad", Loader: loader.Func(func(lc *loader.Context, source string) (loader.Result, error) {
		return loader.Result{}, errors.New("nope")
	})}

	b := newBuilder(root, WithRules([]loader.Rule{{Pattern: loader.MustRegexp(`.`), Use: []loader.Ref{failing}}}))
	_, _, err := b.Build(context.Background(), filepath.Join(root, "index.js"))

	require.Error(t, err)
	assert.True(t, loader.IsLoaderError(err))
}

func TestBeforeLoadSkipsPipelineAndReplaysEmits(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{"index.js": "raw"})
	var pipelineRan bool
	spy := loader.Ref{Name: "spy", Loader: loader.Func(func(lc *loader.Context, source string) (loader.Result, error) {
		pipelineRan = true
		return loader.Pass(), nil
	})}
	emitted := map[string]string{}

	var seen *Request
	b := newBuilder(root,
		WithRules([]loader.Rule{{Pattern: loader.MustRegexp(`.`), Use: []loader.Ref{spy}}}),
		WithMode(loader.Production),
		WithEmitFile(func(name, content string) { emitted[name] = content }),
		WithBeforeLoad(func(ctx context.Context, req *Request) (*Cached, error) {
			seen = req
			return &Cached{Code: "cached", Loaders: []string{"spy"}, Emitted: map[string]string{"side.txt": "s"}}, nil
		}),
	)
	g, _, err := b.Build(context.Background(), filepath.Join(root, "index.js"))

	require.NoError(t, err)
	assert.False(t, pipelineRan)
	require.NotNil(t, seen)
	assert.Equal(t, "./index.js", seen.ID)
	assert.Equal(t, "raw", seen.Source)
	assert.Equal(t, loader.Production, seen.Mode)
	assert.Equal(t, []string{"spy"}, seen.LoaderNames())

	m, _ := g.Get(filepath.Join(root, "index.js"))
	assert.Equal(t, "cached", m.Transformed)
	assert.Equal(t, []string{"spy"}, m.Loaders)
	assert.Equal(t, map[string]string{"side.txt": "s"}, emitted)
}

func TestAfterModuleSeesInsertionOrder(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"a.js": "require('./b')",
		"b.js": "",
	})
	var order []string

	b := newBuilder(root, WithAfterModule(func(ctx context.Context, m *Module) error {
		order = append(order, m.ID)
		return nil
	}))
	_, _, err := b.Build(context.Background(), filepath.Join(root, "a.js"))

	require.NoError(t, err)
	assert.Equal(t, []string{"./a.js", "./b.js"}, order)
}

func TestAfterModuleErrorAborts(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"a.js": "require('./b')",
		"b.js": "",
	})
	stop := errors.New("stop")
	calls := 0

	b := newBuilder(root, WithAfterModule(func(ctx context.Context, m *Module) error {
		calls++
		return stop
	}))
	_, _, err := b.Build(context.Background(), filepath.Join(root, "a.js"))

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestBuildHonoursCancellation(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{"a.js": ""})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := newBuilder(root).Build(ctx, filepath.Join(root, "a.js"))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestGraphAddIgnoresDuplicates(t *testing.T) {
	g := New()
	g.Add(&Module{ID: "./a.js", Resource: "/a.js"})
	g.Add(&Module{ID: "other", Resource: "/a.js"})

	assert.Equal(t, 1, g.Len())
	m, _ := g.Get("/a.js")
	assert.Equal(t, "./a.js", m.ID)
}
