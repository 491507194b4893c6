package loader

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wrap returns a loader producing name(source).
func wrap(name string) Ref {
	return Ref{Name: name, Loader: Func(func(lc *Context, source string) (Result, error) {
		return Text(name + "(" + source + ")"), nil
	})}
}

func run(t *testing.T, loaders ...Ref) (*Output, error) {
	t.Helper()
	return Run(context.Background(), Input{
		Resource:    "/src/index.js",
		Source:      "s",
		Loaders:     loaders,
		RootContext: "/src",
		Mode:        Development,
	})
}

func TestRunAppliesRightToLeft(t *testing.T) {
	out, err := run(t, wrap("A"), wrap("B"))

	require.NoError(t, err)
	assert.Equal(t, "A(B(s))", out.Code)
	assert.Equal(t, []string{"B", "A"}, out.Applied)
}

func TestRunWithoutLoadersReturnsSource(t *testing.T) {
	out, err := run(t)

	require.NoError(t, err)
	assert.Equal(t, "s", out.Code)
	assert.Empty(t, out.Applied)
}

func TestPassThroughResult(t *testing.T) {
	pass := Ref{Name: "noop", Loader: Func(func(lc *Context, source string) (Result, error) {
		return Pass(), nil
	})}
	zero := Ref{Loader: Func(func(lc *Context, source string) (Result, error) {
		return Result{}, nil
	})}

	out, err := run(t, wrap("A"), pass, zero)

	require.NoError(t, err)
	assert.Equal(t, "A(s)", out.Code)
	assert.Equal(t, []string{AnonymousName, "noop", "A"}, out.Applied)
}

func TestAsyncHandleMatchesSyncResult(t *testing.T) {
	syncLoader := Ref{Name: "sync", Loader: Func(func(lc *Context, source string) (Result, error) {
		return Text("r"), nil
	})}
	asyncLoader := Ref{Name: "async", Loader: Func(func(lc *Context, source string) (Result, error) {
		done := lc.Async()
		go func() {
			time.Sleep(10 * time.Millisecond)
			done.Resolve("r")
		}()
		// Ignored once Async has been called.
		return Text("ignored"), nil
	})}

	syncOut, err := run(t, syncLoader)
	require.NoError(t, err)
	asyncOut, err := run(t, asyncLoader)
	require.NoError(t, err)

	assert.Equal(t, syncOut.Code, asyncOut.Code)
	assert.Equal(t, "r", asyncOut.Code)
}

func TestAwaitResult(t *testing.T) {
	awaiting := Ref{Name: "await", Loader: Func(func(lc *Context, source string) (Result, error) {
		d := NewDeferred()
		go d.Resolve(strings.ToUpper(source))
		return Await(d), nil
	})}

	out, err := run(t, wrap("A"), awaiting)

	require.NoError(t, err)
	assert.Equal(t, "A(S)", out.Code)
}

func TestDeferredDoneAndCompletePassThrough(t *testing.T) {
	done := Ref{Name: "done", Loader: Func(func(lc *Context, source string) (Result, error) {
		lc.Async().Done()
		return Pass(), nil
	})}
	complete := Ref{Name: "complete", Loader: Func(func(lc *Context, source string) (Result, error) {
		lc.Async().Complete(nil, nil)
		return Pass(), nil
	})}

	out, err := run(t, done, complete)

	require.NoError(t, err)
	assert.Equal(t, "s", out.Code)
}

func TestDeferredFirstSettlementWins(t *testing.T) {
	d := NewDeferred()
	d.Resolve("first")
	d.Reject(errors.New("late"))
	d.Resolve("second")

	code, set, err := d.wait(context.Background())

	require.NoError(t, err)
	assert.True(t, set)
	assert.Equal(t, "first", code)
}

func TestLoaderFailures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name   string
		loader Func
	}{
		{"returned error", func(lc *Context, source string) (Result, error) {
			return Result{}, boom
		}},
		{"panic", func(lc *Context, source string) (Result, error) {
			panic(boom)
		}},
		{"async reject", func(lc *Context, source string) (Result, error) {
			d := lc.Async()
			go d.Complete(boom, nil)
			return Pass(), nil
		}},
		{"await reject", func(lc *Context, source string) (Result, error) {
			d := NewDeferred()
			d.Reject(boom)
			return Await(d), nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var laterRan bool
			later := Ref{Name: "later", Loader: Func(func(lc *Context, source string) (Result, error) {
				laterRan = true
				return Pass(), nil
			})}

			_, err := run(t, later, Ref{Name: "failing", Loader: tt.loader})

			require.Error(t, err)
			assert.True(t, IsLoaderError(err))
			assert.Contains(t, err.Error(), "failing")
			assert.Contains(t, err.Error(), "/src/index.js")
			assert.Contains(t, err.Error(), "boom")
			assert.False(t, laterRan, "pipeline must abort")
		})
	}
}

func TestNilLoaderFails(t *testing.T) {
	_, err := run(t, Ref{Name: "ghost"})

	require.Error(t, err)
	assert.True(t, IsLoaderError(err))
}

func TestAsyncLoaderHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hanging := Ref{Name: "hang", Loader: Func(func(lc *Context, source string) (Result, error) {
		lc.Async()
		cancel()
		return Pass(), nil
	})}

	_, err := Run(ctx, Input{Resource: "/a.js", Source: "s", Loaders: []Ref{hanging}})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestContextExposesBuildInfo(t *testing.T) {
	var seen *Context
	probe := Ref{
		Name:    "probe",
		Options: map[string]any{"flag": true},
		Loader: Func(func(lc *Context, source string) (Result, error) {
			seen = lc
			lc.EmitFile("extra.txt", "hello")
			lc.AddDependency("/src/dep.json")
			return Pass(), nil
		}),
	}

	var forwarded []string
	out, err := Run(context.Background(), Input{
		Resource:    "/src/index.js",
		Source:      "s",
		Loaders:     []Ref{probe},
		RootContext: "/src",
		Mode:        Production,
		EmitFile: func(name, content string) {
			forwarded = append(forwarded, name+"="+content)
		},
	})

	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "/src/index.js", seen.ResourcePath())
	assert.Equal(t, "/src", seen.RootContext())
	assert.Equal(t, Production, seen.Mode())
	assert.Equal(t, true, seen.Option("flag", false))
	assert.Equal(t, "dflt", seen.Option("missing", "dflt"))
	assert.NotNil(t, seen.Context())

	opts := seen.Options()
	opts["flag"] = false
	assert.Equal(t, true, seen.Option("flag", false), "Options returns a copy")

	assert.Equal(t, map[string]string{"extra.txt": "hello"}, out.Emitted)
	assert.Equal(t, []string{"/src/dep.json"}, out.Dependencies)
	assert.Equal(t, []string{"extra.txt=hello"}, forwarded)
}

func TestModeValid(t *testing.T) {
	assert.True(t, Development.Valid())
	assert.True(t, Production.Valid())
	assert.False(t, Mode("staging").Valid())
}
