// Package graph builds the module graph by walking local dependencies
// depth-first from the entry file.
package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/minipack/internal/loader"
	"github.com/roach88/minipack/internal/resolve"
)

// Module is one source file after transformation.
type Module struct {
	// ID is the module id, relative to the root context.
	ID string `json:"id"`

	// Resource is the absolute path.
	Resource string `json:"resource"`

	// Source is the raw file text.
	Source string `json:"source"`

	// Transformed is the loader pipeline output.
	Transformed string `json:"transformed"`

	// Dependencies are the local requests found in Transformed.
	Dependencies []resolve.Edge `json:"dependencies"`

	// Mapping maps each request string to a module id.
	Mapping map[string]string `json:"mapping"`

	// Loaders lists the applied loader names in execution order.
	Loaders []string `json:"loaders"`

	// Emitted holds files the loaders emitted for this module.
	Emitted map[string]string `json:"emitted,omitempty"`
}

// Request describes a module about to be transformed. Hooks that supply a
// cached transform key on it.
type Request struct {
	ID       string
	Resource string
	Source   string
	Loaders  []loader.Ref
	Mode     loader.Mode

	// RootContext is the directory ids are relative to. Loaders see it, so
	// a cached transform is only valid under the same root.
	RootContext string
}

// LoaderNames returns the applied names of r.Loaders in execution order.
func (r *Request) LoaderNames() []string {
	names := make([]string, 0, len(r.Loaders))
	for _, ref := range slices.Backward(r.Loaders) {
		names = append(names, ref.AppliedName())
	}
	return names
}

// Cached is a previously computed transform that replaces a pipeline run.
type Cached struct {
	Code    string            `json:"code"`
	Loaders []string          `json:"loaders"`
	Emitted map[string]string `json:"emitted,omitempty"`
}

// Graph is an insertion-ordered map of absolute path to module.
// It is touched only by the goroutine running the build.
type Graph struct {
	order   []string
	modules map[string]*Module
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{modules: make(map[string]*Module)}
}

// Has reports whether resource is already in the graph.
func (g *Graph) Has(resource string) bool {
	_, ok := g.modules[resource]
	return ok
}

// Get returns the module for resource.
func (g *Graph) Get(resource string) (*Module, bool) {
	m, ok := g.modules[resource]
	return m, ok
}

// Add inserts m. Adding an existing resource is ignored.
func (g *Graph) Add(m *Module) {
	if g.Has(m.Resource) {
		return
	}
	g.order = append(g.order, m.Resource)
	g.modules[m.Resource] = m
}

// Modules returns the modules in insertion order.
func (g *Graph) Modules() []*Module {
	out := make([]*Module, 0, len(g.order))
	for _, r := range g.order {
		out = append(out, g.modules[r])
	}
	return out
}

// Len returns the number of modules.
func (g *Graph) Len() int {
	return len(g.order)
}

// ReadError reports a module file that could not be read. Resolution never
// fails on its own; a request that points nowhere surfaces here.
type ReadError struct {
	// Resource is the path that failed to read.
	Resource string

	// Requester is the id of the module that asked for it; empty for the entry.
	Requester string

	Err error
}

func (e *ReadError) Error() string {
	if e.Requester == "" {
		return fmt.Sprintf("RESOLUTION_FAILED: cannot read entry %s: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("RESOLUTION_FAILED: cannot read %s (required by %s): %v", e.Resource, e.Requester, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// IsReadError returns true if err is a ReadError.
func IsReadError(err error) bool {
	var re *ReadError
	return errors.As(err, &re)
}
