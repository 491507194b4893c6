package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/minipack/internal/graph"
)

// CycleWarning reports a dependency cycle between modules.
//
// Cycles are legal: the runtime registers each module before running its
// factory, so members of a cycle see each other's partial exports.
type CycleWarning struct {
	Path    []string `json:"path"`    // ["./a.js", "./b.js", "./a.js"]
	Message string   `json:"message"`
}

// dependencyGraph maps module id → ids it requires, deduplicated.
type dependencyGraph struct {
	nodes []string
	edges map[string][]string
}

// AnalyzeCycles finds the strongly connected components of the module
// graph and reports each one with more than one member, or a module that
// requires itself. Results follow module insertion order.
func AnalyzeCycles(modules []*graph.Module) []CycleWarning {
	dg := buildDependencyGraph(modules)

	var warnings []CycleWarning
	for _, scc := range tarjanSCC(dg) {
		if len(scc) > 1 || hasSelfLoop(scc[0], dg) {
			warnings = append(warnings, cycleWarning(scc, dg))
		}
	}
	return warnings
}

func buildDependencyGraph(modules []*graph.Module) dependencyGraph {
	dg := dependencyGraph{edges: make(map[string][]string, len(modules))}
	for _, m := range modules {
		dg.nodes = append(dg.nodes, m.ID)
		var out []string
		for _, d := range m.Dependencies {
			if !slices.Contains(out, d.ID) {
				out = append(out, d.ID)
			}
		}
		dg.edges[m.ID] = out
	}
	return dg
}

func hasSelfLoop(node string, dg dependencyGraph) bool {
	return slices.Contains(dg.edges[node], node)
}

// tarjanSCC returns the strongly connected components. Each component
// lists its members in discovery order.
func tarjanSCC(dg dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range dg.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Reverse(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range dg.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	// Report in the order the component roots were inserted.
	slices.SortStableFunc(sccs, func(a, b []string) int {
		return indices[a[0]] - indices[b[0]]
	})
	return sccs
}

func cycleWarning(scc []string, dg dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		id := scc[0]
		return CycleWarning{
			Path:    []string{id, id},
			Message: fmt.Sprintf("module requires itself: %s", id),
		}
	}

	path := reconstructCyclePath(scc, dg)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("dependency cycle: %s", strings.Join(path, " -> ")),
	}
}

// reconstructCyclePath walks edges inside the component from its first
// member until it returns to the start.
func reconstructCyclePath(scc []string, dg dependencyGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range dg.edges[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
