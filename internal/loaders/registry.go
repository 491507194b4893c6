// Package loaders provides the builtin loaders that configuration files can
// reference by name.
package loaders

import (
	"maps"
	"slices"

	"github.com/roach88/minipack/internal/loader"
)

var builtins = map[string]loader.Loader{
	"uppercase": loader.Func(Uppercase),
	"banner":    loader.Func(Banner),
	"esbuild":   loader.Func(ESBuild),
}

// Lookup returns the builtin loader registered under name.
func Lookup(name string) (loader.Loader, bool) {
	l, ok := builtins[name]
	return l, ok
}

// Names returns the builtin loader names, sorted.
func Names() []string {
	return slices.Sorted(maps.Keys(builtins))
}
