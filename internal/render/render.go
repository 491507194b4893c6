// Package render turns a module graph into a single self-executing script
// and writes it to disk.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/minipack/internal/asset"
	"github.com/roach88/minipack/internal/graph"
)

// Output names where the bundle is written.
type Output struct {
	// Path is the output directory.
	Path string `json:"path"`

	// Filename is the bundle's file name and its asset key.
	Filename string `json:"filename"`
}

// File returns the full path of the bundle.
func (o Output) File() string {
	return filepath.Join(o.Path, o.Filename)
}

const runtimeHead = `(function(modules) {
  const cache = {};
  function localRequire(id) {
    if (cache[id]) return cache[id].exports;
    const [fn, mapping] = modules[id];
    function resolve(request) {
      return mapping[request];
    }
    const module = { exports: {} };
    cache[id] = module;
    fn((req) => localRequire(resolve(req)), module, module.exports);
    return module.exports;
  }
  localRequire(`

var quoteID = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)

// Render produces the bundle for modules, in the given order, starting at
// entryID. Each module becomes a factory plus its request mapping; the
// runtime caches module objects by id and registers each one before its
// factory runs, so a cycle observes partial exports instead of recursing.
func Render(modules []*graph.Module, entryID string) (string, error) {
	var b strings.Builder

	b.WriteString(runtimeHead)
	b.WriteString(quote(entryID))
	b.WriteString(");\n})({\n")

	for i, m := range modules {
		mapping, err := mappingJSON(m.Mapping)
		if err != nil {
			return "", fmt.Errorf("render mapping for %s: %w", m.ID, err)
		}
		if i > 0 {
			b.WriteString(",\n")
		}
		fmt.Fprintf(&b, "%s: [\n  function(require, module, exports) {\n%s\n  },\n  %s\n]",
			quote(m.ID), m.Transformed, mapping)
	}

	b.WriteString("\n});")
	return b.String(), nil
}

func quote(id string) string {
	return "'" + quoteID.Replace(id) + "'"
}

// mappingJSON encodes the mapping with two-space indentation. Keys are
// emitted in sorted order.
func mappingJSON(mapping map[string]string) (string, error) {
	if mapping == nil {
		mapping = map[string]string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(mapping); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Emit records bundle in assets under out.Filename and writes it to
// out.File, creating the directory first. It returns the written path.
func Emit(assets *asset.Set, out Output, bundle string) (string, error) {
	if err := os.MkdirAll(out.Path, 0o755); err != nil {
		return "", fmt.Errorf("create output directory %s: %w", out.Path, err)
	}
	assets.Set(out.Filename, bundle)

	file := out.File()
	if err := os.WriteFile(file, []byte(bundle), 0o644); err != nil {
		return "", fmt.Errorf("write bundle %s: %w", file, err)
	}
	return file, nil
}

// WriteAssets writes every asset except the bundle itself into out.Path.
// Names are treated as slash-separated paths relative to the directory.
func WriteAssets(assets *asset.Set, out Output) ([]string, error) {
	var written []string
	for _, name := range assets.Names() {
		if name == out.Filename {
			continue
		}
		content, _ := assets.Get(name)
		file := filepath.Join(out.Path, filepath.FromSlash(name))
		if !strings.HasPrefix(file, filepath.Clean(out.Path)+string(filepath.Separator)) {
			return written, fmt.Errorf("asset %q escapes output directory", name)
		}
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return written, fmt.Errorf("create directory for asset %s: %w", name, err)
		}
		if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
			return written, fmt.Errorf("write asset %s: %w", name, err)
		}
		written = append(written, file)
	}
	return written, nil
}
