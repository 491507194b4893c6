// Package resolve discovers the local dependencies of a module's transformed
// text and maps them to absolute paths and stable module ids.
package resolve

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// DefaultExtension is appended when the literal request is not a file.
const DefaultExtension = ".js"

var (
	importPattern  = regexp.MustCompile(`import\s+[^'"]*['"]([^'"]+)['"]`)
	requirePattern = regexp.MustCompile(`require\(['"]([^'"]+)['"]\)`)
)

// Extractor returns the raw request strings found in source, in discovery
// order. Duplicates are allowed.
type Extractor func(source string) []string

// RegexExtractor finds static imports first, then require calls. It is
// purely textual: matches inside comments or strings count too.
func RegexExtractor(source string) []string {
	var requests []string
	for _, m := range importPattern.FindAllStringSubmatch(source, -1) {
		requests = append(requests, m[1])
	}
	for _, m := range requirePattern.FindAllStringSubmatch(source, -1) {
		requests = append(requests, m[1])
	}
	return requests
}

// IsLocal reports whether request names a file relative to the requester.
// Bare package names are ignored by the bundler.
func IsLocal(request string) bool {
	return strings.HasPrefix(request, "./") || strings.HasPrefix(request, "../")
}

// Edge is one local dependency of a module.
type Edge struct {
	// Request is the literal string found in the source.
	Request string `json:"request"`

	// Resolved is the absolute path the request maps to.
	Resolved string `json:"resolved"`

	// ID is the module id of Resolved.
	ID string `json:"id"`
}

// Resolver maps requests to files under one root context.
// Safe for concurrent use.
type Resolver struct {
	root    string
	extract Extractor

	mu  sync.Mutex
	ids map[string]string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithExtractor replaces RegexExtractor.
func WithExtractor(e Extractor) Option {
	return func(r *Resolver) {
		if e != nil {
			r.extract = e
		}
	}
}

// New creates a Resolver whose ids are relative to rootContext, normally the
// entry file's directory.
func New(rootContext string, opts ...Option) *Resolver {
	r := &Resolver{
		root:    rootContext,
		extract: RegexExtractor,
		ids:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RootContext returns the directory ids are computed against.
func (r *Resolver) RootContext() string {
	return r.root
}

// Resolve maps request, relative to dir, to an absolute path: the literal
// path if it is a regular file, else the path plus DefaultExtension if that
// exists, else the literal path. A missing target is not an error here; it
// surfaces when the file is read.
func (r *Resolver) Resolve(dir, request string) string {
	literal := filepath.Join(dir, filepath.FromSlash(request))
	if !filepath.IsAbs(literal) {
		if abs, err := filepath.Abs(literal); err == nil {
			literal = abs
		}
	}

	if info, err := os.Stat(literal); err == nil && info.Mode().IsRegular() {
		return literal
	}
	withExt := literal + DefaultExtension
	if _, err := os.Stat(withExt); err == nil {
		return withExt
	}
	return literal
}

// ID returns the stable module id for an absolute path: relative to the
// root context, slash-separated, NFC-normalised and prefixed with "./"
// unless it already climbs out with "../".
func (r *Resolver) ID(path string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.ids[path]; ok {
		return id
	}

	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		rel = path
	}
	id := norm.NFC.String(filepath.ToSlash(rel))
	if !strings.HasPrefix(id, "../") && id != ".." {
		id = "./" + id
	}

	r.ids[path] = id
	return id
}

// Dependencies extracts the local requests in source and resolves each
// against resource's directory. Order follows the extractor; duplicates
// are kept.
func (r *Resolver) Dependencies(source, resource string) []Edge {
	dir := filepath.Dir(resource)

	var edges []Edge
	for _, request := range r.extract(source) {
		if !IsLocal(request) {
			continue
		}
		resolved := r.Resolve(dir, request)
		edges = append(edges, Edge{
			Request:  request,
			Resolved: resolved,
			ID:       r.ID(resolved),
		})
	}
	return edges
}
