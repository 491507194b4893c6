package loader

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Pattern selects the resources a rule applies to.
type Pattern interface {
	Match(resource, rootContext string) bool
	String() string
}

type regexpPattern struct {
	re *regexp.Regexp
}

// Regexp returns a Pattern matching the absolute resource path against expr.
func Regexp(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling rule pattern %q: %w", expr, err)
	}
	return regexpPattern{re: re}, nil
}

// MustRegexp is like Regexp but panics on error.
// Use only in tests or with constant patterns.
func MustRegexp(expr string) Pattern {
	p, err := Regexp(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func (p regexpPattern) Match(resource, _ string) bool {
	return p.re.MatchString(resource)
}

func (p regexpPattern) String() string {
	return "/" + p.re.String() + "/"
}

type globPattern struct {
	glob string
}

// Glob returns a Pattern matching a doublestar glob against the resource
// path relative to the root context, slash-separated. Resources outside the
// root context are matched by their absolute path.
func Glob(glob string) (Pattern, error) {
	if !doublestar.ValidatePattern(glob) {
		return nil, fmt.Errorf("invalid glob pattern %q", glob)
	}
	return globPattern{glob: glob}, nil
}

func (p globPattern) Match(resource, rootContext string) bool {
	target := filepath.ToSlash(resource)
	if rootContext != "" {
		if rel, err := filepath.Rel(rootContext, resource); err == nil && !filepath.IsAbs(rel) && !startsWithParent(rel) {
			target = filepath.ToSlash(rel)
		}
	}
	matched, err := doublestar.Match(p.glob, target)
	return err == nil && matched
}

func (p globPattern) String() string {
	return p.glob
}

func startsWithParent(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

type allPattern []Pattern

// All returns a Pattern matching when every one of patterns matches.
func All(patterns ...Pattern) Pattern {
	if len(patterns) == 1 {
		return patterns[0]
	}
	return allPattern(patterns)
}

func (p allPattern) Match(resource, rootContext string) bool {
	for _, sub := range p {
		if !sub.Match(resource, rootContext) {
			return false
		}
	}
	return len(p) > 0
}

func (p allPattern) String() string {
	parts := make([]string, len(p))
	for i, sub := range p {
		parts[i] = sub.String()
	}
	return strings.Join(parts, " && ")
}

// Rule pairs a pattern with an ordered list of loaders.
type Rule struct {
	Pattern Pattern
	Use     []Ref
}

// Collect concatenates the loaders of every rule matching resource, in
// rule declaration order. The caller applies the result right to left.
func Collect(rules []Rule, resource, rootContext string) []Ref {
	var matched []Ref
	for _, rule := range rules {
		if rule.Pattern == nil || !rule.Pattern.Match(resource, rootContext) {
			continue
		}
		matched = append(matched, rule.Use...)
	}
	return matched
}
