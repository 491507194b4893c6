// Package config reads minipack configuration files and turns them into a
// compiler.Config.
//
// Three formats are accepted, chosen by extension: CUE (.cue), YAML (.yaml,
// .yml) and TOML (.toml). All decode into File:
//
//	entry: "./src/index.js"
//	mode: "production"
//	output: path: "./dist"
//	output: filename: "bundle.js"
//	rules: [{test: "\\.js$", use: [{loader: "banner"}]}]
//	plugins: [{name: "logger"}]
//
// Relative paths are taken from the config file's directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// File is the decoded configuration.
type File struct {
	Entry   string       `json:"entry" yaml:"entry" toml:"entry" validate:"required"`
	Mode    string       `json:"mode,omitempty" yaml:"mode" toml:"mode" validate:"omitempty,oneof=development production"`
	Output  OutputSpec   `json:"output" yaml:"output" toml:"output"`
	Rules   []RuleSpec   `json:"rules,omitempty" yaml:"rules" toml:"rules" validate:"dive"`
	Plugins []PluginSpec `json:"plugins,omitempty" yaml:"plugins" toml:"plugins" validate:"dive"`
}

// OutputSpec names the bundle location.
type OutputSpec struct {
	Path     string `json:"path" yaml:"path" toml:"path" validate:"required"`
	Filename string `json:"filename" yaml:"filename" toml:"filename" validate:"required"`
}

// RuleSpec selects loaders by a regular expression on the absolute path
// (Test), a glob relative to the entry directory (Include), or both.
type RuleSpec struct {
	Test    string    `json:"test,omitempty" yaml:"test" toml:"test" validate:"required_without=Include"`
	Include string    `json:"include,omitempty" yaml:"include" toml:"include"`
	Use     []UseSpec `json:"use" yaml:"use" toml:"use" validate:"required,min=1,dive"`
}

// UseSpec names one loader: a builtin name or a path to a .star script.
type UseSpec struct {
	Loader  string         `json:"loader" yaml:"loader" toml:"loader" validate:"required"`
	Options map[string]any `json:"options,omitempty" yaml:"options" toml:"options"`
}

// PluginSpec names one plugin and its options.
type PluginSpec struct {
	Name    string         `json:"name" yaml:"name" toml:"name" validate:"required"`
	Options map[string]any `json:"options,omitempty" yaml:"options" toml:"options"`
}

// Candidates are the file names Find looks for, in order.
var Candidates = []string{"minipack.cue", "minipack.yaml", "minipack.yml", "minipack.toml"}

// Find returns the first of Candidates present in dir.
func Find(dir string) (string, error) {
	for _, name := range Candidates {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", &Error{Code: ErrCodeLoad, Message: err.Error(), Err: err}
		}
	}
	return "", &Error{
		Code:    ErrCodeLoad,
		Message: fmt.Sprintf("no config file in %s (looked for %s)", dir, strings.Join(Candidates, ", ")),
		Err:     fs.ErrNotExist,
	}
}

// Load reads, decodes and validates the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Code: ErrCodeLoad, Message: err.Error(), File: path, Err: err}
	}

	f, err := Decode(path, data)
	if err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Decode parses data in the format implied by filename's extension.
// It does not validate.
func Decode(filename string, data []byte) (*File, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".cue":
		return decodeCUE(filename, data)
	case ".yaml", ".yml":
		return decodeYAML(filename, data)
	case ".toml":
		return decodeTOML(filename, data)
	default:
		return nil, &Error{
			Code:    ErrCodeLoad,
			Message: fmt.Sprintf("unsupported config format %q", ext),
			File:    filename,
		}
	}
}
