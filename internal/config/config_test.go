package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/minipack/internal/testutil"
)

const cueConfig = `
entry: "./src/index.js"
mode:  "production"
output: {
	path:     "./dist"
	filename: "bundle.js"
}
rules: [{
	test: "\\.js$"
	use: [{loader: "banner", options: {text: "hello"}}]
}]
plugins: [{name: "logger", options: {name: "app"}}]
`

const yamlConfig = `
entry: ./src/index.js
mode: production
output:
  path: ./dist
  filename: bundle.js
rules:
  - test: '\.js$'
    use:
      - loader: banner
        options:
          text: hello
plugins:
  - name: logger
    options:
      name: app
`

const tomlConfig = `
entry = "./src/index.js"
mode = "production"

[output]
path = "./dist"
filename = "bundle.js"

[[rules]]
test = '\.js$'

[[rules.use]]
loader = "banner"
options = { text = "hello" }

[[plugins]]
name = "logger"
options = { name = "app" }
`

var wantFile = &File{
	Entry:  "./src/index.js",
	Mode:   "production",
	Output: OutputSpec{Path: "./dist", Filename: "bundle.js"},
	Rules: []RuleSpec{{
		Test: `\.js$`,
		Use:  []UseSpec{{Loader: "banner", Options: map[string]any{"text": "hello"}}},
	}},
	Plugins: []PluginSpec{{Name: "logger", Options: map[string]any{"name": "app"}}},
}

func TestLoadFormatsAgree(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"minipack.cue":  cueConfig,
		"minipack.yaml": yamlConfig,
		"minipack.toml": tomlConfig,
	})

	for _, name := range []string{"minipack.cue", "minipack.yaml", "minipack.toml"} {
		t.Run(name, func(t *testing.T) {
			f, err := Load(filepath.Join(dir, name))

			require.NoError(t, err)
			assert.Equal(t, wantFile, f)
		})
	}
}

func TestFindFollowsCandidateOrder(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"minipack.toml": tomlConfig,
		"minipack.yml":  yamlConfig,
	})

	path, err := Find(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "minipack.yml"), path)

	_, err = Find(t.TempDir())
	require.Error(t, err)
	assert.True(t, IsLoadError(err))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "minipack.yaml"))

	require.Error(t, err)
	assert.True(t, IsLoadError(err))
}

func TestDecodeUnsupportedFormat(t *testing.T) {
	_, err := Decode("minipack.ini", []byte("entry=x"))

	require.Error(t, err)
	assert.True(t, IsLoadError(err))
	assert.Contains(t, err.Error(), `".ini"`)
}

func TestCUESchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		invalid bool
	}{
		{"missing entry", `output: {path: "d", filename: "b.js"}`, true},
		{"unknown field", `entry: "a.js", output: {path: "d", filename: "b.js"}, minify: true`, true},
		{"bad mode", `entry: "a.js", mode: "staging", output: {path: "d", filename: "b.js"}`, true},
		{"empty use", `entry: "a.js", output: {path: "d", filename: "b.js"}, rules: [{test: "x", use: []}]`, true},
		{"syntax", "entry: \"a.js\"\noutput: {", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode("minipack.cue", []byte(tt.src))

			require.Error(t, err)
			if tt.invalid {
				assert.True(t, IsInvalid(err), "got %v", err)
			} else {
				assert.True(t, IsLoadError(err), "got %v", err)
			}
		})
	}
}

func TestCUESyntaxErrorHasPosition(t *testing.T) {
	_, err := Decode("minipack.cue", []byte("entry: \"a.js\"\noutput: {"))

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "minipack.cue", ce.File)
	assert.Positive(t, ce.Line)
}

func TestYAMLUnknownFieldRejected(t *testing.T) {
	_, err := Decode("minipack.yaml", []byte("entry: a.js\nminify: true\n"))

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeLoad, ce.Code)
	assert.Equal(t, 2, ce.Line)
	assert.Contains(t, err.Error(), "minify")
}

func TestTOMLSyntaxErrorHasPosition(t *testing.T) {
	_, err := Decode("minipack.toml", []byte("entry = \"a.js\"\noutput = [\n"))

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeLoad, ce.Code)
	assert.Positive(t, ce.Line)
}

func TestTOMLUnknownFieldRejected(t *testing.T) {
	_, err := Decode("minipack.toml", []byte("entry = \"a.js\"\nminify = true\n"))

	require.Error(t, err)
	assert.True(t, IsLoadError(err))
}

func TestValidateReportsEveryViolation(t *testing.T) {
	tests := []struct {
		name string
		file File
		want string
	}{
		{
			"empty",
			File{},
			"CONFIG_INVALID: entry is required; output.path is required; output.filename is required",
		},
		{
			"mode",
			File{Entry: "a.js", Mode: "staging", Output: OutputSpec{Path: "d", Filename: "b.js"}},
			`CONFIG_INVALID: mode must be one of development, production, got "staging"`,
		},
		{
			"rule",
			File{Entry: "a.js", Output: OutputSpec{Path: "d", Filename: "b.js"}, Rules: []RuleSpec{{}}},
			"CONFIG_INVALID: rules[0].test is required when include is empty; rules[0].use is required",
		},
		{
			"use and plugin",
			File{
				Entry:   "a.js",
				Output:  OutputSpec{Path: "d", Filename: "b.js"},
				Rules:   []RuleSpec{{Include: "**/*.js", Use: []UseSpec{{}}}},
				Plugins: []PluginSpec{{}},
			},
			"CONFIG_INVALID: rules[0].use[0].loader is required; plugins[0].name is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.file.Validate()

			require.Error(t, err)
			assert.True(t, IsInvalid(err))
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestValidateAcceptsMinimalFile(t *testing.T) {
	f := File{Entry: "a.js", Output: OutputSpec{Path: "d", Filename: "b.js"}}

	assert.NoError(t, f.Validate())
}
