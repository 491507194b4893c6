package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/minipack/internal/testutil"
)

const projectYAML = `entry: ./src/index.js
output:
  path: ./dist
  filename: bundle.js
rules:
  - test: "\\.js$"
    use:
      - loader: banner
      - loader: ./loaders/stamp.star
`

const stampScript = `def transform(source, ctx):
    ctx.emit_file(ctx.resource_path.split("/")[-1] + ".len", str(len(source)))
    return None
`

// writeProject creates a two-module project and returns its directory.
func writeProject(t *testing.T, overrides map[string]string) string {
	t.Helper()
	files := map[string]string{
		"minipack.yaml":      projectYAML,
		"loaders/stamp.star": stampScript,
		"src/index.js":       "const msg = require('./msg');\nconsole.log(msg);\n",
		"src/msg.js":         "module.exports = 'hi';\n",
	}
	for name, content := range overrides {
		files[name] = content
	}
	return testutil.WriteTree(t, files)
}

// runCLI executes the root command and returns what it wrote to stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// decodeData unmarshals a successful JSON response's data into v.
func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status, out)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

// decodeError unmarshals a JSON error response.
func decodeError(t *testing.T, out string) *CLIError {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "error", resp.Status, out)
	require.NotNil(t, resp.Error)
	return resp.Error
}
