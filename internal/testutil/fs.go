package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteTree writes files under a fresh temp directory and returns its path.
// Keys are slash-separated paths relative to the root.
//
//	root := testutil.WriteTree(t, map[string]string{
//		"src/index.js": "require('./a')",
//		"src/a.js":     "module.exports = 1",
//	})
func WriteTree(t testing.TB, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	// macOS TempDir lives behind a symlink; ids are computed on real paths.
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

// ReadFile returns the content of path, failing the test on error.
func ReadFile(t testing.TB, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
