package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteTree_CreatesNestedFiles(t *testing.T) {
	root := WriteTree(t, map[string]string{
		"src/index.js":    "entry",
		"src/lib/util.js": "util",
		"README.md":       "docs",
	})

	assert.Equal(t, "entry", ReadFile(t, filepath.Join(root, "src", "index.js")))
	assert.Equal(t, "util", ReadFile(t, filepath.Join(root, "src", "lib", "util.js")))
	assert.Equal(t, "docs", ReadFile(t, filepath.Join(root, "README.md")))
}
