package plugins

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/minipack/internal/compiler"
	"github.com/roach88/minipack/internal/testutil"
)

func TestLoggerLogsEveryStageInOrder(t *testing.T) {
	root := testutil.WriteTree(t, simpleProject)
	logger, buf := bufferLogger()

	_, _, err := build(t, configFor(root), NewLogger(nil, logger))
	require.NoError(t, err)

	out := buf.String()
	last := -1
	for _, stage := range compiler.CoreStages {
		idx := strings.Index(out, "[minipack] -> "+stage)
		require.GreaterOrEqual(t, idx, 0, stage)
		assert.Greater(t, idx, last, "%s out of order", stage)
		last = idx
	}
	assert.NotContains(t, out, "-> failed")
}

func TestLoggerNameOption(t *testing.T) {
	root := testutil.WriteTree(t, simpleProject)
	logger, buf := bufferLogger()

	_, _, err := build(t, configFor(root), NewLogger(map[string]any{"name": "app"}, logger))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "[app] -> done")
	assert.NotContains(t, buf.String(), "[minipack]")
}

func TestLoggerReportsFailure(t *testing.T) {
	root := testutil.WriteTree(t, simpleProject)
	logger, buf := bufferLogger()

	_, _, err := build(t, configFor(root), NewLogger(nil, logger), failing())
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "[minipack] -> compile")
	assert.Contains(t, out, "[minipack] -> failed")
	assert.Contains(t, out, "boom")
	assert.NotContains(t, out, "[minipack] -> make")
}
