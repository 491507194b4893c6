package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/minipack/internal/graph"
	"github.com/roach88/minipack/internal/testutil"
)

func intp(n int) *int { return &n }

func TestValidationCheck(t *testing.T) {
	v, err := NewValidation(map[string]any{
		"rules": map[string]FieldRule{
			"id":          {Pattern: `^\./src/`},
			"transformed": {Required: true, Min: intp(3), Max: intp(10)},
		},
	}, discardLogger())
	require.NoError(t, err)

	tests := []struct {
		name   string
		module graph.Module
		errors []string
	}{
		{"valid", graph.Module{ID: "./src/a.js", Transformed: "abcd"}, nil},
		{"missing", graph.Module{ID: "./src/a.js"}, []string{"transformed is required"}},
		{"too short", graph.Module{ID: "./src/a.js", Transformed: "ab"}, []string{"transformed must be at least 3 characters"}},
		{"too long", graph.Module{ID: "./src/a.js", Transformed: "abcdefghijk"}, []string{"transformed must be at most 10 characters"}},
		{"runes", graph.Module{ID: "./src/a.js", Transformed: "héé"}, nil},
		{"pattern", graph.Module{ID: "./lib/a.js", Transformed: "abcd"}, []string{`id does not match ^\./src/`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := v.Check(&tt.module)

			assert.Equal(t, tt.module.ID, verdict.Module)
			assert.Equal(t, len(tt.errors) == 0, verdict.Valid)
			if tt.errors == nil {
				assert.Empty(t, verdict.Errors)
			} else {
				assert.Equal(t, tt.errors, verdict.Errors)
			}
		})
	}
}

func TestValidationDecodesGenericRules(t *testing.T) {
	v, err := NewValidation(map[string]any{
		"rules": map[string]any{
			"source": map[string]any{"required": true, "max": float64(5)},
		},
	}, discardLogger())
	require.NoError(t, err)

	verdict := v.Check(&graph.Module{ID: "./a.js", Source: "too long"})

	assert.False(t, verdict.Valid)
	assert.Equal(t, []string{"source must be at most 5 characters"}, verdict.Errors)
}

func TestValidationRejectsBadRules(t *testing.T) {
	tests := map[string]map[string]any{
		"unknown field": {"size": map[string]any{"required": true}},
		"bad pattern":   {"id": map[string]any{"pattern": "("}},
		"negative min":  {"id": map[string]any{"min": -1}},
		"wrong shape":   {"id": "required"},
	}
	for name, rules := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewValidation(map[string]any{"rules": rules}, discardLogger())
			require.Error(t, err)
		})
	}
}

func TestValidationStrictModeFailsRun(t *testing.T) {
	root := testutil.WriteTree(t, simpleProject)
	v, err := NewValidation(map[string]any{
		"strictMode": true,
		"rules":      map[string]any{"source": map[string]any{"pattern": "require"}},
	}, discardLogger())
	require.NoError(t, err)

	_, res, err := build(t, configFor(root), v)

	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "./msg.js")
	assert.NoFileExists(t, configFor(root).Output.File())
}

func TestValidationLenientModeRecordsVerdict(t *testing.T) {
	root := testutil.WriteTree(t, simpleProject)
	v, err := NewValidation(map[string]any{
		"rules": map[string]any{"source": map[string]any{"pattern": "require"}},
	}, discardLogger())
	require.NoError(t, err)

	c, res, err := build(t, configFor(root), v)
	require.NoError(t, err)
	assert.FileExists(t, res.Stats.Output)

	rc := c.Hooks().Context()
	_, ok := rc.Get(ContextValidationPrefix + "./index.js")
	assert.False(t, ok, "valid modules leave no verdict")

	got, ok := rc.Get(ContextValidationPrefix + "./msg.js")
	require.True(t, ok)
	verdict, ok := got.(*Verdict)
	require.True(t, ok)
	assert.False(t, verdict.Valid)
	assert.Equal(t, []string{"source does not match require"}, verdict.Errors)
}
