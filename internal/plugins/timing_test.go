package plugins

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/minipack/internal/compiler"
	"github.com/roach88/minipack/internal/testutil"
)

func newTestTiming(t *testing.T, reg prometheus.Registerer) *Timing {
	t.Helper()
	clock := testutil.NewStepClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 10*time.Millisecond)
	tm, err := NewTiming(nil, reg, discardLogger(), WithTimingClock(clock.Now))
	require.NoError(t, err)
	return tm
}

func TestTimingRecordsSuccessfulBuild(t *testing.T) {
	root := testutil.WriteTree(t, simpleProject)
	reg := prometheus.NewRegistry()
	tm := newTestTiming(t, reg)

	_, _, err := build(t, configFor(root), tm)
	require.NoError(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(tm.builds.WithLabelValues("success")))
	assert.Equal(t, 0.0, promtest.ToFloat64(tm.builds.WithLabelValues("failure")))
	assert.Equal(t, 2.0, promtest.ToFloat64(tm.modules))
	assert.Equal(t, 0.0, promtest.ToFloat64(tm.assets))
	assert.Equal(t, len(compiler.CoreStages), promtest.CollectAndCount(tm.stageDuration))
	assert.Equal(t, 1, promtest.CollectAndCount(tm.buildDuration))
	assert.Positive(t, tm.Last())
}

func TestTimingCountsFailures(t *testing.T) {
	root := testutil.WriteTree(t, simpleProject)
	tm := newTestTiming(t, nil)

	_, _, err := build(t, configFor(root), tm, failing())
	require.Error(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(tm.builds.WithLabelValues("failure")))
	assert.Equal(t, 0.0, promtest.ToFloat64(tm.modules))
	// beforeRun, run, beforeCompile and compile were reached.
	assert.Equal(t, 4, promtest.CollectAndCount(tm.stageDuration))
}

func TestTimingAccumulatesAcrossRuns(t *testing.T) {
	root := testutil.WriteTree(t, simpleProject)
	tm := newTestTiming(t, nil)

	for range 3 {
		_, _, err := build(t, configFor(root), tm)
		require.NoError(t, err)
	}

	assert.Equal(t, 3.0, promtest.ToFloat64(tm.builds.WithLabelValues("success")))
	assert.Equal(t, 6.0, promtest.ToFloat64(tm.modules))
}

func TestTimingRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	newTestTiming(t, reg)

	_, err := NewTiming(nil, reg, discardLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "register timing metrics")
}

func TestTimingMetricNames(t *testing.T) {
	root := testutil.WriteTree(t, simpleProject)
	reg := prometheus.NewRegistry()
	tm := newTestTiming(t, reg)

	_, _, err := build(t, configFor(root), tm)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	var got []string
	for _, f := range families {
		got = append(got, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"minipack_assets_emitted_total",
		"minipack_build_duration_seconds",
		"minipack_builds_total",
		"minipack_modules_built_total",
		"minipack_stage_duration_seconds",
	}, got)
}
