package harness

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the parts of a result that are stable across machines:
// the hook trace, the module summaries and the asset names. Absolute paths
// never appear in it.
//
//	scenario: two_modules
//	run 1:
//	  01 beforeRun
//	  06 loadModule ./index.js
//	modules:
//	  ./index.js loaders=[banner] deps=[./msg.js]
//	assets:
//	  bundle.js
//	failed: false
func Snapshot(name string, result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)

	run := 0
	for _, ev := range result.Trace {
		if ev.Run != run {
			run = ev.Run
			fmt.Fprintf(&b, "run %d:\n", run)
		}
		fmt.Fprintf(&b, "  %02d %s\n", ev.Seq, ev)
	}

	b.WriteString("modules:\n")
	for _, m := range result.Modules {
		fmt.Fprintf(&b, "  %s\n", m)
	}

	b.WriteString("assets:\n")
	for _, name := range slices.Sorted(maps.Keys(result.Assets)) {
		fmt.Fprintf(&b, "  %s\n", name)
	}

	fmt.Fprintf(&b, "failed: %t\n", result.BuildError != "")
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against the golden file for
// scenarioName without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Snapshot(scenarioName, result))
}
