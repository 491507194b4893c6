// Package harness runs build scenarios for minipack.
//
// A scenario writes a small project to a scratch directory, builds it one
// or more times and checks the hook trace and the output against
// assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	files:
//	  src/index.js: |
//	    require('./msg');
//	  src/msg.js: "module.exports = 'hi';"
//	config:
//	  entry: ./src/index.js
//	  output: {path: ./dist, filename: bundle.js}
//	  rules:
//	    - test: "\\.js$"
//	      use: [{loader: banner}]
//	runs: 2
//	cache: true
//	assertions:
//	  - type: hook_order
//	    hooks: [beforeRun, make, emit, done]
//	  - type: module_loaders
//	    module: ./msg.js
//	    loaders: [banner]
//
// # Assertion Types
//
//   - hook_order: Verifies hooks first fire in the given order
//   - hook_count: Verifies a hook fires exactly N times across all runs
//   - bundle_contains: Verifies the bundle contains a substring
//   - module_order: Verifies the exact list of module ids
//   - module_loaders: Verifies the loaders applied to one module
//   - asset: Verifies an asset exists, optionally with given content
//   - cache_hits: Verifies the last run's cache hit count
//
// A scenario with expect_error passes only if the last run fails with an
// error containing that text.
//
// # Deterministic Testing
//
// Every run uses a fixed run id and a step clock, and the cache (when
// enabled) lives in an in-memory SQLite store. Modules are built one at a
// time, so the hook trace is identical across runs of the same scenario and
// can be compared against golden files with RunWithGolden.
package harness
