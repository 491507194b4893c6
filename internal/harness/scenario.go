package harness

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/minipack/internal/config"
	"github.com/roach88/minipack/internal/loader"
)

// Scenario defines a build scenario: a project written to a scratch
// directory, built one or more times, then checked against assertions.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Files maps slash-separated paths to their content.
	Files map[string]string `yaml:"files"`

	// Config is the build configuration. Relative paths are taken from
	// the scratch directory.
	Config config.File `yaml:"config"`

	// Mode overrides Config.Mode when set.
	Mode string `yaml:"mode,omitempty"`

	// Runs is the number of builds. Defaults to 1.
	Runs int `yaml:"runs,omitempty"`

	// Cache enables the cache plugin backed by an in-memory store shared
	// by every run.
	Cache bool `yaml:"cache,omitempty"`

	// ExpectError, when set, requires the last run to fail with an error
	// containing this text.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions validate the trace and the last run's output.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run id.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// Assertion validates the trace or the build output.
type Assertion struct {
	// Type specifies the assertion type:
	// - "hook_order": Check hooks fire in order
	// - "hook_count": Check a hook fires exactly N times
	// - "bundle_contains": Check the bundle text
	// - "module_order": Check the module list exactly
	// - "module_loaders": Check one module's applied loaders
	// - "asset": Check an asset exists, optionally with given content
	// - "cache_hits": Check the last run's cache hit count
	Type string `yaml:"type"`

	// Hooks is the expected hook order (used by hook_order).
	Hooks []string `yaml:"hooks,omitempty"`

	// Hook is the hook name (used by hook_count).
	Hook string `yaml:"hook,omitempty"`

	// Count is the expected number (used by hook_count and cache_hits).
	Count int `yaml:"count,omitempty"`

	// Text is the expected substring (used by bundle_contains).
	Text string `yaml:"text,omitempty"`

	// Modules is the expected module ids (used by module_order).
	Modules []string `yaml:"modules,omitempty"`

	// Module and Loaders are used by module_loaders.
	Module  string   `yaml:"module,omitempty"`
	Loaders []string `yaml:"loaders,omitempty"`

	// Name and Content are used by asset. An empty Content only checks
	// that the asset exists.
	Name    string `yaml:"name,omitempty"`
	Content string `yaml:"content,omitempty"`
}

// Assertion type constants.
const (
	AssertHookOrder      = "hook_order"
	AssertHookCount      = "hook_count"
	AssertBundleContains = "bundle_contains"
	AssertModuleOrder    = "module_order"
	AssertModuleLoaders  = "module_loaders"
	AssertAsset          = "asset"
	AssertCacheHits      = "cache_hits"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Files) == 0 {
		return fmt.Errorf("files map is required and must be non-empty")
	}

	for name := range s.Files {
		clean := path.Clean(name)
		if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("file %q must be relative to the project", name)
		}
	}

	if err := s.Config.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if s.Mode != "" && !loader.Mode(s.Mode).Valid() {
		return fmt.Errorf("mode must be development or production, got %q", s.Mode)
	}

	if s.Runs < 0 {
		return fmt.Errorf("runs must be non-negative")
	}

	if len(s.Assertions) == 0 && s.ExpectError == "" {
		return fmt.Errorf("assertions list is required unless expect_error is set")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertHookOrder:
		if len(a.Hooks) == 0 {
			return fmt.Errorf("assertions[%d]: hooks list is required for hook_order", index)
		}
	case AssertHookCount:
		if a.Hook == "" {
			return fmt.Errorf("assertions[%d]: hook is required for hook_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for hook_count", index)
		}
	case AssertBundleContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for bundle_contains", index)
		}
	case AssertModuleOrder:
		if len(a.Modules) == 0 {
			return fmt.Errorf("assertions[%d]: modules list is required for module_order", index)
		}
	case AssertModuleLoaders:
		if a.Module == "" {
			return fmt.Errorf("assertions[%d]: module is required for module_loaders", index)
		}
	case AssertAsset:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for asset", index)
		}
	case AssertCacheHits:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for cache_hits", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
