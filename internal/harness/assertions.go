package harness

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d.%d] %s\n", event.Run, event.Seq, event)
		}
	}

	return buf.String()
}

// assertHookOrder checks that the hooks first fire in the specified order.
// Hooks don't need to be consecutive (intervening hooks are allowed).
func assertHookOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Hook]; !seen {
			positions[event.Hook] = i + 1 // 1-indexed for readability
		}
	}

	for _, hook := range assertion.Hooks {
		if positions[hook] == 0 {
			return &AssertionError{
				Type:     AssertHookOrder,
				Expected: fmt.Sprintf("all hooks fired: %v", assertion.Hooks),
				Actual:   fmt.Sprintf("missing hook: %s", hook),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Hooks); i++ {
		prev := assertion.Hooks[i-1]
		curr := assertion.Hooks[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertHookOrder,
				Expected: fmt.Sprintf("hooks in order: %v", assertion.Hooks),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertHookCount checks the hook fired exactly the specified number of times.
func assertHookCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Hook == assertion.Hook {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertHookCount,
			Expected: fmt.Sprintf("%s fired %d time(s)", assertion.Hook, assertion.Count),
			Actual:   fmt.Sprintf("fired %d time(s)", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertBundleContains(result *Result, assertion Assertion) error {
	if strings.Contains(result.Bundle, assertion.Text) {
		return nil
	}
	return &AssertionError{
		Type:     AssertBundleContains,
		Expected: fmt.Sprintf("bundle containing %q", assertion.Text),
		Actual:   fmt.Sprintf("bundle of %d bytes without it", len(result.Bundle)),
	}
}

func assertModuleOrder(result *Result, assertion Assertion) error {
	ids := make([]string, len(result.Modules))
	for i, m := range result.Modules {
		ids[i] = m.ID
	}
	if slices.Equal(ids, assertion.Modules) {
		return nil
	}
	return &AssertionError{
		Type:     AssertModuleOrder,
		Expected: fmt.Sprintf("modules %v", assertion.Modules),
		Actual:   fmt.Sprintf("modules %v", ids),
	}
}

func assertModuleLoaders(result *Result, assertion Assertion) error {
	m, ok := result.Module(assertion.Module)
	if !ok {
		return &AssertionError{
			Type:     AssertModuleLoaders,
			Expected: fmt.Sprintf("module %s", assertion.Module),
			Actual:   "not built",
		}
	}
	// An empty expectation means no loaders ran.
	if len(m.Loaders) == 0 && len(assertion.Loaders) == 0 || slices.Equal(m.Loaders, assertion.Loaders) {
		return nil
	}
	return &AssertionError{
		Type:     AssertModuleLoaders,
		Expected: fmt.Sprintf("%s loaders %v", assertion.Module, assertion.Loaders),
		Actual:   fmt.Sprintf("loaders %v", m.Loaders),
	}
}

func assertAsset(result *Result, assertion Assertion) error {
	content, ok := result.Assets[assertion.Name]
	if !ok {
		return &AssertionError{
			Type:     AssertAsset,
			Expected: fmt.Sprintf("asset %s", assertion.Name),
			Actual:   fmt.Sprintf("assets %v", slices.Sorted(maps.Keys(result.Assets))),
		}
	}
	if assertion.Content != "" && content != assertion.Content {
		return &AssertionError{
			Type:     AssertAsset,
			Expected: fmt.Sprintf("asset %s = %q", assertion.Name, assertion.Content),
			Actual:   fmt.Sprintf("%q", content),
		}
	}
	return nil
}

func assertCacheHits(result *Result, assertion Assertion) error {
	if result.CacheHits == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertCacheHits,
		Expected: fmt.Sprintf("%d cache hit(s)", assertion.Count),
		Actual:   fmt.Sprintf("%d", result.CacheHits),
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, assertion := range assertions {
		var err error
		switch assertion.Type {
		case AssertHookOrder:
			err = assertHookOrder(result.Trace, assertion)
		case AssertHookCount:
			err = assertHookCount(result.Trace, assertion)
		case AssertBundleContains:
			err = assertBundleContains(result, assertion)
		case AssertModuleOrder:
			err = assertModuleOrder(result, assertion)
		case AssertModuleLoaders:
			err = assertModuleLoaders(result, assertion)
		case AssertAsset:
			err = assertAsset(result, assertion)
		case AssertCacheHits:
			err = assertCacheHits(result, assertion)
		default:
			err = fmt.Errorf("unknown assertion type %q", assertion.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}
