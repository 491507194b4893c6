package harness

import "strings"

// TraceEvent records one hook firing during a scenario.
type TraceEvent struct {
	// Run is the 1-based build number within the scenario.
	Run int `json:"run"`

	// Seq is the 1-based position within the run.
	Seq int `json:"seq"`

	Hook string `json:"hook"`

	// Module is the module id, for per-module hooks.
	Module string `json:"module,omitempty"`
}

// String renders the event as it appears in golden files.
func (e TraceEvent) String() string {
	s := e.Hook
	if e.Module != "" {
		s += " " + e.Module
	}
	return s
}

// ModuleSummary is the part of a built module scenarios assert on.
type ModuleSummary struct {
	ID           string   `json:"id"`
	Loaders      []string `json:"loaders"`
	Dependencies []string `json:"dependencies"`
}

func (m ModuleSummary) String() string {
	return m.ID + " loaders=[" + strings.Join(m.Loaders, " ") + "] deps=[" + strings.Join(m.Dependencies, " ") + "]"
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the build outcome and all assertions match.
	Pass bool `json:"pass"`

	// Trace contains every hook firing of every run, in order.
	Trace []TraceEvent `json:"trace"`

	// Modules, Assets and Bundle describe the last run.
	Modules []ModuleSummary   `json:"modules"`
	Assets  map[string]string `json:"assets"`
	Bundle  string            `json:"bundle,omitempty"`

	// CacheHits is the cache plugin's hit count for the last run.
	CacheHits int `json:"cache_hits"`

	// BuildError is the last run's error message, if it failed.
	BuildError string `json:"build_error,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Assets: make(map[string]string),
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Module returns the summary for id.
func (r *Result) Module(id string) (ModuleSummary, bool) {
	for _, m := range r.Modules {
		if m.ID == id {
			return m, true
		}
	}
	return ModuleSummary{}, false
}
