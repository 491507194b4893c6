package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/minipack/internal/compiler"
	"github.com/roach88/minipack/internal/graph"
	"github.com/roach88/minipack/internal/hooks"
)

// ContextValidationPrefix prefixes the run context key under which a
// failed *Verdict is stored, followed by the module id.
const ContextValidationPrefix = "validation."

// FieldRule constrains one module field. Min and Max count runes.
type FieldRule struct {
	Required bool   `json:"required"`
	Pattern  string `json:"pattern"`
	Min      *int   `json:"min" validate:"omitempty,gte=0"`
	Max      *int   `json:"max" validate:"omitempty,gte=0"`
}

// Verdict is the outcome of validating one module.
type Verdict struct {
	Module string   `json:"module"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidationError is returned in strict mode.
type ValidationError struct {
	Module string
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Module, strings.Join(e.Errors, ", "))
}

// IsValidationError returns true if err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// moduleFields are the fields rules may name.
var moduleFields = map[string]func(*graph.Module) string{
	"id":          func(m *graph.Module) string { return m.ID },
	"resource":    func(m *graph.Module) string { return m.Resource },
	"source":      func(m *graph.Module) string { return m.Source },
	"transformed": func(m *graph.Module) string { return m.Transformed },
}

type compiledRule struct {
	field   string
	rule    FieldRule
	pattern *regexp.Regexp
}

// Validation checks every built module against field rules on the
// validateModule hook.
//
// In strict mode a violation fails the run with a *ValidationError.
// Otherwise the *Verdict is returned, which stops later validators, and
// stored in the run context under ContextValidationPrefix + module id.
type Validation struct {
	hooks.Base
	rules    []compiledRule
	strict   bool
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidation creates a Validation plugin. Options: rules, a map of
// field name to FieldRule, and strictMode.
func NewValidation(opts hooks.Options, logger *slog.Logger) (*Validation, error) {
	if logger == nil {
		logger = slog.Default()
	}
	v := &Validation{
		Base:     hooks.NewBase("validation", opts),
		validate: validator.New(),
		logger:   logger,
	}
	v.strict = v.BoolOption("strictMode", false)

	rules, err := decodeRules(v.Option("rules", nil))
	if err != nil {
		return nil, err
	}
	for _, field := range slices.Sorted(maps.Keys(rules)) {
		rule := rules[field]
		if _, ok := moduleFields[field]; !ok {
			return nil, fmt.Errorf("validation rule: unknown module field %q", field)
		}
		if err := v.validate.Struct(rule); err != nil {
			return nil, fmt.Errorf("validation rule for %s: %w", field, err)
		}
		cr := compiledRule{field: field, rule: rule}
		if rule.Pattern != "" {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				return nil, fmt.Errorf("validation rule for %s: %w", field, err)
			}
			cr.pattern = re
		}
		v.rules = append(v.rules, cr)
	}
	return v, nil
}

// decodeRules accepts either a map[string]FieldRule or the generic map a
// config decoder produces.
func decodeRules(raw any) (map[string]FieldRule, error) {
	switch r := raw.(type) {
	case nil:
		return nil, nil
	case map[string]FieldRule:
		return r, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("validation rules: %w", err)
	}
	var rules map[string]FieldRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("validation rules: %w", err)
	}
	return rules, nil
}

// Apply attaches to validateModule at priority 1.
func (v *Validation) Apply(d *hooks.Dispatcher) error {
	return d.Attach(compiler.HookValidateModule, func(ctx context.Context, args ...any) (any, error) {
		m, ok := firstArg[*graph.Module](args)
		if !ok {
			return nil, nil
		}

		verdict := v.Check(m)
		if verdict.Valid {
			return nil, nil
		}

		v.logger.WarnContext(ctx, "module failed validation", "module", m.ID, "errors", verdict.Errors)
		if v.strict {
			return nil, &ValidationError{Module: m.ID, Errors: verdict.Errors}
		}
		d.Context().Set(ContextValidationPrefix+m.ID, verdict)
		return verdict, nil
	}, hooks.WithPriority(1))
}

// Check applies every rule to m. Fields are checked in name order.
func (v *Validation) Check(m *graph.Module) *Verdict {
	verdict := &Verdict{Module: m.ID, Errors: []string{}}
	for _, cr := range v.rules {
		value := moduleFields[cr.field](m)

		if cr.rule.Required && v.validate.Var(value, "required") != nil {
			verdict.Errors = append(verdict.Errors, cr.field+" is required")
			continue
		}
		if cr.rule.Min != nil && v.validate.Var(value, fmt.Sprintf("min=%d", *cr.rule.Min)) != nil {
			verdict.Errors = append(verdict.Errors, fmt.Sprintf("%s must be at least %d characters", cr.field, *cr.rule.Min))
		}
		if cr.rule.Max != nil && v.validate.Var(value, fmt.Sprintf("max=%d", *cr.rule.Max)) != nil {
			verdict.Errors = append(verdict.Errors, fmt.Sprintf("%s must be at most %d characters", cr.field, *cr.rule.Max))
		}
		if cr.pattern != nil && !cr.pattern.MatchString(value) {
			verdict.Errors = append(verdict.Errors, fmt.Sprintf("%s does not match %s", cr.field, cr.rule.Pattern))
		}
	}
	verdict.Valid = len(verdict.Errors) == 0
	return verdict
}
