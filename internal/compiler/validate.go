package compiler

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roach88/minipack/internal/loader"
)

// Configuration error codes (E100-E199)
const (
	ErrEntryEmpty       = "E101" // entry is required
	ErrOutputPathEmpty  = "E102" // output.path is required
	ErrOutputFileEmpty  = "E103" // output.filename is required
	ErrOutputFileNested = "E104" // output.filename must be a plain file name
	ErrInvalidMode      = "E105" // mode must be development or production
	ErrRuleNoPattern    = "E110" // rule has no pattern
	ErrRuleNilLoader    = "E111" // rule references an unresolved loader
	ErrNilPlugin        = "E120" // plugin entry is nil
)

// ValidationError is one problem found in a Config.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ConfigError is returned by New when the configuration is malformed.
type ConfigError struct {
	Errors []ValidationError
}

func (e *ConfigError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return "CONFIG_INVALID: " + strings.Join(msgs, "; ")
}

// IsConfigError returns true if err is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Validate checks cfg and returns every problem found (does not fail-fast).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(cfg.Entry) == "" {
		errs = append(errs, ValidationError{
			Field:   "entry",
			Message: "entry is required",
			Code:    ErrEntryEmpty,
		})
	}

	if strings.TrimSpace(cfg.Output.Path) == "" {
		errs = append(errs, ValidationError{
			Field:   "output.path",
			Message: "output path is required",
			Code:    ErrOutputPathEmpty,
		})
	}

	switch name := cfg.Output.Filename; {
	case strings.TrimSpace(name) == "":
		errs = append(errs, ValidationError{
			Field:   "output.filename",
			Message: "output filename is required",
			Code:    ErrOutputFileEmpty,
		})
	case filepath.Base(name) != name || name == "." || name == "..":
		errs = append(errs, ValidationError{
			Field:   "output.filename",
			Message: fmt.Sprintf("%q must not contain directories", name),
			Code:    ErrOutputFileNested,
		})
	}

	if cfg.Mode != "" && !cfg.Mode.Valid() {
		errs = append(errs, ValidationError{
			Field:   "mode",
			Message: fmt.Sprintf("unknown mode %q (want %s or %s)", cfg.Mode, loader.Development, loader.Production),
			Code:    ErrInvalidMode,
		})
	}

	for i, rule := range cfg.Rules {
		if rule.Pattern == nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("rules[%d].test", i),
				Message: "rule has no pattern",
				Code:    ErrRuleNoPattern,
			})
		}
		for j, ref := range rule.Use {
			if ref.Loader == nil {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("rules[%d].use[%d]", i, j),
					Message: fmt.Sprintf("loader %s is not resolved", ref.AppliedName()),
					Code:    ErrRuleNilLoader,
				})
			}
		}
	}

	for i, p := range cfg.Plugins {
		if p == nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("plugins[%d]", i),
				Message: "plugin is nil",
				Code:    ErrNilPlugin,
			})
		}
	}

	return errs
}
