package config

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
)

// Error codes.
const (
	ErrCodeLoad             = "CONFIG_LOAD"
	ErrCodeInvalid          = "CONFIG_INVALID"
	ErrCodeLoaderUnresolved = "LOADER_UNRESOLVED"
	ErrCodePluginUnknown    = "PLUGIN_UNKNOWN"
)

// Error is a configuration failure. File, Line and Column are set when the
// decoder reported a position.
type Error struct {
	Code    string
	Message string
	File    string
	Line    int
	Column  int
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.File != "" && e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.File, e.Line, e.Column, e.Code, e.Message)
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code string) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// IsLoadError reports a file that could not be read or parsed.
func IsLoadError(err error) bool { return hasCode(err, ErrCodeLoad) }

// IsInvalid reports a file that parsed but failed validation.
func IsInvalid(err error) bool { return hasCode(err, ErrCodeInvalid) }

// IsLoaderUnresolved reports a loader handle that names nothing.
func IsLoaderUnresolved(err error) bool { return hasCode(err, ErrCodeLoaderUnresolved) }

// IsPluginUnknown reports a plugin name with no implementation.
func IsPluginUnknown(err error) bool { return hasCode(err, ErrCodePluginUnknown) }

// fromCUE converts a CUE error to an Error carrying the first position.
func fromCUE(code string, err error) *Error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Code: code, Message: err.Error(), Err: err}
	}

	first := errs[0]
	ce := &Error{Code: code, Message: first.Error(), Err: err}
	if positions := cueerrors.Positions(first); len(positions) > 0 && positions[0].IsValid() {
		pos := positions[0]
		ce.File = pos.Filename()
		ce.Line = pos.Line()
		ce.Column = pos.Column()
	}
	return ce
}
