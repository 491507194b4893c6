package hooks

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes dispatcher errors.
type ErrorCode string

const (
	// ErrCodeUnknownHook indicates a callback was attached to an undeclared hook.
	ErrCodeUnknownHook ErrorCode = "UNKNOWN_HOOK"

	// ErrCodeModeConflict indicates a hook was redeclared with a different mode.
	ErrCodeModeConflict ErrorCode = "MODE_CONFLICT"

	// ErrCodeModeMismatch indicates a hook was invoked with the wrong dispatch assumption.
	ErrCodeModeMismatch ErrorCode = "MODE_MISMATCH"

	// ErrCodeMissingApply indicates a plugin has no wiring operation.
	ErrCodeMissingApply ErrorCode = "MISSING_APPLY"

	// ErrCodeCallback indicates an attached callback failed or panicked.
	ErrCodeCallback ErrorCode = "CALLBACK_FAILED"
)

// Error is returned by dispatcher operations.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Hook is the hook name involved, if any.
	Hook string

	// Plugin is the plugin name involved, if any.
	Plugin string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause (callback failures only).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var msg string
	switch {
	case e.Hook != "":
		msg = fmt.Sprintf("%s: %s (hook=%s)", e.Code, e.Message, e.Hook)
	case e.Plugin != "":
		msg = fmt.Sprintf("%s: %s (plugin=%s)", e.Code, e.Message, e.Plugin)
	default:
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var he *Error
	if errors.As(err, &he) {
		return he.Code == code
	}
	return false
}

// IsUnknownHook reports whether err is an UNKNOWN_HOOK error.
func IsUnknownHook(err error) bool { return hasCode(err, ErrCodeUnknownHook) }

// IsModeConflict reports whether err is a MODE_CONFLICT error.
func IsModeConflict(err error) bool { return hasCode(err, ErrCodeModeConflict) }

// IsModeMismatch reports whether err is a MODE_MISMATCH error.
func IsModeMismatch(err error) bool { return hasCode(err, ErrCodeModeMismatch) }

// IsMissingApply reports whether err is a MISSING_APPLY error.
func IsMissingApply(err error) bool { return hasCode(err, ErrCodeMissingApply) }

func unknownHookError(name string) *Error {
	return &Error{
		Code:    ErrCodeUnknownHook,
		Hook:    name,
		Message: "hook is not declared",
	}
}

func modeMismatchError(name string, declared Mode, want string) *Error {
	return &Error{
		Code:    ErrCodeModeMismatch,
		Hook:    name,
		Message: fmt.Sprintf("hook declared as %s, cannot call as %s", declared, want),
	}
}
