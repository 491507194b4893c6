package loader

import (
	"errors"
	"fmt"
)

// Error reports a loader failure for one resource.
type Error struct {
	// Loader is the applied name of the failing loader.
	Loader string

	// Resource is the absolute path being transformed.
	Resource string

	// Err is the cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("LOADER_FAILED: loader %s failed on %s: %v", e.Loader, e.Resource, e.Err)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsLoaderError reports whether err is or wraps a loader failure.
func IsLoaderError(err error) bool {
	var le *Error
	return errors.As(err, &le)
}
