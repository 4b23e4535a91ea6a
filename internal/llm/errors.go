package llm

import (
	"errors"
	"fmt"
)

// modelNotFoundError signals a catalog or cache directory miss.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound returns an error for a model id that could not be located.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether err indicates a missing model.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// permissionDeniedError signals that a path exists but cannot be enumerated
// or modified. Operators need to fix filesystem permissions.
type permissionDeniedError struct {
	path string
	err  error
}

func (e permissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied on %s (check filesystem permissions for the service account): %v", e.path, e.err)
}

func (e permissionDeniedError) Unwrap() error { return e.err }

// ErrPermissionDenied wraps err with the path it was raised for.
func ErrPermissionDenied(path string, err error) error {
	return permissionDeniedError{path: path, err: err}
}

// IsPermissionDenied reports whether err is a permission failure.
func IsPermissionDenied(err error) bool {
	var e permissionDeniedError
	return errors.As(err, &e)
}

// unavailableError signals the backend could not be reached or did not
// provide required information, so the HTTP layer answers 503.
type unavailableError struct{ msg string }

func (e unavailableError) Error() string { return e.msg }

// ErrUnavailable constructs an unavailableError.
func ErrUnavailable(msg string) error { return unavailableError{msg: msg} }

// IsUnavailable reports whether err indicates an unreachable backend.
func IsUnavailable(err error) bool {
	var e unavailableError
	return errors.As(err, &e)
}
