package manager

import "errors"

// providerNotFoundError signals a request for a provider that is not registered.
type providerNotFoundError struct{ name string }

func (e providerNotFoundError) Error() string { return "provider not found: " + e.name }

// ErrProviderNotFound returns an error for an unknown provider name.
func ErrProviderNotFound(name string) error { return providerNotFoundError{name: name} }

// IsProviderNotFound reports whether err indicates an unknown provider (404).
func IsProviderNotFound(err error) bool {
	var e providerNotFoundError
	return errors.As(err, &e)
}

// invalidRequestError signals a request the manager refuses to forward (400).
type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string { return e.msg }

// ErrInvalidRequest constructs an invalidRequestError.
func ErrInvalidRequest(msg string) error { return invalidRequestError{msg: msg} }

// IsInvalidRequest reports whether err indicates a validation failure.
func IsInvalidRequest(err error) bool {
	var e invalidRequestError
	return errors.As(err, &e)
}
