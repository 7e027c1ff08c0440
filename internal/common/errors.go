package common

import "errors"

// AppError attaches a stable machine code, an HTTP status and a retry hint
// to a failed operation so transport layers can render it without parsing
// error strings.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	// Retryable marks failures the caller may reasonably repeat, such as an
	// upstream timeout or an open circuit breaker.
	Retryable bool
	Err       error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap lets errors.Is and errors.As see through to the cause.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// AsAppError extracts an AppError from anywhere in the chain.
func AsAppError(err error) (*AppError, bool) {
	var target *AppError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
