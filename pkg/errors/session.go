package errors

import (
	"fmt"
)

/*
SessionError is returned by the session store. Code identifies the kind of
failure, so callers match with errors.Is against the sentinels below no matter
which message or cause a particular instance carries.
*/
type SessionError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

/*
Error implements the error interface for SessionError.
*/
func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

/*
Unwrap exposes the backend or codec error that caused this one.
*/
func (e *SessionError) Unwrap() error {
	return e.Err
}

/*
Is reports whether target is a SessionError of the same kind.
*/
func (e *SessionError) Is(target error) bool {
	other, ok := target.(*SessionError)
	return ok && other.Code == e.Code
}

// Error kinds. NotFound is not an error: lookups report absence with a bool.
var (
	ErrInvalidArgument = &SessionError{Code: 1, Message: "invalid argument"}
	ErrEncodingFailure = &SessionError{Code: 2, Message: "attribute encoding failed"}
	ErrBackendFailure  = &SessionError{Code: 3, Message: "backend operation failed"}
)

// WithMessagef creates a *copy* of a SessionError with a formatted message.
// It does not modify the original error variable.
func (e *SessionError) WithMessagef(format string, args ...any) *SessionError {
	newErr := *e
	newErr.Message = fmt.Sprintf(format, args...)
	return &newErr
}

// Wrap creates a copy of a SessionError carrying err as its cause.
func (e *SessionError) Wrap(err error) *SessionError {
	newErr := *e
	newErr.Err = err
	return &newErr
}
