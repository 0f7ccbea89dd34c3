package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Murmur error code.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"     // 400
	ErrNotFound           ErrorCode = "NOT_FOUND"           // 404
	ErrFileNotFound       ErrorCode = "FILE_NOT_FOUND"      // 404
	ErrGeneratorExhausted ErrorCode = "GENERATOR_EXHAUSTED" // 502
	ErrPage               ErrorCode = "PAGE"                // 502
	ErrStorage            ErrorCode = "STORAGE"             // 500
	ErrInternal           ErrorCode = "INTERNAL"            // 500
)

// MurmurError represents a structured error with code, status, and details.
type MurmurError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *MurmurError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *MurmurError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *MurmurError {
	return &MurmurError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing record.
func NewNotFound(key string) *MurmurError {
	return &MurmurError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("record not found: %s", key),
		Details: map[string]any{"key": key},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *MurmurError {
	return &MurmurError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewGeneratorExhausted creates a 502 error when the text generator
// gave up after its own retries.
func NewGeneratorExhausted(attempts int, err error) *MurmurError {
	msg := fmt.Sprintf("generator failed after %d attempts", attempts)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &MurmurError{
		Code:    ErrGeneratorExhausted,
		Status:  502,
		Message: msg,
		Details: map[string]any{"attempts": attempts},
		cause:   err,
	}
}

// NewPage creates a 502 error for page automation failures.
func NewPage(action string, err error) *MurmurError {
	msg := action + " failed"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &MurmurError{
		Code:    ErrPage,
		Status:  502,
		Message: msg,
		Details: map[string]any{"action": action},
		cause:   err,
	}
}

// NewStorage creates a 500 error for record store read/write failures.
func NewStorage(op string, err error) *MurmurError {
	msg := op + " failed"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &MurmurError{
		Code:    ErrStorage,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *MurmurError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &MurmurError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error (or anything it wraps) is a MurmurError with the given code.
func Is(err error, code ErrorCode) bool {
	var mErr *MurmurError
	if stderrors.As(err, &mErr) {
		return mErr.Code == code
	}
	return false
}
