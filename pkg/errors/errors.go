// Package errors provides structured error types for knit.
//
// Error codes let the CLI and the HTTP API report failures consistently:
// handlers translate a [Code] into a status code, the CLI prints the
// [UserMessage] without the code prefix.
//
// # Error Codes
//
// Codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - *NOT_FOUND: Resource not found
//   - CONFLICT: State transition not allowed
//   - STORAGE, INTERNAL_*: Backend failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodePersonNotFound, "person %s not found", id)
//	if errors.Is(err, errors.ErrCodePersonNotFound) {
//	    // Handle missing person
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeStorage, origErr, "load space %s", spaceID)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput        Code = "INVALID_INPUT"
	ErrCodeInvalidSnapshot     Code = "INVALID_SNAPSHOT"
	ErrCodeInvalidFormat       Code = "INVALID_FORMAT"
	ErrCodeInvalidStatus       Code = "INVALID_STATUS"
	ErrCodeInvalidRelationship Code = "INVALID_RELATIONSHIP"
	ErrCodeInvalidID           Code = "INVALID_ID"

	// Resource not found errors
	ErrCodeNotFound       Code = "NOT_FOUND"
	ErrCodePersonNotFound Code = "PERSON_NOT_FOUND"
	ErrCodeSpaceNotFound  Code = "SPACE_NOT_FOUND"

	// State errors
	ErrCodeConflict    Code = "CONFLICT"
	ErrCodeRateLimited Code = "RATE_LIMITED"

	// Backend errors
	ErrCodeStorage     Code = "STORAGE"
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Category groups codes that callers handle the same way.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryInvalid
	CategoryNotFound
	CategoryConflict
	CategoryThrottled
	CategoryBackend
)

var categories = map[Code]Category{
	ErrCodeInvalidInput:        CategoryInvalid,
	ErrCodeInvalidSnapshot:     CategoryInvalid,
	ErrCodeInvalidFormat:       CategoryInvalid,
	ErrCodeInvalidStatus:       CategoryInvalid,
	ErrCodeInvalidRelationship: CategoryInvalid,
	ErrCodeInvalidID:           CategoryInvalid,
	ErrCodeNotFound:            CategoryNotFound,
	ErrCodePersonNotFound:      CategoryNotFound,
	ErrCodeSpaceNotFound:       CategoryNotFound,
	ErrCodeConflict:            CategoryConflict,
	ErrCodeRateLimited:         CategoryThrottled,
	ErrCodeStorage:             CategoryBackend,
	ErrCodeInternal:            CategoryBackend,
	ErrCodeUnsupported:         CategoryBackend,
}

// Category returns the category of c. Unregistered codes are CategoryUnknown.
func (c Code) Category() Category { return categories[c] }

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return Wrap(code, nil, format, args...)
}

// Wrap creates an Error around cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// as returns the outermost *Error in err's chain.
func as(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// Is reports whether the outermost *Error in err's chain has code.
func Is(err error, code Code) bool {
	return GetCode(err) == code && code != ""
}

// GetCode returns the code of the outermost *Error in err's chain, or "".
func GetCode(err error) Code {
	if e, ok := as(err); ok {
		return e.Code
	}
	return ""
}

// UserMessage returns the message of a coded error without its code
// prefix and cause, and the plain text of any other error.
func UserMessage(err error) string {
	if e, ok := as(err); ok {
		return e.Message
	}
	return err.Error()
}

// IsNotFound reports whether err carries a not-found code.
func IsNotFound(err error) bool { return GetCode(err).Category() == CategoryNotFound }

// IsInvalid reports whether err carries one of the INVALID_* codes.
func IsInvalid(err error) bool { return GetCode(err).Category() == CategoryInvalid }
