// Package errors provides the structured error type shared by the tile
// engine, the archive and the protocol layer
package errors

// Always import this package as perr

import (
	stderrs "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies an error for the caller
type ErrorCode uint16

const (
	// ErrorCodeUnknown is for unclassified errors
	ErrorCodeUnknown ErrorCode = iota

	// ErrorCodeInvalidGeometry is for zero-sized grids or non-invertible transforms
	ErrorCodeInvalidGeometry

	// ErrorCodeLoadFailure is for archive loads that fail or return the wrong shape
	ErrorCodeLoadFailure

	// ErrorCodeInconsistentInputs is for product and mask sequences that cannot be paired
	ErrorCodeInconsistentInputs

	// ErrorCodeInvalidArgument is for bad request or configuration values
	ErrorCodeInvalidArgument

	// ErrorCodeNotFound is for missing layers, styles, datasets or blobs
	ErrorCodeNotFound
)

// String returns a stable name for the code
func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeInvalidGeometry:
		return "InvalidGeometry"
	case ErrorCodeLoadFailure:
		return "LoadFailure"
	case ErrorCodeInconsistentInputs:
		return "InconsistentInputs"
	case ErrorCodeInvalidArgument:
		return "InvalidArgument"
	case ErrorCodeNotFound:
		return "NotFound"
	default:
		return "Unknown"
	}
}

// HTTPStatusCode turns an ErrorCode into an http status code
func HTTPStatusCode(c ErrorCode) int {
	switch c {
	case ErrorCodeInvalidArgument, ErrorCodeInvalidGeometry:
		return http.StatusBadRequest
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeLoadFailure, ErrorCodeInconsistentInputs, ErrorCodeUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is the structured error type with wrapping and metadata
// msg is developer facing; code is machine facing; op is an optional
// operation tag; orig is the wrapped cause
type Error struct {
	orig error
	msg  string
	code ErrorCode
	op   string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.msg
	if e.op != "" {
		msg = e.op + ": " + msg
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", msg, e.orig)
	}
	return msg
}

// Unwrap returns the wrapped error, if any
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Op returns the operation label, if set
func (e *Error) Op() string { return e.op }

// Message returns the message without the wrapped cause
func (e *Error) Message() string { return e.msg }

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf extracts an ErrorCode from any error, defaulting to Unknown
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err has the given code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// HTTPStatus returns the mapped HTTP status for any error
func HTTPStatus(err error) int { return HTTPStatusCode(CodeOf(err)) }

// WithOp attaches an operation label to an *Error (copy-on-write). If err isn't *Error, returns err unchanged
func WithOp(err error, op string) error {
	if e, ok := As(err); ok {
		c := *e
		c.op = op
		return &c
	}
	return err
}

// New returns a new *Error with the given code and message
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf returns a new *Error with code and formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns a new *Error that wraps orig with code and message
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf returns a new *Error that wraps orig with code and formatted message
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// InvalidGeometryf returns an invalid geometry error
func InvalidGeometryf(format string, a ...any) error {
	return Newf(ErrorCodeInvalidGeometry, format, a...)
}

// LoadFailuref returns a load failure error
func LoadFailuref(format string, a ...any) error { return Newf(ErrorCodeLoadFailure, format, a...) }

// Inconsistentf returns an inconsistent inputs error
func Inconsistentf(format string, a ...any) error {
	return Newf(ErrorCodeInconsistentInputs, format, a...)
}

// InvalidArgf returns an invalid argument error
func InvalidArgf(format string, a ...any) error { return Newf(ErrorCodeInvalidArgument, format, a...) }

// NotFoundf returns a not found error
func NotFoundf(format string, a ...any) error { return Newf(ErrorCodeNotFound, format, a...) }
