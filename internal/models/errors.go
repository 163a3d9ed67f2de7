package models

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an extraction failure.
type ErrorCode string

const (
	// ErrInvalidIdentifier means the article failed the format check; no
	// fetch was attempted.
	ErrInvalidIdentifier ErrorCode = "invalid_identifier"
	// ErrFetchTimeout means the wall-clock deadline elapsed before the
	// worker returned.
	ErrFetchTimeout ErrorCode = "fetch_timeout"
	// ErrFetchTransport means a network or HTTP failure during the
	// structured fetch.
	ErrFetchTransport ErrorCode = "fetch_transport"
	// ErrWorkerCrashed means the worker process terminated abnormally.
	ErrWorkerCrashed ErrorCode = "worker_crashed"
	// ErrNoUsableData means the page yielded a degenerate snapshot,
	// most likely an anti-automation block.
	ErrNoUsableData ErrorCode = "no_usable_data"
	// ErrOutOfStock means the listing is explicitly unavailable. This is
	// a meaningful terminal state, not a failure to retry blindly.
	ErrOutOfStock ErrorCode = "out_of_stock"
)

// ExtractionError is the tagged failure type returned by the engine. It is
// JSON-marshalable so worker processes can report it losslessly over stdout.
type ExtractionError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func NewExtractionError(code ErrorCode, msg string) *ExtractionError {
	return &ExtractionError{Code: code, Message: msg}
}

func WrapExtractionError(code ErrorCode, msg string, cause error) *ExtractionError {
	return &ExtractionError{Code: code, Message: msg, Cause: cause}
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// CodeOf returns the error code carried by err, or empty if err is not an
// ExtractionError.
func CodeOf(err error) ErrorCode {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
