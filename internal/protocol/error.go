package protocol

import (
	"errors"
	"fmt"
)

// Failure codes carried by Error. Anything a client does not recognize is
// treated like CodeUnknown.
const (
	// CodeOpenCancelled marks an open that was superseded by a newer open.
	// Clients surface it as information, never as a failure.
	CodeOpenCancelled = "open_cancelled"
	CodeNotFound      = "not_found"
	CodeInvalid       = "invalid_argument"
	CodeConflict      = "conflict"
	CodeUnknown       = "unknown_error"
)

// Error is a structured gateway failure that survives the wire.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Errf builds an Error with a formatted message.
func Errf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError extracts the structured Error from err, normalizing anything else
// to CodeUnknown so callers always see a known shape.
func AsError(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return &Error{Code: CodeUnknown, Message: err.Error()}
}

// IsCode reports whether err carries the given failure code.
func IsCode(err error, code string) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == code
}
