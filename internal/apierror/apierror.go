package apierror

import (
	"fmt"
	"net/http"
)

// An Error represents an error rendered by the mock API.
// The Zotero Web API renders errors as plain text messages.
type Error struct {
	HTTPCode int
	Message  string
	// Version is rendered as Last-Modified-Version when positive.
	Version int
}

// StatusCode returns the HTTP status code.
func StatusCode(err error) int {
	if e, ok := err.(*Error); ok {
		return e.HTTPCode
	}
	return http.StatusInternalServerError
}

// New returns a new Error with the given code and message.
func New(code int, message string) *Error {
	return &Error{HTTPCode: code, Message: message}
}

// Newf returns a new Error with the given code and formatted message.
func Newf(code int, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// PreconditionFailed returns a new 412 Error carrying the current version.
func PreconditionFailed(message string, version int) *Error {
	return &Error{HTTPCode: http.StatusPreconditionFailed, Message: message, Version: version}
}

// Error implements error interface.
func (e *Error) Error() string {
	return e.Message
}
