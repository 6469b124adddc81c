// Package apierr defines the errors the operations API returns and their JSON
// form: {"error":{"code":...,"message":...,"details":{...}}}.
package apierr

import (
	"fmt"
	"maps"
	"net/http"
)

// Error carries a code, an HTTP status, a client-safe message, optional
// string details and an optional cause that is logged but never written.
type Error struct {
	code    Code
	message string
	status  int
	details map[string]string
	cause   error
}

func New(code Code, status int, message string) *Error {
	return &Error{code: code, message: message, status: status}
}

func Wrap(code Code, status int, message string, cause error) *Error {
	return &Error{code: code, message: message, status: status, cause: cause}
}

// With returns a copy of e with detail key set to value.
func (e *Error) With(key, value string) *Error {
	cp := *e
	cp.details = maps.Clone(e.details)
	if cp.details == nil {
		cp.details = make(map[string]string, 1)
	}
	cp.details[key] = value
	return &cp
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Code() Code { return e.code }

func (e *Error) Message() string { return e.message }

func (e *Error) Status() int { return e.status }

// Detail returns the detail stored under key, or "".
func (e *Error) Detail(key string) string { return e.details[key] }

// Temporary reports whether retrying the same request may succeed.
func (e *Error) Temporary() bool { return e.status == http.StatusServiceUnavailable }

// ErrorResponse is the body written for every API error.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *Error) Response() ErrorResponse {
	return ErrorResponse{Error: ErrorBody{Code: e.code, Message: e.message, Details: e.details}}
}
