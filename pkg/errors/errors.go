// Package errors carries the API error codes and their HTTP policy.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
	CodeTooLarge      Code = "PAYLOAD_TOO_LARGE"
	CodeNotConfirmed  Code = "CONFIRMATION_REQUIRED"
)

// Policy says how errors of one code reach a client. Fallback is sent when
// the error has no message of its own or when Masked hides it.
type Policy struct {
	Status   int
	Fallback string
	Masked   bool
	Details  bool
}

var policies = map[Code]Policy{
	CodeValidation:    {Status: http.StatusBadRequest, Fallback: "validation failed", Details: true},
	CodeUnauthorized:  {Status: http.StatusUnauthorized, Fallback: "authentication required"},
	CodeForbidden:     {Status: http.StatusForbidden, Fallback: "access denied"},
	CodeNotFound:      {Status: http.StatusNotFound, Fallback: "resource not found"},
	CodeConflict:      {Status: http.StatusConflict, Fallback: "conflict detected"},
	CodeStateConflict: {Status: http.StatusUnprocessableEntity, Fallback: "state transition disallowed", Details: true},
	CodeIdempotency:   {Status: http.StatusConflict, Fallback: "idempotency key reused", Details: true},
	CodeRateLimit:     {Status: http.StatusTooManyRequests, Fallback: "rate limit exceeded"},
	CodeInternal:      {Status: http.StatusInternalServerError, Fallback: "internal server error", Masked: true},
	CodeDependency:    {Status: http.StatusServiceUnavailable, Fallback: "dependency unavailable", Details: true},
	CodeTooLarge:      {Status: http.StatusRequestEntityTooLarge, Fallback: "payload too large", Details: true},
	CodeNotConfirmed:  {Status: http.StatusConflict, Fallback: "confirmation required"},
}

// PolicyFor falls back to the internal policy for unknown codes.
func PolicyFor(code Code) Policy {
	if p, ok := policies[code]; ok {
		return p
	}
	return policies[CodeInternal]
}

// Error is a coded error safe to hand to the response writer.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap keeps err as the cause. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

// Public returns the message and details a client may see.
func (e *Error) Public() (string, any) {
	p := PolicyFor(e.Code())
	msg := e.Message()
	if p.Masked || msg == "" {
		msg = p.Fallback
	}
	if !p.Details {
		return msg, nil
	}
	return msg, e.Details()
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Coder is implemented by domain errors that carry their own API mapping.
type Coder interface {
	APIError() *Error
}

// As returns the API mapping of err: a Coder wins over a plain *Error.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var coder Coder
	if stdErrors.As(err, &coder) {
		if mapped := coder.APIError(); mapped != nil {
			return mapped
		}
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err maps to code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
