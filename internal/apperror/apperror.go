// Package apperror defines the error kinds surfaced by the API and the single
// JSON envelope every response is written in.
package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies an application error and determines its HTTP status.
type Kind int

const (
	// Internal covers persistence, signing and any unexpected failure.
	Internal Kind = iota
	// BadRequest signals missing or blank required input.
	BadRequest
	// Unauthorized signals a bad secret or a missing, invalid or expired token.
	Unauthorized
	// NotFound signals that a user does not exist or vanished.
	NotFound
	// Conflict signals a uniqueness violation.
	Conflict
)

// Status maps the kind to an HTTP status code.
func (k Kind) Status() int {
	switch k {
	case BadRequest:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case BadRequest:
		return "bad_request"
	case Unauthorized:
		return "unauthorized"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a tagged application error. Message is safe to show to clients;
// Err carries the underlying cause for server-side logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New returns an error of the given kind with a public message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an error of the given kind that keeps cause for logging.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind and message, so wrapped instances
// compare equal to their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// KindOf reports the kind of err, defaulting to Internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

const genericMessage = "Internal Server Error"

// PublicMessage returns the client-facing message for err.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return genericMessage
}
