package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kinds of failure the pipeline distinguishes. Match them with errors.Is.
var (
	ErrInput              = errors.New("invalid input")
	ErrFetch              = errors.New("fetch failed")
	ErrTranscription      = errors.New("transcription failed")
	ErrUnavailableBackend = errors.New("backend unavailable")
	ErrNotFound           = errors.New("not found")
	ErrStaleCache         = errors.New("stale chunk cache")
)

// Error is the error type shared by every tubescribe package.
type Error struct {
	Kind    error  `json:"-"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
	Code    int    `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func (e *Error) WithCause(cause error) *Error {
	clone := *e
	clone.Cause = cause
	return &clone
}

// New builds an Error of the given kind.
func New(kind error, cause error, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
		Code:    HTTPStatus(kind),
	}
}

func Newf(kind error, cause error, format string, args ...any) *Error {
	return New(kind, cause, fmt.Sprintf(format, args...))
}

func Input(message string) *Error {
	return New(ErrInput, nil, message)
}

func InvalidArg(arg string) *Error {
	return Newf(ErrInput, nil, "invalid argument: %s", arg)
}

func Fetch(source string, cause error) *Error {
	return Newf(ErrFetch, cause, "fetch %s", source)
}

func Transcription(index int, cause error) *Error {
	return Newf(ErrTranscription, cause, "transcribe chunk %d", index)
}

func Unavailable(backend string, cause error) *Error {
	return Newf(ErrUnavailableBackend, cause, "%s backend unavailable", backend)
}

func NotFound(what string) *Error {
	return Newf(ErrNotFound, nil, "%s not found", what)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// HTTPStatus maps an error kind to the status code the HTTP service answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrFetch):
		return http.StatusBadGateway
	case errors.Is(err, ErrUnavailableBackend):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTranscription):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
