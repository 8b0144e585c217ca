// Package apperr defines the structured error taxonomy shared across the
// ingest pipeline, retrieval engine, storage layer and HTTP surface.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the six categories the HTTP layer
// and CLI know how to report. Keep this set closed — callers switch on it.
type Kind string

const (
	BadRequest   Kind = "bad_request"
	NotFound     Kind = "not_found"
	Validation   Kind = "validation"
	ModelError   Kind = "model_error"
	StorageError Kind = "storage_error"
	Internal     Kind = "internal"
)

// Error is a structured error carrying a Kind, a human message and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func New(kind Kind, format string, args ...any) *Error {
	return newErr(kind, nil, format, args...)
}

func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return newErr(kind, cause, format, args...)
}

func NewBadRequest(format string, args ...any) *Error { return New(BadRequest, format, args...) }
func NewNotFound(format string, args ...any) *Error   { return New(NotFound, format, args...) }
func NewValidation(format string, args ...any) *Error { return New(Validation, format, args...) }

func WrapModelError(cause error, format string, args ...any) *Error {
	return Wrap(ModelError, cause, format, args...)
}

func WrapStorageError(cause error, format string, args ...any) *Error {
	return Wrap(StorageError, cause, format, args...)
}

func WrapInternal(cause error, format string, args ...any) *Error {
	return Wrap(Internal, cause, format, args...)
}

// KindOf extracts the Kind from err, defaulting to Internal for plain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsKind reports whether err is an *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

var _ error = (*Error)(nil)
