package core

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("permission denied")
	ErrConflict  = errors.New("already exists")
)

// NotFound wraps ErrNotFound with the missing entity reference.
func NotFound(kind fmt.Stringer, id string) error {
	return errors.Wrapf(ErrNotFound, "%s %q", kind, id)
}

// Forbidden wraps ErrForbidden with the reason the actor was denied.
func Forbidden(reason string) error {
	return errors.Wrap(ErrForbidden, reason)
}

// Conflict wraps ErrConflict with the violated uniqueness constraint.
func Conflict(what string) error {
	return errors.Wrap(ErrConflict, what)
}

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return NewValidationError(errors.New(field+": "+msg), FieldError{Field: field, Error: msg})
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// IsNotFound, IsForbidden & IsConflict look through wrapped errors.
func IsNotFound(err error) bool  { return errors.Is(err, ErrNotFound) }
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }
func IsConflict(err error) bool  { return errors.Is(err, ErrConflict) }

func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
