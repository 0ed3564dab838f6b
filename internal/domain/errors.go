package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every typed error below unwraps to one of these so callers
// can branch with errors.Is without caring about the concrete type.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPermissionDenied  = errors.New("permission denied")
)

// ValidationError reports malformed input: empty labels, bad positions,
// non-permutation reorders, writes against an archived plan.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a reference to an entity absent from the plan.
type NotFoundError struct {
	Kind EntityKind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidTransitionError reports a status change outside the entity's state machine.
type InvalidTransitionError struct {
	Kind EntityKind
	ID   string
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %q cannot move from %s to %s", e.Kind, e.ID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// PermissionDeniedError is returned when the permission guard rejects an operation.
type PermissionDeniedError struct {
	ActorID   string
	Operation string
	Reasons   []string
}

func (e *PermissionDeniedError) Error() string {
	msg := fmt.Sprintf("actor %q may not perform %s", e.ActorID, e.Operation)
	if len(e.Reasons) > 0 {
		msg += ": " + strings.Join(e.Reasons, "; ")
	}
	return msg
}

func (e *PermissionDeniedError) Unwrap() error { return ErrPermissionDenied }

// ErrorCategory is the user-facing class of an error, letting presentation
// layers tell "fix your input" from "not allowed" from "stale reference".
type ErrorCategory string

const (
	CategoryInvalidInput      ErrorCategory = "invalid_input"
	CategoryNotFound          ErrorCategory = "not_found"
	CategoryInvalidTransition ErrorCategory = "invalid_transition"
	CategoryForbidden         ErrorCategory = "forbidden"
	CategoryInternal          ErrorCategory = "internal"
)

// CategoryOf classifies err. Nil errors have no category.
func CategoryOf(err error) ErrorCategory {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return CategoryForbidden
	case errors.Is(err, ErrValidation):
		return CategoryInvalidInput
	case errors.Is(err, ErrNotFound):
		return CategoryNotFound
	case errors.Is(err, ErrInvalidTransition):
		return CategoryInvalidTransition
	default:
		return CategoryInternal
	}
}

// Message returns the short, human-facing headline for a category.
func (c ErrorCategory) Message() string {
	switch c {
	case CategoryInvalidInput:
		return "Fix your input"
	case CategoryNotFound:
		return "Stale or unknown reference"
	case CategoryInvalidTransition:
		return "Status change not allowed"
	case CategoryForbidden:
		return "Not allowed"
	case CategoryInternal:
		return "Internal error"
	}
	return ""
}
