package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidRole       = errors.New("invalid role")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError names the input field and the constraint it violated.
type ValidationError struct {
	Field      string
	Constraint string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Constraint)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError.
func Invalid(field, constraint string) error {
	return &ValidationError{Field: field, Constraint: constraint}
}

// InvalidTransitionError carries the statuses reachable from From so callers can offer them.
type InvalidTransitionError struct {
	From    string
	To      string
	Allowed []string
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("cannot move ticket from %q to %q: no transitions allowed", e.From, e.To)
	}
	return fmt.Sprintf("cannot move ticket from %q to %q: allowed %s", e.From, e.To, strings.Join(e.Allowed, ", "))
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// IsNotFound reports whether err resolves to a missing ticket or user.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTicketNotFound) || errors.Is(err, ErrUserNotFound)
}
