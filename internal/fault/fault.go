// Package fault defines the error taxonomy shared by the warfare core.
// Every operation failure resolves to one of four kinds via errors.Is;
// validation and permission messages are safe to show to players,
// internal errors are not.
package fault

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrNotFound   = errors.New("not found")
	ErrPermission = errors.New("permission denied")
	ErrValidation = errors.New("validation failed")
	ErrInternal   = errors.New("internal error")
)

// NotFoundf builds a not-found error with a user-facing message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// Permissionf builds a permission error with a user-facing message.
func Permissionf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrPermission)
}

// Validationf builds a validation error with a user-facing message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

// Internal wraps a storage or infrastructure error. The cause stays in
// the chain for logging; callers surface only the generic kind.
func Internal(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, err, ErrInternal)
}

// UserFacing reports whether the error message may be shown verbatim
// to the player.
func UserFacing(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPermission) ||
		errors.Is(err, ErrValidation)
}
