package errors

import (
	"errors"
	"fmt"
)

// Common error types for the dashboard gateway
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrIncompleteLogin = errors.New("login requires both user and tokens")
	ErrInvalidCookie   = errors.New("invalid session cookie")
	ErrCorruptSession  = errors.New("corrupt session record")

	// OAuth flow errors
	ErrInvalidState = errors.New("invalid oauth state")
	ErrInvalidNonce = errors.New("invalid oauth nonce")

	// General errors
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
