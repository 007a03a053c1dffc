package authcore

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidCredentials covers both "no such user" and "wrong
	// password"; callers must not be able to tell the two apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTooManyAttempts is returned while a brute-force lockout is active.
	ErrTooManyAttempts = errors.New("too many attempts")
	// ErrAccountDisabled is returned when the account exists but has been
	// deactivated.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrUserExists is returned by registration when the email is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is returned by operations addressed to a user id
	// that does not resolve.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenInvalid is the uniform access-token failure; signature,
	// expiry, and malformed-token failures are indistinguishable.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrSessionNotFound is returned when a token verifies but its session
	// has been ended.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshInvalid is returned for refresh tokens that fail signature
	// checks or match no stored grant.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshExpired is returned for refresh tokens past their expiry.
	ErrRefreshExpired = errors.New("refresh token expired")
	// ErrRefreshRevoked is returned for refresh tokens that matched a
	// stored grant which has since been revoked.
	ErrRefreshRevoked = errors.New("refresh token revoked")
	// ErrPasswordMismatch is returned when the new password and its
	// confirmation differ.
	ErrPasswordMismatch = errors.New("password confirmation mismatch")
	// ErrPasswordReuse is returned when the new password verifies against
	// the current hash.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrResetInvalid covers unknown, expired, and already-used password
	// reset tokens.
	ErrResetInvalid = errors.New("password reset token invalid")
	// ErrDecryptionFailed is returned when an encrypted profile blob fails
	// authentication or is malformed.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrValidation is the sentinel wrapped by [ValidationError].
	ErrValidation = errors.New("validation failed")
	// ErrBackendUnavailable wraps store and cache connectivity failures.
	// The underlying detail is logged, never surfaced.
	ErrBackendUnavailable = errors.New("auth backend unavailable")
	// ErrEngineNotReady guards calls on a partially constructed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ValidationError reports malformed input rejected before any store access.
// It unwraps to [ErrValidation] so callers can match the whole class.
type ValidationError struct {
	Field  string
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("validation failed: %s", e.Field)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, strings.Join(e.Issues, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(field string, issues ...string) *ValidationError {
	return &ValidationError{Field: field, Issues: issues}
}
