package authflow

import (
	"errors"
	"fmt"
)

var (
	// ErrTooManyAttempts signals an active login lockout. The concrete error is a
	// *LockoutError carrying the remaining wait in minutes.
	ErrTooManyAttempts = errors.New("account temporarily locked")
	// ErrInvalidCredentials covers both an unknown account and a wrong password;
	// the message is intentionally generic.
	ErrInvalidCredentials = errors.New("invalid credentials, please try again")
	// ErrAccountUnverified is returned for a correct password on an unverified
	// account. Issuing a fresh activation OTP is a side effect of this error path.
	ErrAccountUnverified = errors.New("account unverified, please verify your email")
	// ErrOTPThrottled signals OTP cooldown or request quota. The concrete error is
	// a *ThrottleError carrying the wait seconds or the quota flag.
	ErrOTPThrottled = errors.New("otp request throttled")
	// ErrInvalidOrExpiredCode covers OTP mismatch, expiry, and a consumed record.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired one-time code")
	// ErrUserNotFound is an exported constant or variable used by the engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned by CreateUser for a duplicate email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUnauthorized covers a missing, malformed, wrong-kind, or expired token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPasswordReuse is an exported constant or variable used by the engine.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrEngineNotReady is an exported constant or variable used by the engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrStoreUnavailable wraps credential store infrastructure failures.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrVerificationUnavailable wraps verification backend infrastructure failures.
	ErrVerificationUnavailable = errors.New("verification backend unavailable")
)

// LockoutError is the blocked-login outcome. It unwraps to [ErrTooManyAttempts]
// so callers can branch with errors.Is while still reading the wait time.
type LockoutError struct {
	RetryAfterMinutes int
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("account temporarily locked, try again in %d minutes", e.RetryAfterMinutes)
}

func (e *LockoutError) Unwrap() error { return ErrTooManyAttempts }

// ThrottleError is the refused-OTP-issuance outcome. Exactly one of the two
// fields is meaningful: WaitSeconds for an active cooldown, QuotaExhausted when
// the per-record request quota is spent. It unwraps to [ErrOTPThrottled].
type ThrottleError struct {
	WaitSeconds    int
	QuotaExhausted bool
}

func (e *ThrottleError) Error() string {
	if e.QuotaExhausted {
		return "maximum otp request limit reached, please try again later"
	}
	return fmt.Sprintf("please wait %d seconds before requesting a new code", e.WaitSeconds)
}

func (e *ThrottleError) Unwrap() error { return ErrOTPThrottled }
