package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rkhondokar/authflow/internal"
	"github.com/rkhondokar/authflow/internal/verification"
	"github.com/rkhondokar/authflow/mail"
)

// issueOTP mints a fresh code for (user, purpose), commits it through the
// verification store, and dispatches the matching email. Cooldown and quota
// come back as *ThrottleError; the plaintext code never leaves this function
// except inside the outbound email.
func (e *Engine) issueOTP(ctx context.Context, user *User, purpose Purpose) error {
	code, err := internal.NewOTP(e.config.OTP.Digits)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}

	_, err = e.verification.Issue(ctx, string(purpose), user.Email, internal.HashOTP(code), e.now())
	if err != nil {
		var cooldown *verification.CooldownError
		switch {
		case errors.As(err, &cooldown):
			e.metrics.Inc(MetricOTPThrottled)
			throttle := &ThrottleError{WaitSeconds: cooldown.WaitSeconds}
			e.emitAudit(ctx, auditEventOTPThrottled, user.ID, user.Email, false, throttle)
			return throttle
		case errors.Is(err, verification.ErrQuotaExhausted):
			e.metrics.Inc(MetricOTPThrottled)
			throttle := &ThrottleError{QuotaExhausted: true}
			e.emitAudit(ctx, auditEventOTPThrottled, user.ID, user.Email, false, throttle)
			return throttle
		default:
			return fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
		}
	}

	e.metrics.Inc(MetricOTPIssued)
	e.emitAudit(ctx, auditEventOTPIssued, user.ID, user.Email, true, nil)
	e.logger.Info("one-time code issued",
		slog.String("user_id", user.ID),
		slog.String("purpose", string(purpose)))

	ttlMinutes := int(e.config.OTP.CodeTTL / time.Minute)
	var email mail.Email
	if purpose == PurposePasswordReset {
		email = mail.PasswordResetEmail(e.emailFrom, user.Email, user.Name, code, ttlMinutes)
	} else {
		email = mail.ActivationEmail(e.emailFrom, user.Email, user.Name, code, ttlMinutes)
	}
	e.dispatchEmail(email)

	return nil
}

// ResendOTP re-issues the code for (email, purpose). Throttling is entirely
// the verification store's decision; there is no lockout interaction.
func (e *Engine) ResendOTP(ctx context.Context, email string, purpose Purpose) error {
	if !purpose.Valid() {
		return fmt.Errorf("%w: unknown purpose %q", ErrInvalidOrExpiredCode, purpose)
	}
	email = NormalizeEmail(email)

	user, err := e.store.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	return e.issueOTP(ctx, user, purpose)
}

// ForgetPassword starts the password-reset flow. The response is identical
// whether or not the account exists; issuance is silently skipped for unknown
// emails so the endpoint cannot be used for enumeration. Throttling of the
// caller's own repeated requests still surfaces.
func (e *Engine) ForgetPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	user, err := e.store.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		e.emitAudit(ctx, auditEventOTPIssued, "", email, false, ErrUserNotFound)
		return nil
	}
	if err != nil {
		return err
	}
	return e.issueOTP(ctx, user, PurposePasswordReset)
}

// VerifyAccount consumes a one-time code. For account activation the account
// is marked verified and a full session is issued; for password reset the
// result carries only a temp token authorizing one ResetPassword call.
// A code verifies exactly once: mismatch, expiry, a consumed record, and an
// exceeded attempt cap all come back as [ErrInvalidOrExpiredCode].
func (e *Engine) VerifyAccount(ctx context.Context, email, code string, purpose Purpose) (*AuthResult, error) {
	if !purpose.Valid() {
		return nil, fmt.Errorf("%w: unknown purpose %q", ErrInvalidOrExpiredCode, purpose)
	}
	email = NormalizeEmail(email)

	user, err := e.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	err = e.verification.Consume(ctx, string(purpose), email, internal.HashOTP(code), e.now())
	switch {
	case err == nil:
	case errors.Is(err, verification.ErrAttemptsExceeded):
		e.metrics.Inc(MetricOTPAttemptsExceeded)
		e.emitAudit(ctx, auditEventOTPInvalid, user.ID, email, false, err)
		return nil, ErrInvalidOrExpiredCode
	case errors.Is(err, verification.ErrCodeMismatch), errors.Is(err, verification.ErrCodeExpired):
		e.metrics.Inc(MetricOTPInvalid)
		e.emitAudit(ctx, auditEventOTPInvalid, user.ID, email, false, err)
		return nil, ErrInvalidOrExpiredCode
	default:
		return nil, fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}

	e.metrics.Inc(MetricOTPVerified)
	e.emitAudit(ctx, auditEventOTPVerified, user.ID, email, true, nil)

	if purpose == PurposePasswordReset {
		temp, err := e.tokens.SignTemp(user.ID, string(PurposePasswordReset))
		if err != nil {
			return nil, err
		}
		return &AuthResult{
			TempToken: temp,
			Role:      user.Role,
			User:      user.summary(),
		}, nil
	}

	if err := e.store.ResetLoginState(ctx, user.ID, ResetUpdate{MarkVerified: true}); err != nil {
		return nil, err
	}
	user.Verified = true
	return e.issueSession(user)
}
