package authflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rkhondokar/authflow/internal/audit"
	"github.com/rkhondokar/authflow/internal/metrics"
	"github.com/rkhondokar/authflow/internal/verification"
	"github.com/rkhondokar/authflow/jwt"
	"github.com/rkhondokar/authflow/mail"
	"github.com/rkhondokar/authflow/password"
)

const (
	auditEventLoginSuccess      = "login_success"
	auditEventLoginFailure      = "login_failure"
	auditEventLoginLocked       = "login_locked"
	auditEventLoginUnverified   = "login_unverified"
	auditEventSocialLogin       = "social_login_success"
	auditEventOTPIssued         = "otp_issued"
	auditEventOTPThrottled      = "otp_throttled"
	auditEventOTPVerified       = "otp_verified"
	auditEventOTPInvalid        = "otp_invalid"
	auditEventPasswordReset     = "password_reset"
	auditEventPasswordChanged   = "password_changed"
	auditEventRefreshSuccess    = "refresh_success"
	auditEventRefreshFailure    = "refresh_failure"
	auditEventAccountCreated    = "account_created"
	auditEventAccountDeleted    = "account_deleted"
	auditEventEmailDispatchFail = "email_dispatch_failed"
)

// Engine is the authentication and account-verification core. Construct it
// with [New]; the zero value is not usable. All methods are safe for
// concurrent use.
type Engine struct {
	config       Config
	store        CredentialStore
	verification *verification.Store
	tokens       *jwt.Manager
	passwords    *password.Argon2
	mailer       mail.Mailer
	emailFrom    string
	audit        *audit.Dispatcher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	validate     *validator.Validate

	now func() time.Time

	// syncMail makes email dispatch synchronous; tests only.
	syncMail bool
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// after Close.
func (e *Engine) Close() {
	e.audit.Close()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded under
// drop-if-full backpressure.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

func (e *Engine) emitAudit(ctx context.Context, eventType, userID, identifier string, success bool, failure error) {
	if e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp:  e.now().UTC(),
		EventType:  eventType,
		UserID:     userID,
		Identifier: identifier,
		Success:    success,
	}
	if failure != nil {
		event.Error = failure.Error()
	}
	e.audit.Emit(ctx, event)
}

// dispatchEmail hands a message to the mailer without blocking the request.
// Delivery failures are logged and audited but never surfaced to the caller.
func (e *Engine) dispatchEmail(email mail.Email) {
	send := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := e.mailer.Send(ctx, email); err != nil {
			e.metrics.Inc(MetricEmailFailed)
			e.logger.Error("email dispatch failed",
				slog.String("to", email.To),
				slog.String("subject", email.Subject),
				slog.Any("error", err))
			e.emitAudit(ctx, auditEventEmailDispatchFail, "", email.To, false, err)
			return
		}
		e.metrics.Inc(MetricEmailDispatched)
	}

	if e.syncMail {
		send()
		return
	}
	go send()
}
