package authflow

import (
	"context"
	"io"
	"strings"
	"time"

	internalaudit "github.com/rkhondokar/authflow/internal/audit"
	internalmetrics "github.com/rkhondokar/authflow/internal/metrics"
)

// Role is the account role carried on access tokens.
type Role string

const (
	// RoleUser is an exported constant or variable used by the engine.
	RoleUser Role = "user"
	// RoleAdmin is an exported constant or variable used by the engine.
	RoleAdmin Role = "admin"
)

// Purpose identifies which OTP flow a verification record belongs to. A record
// is keyed by (identifier, purpose), so activation and reset codes for the same
// email never collide.
type Purpose string

const (
	// PurposeAccountActivation is an exported constant or variable used by the engine.
	PurposeAccountActivation Purpose = "account_activation"
	// PurposePasswordReset is an exported constant or variable used by the engine.
	PurposePasswordReset Purpose = "password_reset"
)

// Valid reports whether p is one of the two recognized OTP purposes.
func (p Purpose) Valid() bool {
	return p == PurposeAccountActivation || p == PurposePasswordReset
}

// Authentication is the per-user lockout sub-record. Only the lockout policy
// mutates it; a successful login is the sole path that resets the counters.
type Authentication struct {
	WrongLoginAttempts int
	IsRestricted       bool
	RestrictionLeftAt  *time.Time
}

// User is the account record exchanged with the [CredentialStore].
// PasswordHash is empty for social-only accounts.
type User struct {
	ID             string
	Email          string
	Name           string
	Role           Role
	PasswordHash   string
	Verified       bool
	AppID          string
	FCMToken       string
	Authentication Authentication
}

// UserSummary is the trimmed user shape included in auth responses.
type UserSummary struct {
	ID    string `json:"_id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

func (u *User) summary() UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// AuthResult is the success payload of the login, social-login, verify, and
// refresh operations. TempToken is set only after a password-reset OTP
// verification and authorizes exactly one ResetPassword call.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	TempToken    string
	Role         Role
	User         UserSummary
}

// FailureUpdate describes the atomic write a credential store must apply for a
// failed password check: always increment the wrong-attempt counter by one
// (store-side, never read-modify-write in the application), and when Lock is
// set, restrict the account until RestrictionUntil according to Strategy.
type FailureUpdate struct {
	Lock             bool
	RestrictionUntil time.Time
	Strategy         LockStrategy
}

// ResetUpdate describes the counter reset applied on a successful
// authentication: attempts to zero, restriction cleared. FCMToken, when
// non-empty, is persisted alongside; MarkVerified is set by the social-login
// trust boundary only.
type ResetUpdate struct {
	FCMToken     string
	MarkVerified bool
}

// CreateUserRequest is the input for [Engine.CreateUser]. Role defaults to
// [RoleUser] when empty.
type CreateUserRequest struct {
	Name     string `validate:"required,min=2"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
	Role     Role   `validate:"omitempty,oneof=user admin"`
}

// CredentialStore is the integration interface callers implement against their
// user database. The gormstore package ships the Postgres adapter.
//
// Counter mutations (RecordLoginFailure, ResetLoginState) must be atomic at the
// store so concurrent failed logins both count; see FailureUpdate.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByAppID(ctx context.Context, appID string) (*User, error)
	Create(ctx context.Context, user *User) error
	RecordLoginFailure(ctx context.Context, id string, update FailureUpdate) error
	ResetLoginState(ctx context.Context, id string, update ResetUpdate) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	Delete(ctx context.Context, id string) error
}

// NormalizeEmail lowercases and trims an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an io.Writer.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a counter in the in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricLoginSuccess is an exported constant or variable used by the engine.
	MetricLoginSuccess = internalmetrics.MetricLoginSuccess
	// MetricLoginFailure is an exported constant or variable used by the engine.
	MetricLoginFailure = internalmetrics.MetricLoginFailure
	// MetricLoginLocked is an exported constant or variable used by the engine.
	MetricLoginLocked = internalmetrics.MetricLoginLocked
	// MetricLoginUnverified is an exported constant or variable used by the engine.
	MetricLoginUnverified = internalmetrics.MetricLoginUnverified
	// MetricSocialLoginSuccess is an exported constant or variable used by the engine.
	MetricSocialLoginSuccess = internalmetrics.MetricSocialLoginSuccess
	// MetricOTPIssued is an exported constant or variable used by the engine.
	MetricOTPIssued = internalmetrics.MetricOTPIssued
	// MetricOTPThrottled is an exported constant or variable used by the engine.
	MetricOTPThrottled = internalmetrics.MetricOTPThrottled
	// MetricOTPVerified is an exported constant or variable used by the engine.
	MetricOTPVerified = internalmetrics.MetricOTPVerified
	// MetricOTPInvalid is an exported constant or variable used by the engine.
	MetricOTPInvalid = internalmetrics.MetricOTPInvalid
	// MetricOTPAttemptsExceeded is an exported constant or variable used by the engine.
	MetricOTPAttemptsExceeded = internalmetrics.MetricOTPAttemptsExceeded
	// MetricPasswordResetSuccess is an exported constant or variable used by the engine.
	MetricPasswordResetSuccess = internalmetrics.MetricPasswordResetSuccess
	// MetricPasswordChangeSuccess is an exported constant or variable used by the engine.
	MetricPasswordChangeSuccess = internalmetrics.MetricPasswordChangeSuccess
	// MetricRefreshSuccess is an exported constant or variable used by the engine.
	MetricRefreshSuccess = internalmetrics.MetricRefreshSuccess
	// MetricRefreshFailure is an exported constant or variable used by the engine.
	MetricRefreshFailure = internalmetrics.MetricRefreshFailure
	// MetricAccountCreated is an exported constant or variable used by the engine.
	MetricAccountCreated = internalmetrics.MetricAccountCreated
	// MetricAccountDeleted is an exported constant or variable used by the engine.
	MetricAccountDeleted = internalmetrics.MetricAccountDeleted
	// MetricEmailDispatched is an exported constant or variable used by the engine.
	MetricEmailDispatched = internalmetrics.MetricEmailDispatched
	// MetricEmailFailed is an exported constant or variable used by the engine.
	MetricEmailFailed = internalmetrics.MetricEmailFailed
)

// MetricsSnapshot is a point-in-time deep copy of all engine counters.
type MetricsSnapshot = internalmetrics.Snapshot
