package authflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// CreateUser registers a new unverified account and starts its activation
// flow: the password is hashed, the record persisted, and an activation code
// issued and emailed. Duplicate emails fail with [ErrEmailTaken].
func (e *Engine) CreateUser(ctx context.Context, req CreateUserRequest) (*UserSummary, error) {
	if err := e.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid signup request: %w", err)
	}

	role := req.Role
	if role == "" {
		role = RoleUser
	}

	hash, err := e.passwords.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        NormalizeEmail(req.Email),
		Name:         req.Name,
		Role:         role,
		PasswordHash: hash,
		Verified:     false,
	}
	if err := e.store.Create(ctx, user); err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricAccountCreated)
	e.emitAudit(ctx, auditEventAccountCreated, user.ID, user.Email, true, nil)

	// Signup has already committed; an issuance hiccup here must not undo it.
	// The user can request a fresh code through ResendOTP.
	if err := e.issueOTP(ctx, user, PurposeAccountActivation); err != nil {
		e.logger.Warn("activation code not issued at signup",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}

	summary := user.summary()
	return &summary, nil
}

// DeleteAccount removes the authenticated account after re-verifying its
// password. Pending verification codes for the email are dropped alongside.
func (e *Engine) DeleteAccount(ctx context.Context, accessToken, pass string) error {
	claims, err := e.tokens.ParseAccess(accessToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	user, err := e.store.GetByID(ctx, claims.UID)
	if err != nil {
		return err
	}
	if !e.checkPassword(user, pass) {
		e.emitAudit(ctx, auditEventAccountDeleted, user.ID, user.Email, false, ErrInvalidCredentials)
		return ErrInvalidCredentials
	}

	if err := e.store.Delete(ctx, user.ID); err != nil {
		return err
	}

	// Best-effort cleanup; orphaned records age out on their own TTL.
	for _, purpose := range []Purpose{PurposeAccountActivation, PurposePasswordReset} {
		if err := e.verification.Delete(ctx, string(purpose), user.Email); err != nil {
			e.logger.Warn("verification record cleanup failed",
				slog.String("user_id", user.ID),
				slog.Any("error", err))
		}
	}

	e.metrics.Inc(MetricAccountDeleted)
	e.emitAudit(ctx, auditEventAccountDeleted, user.ID, user.Email, true, nil)
	return nil
}
