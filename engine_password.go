package authflow

import (
	"context"
	"fmt"
)

// ResetPassword sets a new password for the account named by a temp token.
// The temp token is the only accepted credential; it comes from a verified
// password-reset code and nothing else. The old password is not required.
func (e *Engine) ResetPassword(ctx context.Context, tempToken, newPassword string) error {
	claims, err := e.tokens.ParseTemp(tempToken, string(PurposePasswordReset))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if err := e.validate.Var(newPassword, "required,min=8"); err != nil {
		return fmt.Errorf("invalid new password: %w", err)
	}

	user, err := e.store.GetByID(ctx, claims.UID)
	if err != nil {
		return err
	}

	hash, err := e.passwords.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.store.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}

	e.metrics.Inc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordReset, user.ID, user.Email, true, nil)
	return nil
}

// ChangePassword rotates the password of an authenticated account. Unlike
// ResetPassword it requires the current password, and it rejects a new
// password identical to the old one.
func (e *Engine) ChangePassword(ctx context.Context, accessToken, oldPassword, newPassword string) error {
	claims, err := e.tokens.ParseAccess(accessToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if err := e.validate.Var(newPassword, "required,min=8"); err != nil {
		return fmt.Errorf("invalid new password: %w", err)
	}
	if newPassword == oldPassword {
		return ErrPasswordReuse
	}

	user, err := e.store.GetByID(ctx, claims.UID)
	if err != nil {
		return err
	}
	if !e.checkPassword(user, oldPassword) {
		e.emitAudit(ctx, auditEventPasswordChanged, user.ID, user.Email, false, ErrInvalidCredentials)
		return ErrInvalidCredentials
	}

	hash, err := e.passwords.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.store.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}

	e.metrics.Inc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChanged, user.ID, user.Email, true, nil)
	return nil
}
