package authflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rkhondokar/authflow/internal/lockout"
)

// Login authenticates by email and password.
//
// The attempt walks a fixed sequence: lockout check, password check,
// verification check, success. An active restriction wins over everything,
// even a correct password. A wrong password escalates the lockout counters
// atomically at the store. A correct password on an unverified account issues
// an activation code as a side effect and still fails with
// [ErrAccountUnverified]. fcmToken, when non-empty, is persisted on success.
func (e *Engine) Login(ctx context.Context, email, pass, fcmToken string) (*AuthResult, error) {
	return e.login(ctx, email, pass, fcmToken, false)
}

// AdminLogin is Login restricted to admin accounts; everyone else gets
// [ErrUnauthorized] before any password processing.
func (e *Engine) AdminLogin(ctx context.Context, email, pass string) (*AuthResult, error) {
	return e.login(ctx, email, pass, "", true)
}

func (e *Engine) login(ctx context.Context, email, pass, fcmToken string, adminOnly bool) (*AuthResult, error) {
	email = NormalizeEmail(email)

	user, err := e.store.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, "", email, false, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if adminOnly && user.Role != RoleAdmin {
		e.emitAudit(ctx, auditEventLoginFailure, user.ID, email, false, ErrUnauthorized)
		return nil, ErrUnauthorized
	}

	if decision := lockout.Evaluate(lockState(user), e.now()); decision.Blocked {
		e.metrics.Inc(MetricLoginLocked)
		lockErr := &LockoutError{RetryAfterMinutes: decision.RetryAfterMinutes}
		e.emitAudit(ctx, auditEventLoginLocked, user.ID, email, false, lockErr)
		return nil, lockErr
	}

	if !e.checkPassword(user, pass) {
		return nil, e.recordLoginFailure(ctx, user, email)
	}

	if !user.Verified {
		if err := e.issueOTP(ctx, user, PurposeAccountActivation); err != nil {
			return nil, err
		}
		e.metrics.Inc(MetricLoginUnverified)
		e.emitAudit(ctx, auditEventLoginUnverified, user.ID, email, false, ErrAccountUnverified)
		return nil, ErrAccountUnverified
	}

	e.maybeRehash(ctx, user, pass)

	if err := e.store.ResetLoginState(ctx, user.ID, ResetUpdate{FCMToken: fcmToken}); err != nil {
		return nil, err
	}

	result, err := e.issueSession(user)
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, user.ID, email, true, nil)
	return result, nil
}

// SocialLogin authenticates an already-trusted external identity. The caller
// vouches for the assertion; this core never re-validates it. The account is
// marked verified unconditionally and the lockout counters are cleared.
func (e *Engine) SocialLogin(ctx context.Context, appID, fcmToken string) (*AuthResult, error) {
	user, err := e.store.GetByAppID(ctx, appID)
	if err != nil {
		return nil, err
	}

	update := ResetUpdate{FCMToken: fcmToken, MarkVerified: true}
	if err := e.store.ResetLoginState(ctx, user.ID, update); err != nil {
		return nil, err
	}
	user.Verified = true

	result, err := e.issueSession(user)
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(MetricSocialLoginSuccess)
	e.emitAudit(ctx, auditEventSocialLogin, user.ID, user.Email, true, nil)
	return result, nil
}

func (e *Engine) checkPassword(user *User, pass string) bool {
	// Social-only accounts have no hash; password login is never valid for them.
	if user.PasswordHash == "" {
		return false
	}
	ok, err := e.passwords.Verify(pass, user.PasswordHash)
	if err != nil {
		e.logger.Warn("stored password hash unreadable", slog.String("user_id", user.ID))
		return false
	}
	return ok
}

// recordLoginFailure escalates the lockout counters for one failed password
// check and returns the caller-facing error. The increment happens at the
// store so concurrent failures all count.
func (e *Engine) recordLoginFailure(ctx context.Context, user *User, email string) error {
	esc := lockout.Escalate(lockState(user), e.now(), lockout.Config{
		MaxWrongAttempts:    e.config.Lockout.MaxWrongAttempts,
		RestrictionDuration: e.config.Lockout.RestrictionDuration(),
		Strategy:            lockout.Strategy(e.config.Lockout.Strategy),
	})

	update := FailureUpdate{Strategy: e.config.Lockout.Strategy}
	if esc.Lock {
		update.Lock = true
		update.RestrictionUntil = esc.Until
		e.logger.Info("account restricted after repeated login failures",
			slog.String("user_id", user.ID),
			slog.Time("until", esc.Until))
	}
	if err := e.store.RecordLoginFailure(ctx, user.ID, update); err != nil {
		return err
	}

	e.metrics.Inc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, user.ID, email, false, ErrInvalidCredentials)
	return ErrInvalidCredentials
}

// maybeRehash upgrades the stored hash when cost parameters have been raised
// since it was written. Best-effort: the login proceeds either way.
func (e *Engine) maybeRehash(ctx context.Context, user *User, pass string) {
	needs, err := e.passwords.NeedsRehash(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.passwords.Hash(pass)
	if err != nil {
		return
	}
	if err := e.store.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		e.logger.Warn("password rehash not persisted", slog.String("user_id", user.ID), slog.Any("error", err))
	}
}

func (e *Engine) issueSession(user *User) (*AuthResult, error) {
	access, err := e.tokens.SignAccess(user.ID, string(user.Role), user.Name, user.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := e.tokens.SignRefresh(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		Role:         user.Role,
		User:         user.summary(),
	}, nil
}

func lockState(user *User) lockout.State {
	return lockout.State{
		WrongLoginAttempts: user.Authentication.WrongLoginAttempts,
		IsRestricted:       user.Authentication.IsRestricted,
		RestrictionLeftAt:  user.Authentication.RestrictionLeftAt,
	}
}
