package authflow

import (
	"context"
	"fmt"

	"github.com/rkhondokar/authflow/jwt"
)

// Refresh exchanges a valid refresh token for a fresh access token. The
// refresh token itself is not rotated. The user record is re-read so role and
// profile changes since login take effect on the next access token.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, "", "", false, err)
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	user, err := e.store.GetByID(ctx, claims.UID)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, claims.UID, "", false, err)
		return nil, err
	}

	access, err := e.tokens.SignAccess(user.ID, string(user.Role), user.Name, user.Email)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, user.ID, user.Email, true, nil)
	return &AuthResult{
		AccessToken: access,
		Role:        user.Role,
		User:        user.summary(),
	}, nil
}

// VerifyAccess validates an access token and returns its claims. It never
// touches storage; validity is decided purely by signature and expiry.
func (e *Engine) VerifyAccess(accessToken string) (*jwt.AccessClaims, error) {
	claims, err := e.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return claims, nil
}
