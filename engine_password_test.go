package authflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rkhondokar/authflow/jwt"
)

// resetTempToken walks the full reset flow up to the temp token.
func resetTempToken(t *testing.T, engine *Engine, mailer *capturingMailer, email string) string {
	t.Helper()
	if err := engine.ForgetPassword(context.Background(), email); err != nil {
		t.Fatalf("ForgetPassword failed: %v", err)
	}
	result, err := engine.VerifyAccount(context.Background(), email, mailer.lastCode(t), PurposePasswordReset)
	if err != nil {
		t.Fatalf("VerifyAccount failed: %v", err)
	}
	if result.TempToken == "" {
		t.Fatal("expected a temp token from reset verification")
	}
	if result.AccessToken != "" || result.RefreshToken != "" {
		t.Fatal("reset verification must not open a session")
	}
	return result.TempToken
}

func TestResetPassword(t *testing.T) {
	store := newMockStore()
	engine, mailer := newTestEngine(t, engineTestConfig(), store)
	seedUser(t, engine, store, User{Email: "alice@example.com", Verified: true}, "old-password")

	temp := resetTempToken(t, engine, mailer, "alice@example.com")
	if err := engine.ResetPassword(context.Background(), temp, "brand-new-password"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	if _, err := engine.Login(context.Background(), "alice@example.com", "old-password", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, err := engine.Login(context.Background(), "alice@example.com", "brand-new-password", ""); err != nil {
		t.Fatalf("expected login with new password, got %v", err)
	}
}

func TestResetPasswordRejectsForeignTempToken(t *testing.T) {
	store := newMockStore()
	engine, _ := newTestEngine(t, engineTestConfig(), store)
	user := seedUser(t, engine, store, User{Email: "alice@example.com", Verified: true}, "old-password")

	// Same claims, same issuer, wrong signing key.
	foreign, err := jwt.NewManager(jwt.Config{
		AccessSecret:  []byte("other-access-secret"),
		AccessTTL:     time.Minute,
		RefreshSecret: []byte("other-refresh-secret"),
		RefreshTTL:    time.Minute,
		TempSecret:    []byte("other-temp-secret"),
		TempTTL:       time.Minute,
		Issuer:        "authflow-test",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	forged, err := foreign.SignTemp(user.ID, string(PurposePasswordReset))
	if err != nil {
		t.Fatalf("SignTemp failed: %v", err)
	}

	if err := engine.ResetPassword(context.Background(), forged, "brand-new-password"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for forged token, got %v", err)
	}
}

func TestResetPasswordRejectsAccessToken(t *testing.T) {
	store := newMockStore()
	engine, _ := newTestEngine(t, engineTestConfig(), store)
	seedUser(t, engine, store, User{Email: "alice@example.com", Verified: true}, "old-password")

	result, err := engine.Login(context.Background(), "alice@example.com", "old-password", "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := engine.ResetPassword(context.Background(), result.AccessToken, "brand-new-password"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for access token, got %v", err)
	}
}

func TestResetPasswordRejectsShortPassword(t *testing.T) {
	store := newMockStore()
	engine, mailer := newTestEngine(t, engineTestConfig(), store)
	seedUser(t, engine, store, User{Email: "alice@example.com", Verified: true}, "old-password")

	temp := resetTempToken(t, engine, mailer, "alice@example.com")
	if err := engine.ResetPassword(context.Background(), temp, "short"); err == nil {
		t.Fatal("expected short password to be rejected")
	}
	// The rejection must not have touched the stored hash.
	if _, err := engine.Login(context.Background(), "alice@example.com", "old-password", ""); err != nil {
		t.Fatalf("expected old password still valid, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	store := newMockStore()
	engine, _ := newTestEngine(t, engineTestConfig(), store)
	seedUser(t, engine, store, User{Email: "alice@example.com", Verified: true}, "old-password")

	result, err := engine.Login(context.Background(), "alice@example.com", "old-password", "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := engine.ChangePassword(context.Background(), result.AccessToken, "old-password", "brand-new-password"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if _, err := engine.Login(context.Background(), "alice@example.com", "old-password", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, err := engine.Login(context.Background(), "alice@example.com", "brand-new-password", ""); err != nil {
		t.Fatalf("expected login with new password, got %v", err)
	}
}

func TestChangePasswordRejectsReuse(t *testing.T) {
	store := newMockStore()
	engine, _ := newTestEngine(t, engineTestConfig(), store)
	seedUser(t, engine, store, User{Email: "alice@example.com", Verified: true}, "old-password")

	result, err := engine.Login(context.Background(), "alice@example.com", "old-password", "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := engine.ChangePassword(context.Background(), result.AccessToken, "old-password", "old-password"); !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("expected ErrPasswordReuse, got %v", err)
	}
}

func TestChangePasswordRequiresCurrentPassword(t *testing.T) {
	store := newMockStore()
	engine, _ := newTestEngine(t, engineTestConfig(), store)
	seedUser(t, engine, store, User{Email: "alice@example.com", Verified: true}, "old-password")

	result, err := engine.Login(context.Background(), "alice@example.com", "old-password", "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := engine.ChangePassword(context.Background(), result.AccessToken, "not-the-password", "brand-new-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestChangePasswordRejectsBadToken(t *testing.T) {
	store := newMockStore()
	engine, _ := newTestEngine(t, engineTestConfig(), store)
	seedUser(t, engine, store, User{Email: "alice@example.com", Verified: true}, "old-password")

	if err := engine.ChangePassword(context.Background(), "not-a-token", "old-password", "brand-new-password"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
