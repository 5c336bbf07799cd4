package authflow

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoginSuccess(t *testing.T) {
	store := newMockStore()
	engine, _ := newTestEngine(t, engineTestConfig(), store)
	user := seedUser(t, engine, store, User{Email: "alice@example.com", Name: "Alice", Verified: true}, "correct-password")

	result, err := engine.Login(context.Background(), "alice@example.com", "correct-password", "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected both session tokens")
	}
	if result.TempToken != "" {
		t.Fatal("expected no temp token on login")
	}
	if result.User.ID != user.ID || result.Role != RoleUser {
		t.Fatalf("unexpected result: %+v", result)
	}

	claims, err := engine.VerifyAccess(result.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess failed: %v", err)
	}
	if claims.UID != user.ID || claims.Email != "alice@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestLoginUnknownAccountAndWrongPasswordLookAlike(t *testing.T) {
	store := newMockStore()
	engine, _ := newTestEngine(t, engineTestConfig(), store)
	seedUser(t, engine, store, User{Email: "alice@example.com", Verified: true}, "correct-password")

	_, errUnknown := engine.Login(context.Background(), "nobody@example.com", "whatever-pass", "")
	_, errWrong := engine.Login(context.Background(), "alice@example.com", "wrong-password", "")

	if !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", errUnknown)
	}
	if !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatal("unknown-account and wrong-password messages must be identical")
	}
}

func TestLoginLockoutAfterMaxAttempts(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Lockout.MaxWrongAttempts = 3
	cfg.Lockout.RestrictionMinutes = 15

	store := newMockStore()
	engine, _ := newTestEngine(t, cfg, store)
	now := time.Now()
	setNow(engine, now)
	user := seedUser(t, engine, store, User{Email: "alice@example.com", Verified: true}, "correct-password")

	for i := 0; i < 3; i++ {
		if _, err := engine.Login(context.Background(), "alice@example.com", "wrong-password", ""); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	state := store.get(t, user.ID).Authentication
	if state.WrongLoginAttempts != 3 || !state.IsRestricted {
		t.Fatalf("expected locked state, got %+v", state)
	}
	if state.RestrictionLeftAt == nil || !state.RestrictionLeftAt.Equal(now.Add(15*time.Minute)) {
		t.Fatalf("unexpected restriction expiry: %v", state.RestrictionLeftAt)
	}

	// Correct password is irrelevant while the restriction is active.
	_, err := engine.Login(context.Background(), "alice@example.com", "correct-password", "")
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
	var locked *LockoutError
	if !errors.As(err, &locked) {
		t.Fatalf("expected *LockoutError, got %T", err)
	}
	if locked.RetryAfterMinutes != 15 {
		t.Fatalf("expected 15 minutes remaining, got %d", locked.RetryAfterMinutes)
	}
}

func TestLoginAllowedAfterRestrictionElapses(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Lockout.MaxWrongAttempts = 2

	store := newMockStore()
	engine, _ := newTestEngine(t, cfg, store)
	now := time.Now()
	setNow(engine, now)
	user := seedUser(t, engine, store, User{Email: "alice@example.com", Verified: true}, "correct-password")

	for i := 0; i < 2; i++ {
		_, _ = engine.Login(context.Background(), "alice@example.com", "wrong-password", "")
	}
	if _, err := engine.Login(context.Background(), "alice@example.com", "correct-password", ""); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected lockout, got %v", err)
	}

	setNow(engine, now.Add(16*time.Minute))
	if _, err := engine.Login(context.Background(), "alice@example.com", "correct-password", ""); err != nil {
		t.Fatalf("expected login after expiry, got %v", err)
	}

	state := store.get(t, user.ID).Authentication
	if state.WrongLoginAttempts != 0 || state.IsRestricted || state.RestrictionLeftAt != nil {
		t.Fatalf("expected counters reset, got %+v", state)
	}
}

func TestLoginSuccessResetsCountersAndStoresFCMToken(t *testing.T) {
	store := newMockStore()
	engine, _ := newTestEngine(t, engineTestConfig(), store)
	user := seedUser(t, engine, store, User{Email: "alice@example.com", Verified: true}, "correct-password")

	for i := 0; i < 2; i++ {
		_, _ = engine.Login(context.Background(), "alice@example.com", "wrong-password", "")
	}
	if _, err := engine.Login(context.Background(), "alice@example.com", "correct-password", "fcm-device-1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	got := store.get(t, user.ID)
	if got.Authentication.WrongLoginAttempts != 0 || got.Authentication.IsRestricted {
		t.Fatalf("expected counters reset, got %+v", got.Authentication)
	}
	if got.FCMToken != "fcm-device-1" {
		t.Fatalf("expected fcm token persisted, got %q", got.FCMToken)
	}
}

func TestLoginExtendStrategyNeverShortens(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Lockout.MaxWrongAttempts = 1
	cfg.Lockout.RestrictionMinutes = 5
	cfg.Lockout.Strategy = StrategyExtend

	store := newMockStore()
	engine, _ := newTestEngine(t, cfg, store)
	now := time.Now()
	setNow(engine, now)
	user := seedUser(t, engine, store, User{Email: "alice@example.com", Verified: true}, "correct-password")

	// Stale lock: expiry still 10 minutes out, but the flag was left unset, so
	// the next failure escalates rather than blocks.
	existing := now.Add(10 * time.Minute)
	store.byID[user.ID].Authentication.RestrictionLeftAt = &existing

	if _, err := engine.Login(context.Background(), "alice@example.com", "wrong-password", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	state := store.get(t, user.ID).Authentication
	if !state.IsRestricted {
		t.Fatal("expected restriction")
	}
	// New lock computed at now+5m must not shorten the existing now+10m expiry.
	if !state.RestrictionLeftAt.Equal(existing) {
		t.Fatalf("extend must keep the later expiry %v, got %v", existing, state.RestrictionLeftAt)
	}
}

func TestLoginUnverifiedIssuesActivationCode(t *testing.T) {
	store := newMockStore()
	engine, mailer := newTestEngine(t, engineTestConfig(), store)
	user := seedUser(t, engine, store, User{Email: "alice@example.com", Name: "Alice", Verified: false}, "correct-password")

	_, err := engine.Login(context.Background(), "alice@example.com", "correct-password", "")
	if !errors.Is(err, ErrAccountUnverified) {
		t.Fatalf("expected ErrAccountUnverified, got %v", err)
	}

	record, err := engine.verification.Get(context.Background(), string(PurposeAccountActivation), user.Email)
	if err != nil {
		t.Fatalf("expected verification record, got %v", err)
	}
	if record.RequestCount != 1 {
		t.Fatalf("expected request count 1, got %d", record.RequestCount)
	}
	if mailer.count() != 1 {
		t.Fatalf("expected one activation email, got %d", mailer.count())
	}
	if mailer.last(t).To != "alice@example.com" {
		t.Fatalf("unexpected recipient: %q", mailer.last(t).To)
	}
	mailer.lastCode(t)
}

func TestLoginUnverifiedRepeatWithinCooldownSurfacesThrottle(t *testing.T) {
	store := newMockStore()
	engine, _ := newTestEngine(t, engineTestConfig(), store)
	now := time.Now()
	setNow(engine, now)
	seedUser(t, engine, store, User{Email: "alice@example.com", Verified: false}, "correct-password")

	if _, err := engine.Login(context.Background(), "alice@example.com", "correct-password", ""); !errors.Is(err, ErrAccountUnverified) {
		t.Fatalf("expected ErrAccountUnverified, got %v", err)
	}

	setNow(engine, now.Add(10*time.Second))
	_, err := engine.Login(context.Background(), "alice@example.com", "correct-password", "")
	if !errors.Is(err, ErrOTPThrottled) {
		t.Fatalf("expected ErrOTPThrottled, got %v", err)
	}
	var throttle *ThrottleError
	if !errors.As(err, &throttle) {
		t.Fatalf("expected *ThrottleError, got %T", err)
	}
	if throttle.WaitSeconds != 50 {
		t.Fatalf("expected 50 seconds wait, got %d", throttle.WaitSeconds)
	}
}

func TestSocialLoginMarksVerifiedAndClearsCounters(t *testing.T) {
	store := newMockStore()
	engine, _ := newTestEngine(t, engineTestConfig(), store)
	user := seedUser(t, engine, store, User{Email: "alice@example.com", AppID: "google-123", Verified: false}, "")
	store.byID[user.ID].Authentication.WrongLoginAttempts = 4

	result, err := engine.SocialLogin(context.Background(), "google-123", "fcm-device-2")
	if err != nil {
		t.Fatalf("SocialLogin failed: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected session tokens")
	}

	got := store.get(t, user.ID)
	if !got.Verified {
		t.Fatal("expected social login to mark account verified")
	}
	if got.Authentication.WrongLoginAttempts != 0 {
		t.Fatalf("expected counters cleared, got %+v", got.Authentication)
	}
	if got.FCMToken != "fcm-device-2" {
		t.Fatalf("expected fcm token persisted, got %q", got.FCMToken)
	}
}

func TestSocialLoginUnknownIdentity(t *testing.T) {
	store := newMockStore()
	engine, _ := newTestEngine(t, engineTestConfig(), store)

	if _, err := engine.SocialLogin(context.Background(), "unknown-app-id", ""); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSocialOnlyAccountCannotPasswordLogin(t *testing.T) {
	store := newMockStore()
	engine, _ := newTestEngine(t, engineTestConfig(), store)
	seedUser(t, engine, store, User{Email: "alice@example.com", AppID: "google-123", Verified: true}, "")

	if _, err := engine.Login(context.Background(), "alice@example.com", "any-password", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAdminLogin(t *testing.T) {
	store := newMockStore()
	engine, _ := newTestEngine(t, engineTestConfig(), store)
	seedUser(t, engine, store, User{Email: "root@example.com", Role: RoleAdmin, Verified: true}, "admin-password")
	seedUser(t, engine, store, User{Email: "alice@example.com", Verified: true}, "user-password")

	result, err := engine.AdminLogin(context.Background(), "root@example.com", "admin-password")
	if err != nil {
		t.Fatalf("AdminLogin failed: %v", err)
	}
	if result.Role != RoleAdmin {
		t.Fatalf("expected admin role, got %q", result.Role)
	}

	if _, err := engine.AdminLogin(context.Background(), "alice@example.com", "user-password"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-admin, got %v", err)
	}
}

func TestLoginMetrics(t *testing.T) {
	store := newMockStore()
	engine, _ := newTestEngine(t, engineTestConfig(), store)
	seedUser(t, engine, store, User{Email: "alice@example.com", Verified: true}, "correct-password")

	_, _ = engine.Login(context.Background(), "alice@example.com", "wrong-password", "")
	_, _ = engine.Login(context.Background(), "alice@example.com", "correct-password", "")

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("expected 1 failure, got %d", snap.Counters[MetricLoginFailure])
	}
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("expected 1 success, got %d", snap.Counters[MetricLoginSuccess])
	}
}
