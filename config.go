package authflow

import (
	"errors"
	"time"
)

// LockStrategy selects how a freshly computed restriction window merges with an
// existing one on the account.
type LockStrategy string

const (
	// StrategyOverwrite unconditionally replaces the restriction expiry.
	StrategyOverwrite LockStrategy = "OVERWRITE"
	// StrategyExtend never shortens an existing future restriction: the new
	// expiry is applied only when it is later than the stored one.
	StrategyExtend LockStrategy = "EXTEND"
)

// Config defines the policy knobs of the engine. Instances are treated as
// immutable after [Builder.Build].
type Config struct {
	Lockout  LockoutConfig
	OTP      OTPConfig
	Token    TokenConfig
	Password PasswordConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// LockoutConfig controls brute-force escalation on password failures.
type LockoutConfig struct {
	MaxWrongAttempts   int
	RestrictionMinutes int
	Strategy           LockStrategy
}

// RestrictionDuration returns the lock window as a duration.
func (c LockoutConfig) RestrictionDuration() time.Duration {
	return time.Duration(c.RestrictionMinutes) * time.Minute
}

// OTPConfig controls one-time-code issuance and verification.
//
// RecordTTL is the hard lifetime of a verification record, refreshed on every
// issuance; once it elapses the record is replaced wholesale and the request
// quota starts over.
type OTPConfig struct {
	Digits          int
	CodeTTL         time.Duration
	RecordTTL       time.Duration
	RequestCooldown time.Duration
	MaxRequests     int
	MaxAttempts     int
	RedisPrefix     string
}

// TokenConfig carries the three independent signing contexts. A token of one
// kind must never validate against another kind's secret, so the three secrets
// are required to be pairwise distinct.
type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	TempSecret    string
	TempTTL       time.Duration
	Issuer        string
}

// PasswordConfig mirrors the argon2id parameters of the password package.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline policy used when the Builder receives no
// explicit configuration. Token secrets have no defaults and must be supplied.
func DefaultConfig() Config {
	return Config{
		Lockout: LockoutConfig{
			MaxWrongAttempts:   5,
			RestrictionMinutes: 15,
			Strategy:           StrategyOverwrite,
		},
		OTP: OTPConfig{
			Digits:          6,
			CodeTTL:         3 * time.Minute,
			RecordTTL:       15 * time.Minute,
			RequestCooldown: 60 * time.Second,
			MaxRequests:     5,
			MaxAttempts:     5,
			RedisPrefix:     "avr",
		},
		Token: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
			TempTTL:    10 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

func validateConfig(cfg Config) error {
	if cfg.Lockout.MaxWrongAttempts <= 0 {
		return errors.New("lockout: MaxWrongAttempts must be positive")
	}
	if cfg.Lockout.RestrictionMinutes <= 0 {
		return errors.New("lockout: RestrictionMinutes must be positive")
	}
	switch cfg.Lockout.Strategy {
	case StrategyOverwrite, StrategyExtend:
	default:
		return errors.New("lockout: unknown strategy")
	}
	if cfg.OTP.Digits < 4 || cfg.OTP.Digits > 10 {
		return errors.New("otp: Digits must be between 4 and 10")
	}
	if cfg.OTP.CodeTTL <= 0 || cfg.OTP.RecordTTL <= 0 {
		return errors.New("otp: CodeTTL and RecordTTL must be positive")
	}
	if cfg.OTP.RecordTTL < cfg.OTP.CodeTTL {
		return errors.New("otp: RecordTTL must not be shorter than CodeTTL")
	}
	if cfg.OTP.RequestCooldown < 0 {
		return errors.New("otp: RequestCooldown must not be negative")
	}
	if cfg.OTP.MaxRequests <= 0 {
		return errors.New("otp: MaxRequests must be positive")
	}
	if cfg.Token.AccessSecret == "" || cfg.Token.RefreshSecret == "" || cfg.Token.TempSecret == "" {
		return errors.New("token: all three secrets must be set")
	}
	if cfg.Token.AccessSecret == cfg.Token.RefreshSecret ||
		cfg.Token.AccessSecret == cfg.Token.TempSecret ||
		cfg.Token.RefreshSecret == cfg.Token.TempSecret {
		return errors.New("token: secrets must be pairwise distinct")
	}
	if cfg.Token.AccessTTL <= 0 || cfg.Token.RefreshTTL <= 0 || cfg.Token.TempTTL <= 0 {
		return errors.New("token: TTLs must be positive")
	}
	return nil
}
