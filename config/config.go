// Package config loads deployment settings for authflow-based services from
// environment variables, with an optional config.yaml override file.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/rkhondokar/authflow"
)

// Settings is the flat deployment configuration. Policy knobs default to the
// engine's baseline; secrets have no defaults and must be provided.
type Settings struct {
	ServerPort int `mapstructure:"SERVER_PORT"`

	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	MailgunAPIKey  string `mapstructure:"MAILGUN_API_KEY"`
	MailgunDomain  string `mapstructure:"MAILGUN_DOMAIN"`
	MailgunAPIBase string `mapstructure:"MAILGUN_API_BASE"`
	EmailFrom      string `mapstructure:"EMAIL_FROM"`

	MaxWrongAttempts   int    `mapstructure:"MAX_WRONG_ATTEMPTS"`
	RestrictionMinutes int    `mapstructure:"RESTRICTION_MINUTES"`
	LockoutStrategy    string `mapstructure:"LOCKOUT_STRATEGY"`

	OTPRequestCooldownSeconds int `mapstructure:"OTP_REQUEST_COOLDOWN_SECONDS"`
	MaxOTPAttempts            int `mapstructure:"MAX_OTP_ATTEMPTS"`
	MaxOTPRequestAllowed      int `mapstructure:"MAX_OTP_REQUEST_ALLOWED"`

	JWTSecret               string `mapstructure:"JWT_SECRET"`
	JWTExpiresInMinutes     int    `mapstructure:"JWT_EXPIRES_IN_MINUTES"`
	RefreshJWTSecret        string `mapstructure:"REFRESH_JWT_SECRET"`
	RefreshJWTExpiresInDays int    `mapstructure:"REFRESH_JWT_EXPIRES_IN_DAYS"`
	TempJWTSecret           string `mapstructure:"TEMP_JWT_SECRET"`
	TempJWTExpiresInMinutes int    `mapstructure:"TEMP_JWT_EXPIRES_IN_MINUTES"`

	TokenIssuer string `mapstructure:"TOKEN_ISSUER"`
}

// Load reads settings from the environment and, when present, a config.yaml in
// the working directory or /etc/authflow/. Environment variables win.
func Load() (*Settings, error) {
	v := viper.New()

	defaults := authflow.DefaultConfig()
	v.SetDefault("SERVER_PORT", 3000)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MAX_WRONG_ATTEMPTS", defaults.Lockout.MaxWrongAttempts)
	v.SetDefault("RESTRICTION_MINUTES", defaults.Lockout.RestrictionMinutes)
	v.SetDefault("LOCKOUT_STRATEGY", string(defaults.Lockout.Strategy))
	v.SetDefault("OTP_REQUEST_COOLDOWN_SECONDS", int(defaults.OTP.RequestCooldown/time.Second))
	v.SetDefault("MAX_OTP_ATTEMPTS", defaults.OTP.MaxAttempts)
	v.SetDefault("MAX_OTP_REQUEST_ALLOWED", defaults.OTP.MaxRequests)
	v.SetDefault("JWT_EXPIRES_IN_MINUTES", int(defaults.Token.AccessTTL/time.Minute))
	v.SetDefault("REFRESH_JWT_EXPIRES_IN_DAYS", int(defaults.Token.RefreshTTL/(24*time.Hour)))
	v.SetDefault("TEMP_JWT_EXPIRES_IN_MINUTES", int(defaults.Token.TempTTL/time.Minute))
	v.SetDefault("TOKEN_ISSUER", "authflow")

	v.AutomaticEnv()

	for _, key := range []string{
		"DATABASE_URL",
		"REDIS_PASSWORD",
		"MAILGUN_API_KEY",
		"MAILGUN_DOMAIN",
		"MAILGUN_API_BASE",
		"EMAIL_FROM",
		"JWT_SECRET",
		"REFRESH_JWT_SECRET",
		"TEMP_JWT_SECRET",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/authflow/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if s.JWTSecret == "" || s.RefreshJWTSecret == "" || s.TempJWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET, REFRESH_JWT_SECRET and TEMP_JWT_SECRET must be set")
	}

	return &s, nil
}

// AuthConfig maps the flat settings onto the engine configuration, starting
// from [authflow.DefaultConfig].
func (s *Settings) AuthConfig() authflow.Config {
	cfg := authflow.DefaultConfig()

	cfg.Lockout.MaxWrongAttempts = s.MaxWrongAttempts
	cfg.Lockout.RestrictionMinutes = s.RestrictionMinutes
	cfg.Lockout.Strategy = authflow.LockStrategy(s.LockoutStrategy)

	cfg.OTP.RequestCooldown = time.Duration(s.OTPRequestCooldownSeconds) * time.Second
	cfg.OTP.MaxAttempts = s.MaxOTPAttempts
	cfg.OTP.MaxRequests = s.MaxOTPRequestAllowed

	cfg.Token.AccessSecret = s.JWTSecret
	cfg.Token.AccessTTL = time.Duration(s.JWTExpiresInMinutes) * time.Minute
	cfg.Token.RefreshSecret = s.RefreshJWTSecret
	cfg.Token.RefreshTTL = time.Duration(s.RefreshJWTExpiresInDays) * 24 * time.Hour
	cfg.Token.TempSecret = s.TempJWTSecret
	cfg.Token.TempTTL = time.Duration(s.TempJWTExpiresInMinutes) * time.Minute
	cfg.Token.Issuer = s.TokenIssuer

	return cfg
}
