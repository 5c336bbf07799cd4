package authflow

import (
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/rkhondokar/authflow/internal/audit"
	"github.com/rkhondokar/authflow/internal/metrics"
	"github.com/rkhondokar/authflow/internal/verification"
	"github.com/rkhondokar/authflow/jwt"
	"github.com/rkhondokar/authflow/mail"
	"github.com/rkhondokar/authflow/password"
)

// Builder assembles an [Engine]. A Builder is single-use; Build fails on the
// second call.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store     CredentialStore
	mailer    mail.Mailer
	emailFrom string
	auditSink AuditSink
	logger    *slog.Logger

	built bool
}

// New starts a Builder with [DefaultConfig]. Token secrets, a redis client,
// and a credential store must still be supplied.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the redis client backing the verification store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the user database adapter.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithMailer sets the outbound email transport and sender address. When
// omitted, emails are discarded.
func (b *Builder) WithMailer(m mail.Mailer, from string) *Builder {
	b.mailer = m
	b.emailFrom = from
	return b
}

// WithAuditSink sets the audit event consumer.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and constructs the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		store:     b.store,
		emailFrom: b.emailFrom,
		now:       time.Now,
		validate:  validator.New(),
	}

	engine.verification = verification.NewStore(b.redis, verification.Config{
		CooldownSeconds: int(cfg.OTP.RequestCooldown / time.Second),
		MaxRequests:     cfg.OTP.MaxRequests,
		MaxAttempts:     cfg.OTP.MaxAttempts,
		CodeTTL:         cfg.OTP.CodeTTL,
		RecordTTL:       cfg.OTP.RecordTTL,
		Prefix:          cfg.OTP.RedisPrefix,
	})

	engine.mailer = b.mailer
	if engine.mailer == nil {
		engine.mailer = mail.Discard{}
	}

	engine.logger = b.logger
	if engine.logger == nil {
		engine.logger = slog.Default()
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = metrics.New(cfg.Metrics.Enabled)

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwords = ph

	jm, err := jwt.NewManager(jwt.Config{
		AccessSecret:  []byte(cfg.Token.AccessSecret),
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshSecret: []byte(cfg.Token.RefreshSecret),
		RefreshTTL:    cfg.Token.RefreshTTL,
		TempSecret:    []byte(cfg.Token.TempSecret),
		TempTTL:       cfg.Token.TempTTL,
		Issuer:        cfg.Token.Issuer,
	})
	if err != nil {
		return nil, err
	}
	engine.tokens = jm

	b.built = true

	return engine, nil
}
