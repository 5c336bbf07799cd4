package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	authflow "github.com/rkhondokar/authflow"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// metricsSource is the slice of the engine the exporter reads. Satisfied by
// *authflow.Engine; tests substitute fakes.
type metricsSource interface {
	MetricsSnapshot() authflow.MetricsSnapshot
	AuditDropped() uint64
}

type counterDef struct {
	id   authflow.MetricID
	name string
	help string
}

var counterDefs = []counterDef{
	{authflow.MetricLoginSuccess, "authflow_login_success_total", "Password logins that issued tokens."},
	{authflow.MetricLoginFailure, "authflow_login_failure_total", "Rejected login attempts."},
	{authflow.MetricLoginLocked, "authflow_login_locked_total", "Logins blocked by an active restriction."},
	{authflow.MetricLoginUnverified, "authflow_login_unverified_total", "Logins bounced to account activation."},
	{authflow.MetricSocialLoginSuccess, "authflow_social_login_success_total", "App-identity logins that issued tokens."},
	{authflow.MetricOTPIssued, "authflow_otp_issued_total", "Committed one-time-code issuances."},
	{authflow.MetricOTPThrottled, "authflow_otp_throttled_total", "Issuances rejected by cooldown or quota."},
	{authflow.MetricOTPVerified, "authflow_otp_verified_total", "Successful code consumptions."},
	{authflow.MetricOTPInvalid, "authflow_otp_invalid_total", "Wrong or expired code submissions."},
	{authflow.MetricOTPAttemptsExceeded, "authflow_otp_attempts_exceeded_total", "Codes invalidated by the attempt cap."},
	{authflow.MetricPasswordResetSuccess, "authflow_password_reset_success_total", "Completed password resets."},
	{authflow.MetricPasswordChangeSuccess, "authflow_password_change_success_total", "Completed password changes."},
	{authflow.MetricRefreshSuccess, "authflow_refresh_success_total", "Refresh exchanges that minted an access token."},
	{authflow.MetricRefreshFailure, "authflow_refresh_failure_total", "Rejected refresh tokens."},
	{authflow.MetricAccountCreated, "authflow_account_created_total", "New account registrations."},
	{authflow.MetricAccountDeleted, "authflow_account_deleted_total", "Account deletions."},
	{authflow.MetricEmailDispatched, "authflow_email_dispatched_total", "Verification emails handed to the mailer."},
	{authflow.MetricEmailFailed, "authflow_email_failed_total", "Mailer deliveries that returned an error."},
}

type observedCounter struct {
	id         authflow.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter bridges the engine's in-process counters onto an OpenTelemetry
// Meter through a single observable callback.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
	auditDropped metric.Int64ObservableCounter
}

// NewExporter registers observable instruments for every engine counter plus
// the audit drop counter, reading them from the engine on each collection.
func NewExporter(meter metric.Meter, engine *authflow.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource is NewExporter for an arbitrary snapshot source.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &Exporter{
		source:   source,
		counters: make([]observedCounter, 0, len(counterDefs)),
	}
	observables := make([]metric.Observable, 0, len(counterDefs)+1)

	for _, def := range counterDefs {
		ins, err := meter.Int64ObservableCounter(def.name, metric.WithDescription(def.help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.id, instrument: ins})
		observables = append(observables, ins)
	}

	auditDropped, err := meter.Int64ObservableCounter(
		"authflow_audit_dropped_total",
		metric.WithDescription("Dropped audit events due to dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}
		observer.ObserveInt64(exporter.auditDropped, int64(exporter.source.AuditDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

// Close unregisters the collection callback. Safe on a nil receiver.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
