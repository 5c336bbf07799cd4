// Package metrics implements the engine's in-process counters: fixed-slot
// atomic counters read lock-free on the hot path, exported wholesale through
// Snapshot for pull-based exporters.
package metrics

import "sync/atomic"

// MetricID indexes one engine counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts password logins that issued tokens.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts wrong-password rejections.
	MetricLoginFailure
	// MetricLoginLocked counts logins rejected by an active restriction.
	MetricLoginLocked
	// MetricLoginUnverified counts logins bounced to account activation.
	MetricLoginUnverified
	// MetricSocialLoginSuccess counts app-identity logins that issued tokens.
	MetricSocialLoginSuccess
	// MetricOTPIssued counts committed one-time-code issuances.
	MetricOTPIssued
	// MetricOTPThrottled counts issuances rejected by cooldown or quota.
	MetricOTPThrottled
	// MetricOTPVerified counts successful code consumptions.
	MetricOTPVerified
	// MetricOTPInvalid counts wrong or expired code submissions.
	MetricOTPInvalid
	// MetricOTPAttemptsExceeded counts codes invalidated by the attempt cap.
	MetricOTPAttemptsExceeded
	// MetricPasswordResetSuccess counts completed password resets.
	MetricPasswordResetSuccess
	// MetricPasswordChangeSuccess counts completed password changes.
	MetricPasswordChangeSuccess
	// MetricRefreshSuccess counts refresh exchanges that minted a new access token.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh tokens.
	MetricRefreshFailure
	// MetricAccountCreated counts new account registrations.
	MetricAccountCreated
	// MetricAccountDeleted counts account deletions.
	MetricAccountDeleted
	// MetricEmailDispatched counts verification emails handed to the mailer.
	MetricEmailDispatched
	// MetricEmailFailed counts mailer deliveries that returned an error.
	MetricEmailFailed
	// MetricIDCount is the number of defined counters; exporters size their tables
	// with it.
	MetricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds the counter slots. A nil *Metrics is inert.
type Metrics struct {
	enabled  bool
	counters [MetricIDCount]paddedCounter
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Counters map[MetricID]uint64
}

func New(enabled bool) *Metrics {
	return &Metrics{enabled: enabled}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{Counters: map[MetricID]uint64{}}
	}

	s := Snapshot{Counters: make(map[MetricID]uint64, int(MetricIDCount))}
	for id := MetricID(0); id < MetricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
