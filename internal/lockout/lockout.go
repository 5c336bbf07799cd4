// Package lockout implements the progressive login-lockout policy: the blocked
// check evaluated before a password comparison, and the escalation computed
// after a failed one.
//
// The policy is pure. It never touches storage; callers apply the resulting
// escalation through an atomic credential-store write so concurrent failures
// all count.
package lockout

import (
	"math"
	"time"
)

// Strategy selects how a new restriction window merges with an existing one.
type Strategy string

const (
	// StrategyOverwrite unconditionally replaces the stored expiry.
	StrategyOverwrite Strategy = "OVERWRITE"
	// StrategyExtend applies the new expiry only when it is later than the
	// stored one, so an existing window is never shortened.
	StrategyExtend Strategy = "EXTEND"
)

// Config holds the escalation knobs.
type Config struct {
	MaxWrongAttempts    int
	RestrictionDuration time.Duration
	Strategy            Strategy
}

// State is a snapshot of the account's authentication sub-record.
type State struct {
	WrongLoginAttempts int
	IsRestricted       bool
	RestrictionLeftAt  *time.Time
}

// Decision is the outcome of the pre-password lock check.
type Decision struct {
	Blocked           bool
	RetryAfterMinutes int
}

// Escalation is the outcome of recording one more failed password check.
// Attempts is the post-increment counter value the policy reasoned about;
// the store still performs its own atomic increment-by-one.
type Escalation struct {
	Attempts int
	Lock     bool
	Until    time.Time
	Strategy Strategy
}

// Evaluate reports whether a login attempt is blocked right now.
//
// Expiry is lazy: once now has reached RestrictionLeftAt the account counts as
// unlocked even while IsRestricted is still set; only a successful login
// clears the flag.
func Evaluate(s State, now time.Time) Decision {
	if !s.IsRestricted || s.RestrictionLeftAt == nil {
		return Decision{}
	}
	if !now.Before(*s.RestrictionLeftAt) {
		return Decision{}
	}
	remaining := s.RestrictionLeftAt.Sub(now)
	return Decision{
		Blocked:           true,
		RetryAfterMinutes: int(math.Ceil(remaining.Minutes())),
	}
}

// Escalate computes the write for one more failed password check. The lock
// triggers when the incremented counter reaches the configured threshold.
func Escalate(s State, now time.Time, cfg Config) Escalation {
	attempts := s.WrongLoginAttempts + 1
	esc := Escalation{
		Attempts: attempts,
		Strategy: cfg.Strategy,
	}
	if attempts >= cfg.MaxWrongAttempts {
		esc.Lock = true
		esc.Until = now.Add(cfg.RestrictionDuration)
	}
	return esc
}

// MergeRestriction resolves the expiry a store should persist given an
// existing value and a strategy. Stores with server-side conditional updates
// (SQL CASE, document $max) should prefer those; this helper defines the
// reference semantics and serves in-memory implementations.
func MergeRestriction(existing *time.Time, proposed time.Time, strategy Strategy) time.Time {
	if strategy == StrategyExtend && existing != nil && existing.After(proposed) {
		return *existing
	}
	return proposed
}
