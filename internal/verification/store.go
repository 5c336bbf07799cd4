// Package verification owns the Redis-backed OTP records keyed by
// (identifier, purpose). Issuance and consumption each run as a single Lua
// script so concurrent requests serialize at the store: the request counter is
// monotonic, cooldown is evaluated against the last committed issuance, and a
// code can be consumed exactly once.
package verification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound signals a missing verification record.
	ErrNotFound = errors.New("verification record not found")
	// ErrCodeExpired covers an absent record, an elapsed code TTL, and an
	// elapsed record TTL alike.
	ErrCodeExpired = errors.New("one-time code expired")
	// ErrCodeMismatch signals a wrong code against a live record.
	ErrCodeMismatch = errors.New("one-time code mismatch")
	// ErrAttemptsExceeded signals the per-code attempt cap was hit; the record
	// is deleted and a fresh issuance is required.
	ErrAttemptsExceeded = errors.New("one-time code attempts exceeded")
	// ErrQuotaExhausted signals the per-record request quota is spent.
	ErrQuotaExhausted = errors.New("otp request quota exhausted")
	// ErrRedisUnavailable wraps backend failures.
	ErrRedisUnavailable = errors.New("verification redis unavailable")
)

// CooldownError is returned by Issue while the request cooldown is active.
type CooldownError struct {
	WaitSeconds int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("otp cooldown active, wait %d seconds", e.WaitSeconds)
}

// Config holds the throttling policy enforced at issuance and consumption.
type Config struct {
	CooldownSeconds int
	MaxRequests     int
	MaxAttempts     int // 0 disables the per-code attempt cap
	CodeTTL         time.Duration
	RecordTTL       time.Duration
	Prefix          string
}

// Record is the decoded verification record, exposed for flows and tests.
type Record struct {
	OTPHash         string
	ExpiresAt       time.Time
	LatestRequestAt time.Time
	RequestCount    int
	Attempts        int
}

// Store performs all record mutations through Lua scripts; see the package
// comment for the atomicity contract.
type Store struct {
	redis  redis.UniversalClient
	config Config
}

// issueLua atomically enforces cooldown and request quota, then upserts the
// record with a fresh code hash and a reset attempt counter.
// KEYS[1] = record key
// ARGV[1] = now (unix seconds)
// ARGV[2] = cooldown seconds
// ARGV[3] = max requests
// ARGV[4] = new code hash (hex)
// ARGV[5] = code expiry (unix seconds)
// ARGV[6] = record TTL (milliseconds)
//
// Returns {status, n}: {"cooldown", waitSeconds} | {"quota", requestCount} |
// {"ok", requestCount}.
var issueLua = redis.NewScript(`
local now = tonumber(ARGV[1])
local cooldown = tonumber(ARGV[2])
local maxreq = tonumber(ARGV[3])

local last = redis.call('HGET', KEYS[1], 'last')
if last then
  local elapsed = now - tonumber(last)
  if elapsed < cooldown then
    return {'cooldown', cooldown - elapsed}
  end
end

local reqs = tonumber(redis.call('HGET', KEYS[1], 'reqs') or '0')
if reqs >= maxreq then
  return {'quota', reqs}
end

redis.call('HSET', KEYS[1], 'otp', ARGV[4], 'exp', ARGV[5], 'last', ARGV[1], 'tries', 0)
local count = redis.call('HINCRBY', KEYS[1], 'reqs', 1)
redis.call('PEXPIRE', KEYS[1], ARGV[6])
return {'ok', count}
`)

// consumeLua atomically validates a supplied code hash: expiry is checked
// before the comparison, a mismatch bumps the attempt counter (deleting the
// record once the cap is hit), and a match deletes the record so the code
// verifies exactly once.
// KEYS[1] = record key
// ARGV[1] = now (unix seconds)
// ARGV[2] = supplied code hash (hex)
// ARGV[3] = max attempts (0 disables the cap)
//
// Returns {status, n}: {"missing",0} | {"expired",0} | {"mismatch",tries} |
// {"exhausted",tries} | {"ok",0}.
var consumeLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {'missing', 0}
end

local now = tonumber(ARGV[1])
local exp = tonumber(redis.call('HGET', KEYS[1], 'exp') or '0')
if now > exp then
  redis.call('DEL', KEYS[1])
  return {'expired', 0}
end

local stored = redis.call('HGET', KEYS[1], 'otp')
if stored ~= ARGV[2] then
  local tries = redis.call('HINCRBY', KEYS[1], 'tries', 1)
  local maxtries = tonumber(ARGV[3])
  if maxtries > 0 and tries >= maxtries then
    redis.call('DEL', KEYS[1])
    return {'exhausted', tries}
  end
  return {'mismatch', tries}
end

redis.call('DEL', KEYS[1])
return {'ok', 0}
`)

// NewStore creates a verification store. Prefix defaults to "avr".
func NewStore(redisClient redis.UniversalClient, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = "avr"
	}
	return &Store{redis: redisClient, config: cfg}
}

func (s *Store) key(purpose, identifier string) string {
	return s.config.Prefix + ":" + purpose + ":" + identifier
}

// Issue upserts a fresh code hash for (identifier, purpose) and returns the
// committed request count. A prior unexpired code is always replaced, never
// reused; cooldown and quota gate the replacement.
func (s *Store) Issue(ctx context.Context, purpose, identifier, otpHash string, now time.Time) (int, error) {
	res, err := issueLua.Run(ctx, s.redis,
		[]string{s.key(purpose, identifier)},
		now.Unix(),
		s.config.CooldownSeconds,
		s.config.MaxRequests,
		otpHash,
		now.Add(s.config.CodeTTL).Unix(),
		s.config.RecordTTL.Milliseconds(),
	).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	status, n, err := decodeScriptReply(res)
	if err != nil {
		return 0, err
	}
	switch status {
	case "cooldown":
		return 0, &CooldownError{WaitSeconds: n}
	case "quota":
		return n, ErrQuotaExhausted
	case "ok":
		return n, nil
	default:
		return 0, fmt.Errorf("%w: unexpected issue status %q", ErrRedisUnavailable, status)
	}
}

// Consume validates the supplied code hash and deletes the record on match.
func (s *Store) Consume(ctx context.Context, purpose, identifier, otpHash string, now time.Time) error {
	res, err := consumeLua.Run(ctx, s.redis,
		[]string{s.key(purpose, identifier)},
		now.Unix(),
		otpHash,
		s.config.MaxAttempts,
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	status, _, err := decodeScriptReply(res)
	if err != nil {
		return err
	}
	switch status {
	case "missing", "expired":
		return ErrCodeExpired
	case "mismatch":
		return ErrCodeMismatch
	case "exhausted":
		return ErrAttemptsExceeded
	case "ok":
		return nil
	default:
		return fmt.Errorf("%w: unexpected consume status %q", ErrRedisUnavailable, status)
	}
}

// Get reads the record without mutating it.
func (s *Store) Get(ctx context.Context, purpose, identifier string) (*Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(purpose, identifier)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	record := &Record{OTPHash: fields["otp"]}
	if v, err := strconv.ParseInt(fields["exp"], 10, 64); err == nil {
		record.ExpiresAt = time.Unix(v, 0)
	}
	if v, err := strconv.ParseInt(fields["last"], 10, 64); err == nil {
		record.LatestRequestAt = time.Unix(v, 0)
	}
	record.RequestCount, _ = strconv.Atoi(fields["reqs"])
	record.Attempts, _ = strconv.Atoi(fields["tries"])
	return record, nil
}

// Delete drops the record, used when a flow invalidates a pending code out of
// band (e.g. account deletion).
func (s *Store) Delete(ctx context.Context, purpose, identifier string) error {
	if err := s.redis.Del(ctx, s.key(purpose, identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func decodeScriptReply(res interface{}) (string, int, error) {
	arr, ok := res.([]interface{})
	if !ok || len(arr) != 2 {
		return "", 0, fmt.Errorf("%w: unexpected lua result shape", ErrRedisUnavailable)
	}
	status, ok := arr[0].(string)
	if !ok {
		return "", 0, fmt.Errorf("%w: unexpected lua status type", ErrRedisUnavailable)
	}
	n, ok := arr[1].(int64)
	if !ok {
		return "", 0, fmt.Errorf("%w: unexpected lua count type", ErrRedisUnavailable)
	}
	return status, int(n), nil
}
