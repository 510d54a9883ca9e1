package lockout

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"time"

	"homeboard-sync/internal/observability/metrics"
	"homeboard-sync/internal/repository"
)

// defaultMemoryKeys bounds the advisory failure memory.
const defaultMemoryKeys = 4096

// attemptRecord is the durable per-identity failure state, stored under the
// hashed identity key with a TTL equal to the lockout window.
type attemptRecord struct {
	FailedCount int   `json:"failedCount"`
	LockedUntil int64 `json:"lockedUntil"`
	UpdatedAt   int64 `json:"updatedAt"`
}

// Outcome is the verdict of a credential check.
type Outcome int

const (
	// Allowed: the credential matched and the identity is not locked.
	Allowed Outcome = iota
	// WrongPassword: the credential did not match; Remaining attempts left.
	WrongPassword
	// Locked: the identity is locked out, regardless of the credential.
	Locked
)

// Result carries the verdict plus the metadata the handler reveals to the
// client: remaining attempts before lockout, or the lock expiry.
type Result struct {
	Outcome     Outcome
	Remaining   int
	RetryAfter  time.Duration
	LockedUntil int64
}

// Notifier receives lockout transitions. Implementations must not block the
// request path for long; alerting is best-effort.
type Notifier interface {
	NotifyLockout(ctx context.Context, tier string, failedCount int, lockedUntil time.Time) error
}

// Service is the tiered auth rate limiter. State lives in the storage
// backend so lockouts survive restarts and are shared across instances;
// the advisory memory only optimizes cleanup and is safe to lose.
type Service struct {
	store    repository.Backend
	clock    Clock
	ttl      time.Duration
	memory   *recentFailures
	notifier Notifier
	logger   *slog.Logger
}

// NewService creates a lockout service. notifier may be nil.
func NewService(store repository.Backend, ttl time.Duration, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	clock := Clock(&SystemClock{})
	return &Service{
		store:    store,
		clock:    clock,
		ttl:      ttl,
		memory:   newRecentFailures(defaultMemoryKeys, ttl, clock),
		notifier: notifier,
		logger:   logger,
	}
}

// SetClock replaces the time source (tests only); it also rebuilds the
// advisory memory so both run on the same clock.
func (s *Service) SetClock(clock Clock) {
	s.clock = clock
	s.memory = newRecentFailures(defaultMemoryKeys, s.ttl, clock)
}

// CheckAndRecord enforces the lockout state machine around one credential
// comparison. The lock is checked before the comparison result is honored:
// an identity already locked is rejected even when it presents the correct
// credential, preserving the recorded lockout window.
//
// forceClear makes a successful check always issue the durable
// attempt-record delete, bypassing the advisory memory. The explicit login
// and auth-status endpoints set it, guaranteeing eventual cleanup even after
// the memory evicted the identity.
//
// Storage failures degrade open with a warning: losing brute-force
// accounting is preferable to locking every admin out on a backend outage.
func (s *Service) CheckAndRecord(ctx context.Context, id Identity, provided, expected string, forceClear bool) Result {
	now := s.clock.Now()
	rec := s.load(ctx, id.Key)

	if rec != nil && rec.LockedUntil > now.UnixMilli() {
		return s.lockedResult(rec, now)
	}

	if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1 {
		if forceClear || s.memory.Has(id.Key) {
			if err := s.store.Delete(ctx, id.Key); err != nil {
				s.logger.Warn("attempt record delete failed", slog.Any("error", err))
			}
			s.memory.Forget(id.Key)
		}
		return Result{Outcome: Allowed}
	}

	failed := 1
	if rec != nil {
		failed = rec.FailedCount + 1
	}
	threshold := id.Tier.Threshold()

	next := attemptRecord{FailedCount: failed, UpdatedAt: now.UnixMilli()}
	if failed >= threshold {
		next.LockedUntil = now.Add(s.ttl).UnixMilli()
	}
	s.persist(ctx, id.Key, &next)
	s.memory.Remember(id.Key)

	if next.LockedUntil > 0 {
		metrics.RecordLockout(id.Tier.String())
		s.logger.Warn("identity locked out",
			slog.String("tier", id.Tier.String()),
			slog.Int("failed_count", failed))
		if s.notifier != nil {
			if err := s.notifier.NotifyLockout(ctx, id.Tier.String(), failed,
				time.UnixMilli(next.LockedUntil)); err != nil {
				s.logger.Warn("lockout alert failed", slog.Any("error", err))
			}
		}
		return s.lockedResult(&next, now)
	}

	return Result{Outcome: WrongPassword, Remaining: threshold - failed}
}

func (s *Service) lockedResult(rec *attemptRecord, now time.Time) Result {
	retry := time.UnixMilli(rec.LockedUntil).Sub(now)
	if retry < 0 {
		retry = 0
	}
	return Result{Outcome: Locked, RetryAfter: retry, LockedUntil: rec.LockedUntil}
}

// load fetches the attempt record, treating storage failures and unreadable
// records as absent.
func (s *Service) load(ctx context.Context, key string) *attemptRecord {
	value, _, found, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("attempt record read failed", slog.Any("error", err))
		return nil
	}
	if !found {
		return nil
	}
	var rec attemptRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		s.logger.Warn("attempt record unreadable", slog.Any("error", err))
		return nil
	}
	return &rec
}

func (s *Service) persist(ctx context.Context, key string, rec *attemptRecord) {
	payload, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("attempt record marshal failed", slog.Any("error", err))
		return
	}
	if _, err := s.store.Put(ctx, key, payload, repository.PutOptions{TTL: s.ttl}); err != nil {
		s.logger.Warn("attempt record write failed", slog.Any("error", err))
	}
}
