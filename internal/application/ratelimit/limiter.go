// Package ratelimit gates repeated sensitive operations per logical key.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buxmate/buxmate/internal/domain"
)

const (
	// Ceiling is the number of attempts permitted per window.
	Ceiling = 3
	// Window is the counting window for one key.
	Window = time.Hour
	// recordRetention keeps spent records around past their reset so they can
	// be inspected; the store's TTL removes them afterwards.
	recordRetention = 24 * time.Hour
)

type store interface {
	Get(ctx context.Context, key string) (*domain.RateLimit, error)
	Reset(ctx context.Context, key string, observedReset, newReset, ttl int64) (*domain.RateLimit, error)
	Increment(ctx context.Context, key string, newReset, ttl int64) (*domain.RateLimit, error)
}

// Limiter counts attempts per key in fixed windows backed by persistent
// storage, so the count survives restarts and is shared across instances.
type Limiter struct {
	store store
	now   func() time.Time
}

func NewLimiter(s store) *Limiter {
	return &Limiter{store: s, now: time.Now}
}

// Check returns the current record for key, or nil when no attempts have been
// recorded. A record whose window has elapsed is reset eagerly and the reset
// is persisted, so callers always observe count semantics consistent with the
// current window.
func (l *Limiter) Check(ctx context.Context, key string) (*domain.RateLimit, error) {
	rec, err := l.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	now := l.now()
	if rec.ResetTime <= now.Unix() {
		newReset := now.Add(Window).Unix()
		fresh, err := l.store.Reset(ctx, key, rec.ResetTime, newReset, newReset+int64(recordRetention.Seconds()))
		if err != nil {
			// The record can be TTL-deleted between the read and the reset.
			if errors.Is(err, domain.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return fresh, nil
	}
	return rec, nil
}

// Increment records one attempt for key and returns the updated record. The
// underlying write is a single atomic add, so concurrent attempts cannot
// both observe a pre-increment count.
func (l *Limiter) Increment(ctx context.Context, key string) (*domain.RateLimit, error) {
	newReset := l.now().Add(Window).Unix()
	return l.store.Increment(ctx, key, newReset, newReset+int64(recordRetention.Seconds()))
}

// Allow gates one sensitive operation: it checks the key against the ceiling
// and, when permitted, records the attempt. Refusals carry the cooldown in
// seconds until the window resets.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	rec, err := l.Check(ctx, key)
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}
	if rec != nil && rec.Count >= Ceiling {
		cooldown := rec.ResetTime - l.now().Unix()
		if cooldown < 1 {
			cooldown = 1
		}
		return &domain.RateLimitedError{Cooldown: cooldown}
	}
	if _, err := l.Increment(ctx, key); err != nil {
		return fmt.Errorf("rate limit increment: %w", err)
	}
	return nil
}

// Key builds a rate-limit key scoping operation counts to one subject.
func Key(operation, subjectID string) string {
	return operation + ":" + subjectID
}
