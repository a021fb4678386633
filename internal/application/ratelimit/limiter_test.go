package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/buxmate/buxmate/internal/domain"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) Get(ctx context.Context, key string) (*domain.RateLimit, error) {
	args := m.Called(ctx, key)
	if rl, _ := args.Get(0).(*domain.RateLimit); rl != nil {
		return rl, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) Reset(ctx context.Context, key string, observedReset, newReset, ttl int64) (*domain.RateLimit, error) {
	args := m.Called(ctx, key, observedReset, newReset, ttl)
	if rl, _ := args.Get(0).(*domain.RateLimit); rl != nil {
		return rl, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) Increment(ctx context.Context, key string, newReset, ttl int64) (*domain.RateLimit, error) {
	args := m.Called(ctx, key, newReset, ttl)
	if rl, _ := args.Get(0).(*domain.RateLimit); rl != nil {
		return rl, args.Error(1)
	}
	return nil, args.Error(1)
}

func newLimiterAt(s store, now time.Time) *Limiter {
	l := NewLimiter(s)
	l.now = func() time.Time { return now }
	return l
}

func TestCheck_NoRecord_ReturnsNil(t *testing.T) {
	ms := &mockStore{}
	ms.On("Get", mock.Anything, "email_change:u1").Return(nil, domain.ErrNotFound)

	l := NewLimiter(ms)
	rec, err := l.Check(context.Background(), "email_change:u1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCheck_ElapsedWindow_ResetsEagerly(t *testing.T) {
	now := time.Unix(10_000, 0)
	stale := &domain.RateLimit{Key: "k", Count: 3, ResetTime: 9_000}

	ms := &mockStore{}
	ms.On("Get", mock.Anything, "k").Return(stale, nil)
	ms.On("Reset", mock.Anything, "k", int64(9_000), now.Add(Window).Unix(), mock.Anything).
		Return(&domain.RateLimit{Key: "k", Count: 0, ResetTime: now.Add(Window).Unix()}, nil)

	l := newLimiterAt(ms, now)
	rec, err := l.Check(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Count)
	ms.AssertExpectations(t)
}

func TestCheck_RecordVanishesDuringReset_TreatedAsNoRecord(t *testing.T) {
	now := time.Unix(10_000, 0)
	stale := &domain.RateLimit{Key: "k", Count: 3, ResetTime: 9_000}

	ms := &mockStore{}
	ms.On("Get", mock.Anything, "k").Return(stale, nil)
	// TTL deletion raced the eager reset; the store reports the row gone.
	ms.On("Reset", mock.Anything, "k", int64(9_000), now.Add(Window).Unix(), mock.Anything).
		Return(nil, domain.ErrNotFound)

	l := newLimiterAt(ms, now)
	rec, err := l.Check(context.Background(), "k")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCheck_ActiveWindow_ReturnsRecordUnchanged(t *testing.T) {
	now := time.Unix(10_000, 0)
	rec := &domain.RateLimit{Key: "k", Count: 2, ResetTime: 11_000}

	ms := &mockStore{}
	ms.On("Get", mock.Anything, "k").Return(rec, nil)

	l := newLimiterAt(ms, now)
	got, err := l.Check(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Count)
}

func TestAllow_FirstAttempt_IncrementsToOne(t *testing.T) {
	now := time.Unix(10_000, 0)
	ms := &mockStore{}
	ms.On("Get", mock.Anything, "email_change:u1").Return(nil, domain.ErrNotFound)
	ms.On("Increment", mock.Anything, "email_change:u1", now.Add(Window).Unix(), mock.Anything).
		Return(&domain.RateLimit{Key: "email_change:u1", Count: 1, ResetTime: now.Add(Window).Unix()}, nil)

	l := newLimiterAt(ms, now)
	require.NoError(t, l.Allow(context.Background(), "email_change:u1"))
	ms.AssertExpectations(t)
}

func TestAllow_AtCeiling_RefusesWithCooldown(t *testing.T) {
	now := time.Unix(10_000, 0)
	ms := &mockStore{}
	ms.On("Get", mock.Anything, "k").Return(&domain.RateLimit{Key: "k", Count: Ceiling, ResetTime: 10_600}, nil)

	l := newLimiterAt(ms, now)
	err := l.Allow(context.Background(), "k")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRateLimited))

	var rle *domain.RateLimitedError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, int64(600), rle.Cooldown)
	ms.AssertNotCalled(t, "Increment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAllow_AfterReset_Permits(t *testing.T) {
	now := time.Unix(10_000, 0)
	newReset := now.Add(Window).Unix()

	ms := &mockStore{}
	ms.On("Get", mock.Anything, "k").Return(&domain.RateLimit{Key: "k", Count: 3, ResetTime: 9_500}, nil)
	ms.On("Reset", mock.Anything, "k", int64(9_500), newReset, mock.Anything).
		Return(&domain.RateLimit{Key: "k", Count: 0, ResetTime: newReset}, nil)
	ms.On("Increment", mock.Anything, "k", newReset, mock.Anything).
		Return(&domain.RateLimit{Key: "k", Count: 1, ResetTime: newReset}, nil)

	l := newLimiterAt(ms, now)
	require.NoError(t, l.Allow(context.Background(), "k"))
	ms.AssertExpectations(t)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "phone_change:u42", Key("phone_change", "u42"))
}
