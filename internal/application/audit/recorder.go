// Package audit writes the append-only security audit trail.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/buxmate/buxmate/internal/domain"
	"github.com/buxmate/buxmate/internal/pkg/id"
)

type store interface {
	Put(ctx context.Context, e *domain.AuditEntry) error
	ListByUser(ctx context.Context, userID string, limit int32) ([]domain.AuditEntry, error)
}

// Recorder appends audit entries. Writes are fire-and-forget from the
// caller's perspective: a failed write is logged and never blocks or fails
// the primary operation.
type Recorder struct {
	store     store
	retention time.Duration
	now       func() time.Time
}

func NewRecorder(s store, retention time.Duration) *Recorder {
	return &Recorder{store: s, retention: retention, now: time.Now}
}

// Record appends one entry.
func (r *Recorder) Record(ctx context.Context, userID, action string, details map[string]string, client domain.ClientInfo) {
	now := r.now().UTC()
	e := &domain.AuditEntry{
		AuditID:   id.New(),
		UserID:    userID,
		Action:    action,
		Details:   details,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		CreatedAt: now,
		TTL:       now.Add(r.retention).Unix(),
	}
	if err := r.store.Put(ctx, e); err != nil {
		slog.Warn("failed to write audit entry", "user_id", userID, "action", action, "err", err)
	}
}

// ListByUser returns the newest entries for a user, up to limit.
func (r *Recorder) ListByUser(ctx context.Context, userID string, limit int32) ([]domain.AuditEntry, error) {
	if limit < 1 {
		limit = 50
	}
	return r.store.ListByUser(ctx, userID, limit)
}
