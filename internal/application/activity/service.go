package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/buxmate/buxmate/internal/domain"
	"github.com/buxmate/buxmate/internal/pkg/id"
)

const defaultCurrency = "EUR"

type Service interface {
	Create(ctx context.Context, requesterID, eventID string, req domain.CreateActivityRequest) (*domain.Activity, error)
	ListByEvent(ctx context.Context, requesterID, eventID string) ([]domain.Activity, error)
	Update(ctx context.Context, requesterID, activityID string, req domain.UpdateActivityRequest) (*domain.Activity, error)
	Delete(ctx context.Context, requesterID, activityID string) error
}

type activityStore interface {
	Put(ctx context.Context, a *domain.Activity) error
	Get(ctx context.Context, activityID string) (*domain.Activity, error)
	ListByEvent(ctx context.Context, eventID string) ([]domain.Activity, error)
	Update(ctx context.Context, activityID string, updates map[string]interface{}) error
	SoftDelete(ctx context.Context, activityID string) error
}

type eventStore interface {
	Get(ctx context.Context, eventID string) (*domain.Event, error)
}

type invitationStore interface {
	ListByRecipient(ctx context.Context, recipientID string) ([]domain.Invitation, error)
}

type service struct {
	repo        activityStore
	events      eventStore
	invitations invitationStore
}

func NewService(repo activityStore, events eventStore, invitations invitationStore) Service {
	return &service{repo: repo, events: events, invitations: invitations}
}

func (s *service) Create(ctx context.Context, requesterID, eventID string, req domain.CreateActivityRequest) (*domain.Activity, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.HostID != requesterID {
		return nil, fmt.Errorf("only the host can add activities: %w", domain.ErrForbidden)
	}
	starts, ends, err := parseWindow(req.StartsAt, req.EndsAt)
	if err != nil {
		return nil, err
	}
	if err := withinEventDay(event, starts, ends); err != nil {
		return nil, err
	}
	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	now := time.Now().UTC()
	a := &domain.Activity{
		ActivityID:  id.New(),
		EventID:     eventID,
		Title:       req.Title,
		Description: req.Description,
		StartsAt:    starts,
		EndsAt:      ends,
		CostPerHead: req.CostPerHead,
		Currency:    currency,
		CreatedBy:   requesterID,
		Enable:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Put(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ListByEvent is restricted to the host and invited recipients, mirroring
// event visibility. Everyone else sees not-found rather than forbidden so the
// response does not confirm the event exists.
func (s *service) ListByEvent(ctx context.Context, requesterID, eventID string) ([]domain.Activity, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.HostID != requesterID {
		invs, err := s.invitations.ListByRecipient(ctx, requesterID)
		if err != nil {
			return nil, err
		}
		invited := false
		for _, inv := range invs {
			if inv.EventID == eventID {
				invited = true
				break
			}
		}
		if !invited {
			return nil, fmt.Errorf("event not found: %w", domain.ErrNotFound)
		}
	}
	return s.repo.ListByEvent(ctx, eventID)
}

func (s *service) Update(ctx context.Context, requesterID, activityID string, req domain.UpdateActivityRequest) (*domain.Activity, error) {
	a, err := s.repo.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	event, err := s.requireHost(ctx, requesterID, a.EventID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	starts, ends := a.StartsAt, a.EndsAt
	if req.StartsAt != nil {
		t, err := time.Parse(time.RFC3339, *req.StartsAt)
		if err != nil {
			return nil, fmt.Errorf("starts_at must be RFC 3339: %w", domain.ErrBadRequest)
		}
		starts = t
		updates["starts_at"] = t.Format(time.RFC3339)
	}
	if req.EndsAt != nil {
		t, err := time.Parse(time.RFC3339, *req.EndsAt)
		if err != nil {
			return nil, fmt.Errorf("ends_at must be RFC 3339: %w", domain.ErrBadRequest)
		}
		ends = t
		updates["ends_at"] = t.Format(time.RFC3339)
	}
	if req.StartsAt != nil || req.EndsAt != nil {
		if !ends.After(starts) {
			return nil, fmt.Errorf("ends_at must be after starts_at: %w", domain.ErrBadRequest)
		}
		if err := withinEventDay(event, starts, ends); err != nil {
			return nil, err
		}
	}
	if req.CostPerHead != nil {
		if *req.CostPerHead < 0 {
			return nil, fmt.Errorf("cost must not be negative: %w", domain.ErrBadRequest)
		}
		updates["cost_per_head_cents"] = *req.CostPerHead
	}
	if req.Currency != nil {
		updates["currency"] = *req.Currency
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("no fields to update: %w", domain.ErrBadRequest)
	}
	if err := s.repo.Update(ctx, activityID, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, activityID)
}

func (s *service) Delete(ctx context.Context, requesterID, activityID string) error {
	a, err := s.repo.Get(ctx, activityID)
	if err != nil {
		return err
	}
	if _, err := s.requireHost(ctx, requesterID, a.EventID); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, activityID)
}

func (s *service) requireHost(ctx context.Context, requesterID, eventID string) (*domain.Event, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.HostID != requesterID {
		return nil, fmt.Errorf("only the host can modify activities: %w", domain.ErrForbidden)
	}
	return event, nil
}

func parseWindow(startsAt, endsAt string) (time.Time, time.Time, error) {
	starts, err := time.Parse(time.RFC3339, startsAt)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("starts_at must be RFC 3339: %w", domain.ErrBadRequest)
	}
	ends, err := time.Parse(time.RFC3339, endsAt)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("ends_at must be RFC 3339: %w", domain.ErrBadRequest)
	}
	if !ends.After(starts) {
		return time.Time{}, time.Time{}, fmt.Errorf("ends_at must be after starts_at: %w", domain.ErrBadRequest)
	}
	return starts, ends, nil
}

// withinEventDay rejects windows that leave the event's calendar day in the
// event's own timezone.
func withinEventDay(e *domain.Event, starts, ends time.Time) error {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		loc = time.UTC
	}
	dayStart := time.Date(e.Date.Year(), e.Date.Month(), e.Date.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.Add(24 * time.Hour)
	if starts.Before(dayStart) || ends.After(dayEnd) {
		return fmt.Errorf("activity must fall on the event day: %w", domain.ErrBadRequest)
	}
	return nil
}
