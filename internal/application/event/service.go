package event

import (
	"context"
	"fmt"
	"time"

	"github.com/buxmate/buxmate/internal/domain"
	"github.com/buxmate/buxmate/internal/pkg/id"
)

type Service interface {
	Create(ctx context.Context, hostID string, req domain.CreateEventRequest) (*domain.Event, error)
	Get(ctx context.Context, requesterID, eventID string) (*domain.Event, error)
	ListByHost(ctx context.Context, hostID string) ([]domain.Event, error)
	Update(ctx context.Context, requesterID, eventID string, req domain.UpdateEventRequest) (*domain.Event, error)
	Delete(ctx context.Context, requesterID, eventID string) error
}

type eventStore interface {
	Put(ctx context.Context, e *domain.Event) error
	Get(ctx context.Context, eventID string) (*domain.Event, error)
	ListByHost(ctx context.Context, hostID string) ([]domain.Event, error)
	Update(ctx context.Context, eventID string, updates map[string]interface{}) error
	SoftDelete(ctx context.Context, eventID string) error
}

type invitationStore interface {
	ListByRecipient(ctx context.Context, recipientID string) ([]domain.Invitation, error)
}

type activityStore interface {
	ListByEvent(ctx context.Context, eventID string) ([]domain.Activity, error)
}

type service struct {
	repo        eventStore
	invitations invitationStore
	activities  activityStore
}

func NewService(repo eventStore, invitations invitationStore, activities activityStore) Service {
	return &service{repo: repo, invitations: invitations, activities: activities}
}

func (s *service) Create(ctx context.Context, hostID string, req domain.CreateEventRequest) (*domain.Event, error) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, fmt.Errorf("date must be in YYYY-MM-DD format: %w", domain.ErrBadRequest)
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return nil, fmt.Errorf("unknown timezone: %w", domain.ErrBadRequest)
	}
	now := time.Now().UTC()
	e := &domain.Event{
		EventID:     id.New(),
		HostID:      hostID,
		Title:       req.Title,
		Description: req.Description,
		Address:     req.Address,
		Timezone:    req.Timezone,
		Date:        date,
		Enable:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Put(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Get returns the event to its host or to anyone holding an invitation to it.
func (s *service) Get(ctx context.Context, requesterID, eventID string) (*domain.Event, error) {
	e, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.HostID != requesterID {
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
	totals, err := s.totals(ctx, eventID)
	if err != nil {
		return nil, err
	}
	e.Totals = totals
	return e, nil
}

func (s *service) totals(ctx context.Context, eventID string) (*domain.EventTotals, error) {
	acts, err := s.activities.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	t := &domain.EventTotals{CostPerHead: map[string]int64{}}
	for _, a := range acts {
		if !a.Enable {
			continue
		}
		t.ActivityCount++
		t.CostPerHead[a.Currency] += a.CostPerHead
	}
	return t, nil
}

func (s *service) ListByHost(ctx context.Context, hostID string) ([]domain.Event, error) {
	return s.repo.ListByHost(ctx, hostID)
}

func (s *service) Update(ctx context.Context, requesterID, eventID string, req domain.UpdateEventRequest) (*domain.Event, error) {
	e, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.HostID != requesterID {
		return nil, fmt.Errorf("only the host can update the event: %w", domain.ErrForbidden)
	}
	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return nil, fmt.Errorf("unknown timezone: %w", domain.ErrBadRequest)
		}
		updates["timezone"] = *req.Timezone
	}
	if req.Date != nil {
		date, err := time.Parse("2006-01-02", *req.Date)
		if err != nil {
			return nil, fmt.Errorf("date must be in YYYY-MM-DD format: %w", domain.ErrBadRequest)
		}
		updates["date"] = date.Format(time.RFC3339)
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("no fields to update: %w", domain.ErrBadRequest)
	}
	if err := s.repo.Update(ctx, eventID, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, eventID)
}

func (s *service) Delete(ctx context.Context, requesterID, eventID string) error {
	e, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return err
	}
	if e.HostID != requesterID {
		return fmt.Errorf("only the host can delete the event: %w", domain.ErrForbidden)
	}
	return s.repo.SoftDelete(ctx, eventID)
}
