package activity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/buxmate/buxmate/internal/domain"
)

type mockActivityStore struct{ mock.Mock }

func (m *mockActivityStore) Put(ctx context.Context, a *domain.Activity) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockActivityStore) Get(ctx context.Context, activityID string) (*domain.Activity, error) {
	args := m.Called(ctx, activityID)
	if a, _ := args.Get(0).(*domain.Activity); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockActivityStore) ListByEvent(ctx context.Context, eventID string) ([]domain.Activity, error) {
	args := m.Called(ctx, eventID)
	acts, _ := args.Get(0).([]domain.Activity)
	return acts, args.Error(1)
}

func (m *mockActivityStore) Update(ctx context.Context, activityID string, updates map[string]interface{}) error {
	return m.Called(ctx, activityID, updates).Error(0)
}

func (m *mockActivityStore) SoftDelete(ctx context.Context, activityID string) error {
	return m.Called(ctx, activityID).Error(0)
}

type mockEventStore struct{ mock.Mock }

func (m *mockEventStore) Get(ctx context.Context, eventID string) (*domain.Event, error) {
	args := m.Called(ctx, eventID)
	if e, _ := args.Get(0).(*domain.Event); e != nil {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockInvitationStore struct{ mock.Mock }

func (m *mockInvitationStore) ListByRecipient(ctx context.Context, recipientID string) ([]domain.Invitation, error) {
	args := m.Called(ctx, recipientID)
	invs, _ := args.Get(0).([]domain.Invitation)
	return invs, args.Error(1)
}

var ctx = context.Background()

func berlinEvent() *domain.Event {
	return &domain.Event{
		EventID:  "ev1",
		HostID:   "host1",
		Timezone: "Europe/Berlin",
		Date:     time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
		Enable:   true,
	}
}

func TestCreate_DefaultsCurrency(t *testing.T) {
	events := &mockEventStore{}
	events.On("Get", mock.Anything, "ev1").Return(berlinEvent(), nil)

	var stored *domain.Activity
	activities := &mockActivityStore{}
	activities.On("Put", mock.Anything, mock.AnythingOfType("*domain.Activity")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.Activity) }).
		Return(nil)

	svc := NewService(activities, events, &mockInvitationStore{})
	a, err := svc.Create(ctx, "host1", "ev1", domain.CreateActivityRequest{
		Title:       "Go-karting",
		StartsAt:    "2026-09-05T14:00:00+02:00",
		EndsAt:      "2026-09-05T16:00:00+02:00",
		CostPerHead: 4500,
	})
	require.NoError(t, err)
	assert.Equal(t, "EUR", a.Currency)
	require.NotNil(t, stored)
	assert.Equal(t, "ev1", stored.EventID)
	assert.True(t, stored.Enable)
}

func TestCreate_NonHostForbidden(t *testing.T) {
	events := &mockEventStore{}
	events.On("Get", mock.Anything, "ev1").Return(berlinEvent(), nil)

	activities := &mockActivityStore{}
	svc := NewService(activities, events, &mockInvitationStore{})
	_, err := svc.Create(ctx, "guest1", "ev1", domain.CreateActivityRequest{
		Title:    "Go-karting",
		StartsAt: "2026-09-05T14:00:00+02:00",
		EndsAt:   "2026-09-05T16:00:00+02:00",
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	activities.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestCreate_WindowMustEndAfterStart(t *testing.T) {
	events := &mockEventStore{}
	events.On("Get", mock.Anything, "ev1").Return(berlinEvent(), nil)

	svc := NewService(&mockActivityStore{}, events, &mockInvitationStore{})
	_, err := svc.Create(ctx, "host1", "ev1", domain.CreateActivityRequest{
		Title:    "Go-karting",
		StartsAt: "2026-09-05T16:00:00+02:00",
		EndsAt:   "2026-09-05T14:00:00+02:00",
	})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestCreate_WindowMustStayOnEventDay(t *testing.T) {
	events := &mockEventStore{}
	events.On("Get", mock.Anything, "ev1").Return(berlinEvent(), nil)

	svc := NewService(&mockActivityStore{}, events, &mockInvitationStore{})

	// Runs past midnight in the event's timezone.
	_, err := svc.Create(ctx, "host1", "ev1", domain.CreateActivityRequest{
		Title:    "Pub crawl",
		StartsAt: "2026-09-05T23:00:00+02:00",
		EndsAt:   "2026-09-06T01:00:00+02:00",
	})
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	// Starts on the day before.
	_, err = svc.Create(ctx, "host1", "ev1", domain.CreateActivityRequest{
		Title:    "Warm-up",
		StartsAt: "2026-09-04T22:00:00+02:00",
		EndsAt:   "2026-09-05T01:00:00+02:00",
	})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestUpdate_RevalidatesWindow(t *testing.T) {
	activities := &mockActivityStore{}
	activities.On("Get", mock.Anything, "a1").Return(&domain.Activity{
		ActivityID: "a1",
		EventID:    "ev1",
		StartsAt:   mustParse(t, "2026-09-05T14:00:00+02:00"),
		EndsAt:     mustParse(t, "2026-09-05T16:00:00+02:00"),
		Enable:     true,
	}, nil)

	events := &mockEventStore{}
	events.On("Get", mock.Anything, "ev1").Return(berlinEvent(), nil)

	svc := NewService(activities, events, &mockInvitationStore{})
	ends := "2026-09-06T02:00:00+02:00"
	_, err := svc.Update(ctx, "host1", "a1", domain.UpdateActivityRequest{EndsAt: &ends})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	activities.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestListByEvent_StrangerNotFound(t *testing.T) {
	events := &mockEventStore{}
	events.On("Get", mock.Anything, "ev1").Return(berlinEvent(), nil)

	invitations := &mockInvitationStore{}
	invitations.On("ListByRecipient", mock.Anything, "stranger").Return(nil, nil)

	activities := &mockActivityStore{}
	svc := NewService(activities, events, invitations)
	_, err := svc.ListByEvent(ctx, "stranger", "ev1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	activities.AssertNotCalled(t, "ListByEvent", mock.Anything, mock.Anything)
}

func TestListByEvent_InvitedGuestAllowed(t *testing.T) {
	events := &mockEventStore{}
	events.On("Get", mock.Anything, "ev1").Return(berlinEvent(), nil)

	guest := "guest1"
	invitations := &mockInvitationStore{}
	invitations.On("ListByRecipient", mock.Anything, "guest1").Return([]domain.Invitation{
		{InvitationID: "inv1", EventID: "ev1", RecipientID: &guest},
	}, nil)

	activities := &mockActivityStore{}
	activities.On("ListByEvent", mock.Anything, "ev1").Return([]domain.Activity{
		{ActivityID: "a1", EventID: "ev1", Enable: true},
	}, nil)

	svc := NewService(activities, events, invitations)
	acts, err := svc.ListByEvent(ctx, "guest1", "ev1")
	require.NoError(t, err)
	assert.Len(t, acts, 1)
}

func TestListByEvent_HostSkipsInvitationLookup(t *testing.T) {
	events := &mockEventStore{}
	events.On("Get", mock.Anything, "ev1").Return(berlinEvent(), nil)

	invitations := &mockInvitationStore{}
	activities := &mockActivityStore{}
	activities.On("ListByEvent", mock.Anything, "ev1").Return(nil, nil)

	svc := NewService(activities, events, invitations)
	_, err := svc.ListByEvent(ctx, "host1", "ev1")
	require.NoError(t, err)
	invitations.AssertNotCalled(t, "ListByRecipient", mock.Anything, mock.Anything)
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}
