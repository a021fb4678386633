package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/buxmate/buxmate/internal/domain"
)

type mockEventStore struct{ mock.Mock }

func (m *mockEventStore) Put(ctx context.Context, e *domain.Event) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockEventStore) Get(ctx context.Context, eventID string) (*domain.Event, error) {
	args := m.Called(ctx, eventID)
	if e, _ := args.Get(0).(*domain.Event); e != nil {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEventStore) ListByHost(ctx context.Context, hostID string) ([]domain.Event, error) {
	args := m.Called(ctx, hostID)
	events, _ := args.Get(0).([]domain.Event)
	return events, args.Error(1)
}

func (m *mockEventStore) Update(ctx context.Context, eventID string, updates map[string]interface{}) error {
	return m.Called(ctx, eventID, updates).Error(0)
}

func (m *mockEventStore) SoftDelete(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

type mockInvitationStore struct{ mock.Mock }

func (m *mockInvitationStore) ListByRecipient(ctx context.Context, recipientID string) ([]domain.Invitation, error) {
	args := m.Called(ctx, recipientID)
	invs, _ := args.Get(0).([]domain.Invitation)
	return invs, args.Error(1)
}

type mockActivityStore struct{ mock.Mock }

func (m *mockActivityStore) ListByEvent(ctx context.Context, eventID string) ([]domain.Activity, error) {
	args := m.Called(ctx, eventID)
	acts, _ := args.Get(0).([]domain.Activity)
	return acts, args.Error(1)
}

var ctx = context.Background()

func hostedEvent() *domain.Event {
	return &domain.Event{
		EventID:  "ev1",
		HostID:   "host1",
		Title:    "Stag weekend",
		Timezone: "Europe/Berlin",
		Date:     time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
		Enable:   true,
	}
}

func TestGet_HostSeesSummedTotals(t *testing.T) {
	events := &mockEventStore{}
	events.On("Get", mock.Anything, "ev1").Return(hostedEvent(), nil)

	activities := &mockActivityStore{}
	activities.On("ListByEvent", mock.Anything, "ev1").Return([]domain.Activity{
		{ActivityID: "a1", CostPerHead: 1000, Currency: "EUR", Enable: true},
		{ActivityID: "a2", CostPerHead: 2500, Currency: "EUR", Enable: true},
		{ActivityID: "a3", CostPerHead: 4000, Currency: "USD", Enable: true},
		{ActivityID: "a4", CostPerHead: 9999, Currency: "EUR", Enable: false},
	}, nil)

	svc := NewService(events, &mockInvitationStore{}, activities)
	e, err := svc.Get(ctx, "host1", "ev1")
	require.NoError(t, err)
	require.NotNil(t, e.Totals)
	assert.Equal(t, 3, e.Totals.ActivityCount)
	assert.Equal(t, int64(3500), e.Totals.CostPerHead["EUR"])
	assert.Equal(t, int64(4000), e.Totals.CostPerHead["USD"])
}

func TestGet_InvitedGuestAllowed(t *testing.T) {
	events := &mockEventStore{}
	events.On("Get", mock.Anything, "ev1").Return(hostedEvent(), nil)

	invitations := &mockInvitationStore{}
	invitations.On("ListByRecipient", mock.Anything, "guest1").Return([]domain.Invitation{
		{InvitationID: "inv1", EventID: "ev1", RecipientID: ptr("guest1")},
	}, nil)

	activities := &mockActivityStore{}
	activities.On("ListByEvent", mock.Anything, "ev1").Return(nil, nil)

	svc := NewService(events, invitations, activities)
	e, err := svc.Get(ctx, "guest1", "ev1")
	require.NoError(t, err)
	assert.Equal(t, "ev1", e.EventID)
}

func TestGet_StrangerNotFound(t *testing.T) {
	events := &mockEventStore{}
	events.On("Get", mock.Anything, "ev1").Return(hostedEvent(), nil)

	invitations := &mockInvitationStore{}
	invitations.On("ListByRecipient", mock.Anything, "stranger").Return(nil, nil)

	svc := NewService(events, invitations, &mockActivityStore{})
	_, err := svc.Get(ctx, "stranger", "ev1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreate_RejectsUnknownTimezone(t *testing.T) {
	svc := NewService(&mockEventStore{}, &mockInvitationStore{}, &mockActivityStore{})
	_, err := svc.Create(ctx, "host1", domain.CreateEventRequest{
		Title:    "Stag weekend",
		Address:  "Berlin",
		Timezone: "Mars/Olympus",
		Date:     "2026-09-05",
	})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestCreate_RejectsBadDate(t *testing.T) {
	svc := NewService(&mockEventStore{}, &mockInvitationStore{}, &mockActivityStore{})
	_, err := svc.Create(ctx, "host1", domain.CreateEventRequest{
		Title:    "Stag weekend",
		Address:  "Berlin",
		Timezone: "Europe/Berlin",
		Date:     "05.09.2026",
	})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func ptr(s string) *string { return &s }
