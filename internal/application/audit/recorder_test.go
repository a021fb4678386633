package audit

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

func (m *mockStore) Put(ctx context.Context, e *domain.AuditEntry) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockStore) ListByUser(ctx context.Context, userID string, limit int32) ([]domain.AuditEntry, error) {
	args := m.Called(ctx, userID, limit)
	if es, _ := args.Get(0).([]domain.AuditEntry); es != nil {
		return es, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestRecord_WritesEntryWithRetentionTTL(t *testing.T) {
	ms := &mockStore{}
	var captured *domain.AuditEntry
	ms.On("Put", mock.Anything, mock.AnythingOfType("*domain.AuditEntry")).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*domain.AuditEntry) }).
		Return(nil)

	r := NewRecorder(ms, 30*24*time.Hour)
	now := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return now }

	r.Record(context.Background(), "u1", domain.AuditEmailChangeRequested,
		map[string]string{"new_email": "b@x.com"},
		domain.ClientInfo{IPAddress: "10.0.0.1", UserAgent: "test-agent"})

	require.NotNil(t, captured)
	assert.Equal(t, "u1", captured.UserID)
	assert.Equal(t, domain.AuditEmailChangeRequested, captured.Action)
	assert.Equal(t, "10.0.0.1", captured.IPAddress)
	assert.Equal(t, "test-agent", captured.UserAgent)
	assert.NotEmpty(t, captured.AuditID)
	assert.Equal(t, now.Add(30*24*time.Hour).Unix(), captured.TTL)
}

func TestRecord_StoreFailureDoesNotPanicOrPropagate(t *testing.T) {
	ms := &mockStore{}
	ms.On("Put", mock.Anything, mock.Anything).Return(errors.New("dynamo down"))

	r := NewRecorder(ms, time.Hour)
	// Record has no error return; a store failure must stay contained.
	r.Record(context.Background(), "u1", "action", nil, domain.ClientInfo{})
	ms.AssertExpectations(t)
}

func TestListByUser_DefaultsLimit(t *testing.T) {
	ms := &mockStore{}
	ms.On("ListByUser", mock.Anything, "u1", int32(50)).Return([]domain.AuditEntry{}, nil)

	r := NewRecorder(ms, time.Hour)
	_, err := r.ListByUser(context.Background(), "u1", 0)
	require.NoError(t, err)
	ms.AssertExpectations(t)
}
