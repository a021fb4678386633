package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/buxmate/buxmate/internal/domain"
)

type mockUserSvc struct{ mock.Mock }

func (m *mockUserSvc) Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) List(ctx context.Context, limit int, cursor string) ([]domain.User, string, error) {
	args := m.Called(ctx, limit, cursor)
	users, _ := args.Get(0).([]domain.User)
	return users, args.String(1), args.Error(2)
}

func (m *mockUserSvc) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	args := m.Called(ctx, userID, req)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) Delete(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockUserSvc) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	return m.Called(ctx, userID, currentPassword, newPassword).Error(0)
}

func registerBody(t *testing.T, phone *string) []byte {
	t.Helper()
	req := domain.CreateUserRequest{
		Username:  "alice",
		Password:  "secret-password",
		Email:     "alice@example.com",
		Phone:     phone,
		FirstName: "Alice",
		LastName:  "Smith",
	}
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestRegister_DispatchesEmailAndPhoneConfirmation(t *testing.T) {
	phone := "+14155552671"
	users := &mockUserSvc{}
	users.On("Register", mock.Anything, mock.AnythingOfType("domain.CreateUserRequest")).
		Return(&domain.User{UserID: "u1", Phone: &phone}, nil)

	contactSvc := &mockContactSvc{}
	contactSvc.On("RequestEmailConfirmation", mock.Anything, "u1").Return(nil)
	contactSvc.On("RequestPhoneConfirmation", mock.Anything, "u1").Return(nil)

	h := NewUserHandler(users, contactSvc)
	r := httptest.NewRequest(http.MethodPost, "/v1/users", bytes.NewReader(registerBody(t, &phone)))
	rr := httptest.NewRecorder()
	h.Register(rr, r)

	assert.Equal(t, http.StatusCreated, rr.Code)
	contactSvc.AssertCalled(t, "RequestEmailConfirmation", mock.Anything, "u1")
	contactSvc.AssertCalled(t, "RequestPhoneConfirmation", mock.Anything, "u1")
}

func TestRegister_NoPhoneSkipsPhoneConfirmation(t *testing.T) {
	users := &mockUserSvc{}
	users.On("Register", mock.Anything, mock.AnythingOfType("domain.CreateUserRequest")).
		Return(&domain.User{UserID: "u1"}, nil)

	contactSvc := &mockContactSvc{}
	contactSvc.On("RequestEmailConfirmation", mock.Anything, "u1").Return(nil)

	h := NewUserHandler(users, contactSvc)
	r := httptest.NewRequest(http.MethodPost, "/v1/users", bytes.NewReader(registerBody(t, nil)))
	rr := httptest.NewRecorder()
	h.Register(rr, r)

	assert.Equal(t, http.StatusCreated, rr.Code)
	contactSvc.AssertNotCalled(t, "RequestPhoneConfirmation", mock.Anything, mock.Anything)
}

func TestRegister_DispatchFailureStillCreated(t *testing.T) {
	users := &mockUserSvc{}
	users.On("Register", mock.Anything, mock.AnythingOfType("domain.CreateUserRequest")).
		Return(&domain.User{UserID: "u1"}, nil)

	contactSvc := &mockContactSvc{}
	contactSvc.On("RequestEmailConfirmation", mock.Anything, "u1").Return(domain.ErrDispatchFailed)

	h := NewUserHandler(users, contactSvc)
	r := httptest.NewRequest(http.MethodPost, "/v1/users", bytes.NewReader(registerBody(t, nil)))
	rr := httptest.NewRecorder()
	h.Register(rr, r)

	assert.Equal(t, http.StatusCreated, rr.Code)
}
