package contact

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

type mockVerificationStore struct{ mock.Mock }

func (m *mockVerificationStore) Put(ctx context.Context, v *domain.ContactVerification) error {
	return m.Called(ctx, v).Error(0)
}

func (m *mockVerificationStore) Get(ctx context.Context, userID, purpose string) (*domain.ContactVerification, error) {
	args := m.Called(ctx, userID, purpose)
	if v, _ := args.Get(0).(*domain.ContactVerification); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockVerificationStore) Delete(ctx context.Context, userID, purpose string) error {
	return m.Called(ctx, userID, purpose).Error(0)
}

func (m *mockVerificationStore) IncrementAttempts(ctx context.Context, userID, purpose string) (int, error) {
	args := m.Called(ctx, userID, purpose)
	return args.Int(0), args.Error(1)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	args := m.Called(ctx, phone)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

type mockLimiter struct{ mock.Mock }

func (m *mockLimiter) Allow(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type mockAuditor struct{ mock.Mock }

func (m *mockAuditor) Record(ctx context.Context, userID, action string, details map[string]string, client domain.ClientInfo) {
	m.Called(ctx, userID, action, details, client)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type mockSMS struct{ mock.Mock }

func (m *mockSMS) SendSMS(ctx context.Context, to, message string) error {
	return m.Called(ctx, to, message).Error(0)
}

type fixture struct {
	verifications *mockVerificationStore
	users         *mockUserStore
	limiter       *mockLimiter
	auditor       *mockAuditor
	mailer        *mockMailer
	sms           *mockSMS
	svc           *service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		verifications: &mockVerificationStore{},
		users:         &mockUserStore{},
		limiter:       &mockLimiter{},
		auditor:       &mockAuditor{},
		mailer:        &mockMailer{},
		sms:           &mockSMS{},
	}
	f.svc = NewService(ServiceDeps{
		VerificationRepo:   f.verifications,
		UserRepo:           f.users,
		Limiter:            f.limiter,
		Auditor:            f.auditor,
		Mailer:             f.mailer,
		SMSSender:          f.sms,
		DefaultPhoneRegion: "DE",
	}).(*service)
	return f
}

func (f *fixture) at(now time.Time) { f.svc.now = func() time.Time { return now } }

var ctx = context.Background()

func TestRequestEmailChange_IssuesTenMinuteTicket(t *testing.T) {
	f := newFixture(t)
	f.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Email: "old@x.com"}, nil)
	f.users.On("GetByEmail", mock.Anything, "new@x.com").Return(nil, domain.ErrNotFound)
	f.limiter.On("Allow", mock.Anything, "email_change:u1").Return(nil)

	var stored *domain.ContactVerification
	f.verifications.On("Put", mock.Anything, mock.AnythingOfType("*domain.ContactVerification")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.ContactVerification) }).
		Return(nil)
	f.mailer.On("SendEmail", "new@x.com", mock.Anything, mock.Anything).Return(nil)
	f.auditor.On("Record", mock.Anything, "u1", domain.AuditEmailChangeRequested, mock.Anything, mock.Anything).Return()

	now := time.Unix(1_700_000_000, 0)
	f.at(now)

	ticket, err := f.svc.RequestEmailChange(ctx, "u1", "new@x.com", domain.ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, int64(600), ticket.ExpiresIn)

	require.NotNil(t, stored)
	assert.Equal(t, domain.PurposeEmailChange, stored.Purpose)
	assert.Equal(t, "old@x.com", stored.Identifier)
	assert.Equal(t, "new@x.com", stored.NewValue)
	assert.Len(t, stored.Code, 6)
	assert.Equal(t, now.Add(10*time.Minute).Unix(), stored.ExpiresAt)
	assert.Equal(t, 0, stored.Attempts)
}

func TestRequestEmailChange_SameEmailRejected(t *testing.T) {
	f := newFixture(t)
	f.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Email: "old@x.com"}, nil)

	_, err := f.svc.RequestEmailChange(ctx, "u1", "old@x.com", domain.ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	f.limiter.AssertNotCalled(t, "Allow", mock.Anything, mock.Anything)
}

func TestRequestEmailChange_EmailTaken(t *testing.T) {
	f := newFixture(t)
	f.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Email: "old@x.com"}, nil)
	f.users.On("GetByEmail", mock.Anything, "taken@x.com").Return(&domain.User{UserID: "u2"}, nil)

	_, err := f.svc.RequestEmailChange(ctx, "u1", "taken@x.com", domain.ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRequestEmailChange_RateLimited(t *testing.T) {
	f := newFixture(t)
	f.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Email: "old@x.com"}, nil)
	f.users.On("GetByEmail", mock.Anything, "new@x.com").Return(nil, domain.ErrNotFound)
	f.limiter.On("Allow", mock.Anything, "email_change:u1").
		Return(&domain.RateLimitedError{Cooldown: 1800})

	_, err := f.svc.RequestEmailChange(ctx, "u1", "new@x.com", domain.ClientInfo{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	var rle *domain.RateLimitedError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, int64(1800), rle.Cooldown)
	f.verifications.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

// A dispatch failure surfaces to the caller, but the stored record is kept
// so the user can resend without burning another rate-limit attempt.
func TestRequestEmailChange_DispatchFailureKeepsRecord(t *testing.T) {
	f := newFixture(t)
	f.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Email: "old@x.com"}, nil)
	f.users.On("GetByEmail", mock.Anything, "new@x.com").Return(nil, domain.ErrNotFound)
	f.limiter.On("Allow", mock.Anything, "email_change:u1").Return(nil)
	f.verifications.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.mailer.On("SendEmail", "new@x.com", mock.Anything, mock.Anything).Return(errors.New("smtp refused"))

	_, err := f.svc.RequestEmailChange(ctx, "u1", "new@x.com", domain.ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrDispatchFailed)
	f.verifications.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyEmailChange_HappyPathCommitsAndDeletes(t *testing.T) {
	f := newFixture(t)
	now := time.Unix(1_700_000_000, 0)
	f.at(now)

	f.verifications.On("Get", mock.Anything, "u1", domain.PurposeEmailChange).Return(&domain.ContactVerification{
		UserID: "u1", Purpose: domain.PurposeEmailChange,
		Identifier: "old@x.com", NewValue: "new@x.com",
		Code: "482910", ExpiresAt: now.Add(5 * time.Minute).Unix(),
	}, nil)
	f.users.On("GetByEmail", mock.Anything, "new@x.com").Return(nil, domain.ErrNotFound)
	f.users.On("Update", mock.Anything, "u1", map[string]interface{}{
		"email":           "new@x.com",
		"email_confirmed": true,
	}).Return(nil)
	f.verifications.On("Delete", mock.Anything, "u1", domain.PurposeEmailChange).Return(nil)
	f.auditor.On("Record", mock.Anything, "u1", domain.AuditEmailChangeCompleted, mock.Anything, mock.Anything).Return()

	require.NoError(t, f.svc.VerifyEmailChange(ctx, "u1", "new@x.com", "482910", domain.ClientInfo{}))
	f.verifications.AssertExpectations(t)
	f.users.AssertExpectations(t)
}

func TestVerifyEmailChange_WrongCodeCountsDown(t *testing.T) {
	f := newFixture(t)
	now := time.Unix(1_700_000_000, 0)
	f.at(now)

	rec := &domain.ContactVerification{
		UserID: "u1", Purpose: domain.PurposeEmailChange,
		NewValue: "new@x.com", Code: "482910",
		ExpiresAt: now.Add(5 * time.Minute).Unix(),
	}
	f.verifications.On("Get", mock.Anything, "u1", domain.PurposeEmailChange).Return(rec, nil)
	f.auditor.On("Record", mock.Anything, "u1", domain.AuditEmailChangeFailed, mock.Anything, mock.Anything).Return()

	// First wrong guess: 2 remaining.
	f.verifications.On("IncrementAttempts", mock.Anything, "u1", domain.PurposeEmailChange).Return(1, nil).Once()
	err := f.svc.VerifyEmailChange(ctx, "u1", "new@x.com", "000000", domain.ClientInfo{})
	var mismatch *domain.OTPMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.RemainingAttempts)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// Second wrong guess: 1 remaining.
	f.verifications.On("IncrementAttempts", mock.Anything, "u1", domain.PurposeEmailChange).Return(2, nil).Once()
	err = f.svc.VerifyEmailChange(ctx, "u1", "new@x.com", "000000", domain.ClientInfo{})
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 1, mismatch.RemainingAttempts)

	// Third wrong guess exhausts the record.
	f.verifications.On("IncrementAttempts", mock.Anything, "u1", domain.PurposeEmailChange).Return(3, nil).Once()
	f.verifications.On("Delete", mock.Anything, "u1", domain.PurposeEmailChange).Return(nil).Once()
	err = f.svc.VerifyEmailChange(ctx, "u1", "new@x.com", "000000", domain.ClientInfo{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.NotErrorAs(t, err, &mismatch)
	f.verifications.AssertExpectations(t)
}

func TestVerifyEmailChange_ExpiredRecord(t *testing.T) {
	f := newFixture(t)
	now := time.Unix(1_700_000_000, 0)
	f.at(now)

	f.verifications.On("Get", mock.Anything, "u1", domain.PurposeEmailChange).Return(&domain.ContactVerification{
		UserID: "u1", NewValue: "new@x.com", Code: "482910",
		ExpiresAt: now.Add(-time.Second).Unix(),
	}, nil)

	err := f.svc.VerifyEmailChange(ctx, "u1", "new@x.com", "482910", domain.ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	f.verifications.AssertNotCalled(t, "IncrementAttempts", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyEmailChange_NewValueMismatch(t *testing.T) {
	f := newFixture(t)
	now := time.Unix(1_700_000_000, 0)
	f.at(now)

	f.verifications.On("Get", mock.Anything, "u1", domain.PurposeEmailChange).Return(&domain.ContactVerification{
		UserID: "u1", NewValue: "new@x.com", Code: "482910",
		ExpiresAt: now.Add(5 * time.Minute).Unix(),
	}, nil)

	err := f.svc.VerifyEmailChange(ctx, "u1", "other@x.com", "482910", domain.ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestVerifyEmailChange_TargetTakenSinceRequest(t *testing.T) {
	f := newFixture(t)
	now := time.Unix(1_700_000_000, 0)
	f.at(now)

	f.verifications.On("Get", mock.Anything, "u1", domain.PurposeEmailChange).Return(&domain.ContactVerification{
		UserID: "u1", NewValue: "new@x.com", Code: "482910",
		ExpiresAt: now.Add(5 * time.Minute).Unix(),
	}, nil)
	f.users.On("GetByEmail", mock.Anything, "new@x.com").Return(&domain.User{UserID: "u2"}, nil)

	err := f.svc.VerifyEmailChange(ctx, "u1", "new@x.com", "482910", domain.ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrConflict)
	f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

// Resend does not consult the rate limiter; only fresh requests do.
func TestResendEmailChangeOTP_SkipsRateLimiter(t *testing.T) {
	f := newFixture(t)
	now := time.Unix(1_700_000_000, 0)
	f.at(now)

	f.verifications.On("Get", mock.Anything, "u1", domain.PurposeEmailChange).Return(&domain.ContactVerification{
		UserID: "u1", Identifier: "old@x.com", NewValue: "new@x.com",
		Code: "482910", Attempts: 2, ExpiresAt: now.Add(time.Minute).Unix(),
	}, nil)

	var stored *domain.ContactVerification
	f.verifications.On("Put", mock.Anything, mock.AnythingOfType("*domain.ContactVerification")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.ContactVerification) }).
		Return(nil)
	f.mailer.On("SendEmail", "new@x.com", mock.Anything, mock.Anything).Return(nil)
	f.auditor.On("Record", mock.Anything, "u1", domain.AuditEmailChangeRequested, mock.Anything, mock.Anything).Return()

	ticket, err := f.svc.ResendEmailChangeOTP(ctx, "u1", domain.ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, int64(600), ticket.ExpiresIn)

	require.NotNil(t, stored)
	assert.NotEqual(t, "482910", stored.Code, "resend must mint a fresh code")
	assert.Equal(t, 0, stored.Attempts, "resend resets the attempt count")
	assert.Equal(t, now.Add(10*time.Minute).Unix(), stored.ExpiresAt)
	f.limiter.AssertNotCalled(t, "Allow", mock.Anything, mock.Anything)
}

func TestResendEmailChangeOTP_NoPendingChange(t *testing.T) {
	f := newFixture(t)
	f.verifications.On("Get", mock.Anything, "u1", domain.PurposeEmailChange).Return(nil, domain.ErrNotFound)

	_, err := f.svc.ResendEmailChangeOTP(ctx, "u1", domain.ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestPhoneChange_NormalizesBeforeChecks(t *testing.T) {
	f := newFixture(t)
	now := time.Unix(1_700_000_000, 0)
	f.at(now)

	current := "+4915111111111"
	f.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Phone: &current}, nil)
	// Raw national-format input must be checked and stored in E.164.
	f.users.On("GetByPhone", mock.Anything, "+4915223456789").Return(nil, domain.ErrNotFound)
	f.limiter.On("Allow", mock.Anything, "phone_change:u1").Return(nil)

	var stored *domain.ContactVerification
	f.verifications.On("Put", mock.Anything, mock.AnythingOfType("*domain.ContactVerification")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.ContactVerification) }).
		Return(nil)
	f.sms.On("SendSMS", mock.Anything, "+4915223456789", mock.Anything).Return(nil)
	f.auditor.On("Record", mock.Anything, "u1", domain.AuditPhoneChangeRequested, mock.Anything, mock.Anything).Return()

	ticket, err := f.svc.RequestPhoneChange(ctx, "u1", "0152 23456789", domain.ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, int64(600), ticket.ExpiresIn)
	assert.Equal(t, "+4915223456789", stored.NewValue)
}

func TestRequestPhoneChange_InvalidNumber(t *testing.T) {
	f := newFixture(t)
	f.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)

	_, err := f.svc.RequestPhoneChange(ctx, "u1", "not a number", domain.ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestConfirmPhone_RoundTrip(t *testing.T) {
	f := newFixture(t)
	now := time.Unix(1_700_000_000, 0)
	f.at(now)

	f.verifications.On("Get", mock.Anything, "u1", domain.PurposePhoneConfirm).Return(&domain.ContactVerification{
		UserID: "u1", Purpose: domain.PurposePhoneConfirm,
		Identifier: "+4915223456789", Code: "123456",
		ExpiresAt: now.Add(time.Minute).Unix(),
	}, nil)
	f.verifications.On("Delete", mock.Anything, "u1", domain.PurposePhoneConfirm).Return(nil)
	f.users.On("Update", mock.Anything, "u1", map[string]interface{}{"phone_confirmed": true}).Return(nil)

	require.NoError(t, f.svc.ConfirmPhone(ctx, "u1", "123456"))
	f.verifications.AssertExpectations(t)
	f.users.AssertExpectations(t)
}

func TestConfirmEmail_WrongToken(t *testing.T) {
	f := newFixture(t)
	now := time.Unix(1_700_000_000, 0)
	f.at(now)

	f.verifications.On("Get", mock.Anything, "u1", domain.PurposeEmailConfirm).Return(&domain.ContactVerification{
		UserID: "u1", Code: "right-token", ExpiresAt: now.Add(time.Hour).Unix(),
	}, nil)

	err := f.svc.ConfirmEmail(ctx, "u1", "wrong-token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}
