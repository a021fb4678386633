// Package contact implements the OTP-verified contact flows: changing the
// email or phone number on an account, and confirming the contact set at
// registration.
package contact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nyaruka/phonenumbers"

	"github.com/buxmate/buxmate/internal/application/ratelimit"
	"github.com/buxmate/buxmate/internal/domain"
	"github.com/buxmate/buxmate/internal/infrastructure/smtp"
	"github.com/buxmate/buxmate/internal/infrastructure/sns"
	"github.com/buxmate/buxmate/internal/pkg/token"
)

const (
	otpDigits       = 6
	otpTTL          = 10 * time.Minute
	confirmTokenLen = 32
	confirmTokenTTL = 24 * time.Hour
	maxAttempts     = 3
)

// ChangeTicket reports a successfully issued OTP.
type ChangeTicket struct {
	ExpiresIn int64 `json:"expires_in"` // seconds
}

type Service interface {
	// Change flows: move the account to a new contact value, proven by OTP.
	RequestEmailChange(ctx context.Context, userID, newEmail string, client domain.ClientInfo) (*ChangeTicket, error)
	VerifyEmailChange(ctx context.Context, userID, newEmail, otp string, client domain.ClientInfo) error
	ResendEmailChangeOTP(ctx context.Context, userID string, client domain.ClientInfo) (*ChangeTicket, error)
	RequestPhoneChange(ctx context.Context, userID, newPhone string, client domain.ClientInfo) (*ChangeTicket, error)
	VerifyPhoneChange(ctx context.Context, userID, newPhone, otp string, client domain.ClientInfo) error
	ResendPhoneChangeOTP(ctx context.Context, userID string, client domain.ClientInfo) (*ChangeTicket, error)

	// Confirmation flows: prove ownership of the contact already on file.
	RequestEmailConfirmation(ctx context.Context, userID string) error
	ConfirmEmail(ctx context.Context, userID, confirmToken string) error
	RequestPhoneConfirmation(ctx context.Context, userID string) error
	ConfirmPhone(ctx context.Context, userID, otp string) error
}

type verificationStore interface {
	Put(ctx context.Context, v *domain.ContactVerification) error
	Get(ctx context.Context, userID, purpose string) (*domain.ContactVerification, error)
	Delete(ctx context.Context, userID, purpose string) error
	IncrementAttempts(ctx context.Context, userID, purpose string) (int, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type limiter interface {
	Allow(ctx context.Context, key string) error
}

type auditor interface {
	Record(ctx context.Context, userID, action string, details map[string]string, client domain.ClientInfo)
}

type service struct {
	verifications      verificationStore
	users              userStore
	limiter            limiter
	auditor            auditor
	mailer             smtp.Mailer
	sms                sns.SMSSender
	defaultPhoneRegion string
	now                func() time.Time
}

type ServiceDeps struct {
	VerificationRepo   verificationStore
	UserRepo           userStore
	Limiter            limiter
	Auditor            auditor
	Mailer             smtp.Mailer
	SMSSender          sns.SMSSender
	DefaultPhoneRegion string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		verifications:      deps.VerificationRepo,
		users:              deps.UserRepo,
		limiter:            deps.Limiter,
		auditor:            deps.Auditor,
		mailer:             deps.Mailer,
		sms:                deps.SMSSender,
		defaultPhoneRegion: deps.DefaultPhoneRegion,
		now:                time.Now,
	}
}

// ── Email change ───────────────────────────────────────────────────────────

func (s *service) RequestEmailChange(ctx context.Context, userID, newEmail string, client domain.ClientInfo) (*ChangeTicket, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	if u.Email == newEmail {
		return nil, fmt.Errorf("new email must differ from the current one: %w", domain.ErrBadRequest)
	}
	if _, err := s.users.GetByEmail(ctx, newEmail); err == nil {
		return nil, fmt.Errorf("email already in use: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err := s.limiter.Allow(ctx, ratelimit.Key("email_change", userID)); err != nil {
		return nil, err
	}

	ticket, err := s.issueChangeOTP(ctx, userID, domain.PurposeEmailChange, u.Email, newEmail, func(code string) error {
		return s.mailer.SendEmail(newEmail, "Confirm your new email address",
			fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(otpTTL.Minutes())))
	})
	if err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, userID, domain.AuditEmailChangeRequested,
		map[string]string{"new_email": newEmail}, client)
	return ticket, nil
}

func (s *service) VerifyEmailChange(ctx context.Context, userID, newEmail, otp string, client domain.ClientInfo) error {
	return s.verifyChange(ctx, userID, domain.PurposeEmailChange, newEmail, otp, client, verifyChangeHooks{
		failedAction:    domain.AuditEmailChangeFailed,
		completedAction: domain.AuditEmailChangeCompleted,
		detailKey:       "new_email",
		stillFree: func(ctx context.Context, value string) error {
			if _, err := s.users.GetByEmail(ctx, value); err == nil {
				return fmt.Errorf("email already in use: %w", domain.ErrConflict)
			} else if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			return nil
		},
		commit: func(ctx context.Context, value string) error {
			return s.users.Update(ctx, userID, map[string]interface{}{
				"email":           value,
				"email_confirmed": true,
			})
		},
	})
}

// ResendEmailChangeOTP reissues the code for a pending email change. The
// pending record is replaced wholesale: a fresh code and a fresh expiry.
func (s *service) ResendEmailChangeOTP(ctx context.Context, userID string, client domain.ClientInfo) (*ChangeTicket, error) {
	prev, err := s.verifications.Get(ctx, userID, domain.PurposeEmailChange)
	if err != nil {
		return nil, fmt.Errorf("no pending email change: %w", domain.ErrNotFound)
	}
	ticket, err := s.issueChangeOTP(ctx, userID, domain.PurposeEmailChange, prev.Identifier, prev.NewValue, func(code string) error {
		return s.mailer.SendEmail(prev.NewValue, "Confirm your new email address",
			fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(otpTTL.Minutes())))
	})
	if err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, userID, domain.AuditEmailChangeRequested,
		map[string]string{"new_email": prev.NewValue, "resend": "true"}, client)
	return ticket, nil
}

// ── Phone change ───────────────────────────────────────────────────────────

func (s *service) RequestPhoneChange(ctx context.Context, userID, newPhone string, client domain.ClientInfo) (*ChangeTicket, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	normalized, err := s.normalizePhone(newPhone)
	if err != nil {
		return nil, err
	}
	if u.Phone != nil && *u.Phone == normalized {
		return nil, fmt.Errorf("new phone number must differ from the current one: %w", domain.ErrBadRequest)
	}
	if _, err := s.users.GetByPhone(ctx, normalized); err == nil {
		return nil, fmt.Errorf("phone number already in use: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err := s.limiter.Allow(ctx, ratelimit.Key("phone_change", userID)); err != nil {
		return nil, err
	}

	current := ""
	if u.Phone != nil {
		current = *u.Phone
	}
	ticket, err := s.issueChangeOTP(ctx, userID, domain.PurposePhoneChange, current, normalized, func(code string) error {
		return s.sms.SendSMS(ctx, normalized, "Your Buxmate verification code: "+code)
	})
	if err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, userID, domain.AuditPhoneChangeRequested,
		map[string]string{"new_phone": normalized}, client)
	return ticket, nil
}

func (s *service) VerifyPhoneChange(ctx context.Context, userID, newPhone, otp string, client domain.ClientInfo) error {
	normalized, err := s.normalizePhone(newPhone)
	if err != nil {
		return err
	}
	return s.verifyChange(ctx, userID, domain.PurposePhoneChange, normalized, otp, client, verifyChangeHooks{
		failedAction:    domain.AuditPhoneChangeFailed,
		completedAction: domain.AuditPhoneChangeCompleted,
		detailKey:       "new_phone",
		stillFree: func(ctx context.Context, value string) error {
			if _, err := s.users.GetByPhone(ctx, value); err == nil {
				return fmt.Errorf("phone number already in use: %w", domain.ErrConflict)
			} else if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			return nil
		},
		commit: func(ctx context.Context, value string) error {
			return s.users.Update(ctx, userID, map[string]interface{}{
				"phone":           value,
				"phone_confirmed": true,
			})
		},
	})
}

func (s *service) ResendPhoneChangeOTP(ctx context.Context, userID string, client domain.ClientInfo) (*ChangeTicket, error) {
	prev, err := s.verifications.Get(ctx, userID, domain.PurposePhoneChange)
	if err != nil {
		return nil, fmt.Errorf("no pending phone change: %w", domain.ErrNotFound)
	}
	ticket, err := s.issueChangeOTP(ctx, userID, domain.PurposePhoneChange, prev.Identifier, prev.NewValue, func(code string) error {
		return s.sms.SendSMS(ctx, prev.NewValue, "Your Buxmate verification code: "+code)
	})
	if err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, userID, domain.AuditPhoneChangeRequested,
		map[string]string{"new_phone": prev.NewValue, "resend": "true"}, client)
	return ticket, nil
}

// ── Registration confirmation ──────────────────────────────────────────────

func (s *service) RequestEmailConfirmation(ctx context.Context, userID string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	tok, err := token.NewConfirmationToken(confirmTokenLen)
	if err != nil {
		return err
	}
	v := &domain.ContactVerification{
		UserID:     userID,
		Purpose:    domain.PurposeEmailConfirm,
		Identifier: u.Email,
		Code:       tok,
		ExpiresAt:  s.now().Add(confirmTokenTTL).Unix(),
	}
	if err := s.verifications.Put(ctx, v); err != nil {
		return err
	}
	if err := s.mailer.SendEmail(u.Email, "Confirm your email", "Your confirmation token: "+tok); err != nil {
		return fmt.Errorf("send confirmation email: %w", domain.ErrDispatchFailed)
	}
	return nil
}

func (s *service) ConfirmEmail(ctx context.Context, userID, confirmToken string) error {
	v, err := s.verifications.Get(ctx, userID, domain.PurposeEmailConfirm)
	if err != nil {
		return fmt.Errorf("token not found: %w", domain.ErrNotFound)
	}
	if v.Code != confirmToken {
		return fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
	}
	if v.ExpiresAt < s.now().Unix() {
		return fmt.Errorf("token expired: %w", domain.ErrUnauthorized)
	}
	s.deleteQuietly(ctx, userID, domain.PurposeEmailConfirm)
	return s.users.Update(ctx, userID, map[string]interface{}{"email_confirmed": true})
}

func (s *service) RequestPhoneConfirmation(ctx context.Context, userID string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	if u.Phone == nil {
		return fmt.Errorf("no phone number on account: %w", domain.ErrBadRequest)
	}
	code, err := token.NewOTP(otpDigits)
	if err != nil {
		return err
	}
	v := &domain.ContactVerification{
		UserID:     userID,
		Purpose:    domain.PurposePhoneConfirm,
		Identifier: *u.Phone,
		Code:       code,
		ExpiresAt:  s.now().Add(otpTTL).Unix(),
	}
	if err := s.verifications.Put(ctx, v); err != nil {
		return err
	}
	if err := s.sms.SendSMS(ctx, *u.Phone, "Your Buxmate verification code: "+code); err != nil {
		return fmt.Errorf("send confirmation SMS: %w", domain.ErrDispatchFailed)
	}
	return nil
}

func (s *service) ConfirmPhone(ctx context.Context, userID, otp string) error {
	v, err := s.verifications.Get(ctx, userID, domain.PurposePhoneConfirm)
	if err != nil {
		return fmt.Errorf("code not found: %w", domain.ErrNotFound)
	}
	if v.Code != otp {
		return fmt.Errorf("invalid code: %w", domain.ErrUnauthorized)
	}
	if v.ExpiresAt < s.now().Unix() {
		return fmt.Errorf("code expired: %w", domain.ErrUnauthorized)
	}
	s.deleteQuietly(ctx, userID, domain.PurposePhoneConfirm)
	return s.users.Update(ctx, userID, map[string]interface{}{"phone_confirmed": true})
}

// ── Shared machinery ───────────────────────────────────────────────────────

// issueChangeOTP replaces any pending record for (userID, purpose) with a
// fresh code and dispatches it. A dispatch failure is reported to the caller,
// but the stored record stays valid until its TTL; the caller can still
// verify with the code if it arrived, or resend.
func (s *service) issueChangeOTP(ctx context.Context, userID, purpose, currentValue, newValue string, dispatch func(code string) error) (*ChangeTicket, error) {
	code, err := token.NewOTP(otpDigits)
	if err != nil {
		return nil, err
	}
	v := &domain.ContactVerification{
		UserID:     userID,
		Purpose:    purpose,
		Identifier: currentValue,
		NewValue:   newValue,
		Code:       code,
		ExpiresAt:  s.now().Add(otpTTL).Unix(),
		Attempts:   0,
	}
	if err := s.verifications.Put(ctx, v); err != nil {
		return nil, err
	}
	if err := dispatch(code); err != nil {
		return nil, fmt.Errorf("send verification code: %w", domain.ErrDispatchFailed)
	}
	return &ChangeTicket{ExpiresIn: int64(otpTTL.Seconds())}, nil
}

type verifyChangeHooks struct {
	failedAction    string
	completedAction string
	detailKey       string
	stillFree       func(ctx context.Context, value string) error
	commit          func(ctx context.Context, value string) error
}

func (s *service) verifyChange(ctx context.Context, userID, purpose, newValue, otp string, client domain.ClientInfo, hooks verifyChangeHooks) error {
	v, err := s.verifications.Get(ctx, userID, purpose)
	if err != nil || v.NewValue != newValue || v.ExpiresAt < s.now().Unix() {
		return fmt.Errorf("invalid or expired code: %w", domain.ErrUnauthorized)
	}

	if v.Code != otp {
		attempts, err := s.verifications.IncrementAttempts(ctx, userID, purpose)
		if err != nil {
			return err
		}
		remaining := maxAttempts - attempts
		s.auditor.Record(ctx, userID, hooks.failedAction, map[string]string{
			hooks.detailKey:      newValue,
			"remaining_attempts": strconv.Itoa(remaining),
		}, client)
		if remaining <= 0 {
			s.deleteQuietly(ctx, userID, purpose)
			return fmt.Errorf("maximum attempts exceeded, request a new code: %w", domain.ErrUnauthorized)
		}
		return &domain.OTPMismatchError{RemainingAttempts: remaining}
	}

	// Re-check the target is still unclaimed; another account may have taken
	// it between request and verify.
	if err := hooks.stillFree(ctx, newValue); err != nil {
		return err
	}
	if err := hooks.commit(ctx, newValue); err != nil {
		return err
	}
	s.deleteQuietly(ctx, userID, purpose)
	s.auditor.Record(ctx, userID, hooks.completedAction,
		map[string]string{hooks.detailKey: newValue}, client)
	return nil
}

func (s *service) deleteQuietly(ctx context.Context, userID, purpose string) {
	if err := s.verifications.Delete(ctx, userID, purpose); err != nil {
		slog.Warn("failed to delete verification record", "user_id", userID, "purpose", purpose, "err", err)
	}
}

func (s *service) normalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, s.defaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("invalid phone number: %w", domain.ErrBadRequest)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
