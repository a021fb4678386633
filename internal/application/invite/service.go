// Package invite manages guest invitations: bulk-adding guests to an event
// from free-text contact lists, listing them, and recording responses.
package invite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/buxmate/buxmate/internal/domain"
	"github.com/buxmate/buxmate/internal/infrastructure/smtp"
	"github.com/buxmate/buxmate/internal/infrastructure/sns"
	"github.com/buxmate/buxmate/internal/pkg/contact"
	"github.com/buxmate/buxmate/internal/pkg/id"
)

const inviteTTL = 30 * 24 * time.Hour

// Guest outcome tags reported per contact.
const (
	OutcomeInvited        = "invited"
	OutcomeAlreadyInvited = "already_invited"
	OutcomeFailed         = "failed"
)

// GuestOutcome reports what happened to one submitted contact.
type GuestOutcome struct {
	Contact string `json:"contact"`
	Channel string `json:"channel"`
	Status  string `json:"status"`
	Warning string `json:"warning,omitempty"`
}

// AddGuestsResult summarizes one bulk guest submission.
type AddGuestsResult struct {
	Message       string         `json:"message"`
	Outcomes      []GuestOutcome `json:"outcomes"`
	InvalidEmails []string       `json:"invalid_emails,omitempty"`
	InvalidPhones []string       `json:"invalid_phone_numbers,omitempty"`
}

// Guest is an invitation with its passive expiry resolved.
type Guest struct {
	domain.Invitation
	Status string `json:"status"`
}

type Service interface {
	AddGuests(ctx context.Context, senderID, eventID string, req *domain.AddGuestsRequest, client domain.ClientInfo) (*AddGuestsResult, error)
	ListGuests(ctx context.Context, requesterID, eventID string) ([]Guest, error)
	ListForRecipient(ctx context.Context, recipientID string) ([]Guest, error)
	Respond(ctx context.Context, userID, invitationID string, accept bool, client domain.ClientInfo) error
}

type invitationStore interface {
	Create(ctx context.Context, inv *domain.Invitation) error
	Get(ctx context.Context, eventID, contact string) (*domain.Invitation, error)
	GetByID(ctx context.Context, invitationID string) (*domain.Invitation, error)
	ListByEvent(ctx context.Context, eventID string) ([]domain.Invitation, error)
	ListByRecipient(ctx context.Context, recipientID string) ([]domain.Invitation, error)
	UpdateStatus(ctx context.Context, eventID, contact, newStatus string) error
}

type eventStore interface {
	Get(ctx context.Context, eventID string) (*domain.Event, error)
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
}

type notificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
}

type auditor interface {
	Record(ctx context.Context, userID, action string, details map[string]string, client domain.ClientInfo)
}

type service struct {
	invitations        invitationStore
	events             eventStore
	users              userStore
	notifications      notificationStore
	auditor            auditor
	mailer             smtp.Mailer
	sms                sns.SMSSender
	defaultPhoneRegion string
	now                func() time.Time
}

type ServiceDeps struct {
	InvitationRepo     invitationStore
	EventRepo          eventStore
	UserRepo           userStore
	NotificationRepo   notificationStore
	Auditor            auditor
	Mailer             smtp.Mailer
	SMSSender          sns.SMSSender
	DefaultPhoneRegion string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		invitations:        deps.InvitationRepo,
		events:             deps.EventRepo,
		users:              deps.UserRepo,
		notifications:      deps.NotificationRepo,
		auditor:            deps.Auditor,
		mailer:             deps.Mailer,
		sms:                deps.SMSSender,
		defaultPhoneRegion: deps.DefaultPhoneRegion,
		now:                time.Now,
	}
}

// AddGuests parses the submitted contact blocks and invites each valid
// contact to the event. Contacts are processed independently and
// sequentially; one failed contact never aborts the rest of the batch.
func (s *service) AddGuests(ctx context.Context, senderID, eventID string, req *domain.AddGuestsRequest, client domain.ClientInfo) (*AddGuestsResult, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.HostID != senderID {
		return nil, fmt.Errorf("only the host can invite guests: %w", domain.ErrForbidden)
	}

	emails, invalidEmails := contact.ParseEmails(req.Emails)
	phones, invalidPhones := contact.ParsePhones(req.PhoneNumbers, s.defaultPhoneRegion)

	result := &AddGuestsResult{
		InvalidEmails: invalidEmails,
		InvalidPhones: invalidPhones,
	}
	for _, email := range emails {
		result.Outcomes = append(result.Outcomes, s.invite(ctx, event, senderID, domain.ChannelEmail, email))
	}
	for _, phone := range phones {
		result.Outcomes = append(result.Outcomes, s.invite(ctx, event, senderID, domain.ChannelPhone, phone.E164))
	}

	result.Message = fmt.Sprintf(
		"Successfully processed %d valid emails and %d valid phone numbers. Found %d invalid emails and %d invalid phone numbers",
		len(emails), len(phones), len(invalidEmails), len(invalidPhones))

	s.auditor.Record(ctx, senderID, domain.AuditGuestsInvited, map[string]string{
		"event_id":      eventID,
		"valid_emails":  fmt.Sprint(len(emails)),
		"valid_phones":  fmt.Sprint(len(phones)),
		"invalid_count": fmt.Sprint(len(invalidEmails) + len(invalidPhones)),
	}, client)
	return result, nil
}

// invite handles one contact: resolve the recipient, detect a cross-channel
// duplicate, then create the row. Uniqueness of live rows per (event, contact)
// is enforced by the store's conditional write, so a lost race surfaces here
// as a conflict rather than a duplicate.
func (s *service) invite(ctx context.Context, event *domain.Event, senderID, channel, contactValue string) GuestOutcome {
	out := GuestOutcome{Contact: contactValue, Channel: channel}

	recipient := s.resolveRecipient(ctx, channel, contactValue)
	if w := s.crossChannelWarning(ctx, event.EventID, channel, recipient); w != "" {
		out.Warning = w
	}

	now := s.now().UTC()
	inv := &domain.Invitation{
		EventID:      event.EventID,
		Contact:      contactValue,
		InvitationID: id.New(),
		Channel:      channel,
		SenderID:     senderID,
		Status:       domain.InvitationPending,
		ExpiresAt:    now.Add(inviteTTL).Unix(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if recipient != nil {
		inv.RecipientID = &recipient.UserID
	}

	if err := s.invitations.Create(ctx, inv); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			out.Status = OutcomeAlreadyInvited
			return out
		}
		slog.Error("failed to create invitation", "event_id", event.EventID, "channel", channel, "err", err)
		out.Status = OutcomeFailed
		return out
	}

	s.dispatch(ctx, event, channel, contactValue)
	if recipient != nil {
		s.notify(ctx, event, recipient.UserID)
	}
	out.Status = OutcomeInvited
	return out
}

// resolveRecipient looks up an existing account owning the contact. A lookup
// failure resolves to no recipient; the invitation still goes out.
func (s *service) resolveRecipient(ctx context.Context, channel, contactValue string) *domain.User {
	var (
		u   *domain.User
		err error
	)
	switch channel {
	case domain.ChannelEmail:
		u, err = s.users.GetByEmail(ctx, contactValue)
	case domain.ChannelPhone:
		u, err = s.users.GetByPhone(ctx, contactValue)
	}
	if err != nil {
		return nil
	}
	return u
}

// crossChannelWarning checks whether the resolved recipient already holds a
// live invitation to this event on their other contact channel. The warning
// is advisory; the new invitation is still created.
func (s *service) crossChannelWarning(ctx context.Context, eventID, channel string, recipient *domain.User) string {
	if recipient == nil {
		return ""
	}
	var other string
	switch channel {
	case domain.ChannelEmail:
		if recipient.Phone != nil {
			other = *recipient.Phone
		}
	case domain.ChannelPhone:
		other = recipient.Email
	}
	if other == "" {
		return ""
	}
	existing, err := s.invitations.Get(ctx, eventID, other)
	if err != nil {
		return ""
	}
	switch existing.EffectiveStatus(s.now()) {
	case domain.InvitationPending, domain.InvitationAccepted:
		return fmt.Sprintf("recipient already invited to this event via %s", existing.Channel)
	}
	return ""
}

// dispatch sends the invite over the contact's channel. Best effort: the row
// already exists and the host sees the contact as invited either way.
func (s *service) dispatch(ctx context.Context, event *domain.Event, channel, contactValue string) {
	var err error
	switch channel {
	case domain.ChannelEmail:
		err = s.mailer.SendEmail(contactValue, "You're invited: "+event.Title,
			fmt.Sprintf("You have been invited to %s on %s. Open Buxmate to respond.",
				event.Title, event.Date.Format("2006-01-02")))
	case domain.ChannelPhone:
		err = s.sms.SendSMS(ctx, contactValue,
			fmt.Sprintf("You're invited to %s on Buxmate. Open the app to respond.", event.Title))
	}
	if err != nil {
		slog.Warn("failed to dispatch invitation", "event_id", event.EventID, "channel", channel, "err", err)
	}
}

func (s *service) notify(ctx context.Context, event *domain.Event, recipientID string) {
	now := s.now().UTC()
	n := &domain.Notification{
		NotificationID: id.New(),
		UserID:         recipientID,
		EventID:        &event.EventID,
		Message:        fmt.Sprintf("You have been invited to %s", event.Title),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.notifications.Put(ctx, n); err != nil {
		slog.Warn("failed to store invitation notification", "user_id", recipientID, "err", err)
	}
}

// ListGuests returns the event's invitations with passive expiry applied.
// Only the host may list guests.
func (s *service) ListGuests(ctx context.Context, requesterID, eventID string) ([]Guest, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.HostID != requesterID {
		return nil, fmt.Errorf("only the host can list guests: %w", domain.ErrForbidden)
	}
	invs, err := s.invitations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return s.withEffectiveStatus(invs), nil
}

// ListForRecipient returns the invitations addressed to an account.
func (s *service) ListForRecipient(ctx context.Context, recipientID string) ([]Guest, error) {
	invs, err := s.invitations.ListByRecipient(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	return s.withEffectiveStatus(invs), nil
}

func (s *service) withEffectiveStatus(invs []domain.Invitation) []Guest {
	now := s.now()
	guests := make([]Guest, 0, len(invs))
	for _, inv := range invs {
		guests = append(guests, Guest{Invitation: inv, Status: inv.EffectiveStatus(now)})
	}
	return guests
}

// Respond records an accept or decline. Only the resolved recipient may
// respond, and only while the invitation is still pending and unexpired.
func (s *service) Respond(ctx context.Context, userID, invitationID string, accept bool, client domain.ClientInfo) error {
	inv, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil {
		return err
	}
	if inv.RecipientID == nil || *inv.RecipientID != userID {
		return fmt.Errorf("invitation is not addressed to this account: %w", domain.ErrForbidden)
	}
	if inv.EffectiveStatus(s.now()) != domain.InvitationPending {
		return fmt.Errorf("invitation is no longer open: %w", domain.ErrConflict)
	}

	newStatus := domain.InvitationDeclined
	if accept {
		newStatus = domain.InvitationAccepted
	}
	if err := s.invitations.UpdateStatus(ctx, inv.EventID, inv.Contact, newStatus); err != nil {
		return err
	}
	s.auditor.Record(ctx, userID, domain.AuditInvitationResponded, map[string]string{
		"event_id": inv.EventID,
		"status":   newStatus,
	}, client)
	return nil
}
