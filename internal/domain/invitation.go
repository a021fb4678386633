package domain

import "time"

// Invitation statuses. PENDING and ACCEPTED rows block re-invites of the same
// contact; DECLINED and EXPIRED rows may be overwritten by a new invitation.
const (
	InvitationPending  = "PENDING"
	InvitationAccepted = "ACCEPTED"
	InvitationDeclined = "DECLINED"
	InvitationExpired  = "EXPIRED"
)

// Contact channels.
const (
	ChannelEmail = "email"
	ChannelPhone = "phone"
)

// Invitation invites one contact (an email address or an E.164 phone number)
// to one event. Contact holds the canonical form of the channel value and is
// part of the table key, so the store itself rejects duplicate live rows.
type Invitation struct {
	EventID      string    `json:"event_id" dynamodbav:"event_id"`
	Contact      string    `json:"contact" dynamodbav:"contact"`
	InvitationID string    `json:"id" dynamodbav:"invitation_id"`
	Channel      string    `json:"channel" dynamodbav:"channel"` // "email" | "phone"
	SenderID     string    `json:"sender_id" dynamodbav:"sender_id"`
	RecipientID  *string   `json:"recipient_id,omitempty" dynamodbav:"recipient_id"`
	Status       string    `json:"status" dynamodbav:"status"`
	ExpiresAt    int64     `json:"expires_at" dynamodbav:"expires_at"` // Unix seconds
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}

// Expired reports whether the invitation's expiry has passed. Expiry is
// passive: rows are never swept, the status is resolved at read time.
func (i *Invitation) Expired(now time.Time) bool {
	return i.ExpiresAt > 0 && i.ExpiresAt < now.Unix()
}

// EffectiveStatus resolves passive expiry on top of the stored status.
func (i *Invitation) EffectiveStatus(now time.Time) string {
	if i.Status == InvitationPending && i.Expired(now) {
		return InvitationExpired
	}
	return i.Status
}

type AddGuestsRequest struct {
	Emails       string `json:"emails"`        // free text, comma/newline separated
	PhoneNumbers string `json:"phone_numbers"` // free text, comma/newline separated
}
