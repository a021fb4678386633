package domain

import "time"

// Audit action tags written by the security-relevant workflows.
const (
	AuditEmailChangeRequested = "email_change_otp_requested"
	AuditEmailChangeFailed    = "email_change_otp_failed"
	AuditEmailChangeCompleted = "email_change_completed"
	AuditPhoneChangeRequested = "phone_change_otp_requested"
	AuditPhoneChangeFailed    = "phone_change_otp_failed"
	AuditPhoneChangeCompleted = "phone_change_completed"
	AuditGuestsInvited        = "guests_invited"
	AuditInvitationResponded  = "invitation_responded"
)

// AuditEntry is an append-only record of a security-relevant action.
// Entries are never mutated; retention is enforced by a table TTL.
type AuditEntry struct {
	AuditID   string            `json:"id" dynamodbav:"audit_id"`
	UserID    string            `json:"user_id" dynamodbav:"user_id"`
	Action    string            `json:"action" dynamodbav:"action"`
	Details   map[string]string `json:"details,omitempty" dynamodbav:"details"`
	IPAddress string            `json:"ip_address" dynamodbav:"ip_address"`
	UserAgent string            `json:"user_agent" dynamodbav:"user_agent"`
	CreatedAt time.Time         `json:"created" dynamodbav:"created_at"`
	TTL       int64             `json:"-" dynamodbav:"ttl"`
}
