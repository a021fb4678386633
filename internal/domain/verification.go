package domain

// Verification purposes. Change purposes carry a pending new contact value;
// confirm purposes prove ownership of the contact already on the account.
const (
	PurposeEmailChange  = "email_change"
	PurposePhoneChange  = "phone_change"
	PurposeEmailConfirm = "email_confirm"
	PurposePhoneConfirm = "phone_confirm"
)

// ContactVerification stores a pending OTP bound to a user and purpose.
// PK: user_id, SK: purpose. At most one live record per pair: a new request
// overwrites the previous one. ExpiresAt doubles as the DynamoDB TTL.
type ContactVerification struct {
	UserID     string `json:"user_id" dynamodbav:"user_id"`
	Purpose    string `json:"purpose" dynamodbav:"purpose"`
	Identifier string `json:"identifier" dynamodbav:"identifier"`           // current contact value
	NewValue   string `json:"new_value,omitempty" dynamodbav:"new_value"`   // pending contact value (change purposes)
	Code       string `json:"-" dynamodbav:"code"`
	ExpiresAt  int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
	Attempts   int    `json:"attempts" dynamodbav:"attempts"`
}
