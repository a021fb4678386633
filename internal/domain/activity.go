package domain

import "time"

// Activity is a scheduled item within an event. Costs are tracked per person
// in minor currency units to avoid floating-point drift.
type Activity struct {
	ActivityID  string    `json:"id" dynamodbav:"activity_id"`
	EventID     string    `json:"event_id" dynamodbav:"event_id"`
	Title       string    `json:"title" dynamodbav:"title"`
	Description string    `json:"description" dynamodbav:"description"`
	StartsAt    time.Time `json:"starts_at" dynamodbav:"starts_at"`
	EndsAt      time.Time `json:"ends_at" dynamodbav:"ends_at"`
	CostPerHead int64     `json:"cost_per_head_cents" dynamodbav:"cost_per_head_cents"`
	Currency    string    `json:"currency" dynamodbav:"currency"`
	CreatedBy   string    `json:"created_by" dynamodbav:"created_by"`
	Enable      bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updated" dynamodbav:"updated_at"`
}

type CreateActivityRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	StartsAt    string `json:"starts_at" validate:"required"` // RFC 3339
	EndsAt      string `json:"ends_at" validate:"required"`   // RFC 3339
	CostPerHead int64  `json:"cost_per_head_cents" validate:"gte=0"`
	Currency    string `json:"currency" validate:"omitempty,len=3"`
}

type UpdateActivityRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	StartsAt    *string `json:"starts_at"` // RFC 3339
	EndsAt      *string `json:"ends_at"`   // RFC 3339
	CostPerHead *int64  `json:"cost_per_head_cents"`
	Currency    *string `json:"currency"`
}
