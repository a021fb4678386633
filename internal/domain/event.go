package domain

import "time"

type Event struct {
	EventID      string    `json:"id" dynamodbav:"event_id"`
	HostID       string    `json:"host_id" dynamodbav:"host_id"`
	Title        string    `json:"title" dynamodbav:"title"`
	Description  string    `json:"description" dynamodbav:"description"`
	Address      string    `json:"address" dynamodbav:"address"`
	Timezone     string    `json:"timezone" dynamodbav:"timezone"`
	Date         time.Time `json:"date" dynamodbav:"date"`
	CoverImageID *string   `json:"cover_image_id,omitempty" dynamodbav:"cover_image_id"`
	Enable       bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`

	Totals *EventTotals `json:"totals,omitempty" dynamodbav:"-"`
}

// EventTotals sums the per-head activity costs of an event, keyed by
// currency since activities may be priced in different ones.
type EventTotals struct {
	ActivityCount int              `json:"activity_count"`
	CostPerHead   map[string]int64 `json:"cost_per_head_cents"`
}

type CreateEventRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Address     string `json:"address" validate:"required"`
	Timezone    string `json:"timezone" validate:"required"`
	Date        string `json:"date" validate:"required"` // expected format: YYYY-MM-DD
}

type UpdateEventRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Address     *string `json:"address"`
	Timezone    *string `json:"timezone"`
	Date        *string `json:"date"` // expected format: YYYY-MM-DD
}
