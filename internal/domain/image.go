package domain

import "time"

// Image is metadata for an event cover image stored in S3.
type Image struct {
	ImageID    string    `json:"id" dynamodbav:"image_id"`
	EventID    string    `json:"event_id" dynamodbav:"event_id"`
	Object     string    `json:"object" dynamodbav:"object"` // S3 key
	Size       int64     `json:"size" dynamodbav:"size"`
	Type       string    `json:"type" dynamodbav:"type"`
	Name       string    `json:"name" dynamodbav:"name"`
	Hash       string    `json:"hash" dynamodbav:"hash"`
	UploadedBy string    `json:"uploaded_by" dynamodbav:"uploaded_by"`
	Enable     bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt  time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt  time.Time `json:"updated" dynamodbav:"updated_at"`
}
