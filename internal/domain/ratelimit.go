package domain

// RateLimit tracks attempts for one logical key ("operation:subject") inside
// a fixed window. Records age out via TTL 24 hours after the window resets.
type RateLimit struct {
	Key       string `json:"key" dynamodbav:"limit_key"`
	Count     int    `json:"count" dynamodbav:"attempt_count"`
	ResetTime int64  `json:"reset_time" dynamodbav:"reset_time"` // Unix seconds
	TTL       int64  `json:"-" dynamodbav:"ttl"`                 // reset_time + 24h
}
