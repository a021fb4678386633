package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiryDays     int

	RefreshTokenExpiryDays int

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion string

	DefaultPhoneRegion string // ISO 3166-1 alpha-2, used when a phone number has no country prefix
	AuditRetentionDays int
	AllowedOrigins     []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users                string
	Sessions             string
	Events               string
	Activities           string
	Invitations          string
	ContactVerifications string
	RateLimits           string
	AuditLog             string
	Notifications        string
	Images               string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:                getEnv("DYNAMO_TABLE_USERS", "users"),
			Sessions:             getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			Events:               getEnv("DYNAMO_TABLE_EVENTS", "events"),
			Activities:           getEnv("DYNAMO_TABLE_ACTIVITIES", "activities"),
			Invitations:          getEnv("DYNAMO_TABLE_INVITATIONS", "invitations"),
			ContactVerifications: getEnv("DYNAMO_TABLE_CONTACT_VERIFICATIONS", "contact_verifications"),
			RateLimits:           getEnv("DYNAMO_TABLE_RATE_LIMITS", "rate_limits"),
			AuditLog:             getEnv("DYNAMO_TABLE_AUDIT_LOG", "audit_log"),
			Notifications:        getEnv("DYNAMO_TABLE_NOTIFICATIONS", "notifications"),
			Images:               getEnv("DYNAMO_TABLE_IMAGES", "images"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "buxmate-images"),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiryDays:     getEnvInt("JWT_EXPIRY_DAYS", 7),

		RefreshTokenExpiryDays: getEnvInt("REFRESH_TOKEN_EXPIRY_DAYS", 30),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@buxmate.app"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion: getEnv("SNS_REGION", "us-east-1"),

		DefaultPhoneRegion: getEnv("DEFAULT_PHONE_REGION", "US"),
		AuditRetentionDays: getEnvInt("AUDIT_RETENTION_DAYS", 365),
		AllowedOrigins:     strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
