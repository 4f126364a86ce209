package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// Logging
	LogLevel       string
	LogDevelopment bool

	// MongoDB
	MongoURI       string
	MongoDbName    string
	MongoSlowQuery time.Duration

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string
	JwtTTL    time.Duration

	// Server
	ApiPort           string
	ServiceApiPort    string
	CorsAllowedOrigin string

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string

	// AWS S3
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	ImageBaseS3URL     string
	ImageMaxDimension  int
	ImageThumbSize     int
	UploadMaxSizeMB    int
	UploadURLTTL       time.Duration

	// App Defaults
	AppName              string
	AppBaseURL           string
	PasswordMinLength    int
	ListingCacheTTL      time.Duration
	// ActivityHistoryLimit keeps only the newest entries when positive.
	// Zero keeps the whole history.
	ActivityHistoryLimit int
	// UnsaveActivityAction is logged when a user unsaves a listing: "delete"
	// (with metadata action=unsave) or "unsave".
	UnsaveActivityAction string
	OfferTTL             time.Duration
	OfferExpirySchedule  string
	MessageNotifyWindow  time.Duration

	// Rate Limiting (tokens per second / bucket size)
	RateLimitBucketSize     int
	RateLimitRefillRate     int
	AuthRateLimitBucketSize int
	AuthRateLimitRefillRate int
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	getInt := func(key, defaultValue string) (int, error) {
		v, err := strconv.Atoi(getEnv(key, defaultValue))
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return v, nil
	}

	getSeconds := func(key, defaultValue string) (time.Duration, error) {
		v, err := strconv.ParseInt(getEnv(key, defaultValue), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return time.Duration(v) * time.Second, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "marketplace")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogDevelopment = getEnv("LOG_DEVELOPMENT", "false") == "true"
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.CorsAllowedOrigin = getEnv("CORS_ALLOWED_ORIGIN", "*")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "noreply@marketplace.example.com")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "us-east-1")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.ImageBaseS3URL = strings.TrimRight(getEnv("IMAGE_BASE_S3_URL", ""), "/")
	cfg.AppName = getEnv("APP_NAME", "Marketplace")
	cfg.AppBaseURL = strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/")
	cfg.OfferExpirySchedule = getEnv("OFFER_EXPIRY_SCHEDULE", "@hourly")

	cfg.UnsaveActivityAction = getEnv("UNSAVE_ACTIVITY_ACTION", "delete")
	if cfg.UnsaveActivityAction != "delete" && cfg.UnsaveActivityAction != "unsave" {
		return nil, fmt.Errorf("invalid UNSAVE_ACTIVITY_ACTION %q: must be delete or unsave", cfg.UnsaveActivityAction)
	}

	if cfg.RedisDB, err = getInt("REDIS_DB", "0"); err != nil {
		return nil, err
	}
	if cfg.SmtpPort, err = getInt("SMTP_PORT", "587"); err != nil {
		return nil, err
	}
	if cfg.ImageMaxDimension, err = getInt("IMAGE_MAX_DIMENSION", "800"); err != nil {
		return nil, err
	}
	if cfg.ImageThumbSize, err = getInt("IMAGE_THUMB_SIZE", "32"); err != nil {
		return nil, err
	}
	if cfg.UploadMaxSizeMB, err = getInt("UPLOAD_MAX_SIZE_MB", "5"); err != nil {
		return nil, err
	}
	if cfg.PasswordMinLength, err = getInt("PASSWORD_MIN_LENGTH", "8"); err != nil {
		return nil, err
	}
	if cfg.ActivityHistoryLimit, err = getInt("ACTIVITY_HISTORY_LIMIT", "0"); err != nil {
		return nil, err
	}
	if cfg.RateLimitBucketSize, err = getInt("RATE_LIMIT_BUCKET_SIZE", "20"); err != nil {
		return nil, err
	}
	if cfg.RateLimitRefillRate, err = getInt("RATE_LIMIT_REFILL_RATE", "10"); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimitBucketSize, err = getInt("AUTH_RATE_LIMIT_BUCKET_SIZE", "5"); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimitRefillRate, err = getInt("AUTH_RATE_LIMIT_REFILL_RATE", "1"); err != nil {
		return nil, err
	}

	if cfg.JwtTTL, err = getSeconds("JWT_TTL_SECONDS", "86400"); err != nil {
		return nil, err
	}
	if cfg.UploadURLTTL, err = getSeconds("UPLOAD_URL_TTL_SECONDS", "900"); err != nil {
		return nil, err
	}
	if cfg.ListingCacheTTL, err = getSeconds("LISTING_CACHE_TTL_SECONDS", "60"); err != nil {
		return nil, err
	}
	if cfg.MessageNotifyWindow, err = getSeconds("MESSAGE_NOTIFY_WINDOW_SECONDS", "600"); err != nil {
		return nil, err
	}

	slowMs, err := strconv.ParseInt(getEnv("MONGO_SLOW_QUERY_MS", "200"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MONGO_SLOW_QUERY_MS: %w", err)
	}
	cfg.MongoSlowQuery = time.Duration(slowMs) * time.Millisecond

	offerHours, err := strconv.ParseInt(getEnv("OFFER_TTL_HOURS", "72"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid OFFER_TTL_HOURS: %w", err)
	}
	cfg.OfferTTL = time.Duration(offerHours) * time.Hour

	return cfg, nil
}

// UploadMaxBytes is the upload size limit in bytes.
func (c *Config) UploadMaxBytes() int64 {
	return int64(c.UploadMaxSizeMB) * 1024 * 1024
}
