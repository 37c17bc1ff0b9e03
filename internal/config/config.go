package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// DevGuestSessionSecret is the guest session HMAC key used when none is configured.
const DevGuestSessionSecret = "dev-insecure-guest-session-secret"

var (
	ErrMissingJWTSecret     = errors.New("JWT_SECRET is required")
	ErrDefaultSessionSecret = errors.New("GUEST_SESSION_TOKEN_SECRET must be set in production")
	ErrMissingSessionSecret = errors.New("GUEST_SESSION_TOKEN_SECRET is required")
)

type Config struct {
	Env                     string
	HTTPAddr                string
	DatabaseURL             string
	DBAutoMigrate           bool
	JWTSecret               string
	JWTExpirySeconds        int64
	GuestJWTExpirySeconds   int64
	GuestSessionTokenSecret string
	MaxFileSizeBytes        int64
	RabbitMQURL             string
	RabbitMQWorkerMode      string
	RedisURL                string
	CorsAllowedOrigins      []string
	WSHeartbeatInterval     time.Duration

	RestaurantName      string
	RestaurantAddress   string
	RestaurantTimezone  string
	CurrencySymbol      string
	ReceiptWidth        int
	OrderEditWindow     time.Duration
	BillRequestCooldown time.Duration
	BillingLockTTL      time.Duration

	ObjectStoreEndpoint        string
	ObjectStoreRegion          string
	ObjectStoreAccessKeyID     string
	ObjectStoreSecretAccessKey string
	ObjectStoreBucket          string
	ObjectStorePublicBaseURL   string
	ObjectStoreStorageClass    string
}

func Load() Config {
	cfg := Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8086"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		DBAutoMigrate:           getEnvBool("DB_AUTO_MIGRATE", true),
		JWTSecret:               getEnv("JWT_SECRET", ""),
		JWTExpirySeconds:        getEnvInt64("JWT_EXPIRY", 12*3600),
		GuestJWTExpirySeconds:   getEnvInt64("GUEST_JWT_EXPIRY", 6*3600),
		GuestSessionTokenSecret: getEnv("GUEST_SESSION_TOKEN_SECRET", DevGuestSessionSecret),
		MaxFileSizeBytes:        getEnvInt64("MAX_FILE_SIZE", 5*1024*1024),
		RabbitMQURL:             getEnv("RABBITMQ_URL", ""),
		RabbitMQWorkerMode:      getEnv("RABBITMQ_WORKER_MODE", "daemon"),
		RedisURL:                getEnv("REDIS_URL", ""),
		CorsAllowedOrigins:      splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		WSHeartbeatInterval:     getEnvDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second),

		RestaurantName:      getEnv("RESTAURANT_NAME", "Ai Cavalli"),
		RestaurantAddress:   getEnv("RESTAURANT_ADDRESS", ""),
		RestaurantTimezone:  getEnv("RESTAURANT_TIMEZONE", "Asia/Kolkata"),
		CurrencySymbol:      getEnv("CURRENCY_SYMBOL", "Rs."),
		ReceiptWidth:        int(getEnvInt64("RECEIPT_WIDTH", 42)),
		OrderEditWindow:     getEnvDuration("ORDER_EDIT_WINDOW", 2*time.Minute),
		BillRequestCooldown: getEnvDuration("BILL_REQUEST_COOLDOWN", time.Minute),
		BillingLockTTL:      getEnvDuration("BILLING_LOCK_TTL", 15*time.Second),

		// Object store (S3-compatible)
		ObjectStoreEndpoint:        getEnv("OBJECT_STORE_ENDPOINT", ""),
		ObjectStoreRegion:          getEnv("OBJECT_STORE_REGION", "auto"),
		ObjectStoreAccessKeyID:     getEnv("OBJECT_STORE_ACCESS_KEY_ID", ""),
		ObjectStoreSecretAccessKey: getEnv("OBJECT_STORE_SECRET_ACCESS_KEY", ""),
		ObjectStoreBucket:          getEnv("OBJECT_STORE_BUCKET", ""),
		ObjectStorePublicBaseURL:   getEnv("OBJECT_STORE_PUBLIC_BASE_URL", ""),
		ObjectStoreStorageClass:    getEnv("OBJECT_STORE_STORAGE_CLASS", "STANDARD"),
	}

	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 5 * 1024 * 1024
	}
	if cfg.ReceiptWidth < 32 || cfg.ReceiptWidth > 64 {
		cfg.ReceiptWidth = 42
	}
	if cfg.OrderEditWindow <= 0 {
		cfg.OrderEditWindow = 2 * time.Minute
	}

	return cfg
}

// Validate rejects settings the service must not start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return ErrMissingJWTSecret
	}
	if strings.TrimSpace(c.GuestSessionTokenSecret) == "" {
		return ErrMissingSessionSecret
	}
	if c.Env == "production" && c.GuestSessionTokenSecret == DevGuestSessionSecret {
		return ErrDefaultSessionSecret
	}
	return nil
}

// ObjectStoreEnabled reports whether enough settings exist to build an S3 client.
func (c Config) ObjectStoreEnabled() bool {
	return strings.TrimSpace(c.ObjectStoreBucket) != "" &&
		strings.TrimSpace(c.ObjectStoreAccessKeyID) != "" &&
		strings.TrimSpace(c.ObjectStoreSecretAccessKey) != ""
}

func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.RestaurantTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
