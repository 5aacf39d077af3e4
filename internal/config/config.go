package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Service context resolution
	DefaultTimeZone       string
	DefaultDepositRatio   float64
	DepositProductSKU     string
	FullPaymentProductSKU string

	// Page paths used for redirects
	ServiceSelectionPath string
	BookingPagePath      string
	CartPagePath         string
	ConfirmationPagePath string

	// External collaborators
	AvailabilityBaseURL string
	AvailabilityTimeout time.Duration
	CartBaseURL         string
	CartTimeout         time.Duration

	// Persisted handoff record
	RedisAddr        string
	RedisPassword    string
	RedisTLS         bool
	HandoffTTL       time.Duration
	UseMemoryHandoff bool

	// Catalog
	DatabaseURL string

	// Submission hand-off
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	BookingQueueURL     string

	// Catalog editing
	CatalogEditorSecret string

	PageIdleTimeout    time.Duration
	PageOpenRate       float64
	PageOpenBurst      int
	SecureCookies      bool
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DefaultTimeZone:       getEnv("DEFAULT_TIMEZONE", "America/Chicago"),
		DefaultDepositRatio:   getEnvAsFloat("DEFAULT_DEPOSIT_RATIO", 0.3),
		DepositProductSKU:     getEnv("DEPOSIT_PRODUCT_SKU", ""),
		FullPaymentProductSKU: getEnv("FULL_PAYMENT_PRODUCT_SKU", ""),

		ServiceSelectionPath: getEnv("SERVICE_SELECTION_PATH", "/services"),
		BookingPagePath:      getEnv("BOOKING_PAGE_PATH", "/booking-calendar"),
		CartPagePath:         getEnv("CART_PAGE_PATH", "/cart"),
		ConfirmationPagePath: getEnv("CONFIRMATION_PAGE_PATH", "/booking-confirmation"),

		AvailabilityBaseURL: getEnv("AVAILABILITY_BASE_URL", ""),
		AvailabilityTimeout: getEnvAsDuration("AVAILABILITY_TIMEOUT", 15*time.Second),
		CartBaseURL:         getEnv("CART_BASE_URL", ""),
		CartTimeout:         getEnvAsDuration("CART_TIMEOUT", 10*time.Second),

		RedisAddr:        getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisTLS:         getEnvAsBool("REDIS_TLS", false),
		HandoffTTL:       getEnvAsDuration("HANDOFF_TTL", 2*time.Hour),
		UseMemoryHandoff: getEnvAsBool("USE_MEMORY_HANDOFF", false),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		BookingQueueURL:     getEnv("BOOKING_QUEUE_URL", ""),

		CatalogEditorSecret: getEnv("CATALOG_EDITOR_SECRET", ""),

		PageIdleTimeout:    getEnvAsDuration("PAGE_IDLE_TIMEOUT", 30*time.Minute),
		PageOpenRate:       getEnvAsFloat("PAGE_OPEN_RATE", 1),
		PageOpenBurst:      getEnvAsInt("PAGE_OPEN_BURST", 10),
		SecureCookies:      getEnvAsBool("SECURE_COOKIES", false),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
