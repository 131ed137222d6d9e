package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the settings shared by the API, the worker and the CLI.
type Config struct {
	AppEnv   string
	LogLevel string
	RunLocal bool
	HTTPAddr string

	OrdersTable      string
	IdempotencyTable string
	QueueURL         string
	IdempotencyTTL   time.Duration

	UploadsBucket string
	UploadsPrefix string
	UploadURLTTL  time.Duration

	MetricsNamespace string

	APIURL      string
	SessionPath string
}

// Load reads the configuration from the environment, falling back to
// defaults suitable for a local LocalStack setup.
func Load() Config {
	return Config{
		AppEnv:           getEnv("APP_ENV", "dev"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		RunLocal:         getEnvBool("RUN_LOCAL", false),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		OrdersTable:      getEnv("ORDERS_TABLE", "orders"),
		IdempotencyTable: getEnv("IDEMPOTENCY_TABLE", "idempotency"),
		QueueURL:         os.Getenv("ORDERS_QUEUE_URL"),
		IdempotencyTTL:   getEnvDuration("IDEMPOTENCY_TTL", 48*time.Hour),
		UploadsBucket:    getEnv("UPLOADS_BUCKET", "storybook-uploads"),
		UploadsPrefix:    getEnv("UPLOADS_PREFIX", "uploads"),
		UploadURLTTL:     getEnvDuration("UPLOAD_URL_TTL", 15*time.Minute),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "Storybook"),
		APIURL:           getEnv("STORYBOOK_API_URL", "http://localhost:8080"),
		SessionPath:      os.Getenv("STORYBOOK_SESSION"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
