// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Storage
	DataDir  string
	SeedFile string

	// JWT settings
	JWTSecret string

	// Planner settings
	OpenAIAPIKey   string
	PlannerModel   string
	PlannerTimeout time.Duration

	// Admission control
	RateLimitDisabled bool
	MessageRateLimit  int
	MessageRateWindow time.Duration
	RedisAddr         string

	// Transport-level rate limiting (per tenant, whole API)
	APIRateLimitRequests int
	APIRateLimitWindow   time.Duration

	// NATS settings (optional; empty URL disables the event feed and the
	// NATS outbound sink)
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Payment provider
	PaymentBaseURL    string
	PaymentAPIKey     string
	ReconcileInterval time.Duration

	// Pipeline tuning
	TurnTimeout     time.Duration
	FunctionTimeout time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables. A .env file is
// optional; env vars may already be set in production.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// Storage
		DataDir:  getEnv("DATA_DIR", "."),
		SeedFile: getEnv("SEED_FILE", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// Planner
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		PlannerModel:   getEnv("PLANNER_MODEL", "gpt-4o-mini"),
		PlannerTimeout: getDurationEnv("PLANNER_TIMEOUT", 30*time.Second),

		// Admission control
		RateLimitDisabled: getBoolEnv("RATE_LIMIT_DISABLED", false),
		MessageRateLimit:  getIntEnv("MESSAGE_RATE_LIMIT", 10),
		MessageRateWindow: getDurationEnv("MESSAGE_RATE_WINDOW", time.Minute),
		RedisAddr:         getEnv("REDIS_ADDR", ""),

		// Transport-level rate limiting
		APIRateLimitRequests: getIntEnv("API_RATE_LIMIT_REQUESTS", 60),
		APIRateLimitWindow:   getDurationEnv("API_RATE_LIMIT_WINDOW", time.Minute),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// Payment provider
		PaymentBaseURL:    getEnv("PAYMENT_BASE_URL", ""),
		PaymentAPIKey:     getEnv("PAYMENT_API_KEY", ""),
		ReconcileInterval: getDurationEnv("RECONCILE_INTERVAL", 2*time.Minute),

		// Pipeline
		TurnTimeout:     getDurationEnv("TURN_TIMEOUT", 90*time.Second),
		FunctionTimeout: getDurationEnv("FUNCTION_TIMEOUT", 30*time.Second),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
