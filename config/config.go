package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"quote-booking/internal/notify"
	"quote-booking/internal/services/gateway/payfast"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Payment gateway
	PayFast payfast.Config
	// ValidateNotifications posts every notification back to the gateway
	// before acting on it.
	ValidateNotifications bool

	// Notifications
	PubNub  notify.PubNubConfig
	AMQPURL string

	// Payment session lifetime in Redis
	SessionTTL time.Duration

	// Reconciliation
	ReconcileInterval time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Monitoring
	EnableMetrics   bool
	MetricsPort     string
	MonitorInterval time.Duration
}

// LoadConfig reads the environment, after an optional .env file.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}

	sandbox := getEnv("PAYFAST_MODE", "sandbox") != "live"

	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// Gateway
		PayFast: payfast.Config{
			MerchantID:      getEnv("PAYFAST_MERCHANT_ID", ""),
			MerchantKey:     getEnv("PAYFAST_MERCHANT_KEY", ""),
			Passphrase:      getEnv("PAYFAST_PASSPHRASE", ""),
			Sandbox:         sandbox,
			ProcessURL:      getEnv("PAYFAST_PROCESS_URL", ""),
			ValidateURL:     getEnv("PAYFAST_VALIDATE_URL", ""),
			ReturnURL:       getEnv("PAYFAST_RETURN_URL", "http://localhost:8090/payment/return"),
			CancelURL:       getEnv("PAYFAST_CANCEL_URL", "http://localhost:8090/payment/cancel"),
			NotifyURL:       getEnv("PAYFAST_NOTIFY_URL", ""),
			ValidateTimeout: getEnvAsDuration("PAYFAST_VALIDATE_TIMEOUT", "10s"),
		},
		ValidateNotifications: getEnvAsBool("PAYFAST_VALIDATE_ITN", true),

		// PubNub
		PubNub: notify.PubNubConfig{
			PublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
			SubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
			SecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
			CipherKey:    getEnv("PUBNUB_CIPHER_KEY", ""),
			UUID:         getEnv("PUBNUB_UUID", "quote-booking"),
		},
		AMQPURL: getEnv("RABBITMQ_URL", getEnv("AMQP_URL", "")),

		SessionTTL:        getEnvAsDuration("PAYMENT_SESSION_TTL", "30m"),
		ReconcileInterval: getEnvAsDuration("RECONCILE_INTERVAL", "1m"),

		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:   getEnvAsDuration("RATE_LIMIT_WINDOW", "1m"),

		// Monitoring
		EnableMetrics:   getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
		MonitorInterval: getEnvAsDuration("MONITOR_INTERVAL", "15s"),
	}
}

// GatewayProvider is the provider name the configured mode maps to.
func (c *Config) GatewayProvider() string {
	if c.PayFast.Sandbox {
		return "payfast_sandbox"
	}
	return "payfast"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
