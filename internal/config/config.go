package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Live     LiveConfig
	Auth     AuthConfig
	Payment  PaymentConfig
	Labels   LabelConfig
}

type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
}

// LiveConfig carries the engine's own knobs.
type LiveConfig struct {
	// DefaultExpiryMinutes is the payment window applied to new carts when
	// the event does not override it.
	DefaultExpiryMinutes int
	// VariantLockTTL bounds how long a quick-add may hold a variant lock.
	VariantLockTTL time.Duration
	// SweepInterval is how often the expiry sweep runs.
	SweepInterval time.Duration
}

type AuthConfig struct {
	OIDCIssuer string
}

type PaymentConfig struct {
	StripeWebhookSecret string
}

type LabelConfig struct {
	// CheckoutBaseURL is the customer-facing base URL encoded into bag QR codes.
	CheckoutBaseURL string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         getEnv("PORT", ":8085"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:          getEnv("POSTGRES_DSN", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_ADDR", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", true),
		},
		Live: LiveConfig{
			DefaultExpiryMinutes: getEnvInt("RESERVATION_EXPIRY_MINUTES", 30),
			VariantLockTTL:       time.Duration(getEnvInt("VARIANT_LOCK_TTL_SECONDS", 10)) * time.Second,
			SweepInterval:        time.Duration(getEnvInt("EXPIRY_SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
		},
		Auth: AuthConfig{
			OIDCIssuer: getEnv("OIDC_ISSUER", ""),
		},
		Payment: PaymentConfig{
			StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Labels: LabelConfig{
			CheckoutBaseURL: getEnv("CHECKOUT_BASE_URL", "http://localhost:3000"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
