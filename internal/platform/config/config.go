package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration. FromEnv builds it from
// environment variables so main stays lean; every value has a development
// default except the Postgres DSN, whose absence selects the in-memory store.
type Config struct {
	Addr string

	// PostgresDSN enables the Postgres application store when set.
	PostgresDSN string

	Redis RedisConfig
	Kafka KafkaConfig

	// Collaborator endpoints and the per-call budget for synchronous RPC.
	CustomerServiceURL  string
	AccountServiceURL   string
	CollaboratorTimeout time.Duration

	// Admin bootstrap credential. The admin surface is guarded by HS256
	// bearer tokens signed with this key; there is no hardcoded admin user.
	AdminJWTSigningKey string
}

// RedisConfig configures the remote-profile cache. Empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

// KafkaConfig configures the notification emitter. Empty Brokers disables
// Kafka and falls back to log-only emission.
type KafkaConfig struct {
	Brokers string
	Topic   string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:        envOr("ONBOARDING_ADDR", ":8080"),
		PostgresDSN: os.Getenv("ONBOARDING_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("ONBOARDING_REDIS_URL"),
			PoolSize:     envIntOr("ONBOARDING_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("ONBOARDING_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDurationOr("ONBOARDING_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("ONBOARDING_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("ONBOARDING_REDIS_WRITE_TIMEOUT", 3*time.Second),
			CacheTTL:     envDurationOr("ONBOARDING_PROFILE_CACHE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: os.Getenv("ONBOARDING_KAFKA_BROKERS"),
			Topic:   envOr("ONBOARDING_KAFKA_TOPIC", "kyc.notifications"),
		},
		CustomerServiceURL:  envOr("CUSTOMER_SERVICE_URL", "http://localhost:8081"),
		AccountServiceURL:   envOr("ACCOUNT_SERVICE_URL", "http://localhost:8082"),
		CollaboratorTimeout: envDurationOr("COLLABORATOR_TIMEOUT", 5*time.Second),
		// Development default; override in production deployments.
		AdminJWTSigningKey: envOr("ADMIN_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
