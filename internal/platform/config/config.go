package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration. Values come from the
// environment so main stays lean; in-memory stores are used wherever a backing
// service URL is left empty.
type Server struct {
	Addr          string
	JWTSigningKey string
	DatabaseURL   string
	Redis         RedisConfig
	Kafka         KafkaConfig
	// RequireActiveSite gates enrollments and consignments on the destination
	// site being Active. The original system never enforced this, so the
	// policy ships disabled and is a deployment decision.
	RequireActiveSite bool
	TokenTTL          time.Duration
	// SeedPacks loads that many catalog packs into depot inventory at startup.
	// Zero skips seeding; reseeding is idempotent.
	SeedPacks int
}

// RedisConfig configures the optional Redis registration-code store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional ledger event sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("TRIALGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("TRIALGATE_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default; must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	tokenTTL := 12 * time.Hour
	if raw := os.Getenv("TRIALGATE_TOKEN_TTL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			tokenTTL = d
		}
	}

	var brokers []string
	if raw := os.Getenv("TRIALGATE_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}
	topic := os.Getenv("TRIALGATE_KAFKA_TOPIC")
	if topic == "" {
		topic = "trialgate.ledger"
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		DatabaseURL:   os.Getenv("TRIALGATE_DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("TRIALGATE_REDIS_URL"),
			PoolSize:     envInt("TRIALGATE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("TRIALGATE_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka:             KafkaConfig{Brokers: brokers, Topic: topic},
		RequireActiveSite: os.Getenv("TRIALGATE_REQUIRE_ACTIVE_SITE") == "true",
		TokenTTL:          tokenTTL,
		SeedPacks:         envInt("TRIALGATE_SEED_PACKS", 0),
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return fallback
}
