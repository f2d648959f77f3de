package config

import (
	"os"
	"time"
)

// Config captures everything the batch engine needs from the environment.
// Empty DatabaseURL/RedisURL/KafkaBrokers fall back to in-memory
// implementations so the binary runs standalone in development.
type Config struct {
	Addr           string
	DatabaseURL    string
	RedisURL       string
	KafkaBrokers   string
	EventsTopic    string
	InterchangeDir string
	JWTSigningKey  string
	LogLevel       string
	LogFormat      string
}

// ShutdownTimeout bounds graceful shutdown of the trigger API.
var ShutdownTimeout = 10 * time.Second

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("TRS_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	topic := os.Getenv("EVENTS_TOPIC")
	if topic == "" {
		topic = "trs.person-events"
	}

	dir := os.Getenv("INTERCHANGE_DIR")
	if dir == "" {
		dir = "interchange"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Config{
		Addr:           addr,
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		KafkaBrokers:   os.Getenv("KAFKA_BROKERS"),
		EventsTopic:    topic,
		InterchangeDir: dir,
		JWTSigningKey:  jwtSigningKey,
		LogLevel:       os.Getenv("LOG_LEVEL"),
		LogFormat:      os.Getenv("LOG_FORMAT"),
	}
}
