// Package config builds runtime configuration from the environment so main
// stays lean. Unset backends fall back to in-process implementations, which
// keeps local runs dependency-free.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultProgram is the engine program identity derivations are bound to
// when CUSTODIA_PROGRAM_ID is unset.
const DefaultProgram = "6tgjvHkFUUUbbacEWg225H6AazxoSTso8ix9vkXFScTU"

// Config captures everything the server process needs at startup.
type Config struct {
	Addr      string
	ProgramID string

	PostgresDSN string
	Redis       RedisConfig

	KafkaBrokers []string
	KafkaTopic   string

	ShutdownTimeout time.Duration
}

// RedisConfig holds the registry cache connection settings. An empty URL
// disables the cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv reads the process configuration from environment variables.
func FromEnv() Config {
	return Config{
		Addr:      envOr("CUSTODIA_ADDR", ":8080"),
		ProgramID: envOr("CUSTODIA_PROGRAM_ID", DefaultProgram),

		PostgresDSN: os.Getenv("CUSTODIA_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("CUSTODIA_REDIS_URL"),
			PoolSize:     envIntOr("CUSTODIA_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("CUSTODIA_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},

		KafkaBrokers: splitNonEmpty(os.Getenv("CUSTODIA_KAFKA_BROKERS")),
		KafkaTopic:   envOr("CUSTODIA_KAFKA_TOPIC", "custodia.audit"),

		ShutdownTimeout: 15 * time.Second,
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

func splitNonEmpty(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
