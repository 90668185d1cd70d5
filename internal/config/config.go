package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppPort string

	// SessionStore selects the backend: "sql" or "redis".
	SessionStore string

	DatabaseDriver string
	DatabaseDSN    string

	RedisAddr     string
	RedisPassword string

	SessionTableName   string
	DefaultMaxInactive time.Duration
	CleanupInterval    time.Duration
}

func Load() Config {

	cfg := Config{

		AppPort: getenv("APP_PORT", "8080"),

		SessionStore: getenv("SESSION_STORE", "sql"),

		DatabaseDriver: getenv("DATABASE_DRIVER", "postgres"),
		DatabaseDSN:    os.Getenv("DATABASE_DSN"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		SessionTableName:   getenv("SESSION_TABLE_NAME", "SESSIONS"),
		DefaultMaxInactive: seconds("SESSION_MAX_INACTIVE", 1800),
		CleanupInterval:    seconds("CLEANUP_INTERVAL", 300),
	}

	return cfg

}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func seconds(key string, fallback int) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(fallback) * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return time.Duration(fallback) * time.Second
	}
	return time.Duration(n) * time.Second
}
