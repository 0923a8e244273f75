package main

import (
	"os"
	"strconv"

	"trust-platform/backend/internal/db"
	"trust-platform/backend/internal/redis"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	// Database configuration
	DBConfig db.Config

	// Redis configuration. Redis is optional; presence tracking and the
	// instance lock are skipped when RedisEnabled is false.
	RedisEnabled bool
	RedisConfig  redis.Config

	// Server configuration
	ServerPort  string
	Environment string

	// Authentication
	JWTSecret string

	// Offline persistence queue (sqlite file)
	OfflineQueuePath string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() Config {
	// Load .env file if it exists
	godotenv.Load()

	return Config{
		DBConfig: db.Config{
			Driver:   getEnv("DB_DRIVER", "mysql"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "trust_platform"),
			Path:     getEnv("DB_PATH", "trust_platform.db"),
		},
		RedisEnabled: getEnvBool("REDIS_ENABLED", false),
		RedisConfig: redis.Config{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		Environment:      getEnv("ENV", "development"),
		JWTSecret:        getEnv("JWT_SECRET", "secret"),
		OfflineQueuePath: getEnv("OFFLINE_QUEUE_PATH", "offline_queue.db"),
	}
}

// getEnv retrieves an environment variable or returns a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
