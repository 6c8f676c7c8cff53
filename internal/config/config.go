// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the pipeline service.
type Config struct {
	Port                 string
	DatabaseURL          string
	RedisURL             string
	RescoreIntervalHours int
}

// Load reads environment variables and returns a validated Config.
// A .env file in the working directory is loaded first when present,
// for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	port := os.Getenv("PIPELINE_PORT")
	if port == "" {
		port = "8083"
	}

	interval := 6
	if raw := os.Getenv("RESCORE_INTERVAL_HOURS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("RESCORE_INTERVAL_HOURS must be a positive integer, got %q", raw)
		}
		interval = n
	}

	return &Config{
		Port:                 port,
		DatabaseURL:          dbURL,
		RedisURL:             redisURL,
		RescoreIntervalHours: interval,
	}, nil
}
