// Package config reads service configuration from the environment
package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries everything the server binary needs to start
type Config struct {
	Port             string
	DBHost           string
	DBPort           int
	DBUser           string
	DBPassword       string
	DBName           string
	DBSSLEnabled     bool
	UseMemoryStore   bool
	OutputDir        string
	GithubToken      string
	JobTimeout       time.Duration
	WatchdogInterval time.Duration
}

// Load builds a Config from environment variables, applying defaults for
// anything unset
func Load() Config {
	return Config{
		Port:             GetEnv("FORGE_PORT", "8080"),
		DBHost:           GetEnv("DB_HOST", "localhost"),
		DBPort:           getEnvInt("DB_PORT", 5432),
		DBUser:           GetEnv("DB_USER", "postgres"),
		DBPassword:       GetEnv("DB_PASSWORD", "postgres"),
		DBName:           GetEnv("DB_NAME", "forge"),
		DBSSLEnabled:     getEnvBool("DB_SSL_ENABLED", false),
		UseMemoryStore:   getEnvBool("FORGE_MEMORY_STORE", false),
		OutputDir:        GetEnv("FORGE_OUTPUT_DIR", "output"),
		GithubToken:      GetEnv("GITHUB_TOKEN", ""),
		JobTimeout:       getEnvDuration("FORGE_JOB_TIMEOUT", 15*time.Minute),
		WatchdogInterval: getEnvDuration("FORGE_WATCHDOG_INTERVAL", time.Minute),
	}
}

// GetEnv retrieves the value of an environment variable with a fallback
// value if not set
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
