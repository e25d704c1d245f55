package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Env string

	// Server
	Port string

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// Auth
	JWTSecret      string
	PipelineAPIKey string

	// Evaluation engine
	SchedulerEnabled   bool
	EvaluationSchedule string
	CycleTimeout       time.Duration
	QuoteTimeout       time.Duration
	QuoteConcurrency   int
	QuoteMaxAge        time.Duration
	CommitMaxAttempts  int
	CommitBackoff      time.Duration

	// Presentation
	DefaultCurrency string
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "investtracker"),
		DBPassword: getEnv("DB_PASSWORD", "investtracker"),
		DBName:     getEnv("DB_NAME", "investtracker"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "investtracker.db"),

		JWTSecret:      getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		PipelineAPIKey: os.Getenv("PIPELINE_API_KEY"),

		EvaluationSchedule: getEnv("EVALUATION_SCHEDULE", "@every 15m"),
		DefaultCurrency:    strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),
	}

	if config.DBDriver != "postgres" && config.DBDriver != "sqlite" {
		return nil, fmt.Errorf("invalid DB_DRIVER %q: must be postgres or sqlite", config.DBDriver)
	}

	var err error
	if config.SchedulerEnabled, err = parseBool("SCHEDULER_ENABLED", true); err != nil {
		return nil, err
	}
	if config.CycleTimeout, err = parseDuration("CYCLE_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if config.QuoteTimeout, err = parseDuration("QUOTE_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if config.QuoteMaxAge, err = parseDuration("QUOTE_MAX_AGE", 24*time.Hour); err != nil {
		return nil, err
	}
	if config.CommitBackoff, err = parseDuration("COMMIT_BACKOFF", 200*time.Millisecond); err != nil {
		return nil, err
	}
	if config.QuoteConcurrency, err = parsePositiveInt("QUOTE_CONCURRENCY", 8); err != nil {
		return nil, err
	}
	if config.CommitMaxAttempts, err = parsePositiveInt("COMMIT_MAX_ATTEMPTS", 4); err != nil {
		return nil, err
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func parsePositiveInt(key string, defaultValue int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

func parseBool(key string, defaultValue bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue, nil
	}
	switch strings.ToLower(s) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s: must be true, false, 1, or 0, got %q", key, s)
	}
}
