package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from the environment with
// an optional .env file for local development.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	LLM           LLMConfig
	Session       SessionConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Addr               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	RateLimitPerSecond int
	RateLimitBurst     int
	AllowedOrigins     []string
}

type DatabaseConfig struct {
	// URL is the Postgres DSN. When empty the service falls back to the
	// in-memory store loaded from BookingsCSV.
	URL         string
	BookingsCSV string
}

type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxAttempts    int
	InitialBackoff time.Duration
	AttemptTimeout time.Duration
}

type SessionConfig struct {
	CookieSecret string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	LogLevel       string
}

// Load reads configuration from the environment. A missing .env file is not
// an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:               envString("SERVER_ADDR", ":8080"),
			ReadTimeout:        envDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:       envDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:    envDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RateLimitPerSecond: envInt("SERVER_RATE_LIMIT_PER_SECOND", 10),
			RateLimitBurst:     envInt("SERVER_RATE_LIMIT_BURST", 20),
			AllowedOrigins:     []string{envString("SERVER_ALLOWED_ORIGIN", "http://localhost:3000")},
		},
		Database: DatabaseConfig{
			URL:         os.Getenv("DATABASE_URL"),
			BookingsCSV: envString("BOOKINGS_CSV", "loyalty.csv"),
		},
		LLM: LLMConfig{
			APIKey:         os.Getenv("LLM_API_KEY"),
			BaseURL:        os.Getenv("LLM_BASE_URL"),
			Model:          envString("LLM_MODEL", "mistralai/Magistral-Small-2506"),
			MaxAttempts:    envInt("LLM_MAX_ATTEMPTS", 3),
			InitialBackoff: envDuration("LLM_INITIAL_BACKOFF", 2*time.Second),
			AttemptTimeout: envDuration("LLM_ATTEMPT_TIMEOUT", 20*time.Second),
		},
		Session: SessionConfig{
			CookieSecret: os.Getenv("SESSION_COOKIE_SECRET"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: envBool("METRICS_ENABLED", true),
			LogLevel:       envString("LOG_LEVEL", "info"),
		},
	}

	if cfg.Session.CookieSecret == "" {
		return nil, fmt.Errorf("SESSION_COOKIE_SECRET is required")
	}
	if cfg.LLM.MaxAttempts < 1 {
		return nil, fmt.Errorf("LLM_MAX_ATTEMPTS must be at least 1")
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
