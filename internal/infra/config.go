package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
// The CLI and the dev service share it; each reads the fields it needs.
type Config struct {
	AppEnv string

	// Client side.
	APIURL            string
	HomeDir           string
	PollInterval      time.Duration
	PollMaxWait       time.Duration
	HTTPClientTimeout time.Duration
	DatabaseURL       string

	// Dev service side.
	Port             string
	JWTSecret        string
	StoragePath      string
	DevOTPCode       string
	FreeCredits      int
	StageDuration    time.Duration
	RateLimitPerMin  int
	TokenTTL         time.Duration
	CORSOrigins      []string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		APIURL:            strings.TrimRight(getEnv("SCRIBE_API_URL", "http://localhost:8000"), "/"),
		HomeDir:           getEnv("SCRIBE_HOME", defaultHomeDir()),
		PollInterval:      time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 3)),
		PollMaxWait:       time.Minute * time.Duration(getEnvInt("POLL_MAX_WAIT_MINUTES", 0)),
		HTTPClientTimeout: time.Second * time.Duration(getEnvInt("HTTP_CLIENT_TIMEOUT_SECONDS", 30)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		Port:              getEnv("PORT", "8000"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		StoragePath:       getEnv("STORAGE_PATH", "./outputs"),
		DevOTPCode:        os.Getenv("DEV_OTP_CODE"),
		FreeCredits:       getEnvInt("FREE_CREDITS", 3),
		StageDuration:     time.Second * time.Duration(getEnvInt("STAGE_SECONDS", 5)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 5),
		TokenTTL:          time.Hour * time.Duration(getEnvInt("TOKEN_TTL_HOURS", 24*7)),
		CORSOrigins:       splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}
	if cfg.PollMaxWait < 0 {
		return nil, fmt.Errorf("POLL_MAX_WAIT_MINUTES must not be negative")
	}
	if cfg.HomeDir == "" {
		return nil, fmt.Errorf("SCRIBE_HOME is required when the user home directory is unknown")
	}

	if cfg.JWTSecret == "" {
		if cfg.AppEnv != "development" {
			return nil, fmt.Errorf("JWT_SECRET is required")
		}
		cfg.JWTSecret = "development-secret"
	}

	return cfg, nil
}

func defaultHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".scribeflow")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
