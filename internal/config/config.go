package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"napdiary/internal/calendar"
)

const _defaultSecretKey = "dev-secret-change-in-production"

// Config holds application configuration
type Config struct {
	ServerPort string
	Env        string
	LogLevel   slog.Level

	DatabaseType   string
	DatabasePath   string
	DatabaseURL    string
	MigrationsPath string
	TemplatesPath  string

	SessionDuration time.Duration
	SecretKey       string
	// LoginRateLimit is the number of login/register attempts allowed per IP per minute
	LoginRateLimit int

	WeekStart time.Weekday
	Location  *time.Location

	// OAuth
	GoogleClientID       string
	GoogleClientSecret   string
	AppleClientID        string
	AppleClientSecret    string
	OAuthRedirectBaseURL string

	// Email
	AWSRegion    string
	SESFromEmail string
	SESFromName  string
	AppBaseURL   string
	EmailDebug   bool
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads a .env file when present, then environment variables with sensible defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		ServerPort:           getEnv("PORT", "8080"),
		Env:                  getEnv("APP_ENV", "development"),
		DatabaseType:         getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:         getEnv("DB_PATH", "./napdiary.db"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		MigrationsPath:       os.Getenv("MIGRATIONS_PATH"),
		TemplatesPath:        os.Getenv("TEMPLATES_PATH"),
		SecretKey:            getEnv("SECRET_KEY", _defaultSecretKey),
		GoogleClientID:       os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:   os.Getenv("GOOGLE_CLIENT_SECRET"),
		AppleClientID:        os.Getenv("APPLE_CLIENT_ID"),
		AppleClientSecret:    os.Getenv("APPLE_CLIENT_SECRET"),
		OAuthRedirectBaseURL: getEnv("OAUTH_REDIRECT_BASE_URL", "http://localhost:8080"),
		AWSRegion:            getEnv("AWS_REGION", "eu-west-1"),
		SESFromEmail:         os.Getenv("SES_FROM_EMAIL"),
		SESFromName:          getEnv("SES_FROM_NAME", "Nap Diary"),
		AppBaseURL:           getEnv("APP_BASE_URL", "http://localhost:8080"),
	}

	var err error

	if cfg.SessionDuration, err = time.ParseDuration(getEnv("SESSION_DURATION", "168h")); err != nil {
		return nil, fmt.Errorf("invalid SESSION_DURATION: %w", err)
	}

	if cfg.LoginRateLimit, err = strconv.Atoi(getEnv("LOGIN_RATE_LIMIT", "10")); err != nil || cfg.LoginRateLimit <= 0 {
		return nil, fmt.Errorf("invalid LOGIN_RATE_LIMIT %q", os.Getenv("LOGIN_RATE_LIMIT"))
	}

	if cfg.WeekStart, err = calendar.ParseWeekday(getEnv("WEEK_START", "monday")); err != nil {
		return nil, fmt.Errorf("invalid WEEK_START: %w", err)
	}

	if cfg.Location, err = time.LoadLocation(getEnv("TIMEZONE", "Local")); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if cfg.EmailDebug, err = strconv.ParseBool(getEnv("EMAIL_DEBUG", "false")); err != nil {
		return nil, fmt.Errorf("invalid EMAIL_DEBUG: %w", err)
	}

	switch strings.ToLower(cfg.DatabaseType) {
	case "postgres", "postgresql", "mysql":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for %s", cfg.DatabaseType)
		}
	}

	if cfg.IsProduction() && cfg.SecretKey == _defaultSecretKey {
		return nil, errors.New("SECRET_KEY must be set in production environment")
	}

	return cfg, nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
