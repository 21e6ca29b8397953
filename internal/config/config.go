package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port         int
	DatabasePath string
	JWTSecret    string

	TokenExpiration      time.Duration
	EmailTokenExpiration time.Duration
	ResetTokenExpiration time.Duration

	TypstBinary string
	InvoiceDir  string
}

// Load reads configuration from environment variables and validates required fields.
func Load() (Config, error) {
	port, err := getEnvInt("PORT", 8000)
	if err != nil {
		return Config{}, fmt.Errorf("parse PORT: %w", err)
	}

	tokenExp, err := getEnvDuration("TOKEN_EXPIRATION", 30*24*time.Hour)
	if err != nil {
		return Config{}, fmt.Errorf("parse TOKEN_EXPIRATION: %w", err)
	}
	emailExp, err := getEnvDuration("EMAIL_TOKEN_EXPIRATION", 24*time.Hour)
	if err != nil {
		return Config{}, fmt.Errorf("parse EMAIL_TOKEN_EXPIRATION: %w", err)
	}
	resetExp, err := getEnvDuration("RESET_TOKEN_EXPIRATION", 24*time.Hour)
	if err != nil {
		return Config{}, fmt.Errorf("parse RESET_TOKEN_EXPIRATION: %w", err)
	}

	cfg := Config{
		Port:                 port,
		DatabasePath:         getEnv("DATABASE_PATH", "timeledger.db"),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		TokenExpiration:      tokenExp,
		EmailTokenExpiration: emailExp,
		ResetTokenExpiration: resetExp,
		TypstBinary:          getEnv("TYPST_BINARY", "typst"),
		InvoiceDir:           getEnv("INVOICE_DIR", "invoices"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(v)
}
