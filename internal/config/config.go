// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatOTel = "otel"
)

// Config holds the settings of the demo driver.
type Config struct {
	ServiceName  string
	LogLevel     slog.Level
	LogFormat    string
	OTLPEndpoint string

	// RegistrationsPerMinute of zero disables registration throttling.
	RegistrationsPerMinute int
	RegistrationBurst      int
}

// Load reads .env files and then the environment. Variables already set in
// the environment win over the files.
// Missing files are skipped; a file that cannot be parsed is an error.
func Load() (Config, error) {
	for _, name := range []string{".env", ".env.local"} {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: failed to load %s: %v", ErrInvalidConfig, name, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (Config, error) {
	cfg := Config{
		ServiceName:  getEnv("SERVICE_NAME", "librarydesk"),
		LogFormat:    strings.ToLower(getEnv("LOG_FORMAT", FormatText)),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("%w: LOG_LEVEL: %v", ErrInvalidConfig, err)
	}

	switch cfg.LogFormat {
	case FormatText, FormatJSON, FormatOTel:
	default:
		return Config{}, fmt.Errorf("%w: LOG_FORMAT must be text, json or otel, got %q", ErrInvalidConfig, cfg.LogFormat)
	}

	var err error
	if cfg.RegistrationsPerMinute, err = getEnvInt("REGISTRATIONS_PER_MINUTE", 0); err != nil {
		return Config{}, err
	}
	if cfg.RegistrationBurst, err = getEnvInt("REGISTRATION_BURST", 10); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %q", ErrInvalidConfig, key, value)
	}
	return n, nil
}
