// Package config loads the engine's environment driven configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures environment driven configuration values for the booking
// engine.
type Config struct {
	HTTPPort  int
	SQLiteDSN string

	// Timezone is the campus location recurrence rules expand in.
	Timezone *time.Location

	// TokenSecret signs issued bearer tokens. Required.
	TokenSecret string
	TokenTTL    time.Duration

	// CancellationCutoff is how close to a booking's start cancellation is
	// still allowed.
	CancellationCutoff time.Duration
	// BookingHorizon bounds how far into the future bookings may reach.
	BookingHorizon time.Duration

	// CacheTTL bounds how long availability answers may be served from cache.
	CacheTTL time.Duration
	// RedisAddr enables the shared slot cache when set.
	RedisAddr string
	// AMQPURL enables booking event publication when set.
	AMQPURL string
}

// Load parses configuration values from the current process environment. A
// .env file in the working directory is merged in first when present.
//
// Optional fields fall back to defaults; required and malformed values are
// reported together so operators can fix a deployment in one pass.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:           8080,
		SQLiteDSN:          "file:bookings.db",
		Timezone:           time.UTC,
		TokenTTL:           24 * time.Hour,
		CancellationCutoff: 2 * time.Hour,
		BookingHorizon:     180 * 24 * time.Hour,
		CacheTTL:           30 * time.Second,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("BOOKING_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "BOOKING_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("BOOKING_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if name := strings.TrimSpace(os.Getenv("BOOKING_TIMEZONE")); name != "" {
		location, err := time.LoadLocation(name)
		if err != nil {
			invalid = append(invalid, "BOOKING_TIMEZONE")
		} else {
			cfg.Timezone = location
		}
	}

	if secret := strings.TrimSpace(os.Getenv("BOOKING_TOKEN_SECRET")); secret == "" {
		missing = append(missing, "BOOKING_TOKEN_SECRET")
	} else {
		cfg.TokenSecret = secret
	}

	durations := []struct {
		name   string
		target *time.Duration
	}{
		{"BOOKING_TOKEN_TTL", &cfg.TokenTTL},
		{"BOOKING_CANCELLATION_CUTOFF", &cfg.CancellationCutoff},
		{"BOOKING_HORIZON", &cfg.BookingHorizon},
		{"BOOKING_CACHE_TTL", &cfg.CacheTTL},
	}
	for _, entry := range durations {
		raw := strings.TrimSpace(os.Getenv(entry.name))
		if raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			invalid = append(invalid, entry.name)
			continue
		}
		*entry.target = parsed
	}

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("BOOKING_REDIS_ADDR"))
	cfg.AMQPURL = strings.TrimSpace(os.Getenv("BOOKING_AMQP_URL"))

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
