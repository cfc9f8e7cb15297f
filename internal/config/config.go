package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalid = errors.New("invalid server config")

type Config struct {
	Port      int
	LogLevel  string
	LogFormat string
	PublicURL string

	AllowedOrigins []string

	MaxRooms              int
	ReconnectGrace        time.Duration
	CleanupGrace          time.Duration
	FallbackRetryInterval time.Duration
	FallbackRetries       int
	LookupTimeout         time.Duration

	// Optional backing services, empty disables them.
	DatabaseURL       string
	RedisURL          string
	NatsURL           string
	PathServiceURL    string
	PreviewServiceURL string
	CacheTTL          time.Duration
}

func Default() Config {
	return Config{
		Port:                  8080,
		LogLevel:              "info",
		LogFormat:             "console",
		PublicURL:             "http://localhost:8080",
		AllowedOrigins:        []string{"*"},
		MaxRooms:              500,
		ReconnectGrace:        30 * time.Second,
		CleanupGrace:          5 * time.Minute,
		FallbackRetryInterval: 3 * time.Second,
		FallbackRetries:       2,
		LookupTimeout:         10 * time.Second,
		CacheTTL:              time.Hour,
	}
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, c.Port)
	}
	if c.MaxRooms <= 0 {
		return fmt.Errorf("%w: max rooms must be positive", ErrInvalid)
	}
	for name, d := range map[string]time.Duration{
		"reconnect grace":         c.ReconnectGrace,
		"cleanup grace":           c.CleanupGrace,
		"fallback retry interval": c.FallbackRetryInterval,
		"lookup timeout":          c.LookupTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalid, name)
		}
	}
	if c.FallbackRetries < 0 {
		return fmt.Errorf("%w: fallback retries must not be negative", ErrInvalid)
	}
	if c.PublicURL == "" {
		return fmt.Errorf("%w: public url is required", ErrInvalid)
	}
	return nil
}

// OriginAllowed reports whether a browser origin may open a websocket.
func (c Config) OriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), strings.TrimRight(origin, "/")) {
			return true
		}
	}
	return false
}

// SplitList parses a comma separated env value.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
