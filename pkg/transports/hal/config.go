package hal

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds the API client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.example.com".
	BaseURL string

	// Token is sent as a bearer token on every request.
	Token string

	// Timeout bounds a single request, zero disables the client timeout.
	Timeout time.Duration

	// UserAgent is sent on every request.
	UserAgent string
}

// DefaultConfig returns a config with default settings.
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		UserAgent: "opsdeck",
	}
}

// Validate checks that the config can build a client.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("base URL has no host")
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	return nil
}
