package generation

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/intent/pkg/formatting"
)

// Config holds generation service connection and retry parameters.
type Config struct {
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	RequestTimeout  string `toml:"request_timeout"`
	MaxRetries      int    `toml:"max_retries"`
	InitialInterval string `toml:"initial_interval"`
	MaxInterval     string `toml:"max_interval"`
	MaxResponseSize string `toml:"max_response_size"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	BaseURL         string
	APIKey          string
	RequestTimeout  string
	MaxRetries      string
	InitialInterval string
	MaxInterval     string
	MaxResponseSize string
}

// RequestTimeoutDuration returns RequestTimeout as a time.Duration.
func (c *Config) RequestTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.RequestTimeout)
	return d
}

// InitialIntervalDuration returns InitialInterval as a time.Duration.
func (c *Config) InitialIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.InitialInterval)
	return d
}

// MaxIntervalDuration returns MaxInterval as a time.Duration.
func (c *Config) MaxIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.MaxInterval)
	return d
}

// MaxResponseSizeBytes returns MaxResponseSize in bytes.
func (c *Config) MaxResponseSizeBytes() int64 {
	n, _ := formatting.ParseBytes(c.MaxResponseSize)
	return n
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.RequestTimeout != "" {
		c.RequestTimeout = overlay.RequestTimeout
	}
	if overlay.MaxRetries != 0 {
		c.MaxRetries = overlay.MaxRetries
	}
	if overlay.InitialInterval != "" {
		c.InitialInterval = overlay.InitialInterval
	}
	if overlay.MaxInterval != "" {
		c.MaxInterval = overlay.MaxInterval
	}
	if overlay.MaxResponseSize != "" {
		c.MaxResponseSize = overlay.MaxResponseSize
	}
}

func (c *Config) loadDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8090"
	}
	if c.RequestTimeout == "" {
		c.RequestTimeout = "90s"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.InitialInterval == "" {
		c.InitialInterval = "500ms"
	}
	if c.MaxInterval == "" {
		c.MaxInterval = "10s"
	}
	if c.MaxResponseSize == "" {
		c.MaxResponseSize = "16MB"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.BaseURL != "" {
		if v := os.Getenv(env.BaseURL); v != "" {
			c.BaseURL = v
		}
	}
	if env.APIKey != "" {
		if v := os.Getenv(env.APIKey); v != "" {
			c.APIKey = v
		}
	}
	if env.RequestTimeout != "" {
		if v := os.Getenv(env.RequestTimeout); v != "" {
			c.RequestTimeout = v
		}
	}
	if env.MaxRetries != "" {
		if v := os.Getenv(env.MaxRetries); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.MaxRetries = n
			}
		}
	}
	if env.InitialInterval != "" {
		if v := os.Getenv(env.InitialInterval); v != "" {
			c.InitialInterval = v
		}
	}
	if env.MaxInterval != "" {
		if v := os.Getenv(env.MaxInterval); v != "" {
			c.MaxInterval = v
		}
	}
	if env.MaxResponseSize != "" {
		if v := os.Getenv(env.MaxResponseSize); v != "" {
			c.MaxResponseSize = v
		}
	}
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if _, err := time.ParseDuration(c.RequestTimeout); err != nil {
		return fmt.Errorf("invalid request_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.InitialInterval); err != nil {
		return fmt.Errorf("invalid initial_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.MaxInterval); err != nil {
		return fmt.Errorf("invalid max_interval: %w", err)
	}
	if n, err := formatting.ParseBytes(c.MaxResponseSize); err != nil || n <= 0 {
		return fmt.Errorf("invalid max_response_size %q", c.MaxResponseSize)
	}
	return nil
}
