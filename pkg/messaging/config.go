package messaging

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds NATS connection parameters.
type Config struct {
	URL           string `toml:"url"`
	Name          string `toml:"name"`
	MaxReconnects int    `toml:"max_reconnects"`
	ReconnectWait string `toml:"reconnect_wait"`
	DrainTimeout  string `toml:"drain_timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	URL           string
	Name          string
	MaxReconnects string
	ReconnectWait string
	DrainTimeout  string
}

// ReconnectWaitDuration returns ReconnectWait as a time.Duration.
func (c *Config) ReconnectWaitDuration() time.Duration {
	d, _ := time.ParseDuration(c.ReconnectWait)
	return d
}

// DrainTimeoutDuration returns DrainTimeout as a time.Duration.
func (c *Config) DrainTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.DrainTimeout)
	return d
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
	if overlay.URL != "" {
		c.URL = overlay.URL
	}
	if overlay.Name != "" {
		c.Name = overlay.Name
	}
	if overlay.MaxReconnects != 0 {
		c.MaxReconnects = overlay.MaxReconnects
	}
	if overlay.ReconnectWait != "" {
		c.ReconnectWait = overlay.ReconnectWait
	}
	if overlay.DrainTimeout != "" {
		c.DrainTimeout = overlay.DrainTimeout
	}
}

func (c *Config) loadDefaults() {
	if c.URL == "" {
		c.URL = "nats://localhost:4222"
	}
	if c.Name == "" {
		c.Name = "intent"
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 5
	}
	if c.ReconnectWait == "" {
		c.ReconnectWait = "1s"
	}
	if c.DrainTimeout == "" {
		c.DrainTimeout = "10s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.URL != "" {
		if v := os.Getenv(env.URL); v != "" {
			c.URL = v
		}
	}
	if env.Name != "" {
		if v := os.Getenv(env.Name); v != "" {
			c.Name = v
		}
	}
	if env.MaxReconnects != "" {
		if v := os.Getenv(env.MaxReconnects); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.MaxReconnects = n
			}
		}
	}
	if env.ReconnectWait != "" {
		if v := os.Getenv(env.ReconnectWait); v != "" {
			c.ReconnectWait = v
		}
	}
	if env.DrainTimeout != "" {
		if v := os.Getenv(env.DrainTimeout); v != "" {
			c.DrainTimeout = v
		}
	}
}

func (c *Config) validate() error {
	if c.URL == "" {
		return fmt.Errorf("url required")
	}
	if _, err := time.ParseDuration(c.ReconnectWait); err != nil {
		return fmt.Errorf("invalid reconnect_wait: %w", err)
	}
	if _, err := time.ParseDuration(c.DrainTimeout); err != nil {
		return fmt.Errorf("invalid drain_timeout: %w", err)
	}
	return nil
}
