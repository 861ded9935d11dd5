package audit

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds audit logger buffering parameters.
type Config struct {
	BufferSize   int    `toml:"buffer_size"`
	WriteTimeout string `toml:"write_timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	BufferSize   string
	WriteTimeout string
}

// WriteTimeoutDuration returns WriteTimeout as a time.Duration.
func (c *Config) WriteTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.WriteTimeout)
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
	if overlay.BufferSize != 0 {
		c.BufferSize = overlay.BufferSize
	}
	if overlay.WriteTimeout != "" {
		c.WriteTimeout = overlay.WriteTimeout
	}
}

func (c *Config) loadDefaults() {
	if c.BufferSize <= 0 {
		c.BufferSize = 1024
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "5s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.BufferSize != "" {
		if v := os.Getenv(env.BufferSize); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.BufferSize = n
			}
		}
	}
	if env.WriteTimeout != "" {
		if v := os.Getenv(env.WriteTimeout); v != "" {
			c.WriteTimeout = v
		}
	}
}

func (c *Config) validate() error {
	if c.BufferSize < 1 {
		return fmt.Errorf("buffer_size must be positive")
	}
	if _, err := time.ParseDuration(c.WriteTimeout); err != nil {
		return fmt.Errorf("invalid write_timeout: %w", err)
	}
	return nil
}
