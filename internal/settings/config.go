package settings

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds settings cache parameters.
type Config struct {
	CacheTTL  string `toml:"cache_ttl"`
	CacheSize int    `toml:"cache_size"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	CacheTTL  string
	CacheSize string
}

// CacheTTLDuration returns CacheTTL as a time.Duration.
func (c *Config) CacheTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.CacheTTL)
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
	if overlay.CacheTTL != "" {
		c.CacheTTL = overlay.CacheTTL
	}
	if overlay.CacheSize != 0 {
		c.CacheSize = overlay.CacheSize
	}
}

func (c *Config) loadDefaults() {
	if c.CacheTTL == "" {
		c.CacheTTL = "1m"
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 256
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.CacheTTL != "" {
		if v := os.Getenv(env.CacheTTL); v != "" {
			c.CacheTTL = v
		}
	}
	if env.CacheSize != "" {
		if v := os.Getenv(env.CacheSize); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.CacheSize = n
			}
		}
	}
}

func (c *Config) validate() error {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return fmt.Errorf("invalid cache_ttl: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("cache_ttl must be positive")
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("cache_size must be positive")
	}
	return nil
}
