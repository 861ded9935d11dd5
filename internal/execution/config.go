package execution

import (
	"fmt"
	"os"
	"time"

	"github.com/JaimeStill/intent/pkg/formatting"
)

// Config holds step execution limits.
type Config struct {
	Timeout        string `toml:"timeout"`
	SoftTimeout    string `toml:"soft_timeout"`
	MaxArticleSize string `toml:"max_article_size"`
	ArtifactPrefix string `toml:"artifact_prefix"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Timeout        string
	SoftTimeout    string
	MaxArticleSize string
	ArtifactPrefix string
}

// TimeoutDuration parses Timeout. The value was validated by Finalize.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// SoftTimeoutDuration parses SoftTimeout. The value was validated by Finalize.
func (c *Config) SoftTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.SoftTimeout)
	return d
}

// MaxArticleSizeBytes parses MaxArticleSize. The value was validated by Finalize.
func (c *Config) MaxArticleSizeBytes() int64 {
	n, _ := formatting.ParseBytes(c.MaxArticleSize)
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
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.SoftTimeout != "" {
		c.SoftTimeout = overlay.SoftTimeout
	}
	if overlay.MaxArticleSize != "" {
		c.MaxArticleSize = overlay.MaxArticleSize
	}
	if overlay.ArtifactPrefix != "" {
		c.ArtifactPrefix = overlay.ArtifactPrefix
	}
}

func (c *Config) loadDefaults() {
	if c.Timeout == "" {
		c.Timeout = "5m"
	}
	if c.SoftTimeout == "" {
		c.SoftTimeout = "2m"
	}
	if c.MaxArticleSize == "" {
		c.MaxArticleSize = "1MB"
	}
	if c.ArtifactPrefix == "" {
		c.ArtifactPrefix = "articles"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
	if env.SoftTimeout != "" {
		if v := os.Getenv(env.SoftTimeout); v != "" {
			c.SoftTimeout = v
		}
	}
	if env.MaxArticleSize != "" {
		if v := os.Getenv(env.MaxArticleSize); v != "" {
			c.MaxArticleSize = v
		}
	}
	if env.ArtifactPrefix != "" {
		if v := os.Getenv(env.ArtifactPrefix); v != "" {
			c.ArtifactPrefix = v
		}
	}
}

func (c *Config) validate() error {
	timeout, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	soft, err := time.ParseDuration(c.SoftTimeout)
	if err != nil {
		return fmt.Errorf("invalid soft_timeout: %w", err)
	}
	if soft >= timeout {
		return fmt.Errorf("soft_timeout %s must be less than timeout %s", soft, timeout)
	}
	size, err := formatting.ParseBytes(c.MaxArticleSize)
	if err != nil {
		return fmt.Errorf("invalid max_article_size: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("max_article_size must be positive")
	}
	return nil
}
