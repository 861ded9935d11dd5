package automation

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds job subject and worker parameters.
type Config struct {
	Subject       string `toml:"subject"`
	Queue         string `toml:"queue"`
	WorkerEnabled *bool  `toml:"worker_enabled"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Subject       string
	Queue         string
	WorkerEnabled string
}

// Worker reports whether this process consumes jobs.
func (c *Config) Worker() bool {
	return c.WorkerEnabled == nil || *c.WorkerEnabled
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
	if overlay.Subject != "" {
		c.Subject = overlay.Subject
	}
	if overlay.Queue != "" {
		c.Queue = overlay.Queue
	}
	if overlay.WorkerEnabled != nil {
		c.WorkerEnabled = overlay.WorkerEnabled
	}
}

func (c *Config) loadDefaults() {
	if c.Subject == "" {
		c.Subject = "intent.jobs"
	}
	if c.Queue == "" {
		c.Queue = "intent-workers"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Subject != "" {
		if v := os.Getenv(env.Subject); v != "" {
			c.Subject = v
		}
	}
	if env.Queue != "" {
		if v := os.Getenv(env.Queue); v != "" {
			c.Queue = v
		}
	}
	if env.WorkerEnabled != "" {
		if v := os.Getenv(env.WorkerEnabled); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.WorkerEnabled = &b
			}
		}
	}
}

func (c *Config) validate() error {
	if c.Subject == "" {
		return fmt.Errorf("subject required")
	}
	if c.Queue == "" {
		return fmt.Errorf("queue required")
	}
	return nil
}
