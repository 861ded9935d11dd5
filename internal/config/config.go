package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/intent/internal/audit"
	"github.com/JaimeStill/intent/internal/automation"
	"github.com/JaimeStill/intent/internal/execution"
	"github.com/JaimeStill/intent/internal/generation"
	"github.com/JaimeStill/intent/internal/identity"
	"github.com/JaimeStill/intent/internal/settings"
	"github.com/JaimeStill/intent/pkg/database"
	"github.com/JaimeStill/intent/pkg/messaging"
	"github.com/JaimeStill/intent/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvIntentEnv             = "INTENT_ENV"
	EnvIntentShutdownTimeout = "INTENT_SHUTDOWN_TIMEOUT"
	EnvIntentVersion         = "INTENT_VERSION"
)

var databaseEnv = &database.Env{
	Host:             "INTENT_DB_HOST",
	Port:             "INTENT_DB_PORT",
	Name:             "INTENT_DB_NAME",
	User:             "INTENT_DB_USER",
	Password:         "INTENT_DB_PASSWORD",
	SSLMode:          "INTENT_DB_SSL_MODE",
	MaxOpenConns:     "INTENT_DB_MAX_OPEN_CONNS",
	MaxIdleConns:     "INTENT_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime:  "INTENT_DB_CONN_MAX_LIFETIME",
	ConnTimeout:      "INTENT_DB_CONN_TIMEOUT",
	ApplicationName:  "INTENT_DB_APPLICATION_NAME",
	StatementTimeout: "INTENT_DB_STATEMENT_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "INTENT_STORAGE_CONTAINER_NAME",
	ConnectionString: "INTENT_STORAGE_CONNECTION_STRING",
}

var messagingEnv = &messaging.Env{
	URL:           "INTENT_NATS_URL",
	Name:          "INTENT_NATS_NAME",
	MaxReconnects: "INTENT_NATS_MAX_RECONNECTS",
	ReconnectWait: "INTENT_NATS_RECONNECT_WAIT",
	DrainTimeout:  "INTENT_NATS_DRAIN_TIMEOUT",
}

var generationEnv = &generation.Env{
	BaseURL:         "INTENT_GENERATION_BASE_URL",
	APIKey:          "INTENT_GENERATION_API_KEY",
	RequestTimeout:  "INTENT_GENERATION_REQUEST_TIMEOUT",
	MaxRetries:      "INTENT_GENERATION_MAX_RETRIES",
	InitialInterval: "INTENT_GENERATION_INITIAL_INTERVAL",
	MaxInterval:     "INTENT_GENERATION_MAX_INTERVAL",
	MaxResponseSize: "INTENT_GENERATION_MAX_RESPONSE_SIZE",
}

var executionEnv = &execution.Env{
	Timeout:        "INTENT_EXECUTION_TIMEOUT",
	SoftTimeout:    "INTENT_EXECUTION_SOFT_TIMEOUT",
	MaxArticleSize: "INTENT_EXECUTION_MAX_ARTICLE_SIZE",
	ArtifactPrefix: "INTENT_EXECUTION_ARTIFACT_PREFIX",
}

var auditEnv = &audit.Env{
	BufferSize:   "INTENT_AUDIT_BUFFER_SIZE",
	WriteTimeout: "INTENT_AUDIT_WRITE_TIMEOUT",
}

var identityEnv = &identity.Env{
	Mode:                 "INTENT_IDENTITY_MODE",
	Issuer:               "INTENT_IDENTITY_ISSUER",
	ClientID:             "INTENT_IDENTITY_CLIENT_ID",
	StaticUserID:         "INTENT_IDENTITY_STATIC_USER_ID",
	StaticOrganizationID: "INTENT_IDENTITY_STATIC_ORGANIZATION_ID",
	StaticRole:           "INTENT_IDENTITY_STATIC_ROLE",
}

var settingsEnv = &settings.Env{
	CacheTTL:  "INTENT_SETTINGS_CACHE_TTL",
	CacheSize: "INTENT_SETTINGS_CACHE_SIZE",
}

var automationEnv = &automation.Env{
	Subject:       "INTENT_AUTOMATION_SUBJECT",
	Queue:         "INTENT_AUTOMATION_QUEUE",
	WorkerEnabled: "INTENT_AUTOMATION_WORKER_ENABLED",
}

// Config is the root configuration for the intent service.
type Config struct {
	Server          ServerConfig      `toml:"server"`
	Database        database.Config   `toml:"database"`
	Storage         storage.Config    `toml:"storage"`
	Messaging       messaging.Config  `toml:"messaging"`
	API             APIConfig         `toml:"api"`
	Generation      generation.Config `toml:"generation"`
	Execution       execution.Config  `toml:"execution"`
	Audit           audit.Config      `toml:"audit"`
	Identity        identity.Config   `toml:"identity"`
	Settings        settings.Config   `toml:"settings"`
	Automation      automation.Config `toml:"automation"`
	ShutdownTimeout string            `toml:"shutdown_timeout"`
	Version         string            `toml:"version"`
}

// Env returns the INTENT_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvIntentEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Messaging.Merge(&overlay.Messaging)
	c.API.Merge(&overlay.API)
	c.Generation.Merge(&overlay.Generation)
	c.Execution.Merge(&overlay.Execution)
	c.Audit.Merge(&overlay.Audit)
	c.Identity.Merge(&overlay.Identity)
	c.Settings.Merge(&overlay.Settings)
	c.Automation.Merge(&overlay.Automation)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Messaging.Finalize(messagingEnv); err != nil {
		return fmt.Errorf("messaging: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Generation.Finalize(generationEnv); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	if err := c.Execution.Finalize(executionEnv); err != nil {
		return fmt.Errorf("execution: %w", err)
	}
	if err := c.Audit.Finalize(auditEnv); err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	if err := c.Identity.Finalize(identityEnv); err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	if err := c.Settings.Finalize(settingsEnv); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	if err := c.Automation.Finalize(automationEnv); err != nil {
		return fmt.Errorf("automation: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvIntentShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvIntentVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvIntentEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// DatabaseFromEnv finalizes a database section from INTENT_DB_* variables
// alone, for tools that need a connection without the full service config.
func DatabaseFromEnv() (*database.Config, error) {
	var cfg database.Config
	if err := cfg.Finalize(databaseEnv); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	return &cfg, nil
}
