// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, database, storage, messaging) that domain systems require.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/intent/internal/config"
	"github.com/JaimeStill/intent/pkg/database"
	"github.com/JaimeStill/intent/pkg/lifecycle"
	"github.com/JaimeStill/intent/pkg/messaging"
	"github.com/JaimeStill/intent/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Messaging messaging.System
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
// The NATS connection retries in the background, so an unavailable broker
// does not fail construction.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	msg, err := messaging.New(&cfg.Messaging, logger)
	if err != nil {
		return nil, fmt.Errorf("messaging init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Messaging: msg,
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	if err := i.Messaging.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("messaging start failed: %w", err)
	}
	return nil
}
