// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/intent/internal/config"
	"github.com/JaimeStill/intent/internal/identity"
	"github.com/JaimeStill/intent/internal/infrastructure"
	"github.com/JaimeStill/intent/pkg/middleware"
	"github.com/JaimeStill/intent/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
// The returned Domain exposes the systems the server starts alongside the
// HTTP listener.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, *Domain, error) {
	runtime := NewRuntime(cfg, infra)

	domain, err := NewDomain(runtime)
	if err != nil {
		return nil, nil, err
	}

	resolver, err := identity.New(infra.Lifecycle.Context(), &cfg.Identity)
	if err != nil {
		return nil, nil, fmt.Errorf("identity resolver: %w", err)
	}

	mux := http.NewServeMux()
	registerRoutes(mux, domain, runtime)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.RequestID())
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.Recover(runtime.Logger))
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(identity.Middleware(resolver, runtime.Logger))

	return m, domain, nil
}
