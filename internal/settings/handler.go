package settings

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/intent/internal/identity"
	"github.com/JaimeStill/intent/pkg/handlers"
	"github.com/JaimeStill/intent/pkg/routes"
)

// Handler provides HTTP endpoints for organization settings.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "settings"),
	}
}

// Routes returns the route group definition for settings endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/settings",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.Get},
			{Method: "PUT", Pattern: "", Handler: h.Update},
		},
	}
}

// Get returns the caller's organization settings.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	org, err := identity.Organization(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, err)
		return
	}

	s, err := h.sys.Get(r.Context(), org)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, s)
}

// Update writes the caller's organization settings.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	org, err := identity.Organization(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, err)
		return
	}

	var cmd UpdateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	s, err := h.sys.Update(r.Context(), org, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, s)
}
