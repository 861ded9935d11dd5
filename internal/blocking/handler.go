package blocking

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/identity"
	"github.com/JaimeStill/intent/internal/workflows"
	"github.com/JaimeStill/intent/pkg/handlers"
	"github.com/JaimeStill/intent/pkg/routes"
)

// Handler exposes blocking diagnostics over HTTP.
type Handler struct {
	resolver *Resolver
	logger   *slog.Logger
}

// NewHandler creates a Handler for resolver.
func NewHandler(resolver *Resolver, logger *slog.Logger) *Handler {
	return &Handler{
		resolver: resolver,
		logger:   logger.With("handler", "blocking"),
	}
}

// Handler returns an HTTP handler bound to this resolver.
func (r *Resolver) Handler() *Handler {
	return NewHandler(r, r.logger)
}

// Routes returns the route group definition for blocking endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/workflows/{id}/blocking",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.Get},
		},
	}
}

// Get returns whether the workflow is blocked and by what.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	org, err := identity.Organization(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, err)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, workflows.ErrNotFound)
		return
	}

	status, err := h.resolver.Resolve(r.Context(), id, org)
	if err != nil {
		handlers.RespondError(w, h.logger, workflows.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, status)
}
