package gates

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/identity"
	"github.com/JaimeStill/intent/internal/workflows"
	"github.com/JaimeStill/intent/pkg/handlers"
	"github.com/JaimeStill/intent/pkg/routes"
)

// ErrUnknownGate indicates the requested gate id is not registered.
var ErrUnknownGate = errors.New("unknown gate")

// Handler exposes gate evaluation over HTTP.
type Handler struct {
	executor *Executor
	logger   *slog.Logger
}

// NewHandler creates a Handler for executor.
func NewHandler(executor *Executor, logger *slog.Logger) *Handler {
	return &Handler{
		executor: executor,
		logger:   logger.With("handler", "gates"),
	}
}

// Handler returns an HTTP handler bound to this executor.
func (e *Executor) Handler() *Handler {
	return NewHandler(e, e.logger)
}

// Routes returns the route group definition for gate endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/workflows/{id}/gates",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{gate}", Handler: h.Check},
		},
	}
}

// Check runs a gate against the workflow and returns its Result. A blocked
// gate is reported in the body, not through the status code.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
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

	g, ok := h.executor.Gate(ID(r.PathValue("gate")))
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusNotFound, ErrUnknownGate)
		return
	}

	result := h.executor.Run(r.Context(), g, id, &org)
	if result.Status == StatusNotFound {
		handlers.RespondError(w, h.logger, http.StatusNotFound, workflows.ErrNotFound)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
