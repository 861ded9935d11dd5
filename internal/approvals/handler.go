package approvals

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/identity"
	"github.com/JaimeStill/intent/internal/workflows"
	"github.com/JaimeStill/intent/pkg/handlers"
	"github.com/JaimeStill/intent/pkg/routes"
)

// Handler provides HTTP endpoints for approval decisions.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "approvals"),
	}
}

// Routes returns the route group definition for approval endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/workflows/{id}/approvals",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{type}/latest", Handler: h.Latest},
		},
	}
}

// Create records a decision by the calling user.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, identity.ErrUnauthenticated)
		return
	}

	workflowID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, workflows.ErrNotFound)
		return
	}

	var cmd CreateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	a, err := h.sys.Record(r.Context(), workflowID, id.OrganizationID, id.UserID, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, a)
}

// List returns every decision recorded for the workflow, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	org, err := identity.Organization(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, err)
		return
	}

	workflowID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, workflows.ErrNotFound)
		return
	}

	items, err := h.sys.List(r.Context(), workflowID, org)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, items)
}

// Latest returns the most recent decision of the requested type.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	org, err := identity.Organization(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, err)
		return
	}

	workflowID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, workflows.ErrNotFound)
		return
	}

	t := Type(r.PathValue("type"))
	if !t.Valid() {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidType)
		return
	}

	items, err := h.sys.List(r.Context(), workflowID, org)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	for i := range items {
		if items[i].Type == t {
			handlers.RespondJSON(w, http.StatusOK, items[i])
			return
		}
	}

	handlers.RespondError(w, h.logger, http.StatusNotFound, ErrNotFound)
}
