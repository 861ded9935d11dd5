package clusters

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/identity"
	"github.com/JaimeStill/intent/internal/workflows"
	"github.com/JaimeStill/intent/pkg/handlers"
	"github.com/JaimeStill/intent/pkg/routes"
)

// Handler provides HTTP endpoints for keyword clusters.
type Handler struct {
	sys       System
	workflows WorkflowFinder
	logger    *slog.Logger
}

// NewHandler creates a Handler with the given system, workflow finder, and logger.
func NewHandler(sys System, workflows WorkflowFinder, logger *slog.Logger) *Handler {
	return &Handler{
		sys:       sys,
		workflows: workflows,
		logger:    logger.With("handler", "clusters"),
	}
}

// Routes returns the route group definition for cluster endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/workflows/{id}/clusters",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/validation", Handler: h.Validation},
		},
	}
}

// ClusterSet is the keyword and edge data recorded for a workflow.
type ClusterSet struct {
	Keywords []Keyword `json:"keywords"`
	Edges    []Edge    `json:"edges"`
}

// List returns the workflow's keywords and cluster edges.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.workflow(w, r)
	if !ok {
		return
	}

	keywords, err := h.sys.Keywords(r.Context(), wf.ID)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	edges, err := h.sys.Edges(r.Context(), wf.ID)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, ClusterSet{Keywords: keywords, Edges: edges})
}

// Validation returns a live validation report for the workflow's clusters.
func (h *Handler) Validation(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.workflow(w, r)
	if !ok {
		return
	}

	report, err := h.sys.Validate(r.Context(), wf.ID, wf.OrganizationID)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, report)
}

func (h *Handler) workflow(w http.ResponseWriter, r *http.Request) (*workflows.Workflow, bool) {
	org, err := identity.Organization(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, err)
		return nil, false
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, workflows.ErrNotFound)
		return nil, false
	}

	wf, err := h.workflows.Find(r.Context(), id, &org)
	if err != nil {
		handlers.RespondError(w, h.logger, workflows.MapHTTPStatus(err), err)
		return nil, false
	}

	return wf, true
}
