package execution

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/faults"
	"github.com/JaimeStill/intent/internal/identity"
	"github.com/JaimeStill/intent/internal/steps"
	"github.com/JaimeStill/intent/internal/workflows"
	"github.com/JaimeStill/intent/pkg/handlers"
	"github.com/JaimeStill/intent/pkg/routes"
	"github.com/JaimeStill/intent/pkg/storage"
)

// IdempotencyHeader carries the caller's key for a logical attempt.
const IdempotencyHeader = "Idempotency-Key"

const maxInputBytes = 1 << 20

// ErrInvalidArtifact indicates an artifact name that is not a single path segment.
var ErrInvalidArtifact = errors.New("invalid artifact name")

// Handler exposes step execution, the execution ledger, and article artifacts.
type Handler struct {
	coordinator *Coordinator
	store       Store
	artifacts   ArtifactStore
	prefix      string
	logger      *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(coordinator *Coordinator, store Store, artifacts ArtifactStore, cfg *Config, logger *slog.Logger) *Handler {
	return &Handler{
		coordinator: coordinator,
		store:       store,
		artifacts:   artifacts,
		prefix:      cfg.ArtifactPrefix,
		logger:      logger.With("handler", "execution"),
	}
}

// Routes returns the route group definition for step execution endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/workflows/{id}",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/steps/{step}", Handler: h.Execute},
			{Method: "GET", Pattern: "/executions", Handler: h.Executions},
			{Method: "GET", Pattern: "/artifacts/{name}", Handler: h.Artifact},
		},
	}
}

// Execute runs or replays one step.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	workflowID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		faults.Respond(w, h.logger, faults.Validation("invalid workflow id", err))
		return
	}

	step := steps.Step(r.PathValue("step"))
	if !step.Executable() {
		faults.Respond(w, h.logger, faults.Validation(fmt.Sprintf("unknown step %q", step), nil))
		return
	}

	input, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxInputBytes))
	if err != nil {
		faults.Respond(w, h.logger, faults.Validation("read request body", err))
		return
	}

	resp, err := h.coordinator.Execute(r.Context(), Request{
		WorkflowID:     workflowID,
		OrganizationID: id.OrganizationID,
		Step:           step,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyHeader)),
		Input:          input,
		RequestedBy:    id.UserID,
	})
	if err != nil {
		faults.Respond(w, h.logger, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, resp)
}

// Executions lists the workflow's execution ledger, oldest first.
func (h *Handler) Executions(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.workflow(w, r)
	if !ok {
		return
	}

	items, err := h.store.Executions(r.Context(), wf.ID)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, items)
}

// Artifact streams a stored article body.
func (h *Handler) Artifact(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.workflow(w, r)
	if !ok {
		return
	}

	name := r.PathValue("name")
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidArtifact)
		return
	}

	body, err := h.artifacts.Download(r.Context(), ArtifactKey(h.prefix, wf.ID, name))
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", articleContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("artifact stream interrupted", "workflow_id", wf.ID, "artifact", name, "error", err)
	}
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (identity.Identity, bool) {
	id, ok := identity.FromContext(r.Context())
	if !ok || id.OrganizationID == uuid.Nil {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, identity.ErrUnauthenticated)
		return identity.Identity{}, false
	}
	return id, true
}

func (h *Handler) workflow(w http.ResponseWriter, r *http.Request) (*workflows.Workflow, bool) {
	id, ok := h.identity(w, r)
	if !ok {
		return nil, false
	}

	workflowID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, workflows.ErrNotFound)
		return nil, false
	}

	wf, err := h.store.Find(r.Context(), workflowID, &id.OrganizationID)
	if err != nil {
		handlers.RespondError(w, h.logger, workflows.MapHTTPStatus(err), err)
		return nil, false
	}
	return wf, true
}
