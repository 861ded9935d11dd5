package gates

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/steps"
)

// Status is the outcome of a gate run.
type Status string

const (
	StatusAllowed     Status = "allowed"
	StatusBlocked     Status = "blocked"
	StatusNotRequired Status = "not_required"
	StatusNotFound    Status = "not_found"
	StatusError       Status = "error"
)

// Result is the outcome of running a gate against a workflow. Allowed is true
// for allowed, not_required, and error (fail-open) outcomes.
type Result struct {
	Gate          ID             `json:"gate"`
	WorkflowID    uuid.UUID      `json:"workflow_id"`
	Step          steps.Step     `json:"step"`
	Allowed       bool           `json:"allowed"`
	Status        Status         `json:"status"`
	SubStatus     string         `json:"sub_status,omitempty"`
	Error         string         `json:"error,omitempty"`
	ErrorResponse *ErrorResponse `json:"errorResponse,omitempty"`
	CheckedAt     time.Time      `json:"checked_at"`
}

// ErrorResponse is the structured diagnostic returned when a gate blocks.
// It serializes the sub-status under the gate's own key, for example
// seedApprovalStatus.
type ErrorResponse struct {
	Error          string
	WorkflowStatus steps.Step
	StatusKey      string
	Status         string
	RequiredAction string
	CurrentStep    steps.Step
	BlockedAt      time.Time
}

func (r ErrorResponse) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"error":          r.Error,
		"workflowStatus": r.WorkflowStatus,
		"requiredAction": r.RequiredAction,
		"currentStep":    r.CurrentStep,
		"blockedAt":      r.BlockedAt,
	}
	if r.StatusKey != "" {
		out[r.StatusKey] = r.Status
	}
	return json.Marshal(out)
}
