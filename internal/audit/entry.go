// Package audit records the append-only enforcement trail that explains how a
// workflow reached its current state. Writes are fire-and-forget: callers hand
// entries to a Logger that persists them from a single background worker.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one audit record.
type Entry struct {
	ID             uuid.UUID      `json:"id"`
	WorkflowID     uuid.UUID      `json:"workflow_id"`
	OrganizationID *uuid.UUID     `json:"organization_id,omitempty"`
	Action         string         `json:"action"`
	Details        map[string]any `json:"details"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Actions recorded outside the gate family. Gate actions are built by the
// gates package as gate.<gate>.<outcome>.
const (
	ActionStepSucceeded    = "step.succeeded"
	ActionStepFailed       = "step.failed"
	ActionStepReplayed     = "step.replayed"
	ActionApprovalRecorded = "approval.recorded"
	ActionDispatchAttempt  = "dispatch.attempted"
	ActionDispatchFailed   = "dispatch.failed"
	ActionDispatchSkipped  = "dispatch.skipped"
	ActionBlockingQueried  = "blocking.queried"
)

// Recorder accepts audit entries without blocking or returning errors.
type Recorder interface {
	Log(workflowID uuid.UUID, organizationID *uuid.UUID, action string, details map[string]any)
}
