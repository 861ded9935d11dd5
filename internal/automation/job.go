package automation

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/JaimeStill/intent/internal/steps"
)

// Job asks a worker to execute one step of a workflow.
type Job struct {
	ID             string     `json:"id"`
	WorkflowID     uuid.UUID  `json:"workflow_id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	Step           steps.Step `json:"step"`
	Trigger        string     `json:"trigger"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewJob creates a job for step triggered by e. The job id doubles as the
// idempotency key of the execution it requests.
func NewJob(e Event, step steps.Step, workflowID, organizationID uuid.UUID) Job {
	return Job{
		ID:             ulid.Make().String(),
		WorkflowID:     workflowID,
		OrganizationID: organizationID,
		Step:           step,
		Trigger:        e.String(),
		CreatedAt:      time.Now().UTC(),
	}
}
