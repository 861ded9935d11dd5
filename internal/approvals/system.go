package approvals

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/automation"
	"github.com/JaimeStill/intent/internal/steps"
	"github.com/JaimeStill/intent/internal/workflows"
)

// System defines the approval contract.
type System interface {
	Handler() *Handler
	Record(ctx context.Context, workflowID, organizationID uuid.UUID, decidedBy string, cmd CreateCommand) (*Approval, error)
	Latest(ctx context.Context, workflowID uuid.UUID, t Type) (*Approval, error)
	List(ctx context.Context, workflowID, organizationID uuid.UUID) ([]Approval, error)
	ApprovedItems(ctx context.Context, workflowID uuid.UUID, step steps.Step) ([]string, error)
}

// WorkflowFinder loads a workflow scoped to an organization.
type WorkflowFinder interface {
	Find(ctx context.Context, id uuid.UUID, organizationID *uuid.UUID) (*workflows.Workflow, error)
}

// Trigger starts the job that follows an approval.
type Trigger interface {
	Trigger(ctx context.Context, e automation.Event, workflowID, organizationID uuid.UUID) automation.Dispatch
}
