// Package gates holds the preconditions that block a workflow from entering
// certain steps, and the executor that evaluates them uniformly.
package gates

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/approvals"
	"github.com/JaimeStill/intent/internal/steps"
	"github.com/JaimeStill/intent/internal/workflows"
)

// ID identifies a gate.
type ID string

const (
	SeedApproval       ID = "seed_approval"
	SubtopicApproval   ID = "subtopic_approval"
	LongtailClustering ID = "longtail_clustering"
)

// Sub-statuses reported by a blocked gate.
const (
	SubStatusPending    = "pending"
	SubStatusRejected   = "rejected"
	SubStatusIncomplete = "incomplete"
)

// Evaluation is a gate's verdict on a workflow that has not yet passed it.
type Evaluation struct {
	Allowed        bool
	SubStatus      string
	Message        string
	RequiredAction string
}

// Gate is a precondition on entering Step.
type Gate interface {
	ID() ID
	Step() steps.Step
	// StatusKey names the sub-status field in a blocked response.
	StatusKey() string
	Evaluate(ctx context.Context, wf *workflows.Workflow) (Evaluation, error)
}

// WorkflowFinder loads a workflow, scoped to an organization when one is given.
type WorkflowFinder interface {
	Find(ctx context.Context, id uuid.UUID, organizationID *uuid.UUID) (*workflows.Workflow, error)
}

// ApprovalReader returns the most recent decision of a type.
type ApprovalReader interface {
	Latest(ctx context.Context, workflowID uuid.UUID, t approvals.Type) (*approvals.Approval, error)
}

// ClusterCounter reports how much clustering output a workflow has.
type ClusterCounter interface {
	CountKeywords(ctx context.Context, workflowID uuid.UUID, source string) (int, error)
	CountEdges(ctx context.Context, workflowID uuid.UUID) (int, error)
}
