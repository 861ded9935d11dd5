package gates

import (
	"context"
	"errors"
	"fmt"

	"github.com/JaimeStill/intent/internal/approvals"
	"github.com/JaimeStill/intent/internal/steps"
	"github.com/JaimeStill/intent/internal/workflows"
)

type approvalGate struct {
	id        ID
	step      steps.Step
	statusKey string
	kind      approvals.Type
	noun      string
	reader    ApprovalReader
}

// NewSeedApproval creates the gate that holds long-tail expansion until the
// seed keywords are approved.
func NewSeedApproval(reader ApprovalReader) Gate {
	return &approvalGate{
		id:        SeedApproval,
		step:      steps.Longtails,
		statusKey: "seedApprovalStatus",
		kind:      approvals.TypeSeeds,
		noun:      "seed keywords",
		reader:    reader,
	}
}

// NewSubtopicApproval creates the gate that holds article generation until
// the subtopics are approved.
func NewSubtopicApproval(reader ApprovalReader) Gate {
	return &approvalGate{
		id:        SubtopicApproval,
		step:      steps.Articles,
		statusKey: "subtopicApprovalStatus",
		kind:      approvals.TypeSubtopics,
		noun:      "subtopics",
		reader:    reader,
	}
}

func (g *approvalGate) ID() ID { return g.id }
func (g *approvalGate) Step() steps.Step { return g.step }
func (g *approvalGate) StatusKey() string { return g.statusKey }

func (g *approvalGate) Evaluate(ctx context.Context, wf *workflows.Workflow) (Evaluation, error) {
	if wf.Flag(g.kind.Flag()) {
		return Evaluation{Allowed: true}, nil
	}

	latest, err := g.reader.Latest(ctx, wf.ID, g.kind)
	if errors.Is(err, approvals.ErrNotFound) {
		return g.pending(), nil
	}
	if err != nil {
		return Evaluation{}, fmt.Errorf("read latest %s approval: %w", g.kind, err)
	}

	switch latest.Decision {
	case approvals.DecisionApproved:
		return Evaluation{Allowed: true}, nil
	case approvals.DecisionRejected:
		return Evaluation{
			SubStatus:      SubStatusRejected,
			Message:        fmt.Sprintf("%s were rejected and need revision", g.noun),
			RequiredAction: fmt.Sprintf("Revise the %s and resubmit them for approval", g.noun),
		}, nil
	default:
		return g.pending(), nil
	}
}

func (g *approvalGate) pending() Evaluation {
	return Evaluation{
		SubStatus:      SubStatusPending,
		Message:        fmt.Sprintf("%s are awaiting approval", g.noun),
		RequiredAction: fmt.Sprintf("Approve the %s", g.noun),
	}
}
