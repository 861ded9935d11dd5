package blocking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/audit"
	"github.com/JaimeStill/intent/internal/gates"
	"github.com/JaimeStill/intent/internal/workflows"
)

// WorkflowFinder loads a workflow scoped to an organization.
type WorkflowFinder interface {
	Find(ctx context.Context, id uuid.UUID, organizationID *uuid.UUID) (*workflows.Workflow, error)
}

// GateRunner evaluates gates for conditions that cannot be read off the
// workflow alone.
type GateRunner interface {
	Gate(id gates.ID) (gates.Gate, bool)
	Run(ctx context.Context, g gates.Gate, workflowID uuid.UUID, organizationID *uuid.UUID) gates.Result
}

// Resolver reports the condition currently blocking a workflow.
type Resolver struct {
	workflows WorkflowFinder
	gates     GateRunner
	recorder  audit.Recorder
	logger    *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(workflows WorkflowFinder, gates GateRunner, recorder audit.Recorder, logger *slog.Logger) *Resolver {
	return &Resolver{
		workflows: workflows,
		gates:     gates,
		recorder:  recorder,
		logger:    logger.With("system", "blocking"),
	}
}

// Resolve returns the blocking status of a workflow. The query is audited
// without waiting on the audit write.
func (r *Resolver) Resolve(ctx context.Context, workflowID, organizationID uuid.UUID) (*Status, error) {
	wf, err := r.workflows.Find(ctx, workflowID, &organizationID)
	if err != nil {
		return nil, err
	}

	cond := r.resolve(ctx, wf)

	details := map[string]any{
		"state":   string(wf.State),
		"blocked": cond != nil,
	}
	if cond != nil {
		details["gate_id"] = cond.GateID
	}
	r.recorder.Log(workflowID, &organizationID, audit.ActionBlockingQueried, details)

	return &Status{Blocked: cond != nil, Condition: cond}, nil
}

func (r *Resolver) resolve(ctx context.Context, wf *workflows.Workflow) *Condition {
	if wf.FailedStep != nil && *wf.FailedStep == wf.State {
		return failure(wf)
	}

	e, ok := conditions[wf.State]
	if !ok {
		return nil
	}

	if e.flag != "" {
		if wf.Flag(e.flag) {
			return nil
		}
		return e.condition(wf)
	}

	g, ok := r.gates.Gate(e.gate)
	if !ok {
		r.logger.Warn("no gate registered for condition", "gate", e.gate)
		return nil
	}

	result := r.gates.Run(ctx, g, wf.ID, &wf.OrganizationID)
	if result.Allowed {
		return nil
	}

	cond := e.condition(wf)
	if result.ErrorResponse != nil {
		cond.Reason = result.ErrorResponse.Error
	}
	return cond
}

func failure(wf *workflows.Workflow) *Condition {
	reason := fmt.Sprintf("The %s step failed", wf.State)

	var f workflows.Failure
	if err := json.Unmarshal(wf.Failure, &f); err == nil && f.Message != "" {
		reason += ": " + f.Message
	}

	return &Condition{
		GateID:         StepFailure,
		Step:           wf.State,
		Reason:         reason,
		RequiredAction: fmt.Sprintf("Retry the %s step", wf.State),
		ActionLink:     link("/workflows/{workflow_id}/steps/"+string(wf.State), wf),
	}
}
