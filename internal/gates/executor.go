package gates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JaimeStill/intent/internal/audit"
	"github.com/JaimeStill/intent/internal/steps"
	"github.com/JaimeStill/intent/internal/workflows"
)

const instrumentationName = "github.com/JaimeStill/intent/internal/gates"

// Executor runs gates with uniform loading, fail-open handling, and auditing.
type Executor struct {
	gates     map[ID]Gate
	byStep    map[steps.Step]Gate
	workflows WorkflowFinder
	recorder  audit.Recorder
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *metrics
	now       func() time.Time
}

// NewExecutor creates an Executor over the given gates.
func NewExecutor(workflows WorkflowFinder, recorder audit.Recorder, logger *slog.Logger, gates ...Gate) *Executor {
	e := &Executor{
		gates:     make(map[ID]Gate, len(gates)),
		byStep:    make(map[steps.Step]Gate, len(gates)),
		workflows: workflows,
		recorder:  recorder,
		logger:    logger.With("system", "gates"),
		tracer:    otel.Tracer(instrumentationName),
		metrics:   newMetrics(),
		now:       time.Now,
	}
	for _, g := range gates {
		e.gates[g.ID()] = g
		e.byStep[g.Step()] = g
	}
	return e
}

// NewStandardExecutor creates an Executor with the seed approval, subtopic
// approval, and long-tail clustering gates.
func NewStandardExecutor(
	workflows WorkflowFinder,
	approvals ApprovalReader,
	counter ClusterCounter,
	recorder audit.Recorder,
	logger *slog.Logger,
) *Executor {
	return NewExecutor(workflows, recorder, logger,
		NewSeedApproval(approvals),
		NewSubtopicApproval(approvals),
		NewLongtailClustering(counter),
	)
}

// Gate returns the gate registered under id.
func (e *Executor) Gate(id ID) (Gate, bool) {
	g, ok := e.gates[id]
	return g, ok
}

// ForStep returns the gate guarding step, if any.
func (e *Executor) ForStep(step steps.Step) (Gate, bool) {
	g, ok := e.byStep[step]
	return g, ok
}

// Run evaluates g against a workflow. It never returns an error: a blocked
// workflow is an ordinary Result, and read failures or panics inside the gate
// fail open with status error. Every run records exactly one audit entry.
func (e *Executor) Run(ctx context.Context, g Gate, workflowID uuid.UUID, organizationID *uuid.UUID) (result Result) {
	ctx, span := e.tracer.Start(ctx, "gate."+string(g.ID()))
	defer span.End()

	span.SetAttributes(
		attribute.String("gate.id", string(g.ID())),
		attribute.String("workflow.id", workflowID.String()),
	)

	org := organizationID

	defer func() {
		if r := recover(); r != nil {
			result = e.failOpen(g, workflowID, fmt.Errorf("gate panic: %v", r))
		}

		span.SetAttributes(attribute.String("gate.status", string(result.Status)))
		if result.Status == StatusError {
			span.SetStatus(codes.Error, result.Error)
		}

		e.record(g, result, org)
	}()

	wf, err := e.workflows.Find(ctx, workflowID, organizationID)
	if errors.Is(err, workflows.ErrNotFound) {
		return Result{
			Gate:       g.ID(),
			WorkflowID: workflowID,
			Step:       g.Step(),
			Status:     StatusNotFound,
			Error:      "workflow not found",
			CheckedAt:  e.now(),
		}
	}
	if err != nil {
		return e.failOpen(g, workflowID, err)
	}

	if org == nil {
		org = &wf.OrganizationID
	}

	if wf.State.After(g.Step()) {
		return Result{
			Gate:       g.ID(),
			WorkflowID: workflowID,
			Step:       g.Step(),
			Allowed:    true,
			Status:     StatusNotRequired,
			CheckedAt:  e.now(),
		}
	}

	eval, err := g.Evaluate(ctx, wf)
	if err != nil {
		return e.failOpen(g, workflowID, err)
	}

	if eval.Allowed {
		return Result{
			Gate:       g.ID(),
			WorkflowID: workflowID,
			Step:       g.Step(),
			Allowed:    true,
			Status:     StatusAllowed,
			CheckedAt:  e.now(),
		}
	}

	now := e.now()
	return Result{
		Gate:       g.ID(),
		WorkflowID: workflowID,
		Step:       g.Step(),
		Status:     StatusBlocked,
		SubStatus:  eval.SubStatus,
		ErrorResponse: &ErrorResponse{
			Error:          fmt.Sprintf("Cannot proceed to %s: %s", g.Step(), eval.Message),
			WorkflowStatus: wf.State,
			StatusKey:      g.StatusKey(),
			Status:         eval.SubStatus,
			RequiredAction: eval.RequiredAction,
			CurrentStep:    g.Step(),
			BlockedAt:      now,
		},
		CheckedAt: now,
	}
}

func (e *Executor) failOpen(g Gate, workflowID uuid.UUID, err error) Result {
	e.logger.Error("gate failed open",
		"gate", g.ID(),
		"workflow_id", workflowID,
		"error", err,
	)
	return Result{
		Gate:       g.ID(),
		WorkflowID: workflowID,
		Step:       g.Step(),
		Allowed:    true,
		Status:     StatusError,
		Error:      err.Error(),
		CheckedAt:  e.now(),
	}
}

func (e *Executor) record(g Gate, result Result, organizationID *uuid.UUID) {
	outcome := "blocked"
	switch result.Status {
	case StatusAllowed, StatusNotRequired:
		outcome = "allowed"
	case StatusError:
		outcome = "error"
	}

	details := map[string]any{
		"step":    string(g.Step()),
		"status":  string(result.Status),
		"allowed": result.Allowed,
	}
	if result.SubStatus != "" {
		details["sub_status"] = result.SubStatus
	}
	if result.Error != "" {
		details["error"] = result.Error
	}

	e.recorder.Log(result.WorkflowID, organizationID, "gate."+string(g.ID())+"."+outcome, details)
	e.metrics.runs.WithLabelValues(string(g.ID()), string(result.Status)).Inc()
}
