// Package execution runs workflow steps exactly once per logical attempt:
// it replays stored results, enforces step order and gates, invokes the step
// runner, and commits the outcome with a conditional state update.
package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/JaimeStill/intent/internal/audit"
	"github.com/JaimeStill/intent/internal/automation"
	"github.com/JaimeStill/intent/internal/faults"
	"github.com/JaimeStill/intent/internal/gates"
	"github.com/JaimeStill/intent/internal/steps"
	"github.com/JaimeStill/intent/internal/workflows"
)

const instrumentationName = "github.com/JaimeStill/intent/internal/execution"

// GateRunner evaluates the gate guarding a step.
type GateRunner interface {
	ForStep(step steps.Step) (gates.Gate, bool)
	Run(ctx context.Context, g gates.Gate, workflowID uuid.UUID, organizationID *uuid.UUID) gates.Result
}

// Trigger starts the job that follows a completed step.
type Trigger interface {
	Trigger(ctx context.Context, e automation.Event, workflowID, organizationID uuid.UUID) automation.Dispatch
}

// Cleaner removes artifacts written by a runner whose commit failed.
type Cleaner interface {
	Cleanup(ctx context.Context, keys []string)
}

// Request asks for one step execution.
type Request struct {
	WorkflowID     uuid.UUID
	OrganizationID uuid.UUID
	Step           steps.Step
	IdempotencyKey string
	Input          json.RawMessage
	RequestedBy    string
}

// Metadata describes how a response was produced.
type Metadata struct {
	IdempotencyKey string               `json:"idempotency_key"`
	TokensUsed     int                  `json:"tokens_used"`
	Cost           float64              `json:"cost"`
	DurationMS     int64                `json:"duration_ms"`
	GeneratedAt    *time.Time           `json:"generated_at,omitempty"`
	Gate           *gates.Result        `json:"gate,omitempty"`
	Dispatch       *automation.Dispatch `json:"dispatch,omitempty"`
}

// Response is the result of Execute. It is encoded with the step payload
// under the step's own key.
type Response struct {
	Success       bool
	WorkflowID    uuid.UUID
	WorkflowState steps.Step
	Step          steps.Step
	Payload       json.RawMessage
	Metadata      Metadata
	Cached        bool
}

// MarshalJSON writes the step payload under the step id.
func (r Response) MarshalJSON() ([]byte, error) {
	body := map[string]any{
		"success":        r.Success,
		"workflow_id":    r.WorkflowID,
		"workflow_state": r.WorkflowState,
		string(r.Step):   r.Payload,
		"metadata":       r.Metadata,
		"cached":         r.Cached,
	}
	return json.Marshal(body)
}

// Coordinator executes workflow steps.
type Coordinator struct {
	store       Store
	schemas     *Schemas
	runners     map[steps.Step]Runner
	gates       GateRunner
	trigger     Trigger
	recorder    audit.Recorder
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     *metrics
	group       singleflight.Group
	timeout     time.Duration
	softTimeout time.Duration
	now         func() time.Time
}

// Deps are the Coordinator's collaborators.
type Deps struct {
	Store    Store
	Schemas  *Schemas
	Runners  map[steps.Step]Runner
	Gates    GateRunner
	Trigger  Trigger
	Recorder audit.Recorder
	Logger   *slog.Logger
	Now      func() time.Time
}

// New creates a Coordinator. Every executable step must have a runner.
func New(cfg *Config, deps Deps) (*Coordinator, error) {
	for _, s := range steps.Executables() {
		if deps.Runners[s] == nil {
			return nil, fmt.Errorf("no runner for step %s", s)
		}
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Coordinator{
		store:       deps.Store,
		schemas:     deps.Schemas,
		runners:     deps.Runners,
		gates:       deps.Gates,
		trigger:     deps.Trigger,
		recorder:    deps.Recorder,
		logger:      deps.Logger.With("system", "execution"),
		tracer:      otel.Tracer(instrumentationName),
		metrics:     newMetrics(),
		timeout:     cfg.TimeoutDuration(),
		softTimeout: cfg.SoftTimeoutDuration(),
		now:         now,
	}, nil
}

// Execute runs req.Step for a workflow, or replays its stored result when the
// workflow has already moved past it. Concurrent calls for the same workflow
// and step share a single execution.
func (c *Coordinator) Execute(ctx context.Context, req Request) (*Response, error) {
	if !req.Step.Executable() {
		return nil, faults.Validation(fmt.Sprintf("unknown step %q", req.Step), nil)
	}

	req.Input = bytes.TrimSpace(req.Input)
	if len(req.Input) == 0 || bytes.Equal(req.Input, []byte("null")) {
		req.Input = json.RawMessage("{}")
	}
	if err := c.schemas.Validate(req.Step, req.Input); err != nil {
		return nil, err
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = ulid.Make().String()
	}

	key := req.WorkflowID.String() + ":" + string(req.Step)
	v, err, shared := c.group.Do(key, func() (any, error) {
		return c.execute(context.WithoutCancel(ctx), req)
	})
	if shared {
		c.logger.Debug("step execution shared", "workflow_id", req.WorkflowID, "step", req.Step)
	}
	if err != nil {
		return nil, err
	}

	resp := *v.(*Response)
	return &resp, nil
}

// HandleJob executes the step named by an automation job. Outcomes that mean
// the work is done or waiting on a person are not failures.
func (c *Coordinator) HandleJob(ctx context.Context, job automation.Job) error {
	_, err := c.Execute(ctx, Request{
		WorkflowID:     job.WorkflowID,
		OrganizationID: job.OrganizationID,
		Step:           job.Step,
		IdempotencyKey: job.ID,
		RequestedBy:    "automation:" + job.Trigger,
	})

	switch faults.KindOf(err) {
	case faults.KindGateBlocked:
		c.logger.Info("job waiting on gate", "job_id", job.ID, "workflow_id", job.WorkflowID, "step", job.Step)
		return nil
	case faults.KindRaceCondition:
		c.logger.Info("job superseded", "job_id", job.ID, "workflow_id", job.WorkflowID, "step", job.Step, "error", err)
		return nil
	}
	return err
}

func (c *Coordinator) execute(ctx context.Context, req Request) (resp *Response, err error) {
	ctx, span := c.tracer.Start(ctx, "step."+string(req.Step))
	defer span.End()

	span.SetAttributes(
		attribute.String("workflow.id", req.WorkflowID.String()),
		attribute.String("step", string(req.Step)),
		attribute.String("idempotency.key", req.IdempotencyKey),
	)

	defer func() {
		result := "succeeded"
		switch {
		case err != nil:
			result = string(faults.KindOf(err))
			if result == "" {
				result = "error"
			}
			span.SetStatus(codes.Error, err.Error())
		case resp.Cached:
			result = "replayed"
		}
		span.SetAttributes(attribute.String("step.result", result))
		c.metrics.executions.WithLabelValues(string(req.Step), result).Inc()
	}()

	org := req.OrganizationID
	wf, err := c.store.Find(ctx, req.WorkflowID, &org)
	if errors.Is(err, workflows.ErrNotFound) {
		return nil, faults.NotFound(fmt.Sprintf("workflow %s not found", req.WorkflowID))
	}
	if err != nil {
		return nil, faults.Datastore("load workflow", err)
	}

	switch {
	case !wf.State.Valid():
		return nil, faults.InvalidState(wf.ID, fmt.Sprintf("workflow is in unknown state %q", wf.State))
	case wf.State.After(req.Step):
		return c.replay(wf, req)
	case wf.State.Before(req.Step):
		return nil, steps.Validate(wf.State, req.Step)
	}

	var gate *gates.Result
	if g, ok := c.gates.ForStep(req.Step); ok {
		result := c.gates.Run(ctx, g, wf.ID, &org)
		if !result.Allowed {
			if result.ErrorResponse != nil {
				return nil, faults.GateBlocked(wf.ID, result.ErrorResponse.Error, result.ErrorResponse)
			}
			return nil, faults.GateBlocked(wf.ID, result.Error, nil)
		}
		gate = &result
	}

	return c.run(ctx, wf, req, gate)
}

func (c *Coordinator) replay(wf *workflows.Workflow, req Request) (*Response, error) {
	payload, ok := wf.Result(req.Step)
	if !ok {
		return nil, faults.InvalidState(wf.ID, fmt.Sprintf(
			"workflow is at %s but has no stored %s result", wf.State, req.Step,
		))
	}

	c.recorder.Log(wf.ID, &wf.OrganizationID, audit.ActionStepReplayed, map[string]any{
		"step":            req.Step,
		"idempotency_key": req.IdempotencyKey,
		"requested_by":    req.RequestedBy,
	})

	return &Response{
		Success:       true,
		WorkflowID:    wf.ID,
		WorkflowState: wf.State,
		Step:          req.Step,
		Payload:       payload,
		Metadata:      Metadata{IdempotencyKey: req.IdempotencyKey},
		Cached:        true,
	}, nil
}

func (c *Coordinator) run(ctx context.Context, wf *workflows.Workflow, req Request, gate *gates.Result) (*Response, error) {
	runner := c.runners[req.Step]
	next, _ := steps.Next(req.Step)

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	soft := time.AfterFunc(c.softTimeout, func() {
		c.logger.Warn("step exceeded soft timeout",
			"workflow_id", wf.ID,
			"step", req.Step,
			"soft_timeout", c.softTimeout,
		)
	})

	start := c.now()
	out, err := runner.Run(runCtx, RunInput{
		Workflow:       wf,
		Step:           req.Step,
		IdempotencyKey: req.IdempotencyKey,
		Input:          req.Input,
	})
	soft.Stop()
	duration := c.now().Sub(start)
	c.metrics.duration.WithLabelValues(string(req.Step)).Observe(duration.Seconds())

	if err == nil && out == nil {
		err = fmt.Errorf("runner returned no output")
	}
	if err != nil {
		if runCtx.Err() != nil && ctx.Err() == nil {
			err = faults.Transient(fmt.Sprintf("step exceeded %s timeout", c.timeout), err)
		}
		return nil, c.fail(ctx, wf, req, err, duration)
	}

	stored, err := c.store.Commit(ctx, Commit{
		WorkflowID:     wf.ID,
		Step:           req.Step,
		Next:           next,
		IdempotencyKey: req.IdempotencyKey,
		Output:         out,
		Duration:       duration,
	})
	if err != nil {
		c.cleanup(ctx, req.Step, out)
		if faults.Is(err, faults.KindRaceCondition) {
			c.logger.Warn("step commit lost race", "workflow_id", wf.ID, "step", req.Step)
			return nil, err
		}
		return nil, c.fail(ctx, wf, req, err, duration)
	}

	c.metrics.tokens.WithLabelValues(string(req.Step)).Add(float64(out.TokensUsed))

	c.recorder.Log(wf.ID, &wf.OrganizationID, audit.ActionStepSucceeded, map[string]any{
		"step":            req.Step,
		"next_state":      next,
		"idempotency_key": req.IdempotencyKey,
		"requested_by":    req.RequestedBy,
		"tokens_used":     out.TokensUsed,
		"cost":            out.Cost,
		"duration_ms":     duration.Milliseconds(),
	})

	c.logger.Info("step executed",
		"workflow_id", wf.ID,
		"step", req.Step,
		"next_state", next,
		"duration", duration,
	)

	dispatch := c.trigger.Trigger(ctx, automation.Succeeded(req.Step), wf.ID, wf.OrganizationID)

	meta := Metadata{
		IdempotencyKey: req.IdempotencyKey,
		TokensUsed:     out.TokensUsed,
		Cost:           out.Cost,
		DurationMS:     duration.Milliseconds(),
		Gate:           gate,
	}
	if !out.GeneratedAt.IsZero() {
		generated := out.GeneratedAt
		meta.GeneratedAt = &generated
	}
	if dispatch.Status != automation.StatusNoEdge {
		meta.Dispatch = &dispatch
	}

	return &Response{
		Success:       true,
		WorkflowID:    wf.ID,
		WorkflowState: next,
		Step:          req.Step,
		Payload:       stored,
		Metadata:      meta,
	}, nil
}

// fail records the failure marker and returns err tagged with a kind.
func (c *Coordinator) fail(ctx context.Context, wf *workflows.Workflow, req Request, err error, duration time.Duration) error {
	if _, ok := faults.As(err); !ok {
		err = faults.Transient(fmt.Sprintf("%s failed", req.Step), err)
	}
	kind := faults.KindOf(err)

	failure := workflows.Failure{
		Kind:           string(kind),
		Message:        err.Error(),
		IdempotencyKey: req.IdempotencyKey,
		FailedAt:       c.now().UTC(),
	}

	if markErr := c.store.MarkFailed(ctx, wf.ID, req.Step, failure, duration); markErr != nil {
		c.logger.Error("failed to record step failure",
			"workflow_id", wf.ID,
			"step", req.Step,
			"error", markErr,
		)
	}

	c.recorder.Log(wf.ID, &wf.OrganizationID, audit.ActionStepFailed, map[string]any{
		"step":            req.Step,
		"kind":            kind,
		"error":           err.Error(),
		"idempotency_key": req.IdempotencyKey,
		"requested_by":    req.RequestedBy,
	})

	c.logger.Error("step failed",
		"workflow_id", wf.ID,
		"step", req.Step,
		"kind", kind,
		"error", err,
	)
	return err
}

func (c *Coordinator) cleanup(ctx context.Context, step steps.Step, out *Output) {
	if len(out.Artifacts) == 0 {
		return
	}
	if cleaner, ok := c.runners[step].(Cleaner); ok {
		cleaner.Cleanup(ctx, out.Artifacts)
	}
}
