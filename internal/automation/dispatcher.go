package automation

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/audit"
	"github.com/JaimeStill/intent/internal/steps"
)

// Publisher sends a message without waiting for delivery.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Policy reports whether an organization dispatches jobs automatically.
type Policy interface {
	AutoDispatch(ctx context.Context, organizationID uuid.UUID) (bool, error)
}

// Status is the result of a dispatch attempt.
type Status string

const (
	StatusNoEdge    Status = "no_edge"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Dispatch describes what Trigger did for an event.
type Dispatch struct {
	Event  string     `json:"event"`
	Status Status     `json:"status"`
	Step   steps.Step `json:"step,omitempty"`
	JobID  string     `json:"job_id,omitempty"`
}

// Dispatcher publishes the job that follows an event in the automation graph.
type Dispatcher struct {
	publisher Publisher
	policy    Policy
	recorder  audit.Recorder
	subject   string
	logger    *slog.Logger
	metrics   *metrics
}

// NewDispatcher creates a Dispatcher publishing jobs on subject.
func NewDispatcher(publisher Publisher, policy Policy, recorder audit.Recorder, subject string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		policy:    policy,
		recorder:  recorder,
		subject:   subject,
		logger:    logger.With("system", "dispatcher"),
		metrics:   newMetrics(),
	}
}

// Trigger publishes the job that follows e, if any. Publishing is
// fire-and-forget: failures are audited and returned in the Dispatch, never
// as an error, so a completed step is never undone by a dispatch problem.
func (d *Dispatcher) Trigger(ctx context.Context, e Event, workflowID, organizationID uuid.UUID) Dispatch {
	result := Dispatch{Event: e.String(), Status: StatusNoEdge}

	next, ok := Next(e)
	if !ok {
		return result
	}
	result.Step = next

	details := map[string]any{
		"event": e.String(),
		"step":  string(next),
	}

	auto, err := d.policy.AutoDispatch(ctx, organizationID)
	if err != nil {
		details["error"] = err.Error()
		d.fail(workflowID, organizationID, details, &result)
		return result
	}
	if !auto {
		result.Status = StatusSkipped
		details["reason"] = "auto_dispatch disabled"
		d.recorder.Log(workflowID, &organizationID, audit.ActionDispatchSkipped, details)
		d.metrics.dispatches.WithLabelValues(string(next), string(StatusSkipped)).Inc()
		return result
	}

	job := NewJob(e, next, workflowID, organizationID)
	result.JobID = job.ID
	details["job_id"] = job.ID

	d.recorder.Log(workflowID, &organizationID, audit.ActionDispatchAttempt, details)

	data, err := json.Marshal(job)
	if err == nil {
		err = d.publisher.Publish(d.subject, data)
	}
	if err != nil {
		failed := maps.Clone(details)
		failed["error"] = err.Error()
		d.fail(workflowID, organizationID, failed, &result)
		return result
	}

	result.Status = StatusPublished
	d.metrics.dispatches.WithLabelValues(string(next), string(StatusPublished)).Inc()

	d.logger.Info("job dispatched",
		"workflow_id", workflowID,
		"event", e.String(),
		"step", next,
		"job_id", job.ID,
	)
	return result
}

func (d *Dispatcher) fail(workflowID, organizationID uuid.UUID, details map[string]any, result *Dispatch) {
	result.Status = StatusFailed
	d.recorder.Log(workflowID, &organizationID, audit.ActionDispatchFailed, details)
	d.metrics.dispatches.WithLabelValues(string(result.Step), string(StatusFailed)).Inc()
	d.logger.Warn("job dispatch failed",
		"workflow_id", workflowID,
		"event", details["event"],
		"error", details["error"],
	)
}
