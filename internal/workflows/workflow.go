// Package workflows implements the workflow aggregate: creation, scoped reads,
// and the transactional writes that record step results, failure markers, and
// approval flags.
package workflows

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/steps"
)

// Workflow is a single pass through the research pipeline for an organization.
// State is the step the workflow will execute next.
type Workflow struct {
	ID                   uuid.UUID                      `json:"id"`
	OrganizationID       uuid.UUID                      `json:"organization_id"`
	Name                 string                         `json:"name"`
	State                steps.Step                     `json:"state"`
	SeedKeywordsApproved bool                           `json:"seed_keywords_approved"`
	SubtopicsApproved    bool                           `json:"subtopics_approved"`
	Results              map[steps.Step]json.RawMessage `json:"results"`
	FailedStep           *steps.Step                    `json:"failed_step,omitempty"`
	Failure              json.RawMessage                `json:"failure,omitempty"`
	CreatedAt            time.Time                      `json:"created_at"`
	UpdatedAt            time.Time                      `json:"updated_at"`
}

// Result returns the stored payload for step.
func (w *Workflow) Result(step steps.Step) (json.RawMessage, bool) {
	payload, ok := w.Results[step]
	if !ok || len(payload) == 0 {
		return nil, false
	}
	return payload, true
}

// Completed reports whether step has already run for this workflow.
func (w *Workflow) Completed(step steps.Step) bool {
	return w.State.After(step)
}

// Failure is the structured detail recorded when a step execution fails.
type Failure struct {
	Kind           string    `json:"kind"`
	Message        string    `json:"message"`
	IdempotencyKey string    `json:"idempotency_key"`
	FailedAt       time.Time `json:"failed_at"`
}

// Flag names a monotonic approval flag on the workflow.
type Flag string

const (
	FlagSeedKeywords Flag = "seed_keywords_approved"
	FlagSubtopics    Flag = "subtopics_approved"
)

// Flag reports the current value of f.
func (w *Workflow) Flag(f Flag) bool {
	switch f {
	case FlagSeedKeywords:
		return w.SeedKeywordsApproved
	case FlagSubtopics:
		return w.SubtopicsApproved
	}
	return false
}

// CreateCommand carries the data needed to start a workflow.
type CreateCommand struct {
	Name string `json:"name"`
}
