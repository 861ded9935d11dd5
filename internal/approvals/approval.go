// Package approvals records the append-only human decisions that release the
// seed and subtopic gates.
package approvals

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/steps"
	"github.com/JaimeStill/intent/internal/workflows"
)

// Type names what is being approved.
type Type string

const (
	TypeSeeds     Type = "seeds"
	TypeSubtopics Type = "subtopics"
)

// Valid reports whether t is a known approval type.
func (t Type) Valid() bool {
	return t == TypeSeeds || t == TypeSubtopics
}

// Step returns the step whose output t approves.
func (t Type) Step() steps.Step {
	if t == TypeSubtopics {
		return steps.Subtopics
	}
	return steps.Seeds
}

// TypeFor returns the approval type that reviews step's output.
func TypeFor(step steps.Step) (Type, bool) {
	switch step {
	case steps.Seeds:
		return TypeSeeds, true
	case steps.Subtopics:
		return TypeSubtopics, true
	}
	return "", false
}

// Flag returns the workflow flag raised by an approved decision of type t.
func (t Type) Flag() workflows.Flag {
	if t == TypeSubtopics {
		return workflows.FlagSubtopics
	}
	return workflows.FlagSeedKeywords
}

// Decision is the reviewer's verdict.
type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	switch d {
	case DecisionPending, DecisionApproved, DecisionRejected:
		return true
	}
	return false
}

// Approval is one immutable decision. A revision is a new Approval; readers
// take the most recent.
type Approval struct {
	ID            uuid.UUID `json:"id"`
	WorkflowID    uuid.UUID `json:"workflow_id"`
	Type          Type      `json:"approval_type"`
	Decision      Decision  `json:"decision"`
	ApprovedItems []string  `json:"approved_items"`
	DecidedBy     string    `json:"decided_by"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateCommand carries a reviewer's decision.
type CreateCommand struct {
	Type          Type     `json:"approval_type"`
	Decision      Decision `json:"decision"`
	ApprovedItems []string `json:"approved_items"`
	Notes         string   `json:"notes"`
}

// Validate checks the command's enumerations.
func (c CreateCommand) Validate() error {
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	if !c.Decision.Valid() {
		return ErrInvalidDecision
	}
	return nil
}
