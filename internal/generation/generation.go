// Package generation is the client for the external content generation
// service that produces the output of the AI-backed workflow steps.
package generation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/steps"
)

// Request asks the generation service to run one step.
type Request struct {
	WorkflowID     uuid.UUID                      `json:"workflow_id"`
	OrganizationID uuid.UUID                      `json:"organization_id"`
	Step           steps.Step                     `json:"step"`
	IdempotencyKey string                         `json:"idempotency_key"`
	Input          json.RawMessage                `json:"input,omitempty"`
	Context        map[steps.Step]json.RawMessage `json:"context,omitempty"`
	ApprovedItems  []string                       `json:"approved_items,omitempty"`
}

// Result is the generation service's output for a step.
type Result struct {
	ResultPayload json.RawMessage `json:"result_payload"`
	TokensUsed    int             `json:"tokens_used"`
	Cost          float64         `json:"cost"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// Generator produces step output.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}
