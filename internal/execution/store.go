package execution

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/clusters"
	"github.com/JaimeStill/intent/internal/faults"
	"github.com/JaimeStill/intent/internal/steps"
	"github.com/JaimeStill/intent/internal/workflows"
	"github.com/JaimeStill/intent/pkg/query"
	"github.com/JaimeStill/intent/pkg/repository"
)

// Execution statuses recorded in the ledger.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Execution is one ledger row. A retry under the same idempotency key
// overwrites the earlier attempt.
type Execution struct {
	IdempotencyKey string          `json:"idempotency_key"`
	WorkflowID     uuid.UUID       `json:"workflow_id"`
	Step           steps.Step      `json:"step"`
	Status         string          `json:"status"`
	TokensUsed     int             `json:"tokens_used"`
	Cost           float64         `json:"cost"`
	DurationMS     int64           `json:"duration_ms"`
	Error          json.RawMessage `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Commit is everything a successful step writes in one transaction.
type Commit struct {
	WorkflowID     uuid.UUID
	Step           steps.Step
	Next           steps.Step
	IdempotencyKey string
	Output         *Output
	Duration       time.Duration
}

// Store is the persistence contract for step execution.
type Store interface {
	Find(ctx context.Context, id uuid.UUID, organizationID *uuid.UUID) (*workflows.Workflow, error)
	// Commit advances the workflow and returns the payload as persisted.
	// A workflow that has left c.Step yields a RaceCondition fault.
	Commit(ctx context.Context, c Commit) (json.RawMessage, error)
	MarkFailed(ctx context.Context, workflowID uuid.UUID, step steps.Step, failure workflows.Failure, duration time.Duration) error
	Executions(ctx context.Context, workflowID uuid.UUID) ([]Execution, error)
}

// WorkflowFinder loads a workflow scoped to an organization.
type WorkflowFinder interface {
	Find(ctx context.Context, id uuid.UUID, organizationID *uuid.UUID) (*workflows.Workflow, error)
}

var projection = query.
	NewProjectionMap("public", "step_executions", "se").
	Project("idempotency_key", "IdempotencyKey").
	Project("workflow_id", "WorkflowID").
	Project("step", "Step").
	Project("status", "Status").
	Project("tokens_used", "TokensUsed").
	Project("cost", "Cost").
	Project("duration_ms", "DurationMS").
	Project("error", "Error").
	Project("created_at", "CreatedAt")

var oldestFirst = query.SortField{Field: "CreatedAt"}

const upsertExecution = `
	INSERT INTO step_executions
		(idempotency_key, workflow_id, step, status, tokens_used, cost, duration_ms, error)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (idempotency_key) DO UPDATE
	SET status = EXCLUDED.status,
		tokens_used = EXCLUDED.tokens_used,
		cost = EXCLUDED.cost,
		duration_ms = EXCLUDED.duration_ms,
		error = EXCLUDED.error,
		created_at = NOW()`

type store struct {
	db        *sql.DB
	workflows WorkflowFinder
}

// NewStore creates the Postgres-backed Store.
func NewStore(db *sql.DB, workflows WorkflowFinder) Store {
	return &store{db: db, workflows: workflows}
}

func (s *store) Find(ctx context.Context, id uuid.UUID, organizationID *uuid.UUID) (*workflows.Workflow, error) {
	return s.workflows.Find(ctx, id, organizationID)
}

func (s *store) Commit(ctx context.Context, c Commit) (json.RawMessage, error) {
	return repository.WithTx(ctx, s.db, func(tx *sql.Tx) (json.RawMessage, error) {
		if err := steps.Advance(ctx, tx, c.WorkflowID, c.Step, c.Next); err != nil {
			return nil, err
		}

		stored, err := workflows.RecordResult(ctx, tx, c.WorkflowID, c.Step, c.Output.Payload)
		if err != nil {
			return nil, faults.Datastore("record step result", err)
		}

		if len(c.Output.Keywords) > 0 {
			if _, err := clusters.InsertKeywords(ctx, tx, c.WorkflowID, c.Output.KeywordSource, c.Output.Keywords); err != nil {
				return nil, faults.Datastore("record keywords", err)
			}
		}

		if len(c.Output.Edges) > 0 {
			if _, err := clusters.InsertEdges(ctx, tx, c.WorkflowID, c.Output.Edges); err != nil {
				if errors.Is(err, clusters.ErrUnresolvedEdge) {
					return nil, faults.Transient("unusable clustering output", err)
				}
				return nil, faults.Datastore("record cluster edges", err)
			}
		}

		_, err = tx.ExecContext(ctx, upsertExecution,
			c.IdempotencyKey, c.WorkflowID, string(c.Step), StatusSucceeded,
			c.Output.TokensUsed, c.Output.Cost, c.Duration.Milliseconds(), nil,
		)
		if err != nil {
			return nil, faults.Datastore("record step execution", err)
		}

		return stored, nil
	})
}

func (s *store) MarkFailed(ctx context.Context, workflowID uuid.UUID, step steps.Step, failure workflows.Failure, duration time.Duration) error {
	detail, err := json.Marshal(failure)
	if err != nil {
		return fmt.Errorf("marshal failure: %w", err)
	}

	_, err = repository.WithTx(ctx, s.db, func(tx *sql.Tx) (struct{}, error) {
		err := workflows.MarkFailed(ctx, tx, workflowID, step, failure)
		// The workflow moved on; the ledger still records the attempt.
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return struct{}{}, err
		}

		_, err = tx.ExecContext(ctx, upsertExecution,
			failure.IdempotencyKey, workflowID, string(step), StatusFailed,
			0, 0, duration.Milliseconds(), detail,
		)
		return struct{}{}, err
	})
	if err != nil {
		return faults.Datastore("record step failure", err)
	}
	return nil
}

func (s *store) Executions(ctx context.Context, workflowID uuid.UUID) ([]Execution, error) {
	q, args := query.
		NewBuilder(projection, oldestFirst).
		WhereEquals("WorkflowID", workflowID).
		Build()

	items, err := repository.QueryMany(ctx, s.db, q, args, scanExecution)
	if err != nil {
		return nil, fmt.Errorf("query step executions: %w", err)
	}
	return items, nil
}

func scanExecution(s repository.Scanner) (Execution, error) {
	var (
		e      Execution
		detail []byte
	)
	err := s.Scan(
		&e.IdempotencyKey, &e.WorkflowID, &e.Step, &e.Status,
		&e.TokensUsed, &e.Cost, &e.DurationMS, &detail, &e.CreatedAt,
	)
	if len(detail) > 0 {
		e.Error = json.RawMessage(detail)
	}
	return e, err
}
