package approvals

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/audit"
	"github.com/JaimeStill/intent/internal/automation"
	"github.com/JaimeStill/intent/internal/steps"
	"github.com/JaimeStill/intent/internal/workflows"
	"github.com/JaimeStill/intent/pkg/query"
	"github.com/JaimeStill/intent/pkg/repository"
)

type repo struct {
	db        *sql.DB
	workflows WorkflowFinder
	recorder  audit.Recorder
	trigger   Trigger
	logger    *slog.Logger
}

// New creates an approval repository implementing the System interface.
func New(db *sql.DB, workflows WorkflowFinder, recorder audit.Recorder, trigger Trigger, logger *slog.Logger) System {
	return &repo{
		db:        db,
		workflows: workflows,
		recorder:  recorder,
		trigger:   trigger,
		logger:    logger.With("system", "approvals"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

// Record appends a decision. An approved decision raises the workflow's
// approval flag in the same transaction and then triggers the next job.
func (r *repo) Record(
	ctx context.Context,
	workflowID, organizationID uuid.UUID,
	decidedBy string,
	cmd CreateCommand,
) (*Approval, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	wf, err := r.workflows.Find(ctx, workflowID, &organizationID)
	if err != nil {
		return nil, err
	}

	if !wf.Completed(cmd.Type.Step()) {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, cmd.Type.Step())
	}

	items := cmd.ApprovedItems
	if items == nil {
		items = []string{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal approved_items: %w", err)
	}

	q := `
		INSERT INTO approvals (workflow_id, approval_type, decision, approved_items, decided_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + returningColumns

	args := []any{
		workflowID,
		string(cmd.Type),
		string(cmd.Decision),
		itemsJSON,
		decidedBy,
		strings.TrimSpace(cmd.Notes),
	}

	a, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Approval, error) {
		a, err := repository.QueryOne(ctx, tx, q, args, scanApproval)
		if err != nil {
			return a, fmt.Errorf("insert approval: %w", err)
		}

		if a.Decision == DecisionApproved {
			if err := workflows.SetFlag(ctx, tx, workflowID, cmd.Type.Flag()); err != nil {
				return a, fmt.Errorf("set %s: %w", cmd.Type.Flag(), err)
			}
		}
		return a, nil
	})
	if err != nil {
		return nil, err
	}

	r.recorder.Log(workflowID, &organizationID, audit.ActionApprovalRecorded, map[string]any{
		"approval_id":   a.ID.String(),
		"approval_type": string(a.Type),
		"decision":      string(a.Decision),
		"items":         len(a.ApprovedItems),
		"decided_by":    decidedBy,
	})

	r.logger.Info("approval recorded",
		"workflow_id", workflowID,
		"approval_type", a.Type,
		"decision", a.Decision,
	)

	if a.Decision == DecisionApproved {
		r.trigger.Trigger(context.WithoutCancel(ctx), automation.Approved(a.Type.Step()), workflowID, organizationID)
	}

	return &a, nil
}

func (r *repo) Latest(ctx context.Context, workflowID uuid.UUID, t Type) (*Approval, error) {
	q, args := query.
		NewBuilder(projection, newestFirst...).
		WhereEquals("WorkflowID", workflowID).
		WhereEquals("Type", string(t)).
		BuildPage(1, 1)

	a, err := repository.QueryOne(ctx, r.db, q, args, scanApproval)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrNotFound)
	}
	return &a, nil
}

// ApprovedItems returns the items of the latest approval of step's output.
// It returns nil when no approval exists or the latest is not approved.
func (r *repo) ApprovedItems(ctx context.Context, workflowID uuid.UUID, step steps.Step) ([]string, error) {
	t, ok := TypeFor(step)
	if !ok {
		return nil, nil
	}

	a, err := r.Latest(ctx, workflowID, t)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if a.Decision != DecisionApproved {
		return nil, nil
	}
	return a.ApprovedItems, nil
}

func (r *repo) List(ctx context.Context, workflowID, organizationID uuid.UUID) ([]Approval, error) {
	if _, err := r.workflows.Find(ctx, workflowID, &organizationID); err != nil {
		return nil, err
	}

	q, args := query.
		NewBuilder(projection, newestFirst...).
		WhereEquals("WorkflowID", workflowID).
		Build()

	items, err := repository.QueryMany(ctx, r.db, q, args, scanApproval)
	if err != nil {
		return nil, fmt.Errorf("query approvals: %w", err)
	}
	return items, nil
}
