package workflows

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/steps"
	"github.com/JaimeStill/intent/pkg/pagination"
	"github.com/JaimeStill/intent/pkg/query"
	"github.com/JaimeStill/intent/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a workflow repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "workflows"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Create(ctx context.Context, organizationID uuid.UUID, cmd CreateCommand) (*Workflow, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return nil, ErrInvalidName
	}

	q := `
		INSERT INTO workflows (organization_id, name, state)
		VALUES ($1, $2, $3)
		RETURNING ` + returningColumns

	w, err := repository.QueryOne(ctx, r.db, q, []any{organizationID, name, string(steps.Initial)}, scanWorkflow)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("workflow created",
		"id", w.ID,
		"organization_id", organizationID,
		"state", w.State,
	)
	return &w, nil
}

func (r *repo) List(
	ctx context.Context,
	organizationID uuid.UUID,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Workflow], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("OrganizationID", organizationID).
		WhereSearch(page.Search, "Name")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count workflows: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanWorkflow)
	if err != nil {
		return nil, fmt.Errorf("query workflows: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID, organizationID *uuid.UUID) (*Workflow, error) {
	qb := query.NewBuilder(projection).WhereEquals("ID", id)
	if organizationID != nil {
		qb.WhereEquals("OrganizationID", *organizationID)
	}

	q, args := qb.BuildSingleOrNull()

	w, err := repository.QueryOne(ctx, r.db, q, args, scanWorkflow)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &w, nil
}

// RecordResult stores payload under step, clears any failure marker, and
// returns the payload as persisted. It runs inside the caller's transaction
// alongside steps.Advance.
func RecordResult(ctx context.Context, q repository.Querier, id uuid.UUID, step steps.Step, payload json.RawMessage) (json.RawMessage, error) {
	stmt := `
		UPDATE workflows
		SET results = results || jsonb_build_object($2::text, $3::jsonb),
			failed_step = NULL,
			failure = NULL,
			updated_at = NOW()
		WHERE id = $1
		RETURNING results -> $2::text`

	var stored []byte
	if err := q.QueryRowContext(ctx, stmt, id, string(step), []byte(payload)).Scan(&stored); err != nil {
		return nil, err
	}
	return json.RawMessage(stored), nil
}

// MarkFailed records a failure marker for step while leaving state and prior
// results untouched. The marker is only written while the workflow is still
// positioned at step.
func MarkFailed(ctx context.Context, exec repository.Executor, id uuid.UUID, step steps.Step, failure Failure) error {
	detail, err := json.Marshal(failure)
	if err != nil {
		return fmt.Errorf("marshal failure: %w", err)
	}

	q := `
		UPDATE workflows
		SET failed_step = $2, failure = $3, updated_at = NOW()
		WHERE id = $1 AND state = $2`

	return repository.ExecExpectOne(ctx, exec, q, id, string(step), detail)
}

// SetFlag raises an approval flag. Flags never revert to false.
func SetFlag(ctx context.Context, exec repository.Executor, id uuid.UUID, flag Flag) error {
	var q string
	switch flag {
	case FlagSeedKeywords:
		q = "UPDATE workflows SET seed_keywords_approved = TRUE, updated_at = NOW() WHERE id = $1"
	case FlagSubtopics:
		q = "UPDATE workflows SET subtopics_approved = TRUE, updated_at = NOW() WHERE id = $1"
	default:
		return ErrUnknownFlag
	}

	return repository.ExecExpectOne(ctx, exec, q, id)
}
