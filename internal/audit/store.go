package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/pkg/pagination"
	"github.com/JaimeStill/intent/pkg/query"
	"github.com/JaimeStill/intent/pkg/repository"
)

// ErrNotFound indicates no audit trail exists for the requested workflow.
var ErrNotFound = errors.New("audit entry not found")

var projection = query.
	NewProjectionMap("public", "audit_log", "a").
	Project("id", "ID").
	Project("workflow_id", "WorkflowID").
	Project("organization_id", "OrganizationID").
	Project("action", "Action").
	Project("details", "Details").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters narrows an audit trail query.
type Filters struct {
	Action *string `json:"action,omitempty"`
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters
	if a := values.Get("action"); a != "" {
		f.Action = &a
	}
	return f
}

// System is the audit trail's persistence and read contract.
type System interface {
	Sink
	Handler() *Handler
	List(
		ctx context.Context,
		workflowID uuid.UUID,
		organizationID uuid.UUID,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Entry], error)
}

type store struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// NewStore creates the Postgres-backed audit System.
func NewStore(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &store{
		db:         db,
		logger:     logger.With("system", "audit-store"),
		pagination: pagination,
	}
}

func (s *store) Handler() *Handler {
	return NewHandler(s, s.logger, s.pagination)
}

func (s *store) Append(ctx context.Context, entry Entry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, workflow_id, organization_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.WorkflowID, entry.OrganizationID, entry.Action, details, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *store) List(
	ctx context.Context,
	workflowID uuid.UUID,
	organizationID uuid.UUID,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Entry], error) {
	page.Normalize(s.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("WorkflowID", workflowID).
		WhereEquals("OrganizationID", organizationID).
		WhereEquals("Action", filters.Action)

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count audit entries: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, s.db, pageSQL, pageArgs, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func scanEntry(s repository.Scanner) (Entry, error) {
	var (
		e       Entry
		details []byte
	)

	if err := s.Scan(&e.ID, &e.WorkflowID, &e.OrganizationID, &e.Action, &details, &e.CreatedAt); err != nil {
		return e, err
	}

	if len(details) > 0 {
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return e, fmt.Errorf("unmarshal details: %w", err)
		}
	}
	return e, nil
}
