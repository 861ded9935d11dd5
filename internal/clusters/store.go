package clusters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/workflows"
	"github.com/JaimeStill/intent/pkg/query"
	"github.com/JaimeStill/intent/pkg/repository"
)

var (
	// ErrInvalidConfig indicates organization settings produced unusable bounds.
	ErrInvalidConfig = errors.New("invalid cluster configuration")

	// ErrUnresolvedEdge indicates an edge names a hub or spoke that was never
	// recorded as a keyword of the workflow.
	ErrUnresolvedEdge = errors.New("cluster edge names unrecorded keyword")
)

var keywordProjection = query.
	NewProjectionMap("public", "keywords", "k").
	Project("id", "ID").
	Project("workflow_id", "WorkflowID").
	Project("keyword", "Keyword").
	Project("source", "Source").
	Project("created_at", "CreatedAt")

var edgeProjection = query.
	NewProjectionMap("public", "cluster_edges", "e").
	Project("id", "ID").
	Project("workflow_id", "WorkflowID").
	Project("hub_keyword_id", "HubKeywordID").
	Project("spoke_keyword_id", "SpokeKeywordID").
	Project("similarity_score", "SimilarityScore").
	Project("created_at", "CreatedAt")

// ConfigSource provides cluster bounds for an organization.
type ConfigSource interface {
	ClusterConfig(ctx context.Context, organizationID uuid.UUID) (Config, error)
}

// WorkflowFinder loads a workflow scoped to an organization.
type WorkflowFinder interface {
	Find(ctx context.Context, id uuid.UUID, organizationID *uuid.UUID) (*workflows.Workflow, error)
}

// System defines the keyword and cluster read contract.
type System interface {
	Handler() *Handler
	Keywords(ctx context.Context, workflowID uuid.UUID) ([]Keyword, error)
	Edges(ctx context.Context, workflowID uuid.UUID) ([]Edge, error)
	CountKeywords(ctx context.Context, workflowID uuid.UUID, source string) (int, error)
	CountEdges(ctx context.Context, workflowID uuid.UUID) (int, error)
	Validate(ctx context.Context, workflowID, organizationID uuid.UUID) (*Report, error)
}

type repo struct {
	db        *sql.DB
	configs   ConfigSource
	workflows WorkflowFinder
	logger    *slog.Logger
}

// New creates a cluster repository implementing the System interface.
func New(db *sql.DB, configs ConfigSource, workflows WorkflowFinder, logger *slog.Logger) System {
	return &repo{
		db:        db,
		configs:   configs,
		workflows: workflows,
		logger:    logger.With("system", "clusters"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.workflows, r.logger)
}

func (r *repo) Keywords(ctx context.Context, workflowID uuid.UUID) ([]Keyword, error) {
	q, args := query.
		NewBuilder(keywordProjection, query.SortField{Field: "Keyword"}).
		WhereEquals("WorkflowID", workflowID).
		Build()

	items, err := repository.QueryMany(ctx, r.db, q, args, scanKeyword)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	return items, nil
}

func (r *repo) Edges(ctx context.Context, workflowID uuid.UUID) ([]Edge, error) {
	q, args := query.
		NewBuilder(edgeProjection, query.SortField{Field: "CreatedAt"}).
		WhereEquals("WorkflowID", workflowID).
		Build()

	items, err := repository.QueryMany(ctx, r.db, q, args, scanEdge)
	if err != nil {
		return nil, fmt.Errorf("query cluster edges: %w", err)
	}
	return items, nil
}

func (r *repo) CountKeywords(ctx context.Context, workflowID uuid.UUID, source string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM keywords WHERE workflow_id = $1 AND source = $2",
		workflowID, source,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count keywords: %w", err)
	}
	return n, nil
}

func (r *repo) CountEdges(ctx context.Context, workflowID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cluster_edges WHERE workflow_id = $1",
		workflowID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count cluster edges: %w", err)
	}
	return n, nil
}

func (r *repo) Validate(ctx context.Context, workflowID, organizationID uuid.UUID) (*Report, error) {
	cfg, err := r.configs.ClusterConfig(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("load cluster config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	keywords, err := r.Keywords(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	edges, err := r.Edges(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	report := NewValidator(cfg).ValidateWorkflowClusters(workflowID, edges, keywords)

	r.logger.Info("clusters validated",
		"workflow_id", workflowID,
		"total", report.Summary.Total,
		"valid", report.Summary.Valid,
		"invalid", report.Summary.Invalid,
	)
	return &report, nil
}

// InsertKeywords records keywords for a workflow, skipping duplicates.
// It returns the number of keywords newly inserted.
func InsertKeywords(ctx context.Context, exec repository.Executor, workflowID uuid.UUID, source string, keywords []string) (int, error) {
	inserted := 0
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}

		n, err := repository.ExecCount(ctx, exec, `
			INSERT INTO keywords (workflow_id, keyword, source)
			VALUES ($1, $2, $3)
			ON CONFLICT (workflow_id, keyword) DO NOTHING`,
			workflowID, kw, source,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert keyword %q: %w", kw, err)
		}
		inserted += int(n)
	}
	return inserted, nil
}

// InsertEdges records hub/spoke edges, resolving keyword text to keyword ids.
// An edge naming a keyword that was never recorded for the workflow fails
// with ErrUnresolvedEdge, so the caller can roll back the whole set.
func InsertEdges(ctx context.Context, exec repository.Executor, workflowID uuid.UUID, edges []EdgeInput) (int, error) {
	inserted := 0
	for _, e := range edges {
		n, err := repository.ExecCount(ctx, exec, `
			INSERT INTO cluster_edges (workflow_id, hub_keyword_id, spoke_keyword_id, similarity_score)
			SELECT $1, h.id, s.id, $4
			FROM keywords h, keywords s
			WHERE h.workflow_id = $1 AND h.keyword = $2
			  AND s.workflow_id = $1 AND s.keyword = $3`,
			workflowID, strings.TrimSpace(e.Hub), strings.TrimSpace(e.Spoke), e.Similarity,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert edge %q -> %q: %w", e.Hub, e.Spoke, err)
		}
		if n == 0 {
			return inserted, fmt.Errorf("%w: %q -> %q", ErrUnresolvedEdge, e.Hub, e.Spoke)
		}
		inserted += int(n)
	}
	return inserted, nil
}

func scanKeyword(s repository.Scanner) (Keyword, error) {
	var k Keyword
	err := s.Scan(&k.ID, &k.WorkflowID, &k.Keyword, &k.Source, &k.CreatedAt)
	return k, err
}

func scanEdge(s repository.Scanner) (Edge, error) {
	var e Edge
	err := s.Scan(&e.ID, &e.WorkflowID, &e.HubKeywordID, &e.SpokeKeywordID, &e.SimilarityScore, &e.CreatedAt)
	return e, err
}
