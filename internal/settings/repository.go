package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/clusters"
	"github.com/JaimeStill/intent/pkg/repository"
)

const columns = "organization_id, min_spokes, max_spokes, similarity_threshold, auto_dispatch, updated_at"

type repo struct {
	db     *sql.DB
	cache  *Cache
	logger *slog.Logger
}

// New creates a settings repository implementing the System interface.
// Reads are served from cache until its entries expire or an update
// invalidates them.
func New(db *sql.DB, cache *Cache, logger *slog.Logger) System {
	return &repo{
		db:     db,
		cache:  cache,
		logger: logger.With("system", "settings"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

func (r *repo) Get(ctx context.Context, organizationID uuid.UUID) (*Settings, error) {
	if s, ok := r.cache.Get(organizationID); ok {
		return &s, nil
	}

	q := "SELECT " + columns + " FROM organization_settings WHERE organization_id = $1"

	s, err := repository.QueryOne(ctx, r.db, q, []any{organizationID}, scanSettings)
	if errors.Is(err, sql.ErrNoRows) {
		s = Defaults(organizationID)
	} else if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}

	r.cache.Put(s)
	return &s, nil
}

func (r *repo) Update(ctx context.Context, organizationID uuid.UUID, cmd UpdateCommand) (*Settings, error) {
	current, err := r.Get(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	next := cmd.Apply(*current)
	if err := next.ClusterConfig().Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	q := `
		INSERT INTO organization_settings
			(organization_id, min_spokes, max_spokes, similarity_threshold, auto_dispatch)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (organization_id) DO UPDATE SET
			min_spokes = EXCLUDED.min_spokes,
			max_spokes = EXCLUDED.max_spokes,
			similarity_threshold = EXCLUDED.similarity_threshold,
			auto_dispatch = EXCLUDED.auto_dispatch,
			updated_at = NOW()
		RETURNING ` + columns

	args := []any{organizationID, next.MinSpokes, next.MaxSpokes, next.SimilarityThreshold, next.AutoDispatch}

	saved, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Settings, error) {
		return repository.QueryOne(ctx, tx, q, args, scanSettings)
	})
	if err != nil {
		return nil, fmt.Errorf("upsert settings: %w", err)
	}

	r.cache.Invalidate(organizationID)

	r.logger.Info("settings updated",
		"organization_id", organizationID,
		"min_spokes", saved.MinSpokes,
		"max_spokes", saved.MaxSpokes,
		"similarity_threshold", saved.SimilarityThreshold,
		"auto_dispatch", saved.AutoDispatch,
	)
	return &saved, nil
}

func (r *repo) ClusterConfig(ctx context.Context, organizationID uuid.UUID) (clusters.Config, error) {
	s, err := r.Get(ctx, organizationID)
	if err != nil {
		return clusters.Config{}, err
	}
	return s.ClusterConfig(), nil
}

func (r *repo) AutoDispatch(ctx context.Context, organizationID uuid.UUID) (bool, error) {
	s, err := r.Get(ctx, organizationID)
	if err != nil {
		return false, err
	}
	return s.AutoDispatch, nil
}

func scanSettings(s repository.Scanner) (Settings, error) {
	var st Settings
	err := s.Scan(
		&st.OrganizationID,
		&st.MinSpokes,
		&st.MaxSpokes,
		&st.SimilarityThreshold,
		&st.AutoDispatch,
		&st.UpdatedAt,
	)
	return st, err
}
