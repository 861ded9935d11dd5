// Package settings owns per-organization tuning: cluster validation bounds
// and whether completed steps dispatch their successors automatically.
package settings

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/clusters"
)

// Settings is the effective configuration for one organization.
type Settings struct {
	OrganizationID      uuid.UUID `json:"organization_id"`
	MinSpokes           int       `json:"min_spokes"`
	MaxSpokes           int       `json:"max_spokes"`
	SimilarityThreshold float64   `json:"similarity_threshold"`
	AutoDispatch        bool      `json:"auto_dispatch"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Defaults returns the settings used by an organization that has never
// stored its own.
func Defaults(organizationID uuid.UUID) Settings {
	c := clusters.DefaultConfig()
	return Settings{
		OrganizationID:      organizationID,
		MinSpokes:           c.MinSpokes,
		MaxSpokes:           c.MaxSpokes,
		SimilarityThreshold: c.SimilarityThreshold,
		AutoDispatch:        true,
	}
}

// ClusterConfig projects the cluster bounds out of s.
func (s Settings) ClusterConfig() clusters.Config {
	return clusters.Config{
		MinSpokes:           s.MinSpokes,
		MaxSpokes:           s.MaxSpokes,
		SimilarityThreshold: s.SimilarityThreshold,
	}
}

// UpdateCommand replaces the organization's settings. Nil fields keep their
// current value.
type UpdateCommand struct {
	MinSpokes           *int     `json:"min_spokes"`
	MaxSpokes           *int     `json:"max_spokes"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
	AutoDispatch        *bool    `json:"auto_dispatch"`
}

// Apply returns current with the command's non-nil fields written over it.
func (c UpdateCommand) Apply(current Settings) Settings {
	next := current
	if c.MinSpokes != nil {
		next.MinSpokes = *c.MinSpokes
	}
	if c.MaxSpokes != nil {
		next.MaxSpokes = *c.MaxSpokes
	}
	if c.SimilarityThreshold != nil {
		next.SimilarityThreshold = *c.SimilarityThreshold
	}
	if c.AutoDispatch != nil {
		next.AutoDispatch = *c.AutoDispatch
	}
	return next
}
