// Package clusters stores the keywords and hub/spoke edges produced by the
// keyword steps and validates cluster structure and coherence.
package clusters

import (
	"time"

	"github.com/google/uuid"
)

// Keyword sources.
const (
	SourceSeeds     = "seeds"
	SourceLongtails = "longtails"
	SourceFiltering = "filtering"
)

// Keyword is a single keyword recorded for a workflow.
type Keyword struct {
	ID         uuid.UUID `json:"id"`
	WorkflowID uuid.UUID `json:"workflow_id"`
	Keyword    string    `json:"keyword"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

// Edge links a hub keyword to one of its spokes.
// SimilarityScore is nil when the clustering step produced no score.
type Edge struct {
	ID              uuid.UUID `json:"id"`
	WorkflowID      uuid.UUID `json:"workflow_id"`
	HubKeywordID    uuid.UUID `json:"hub_keyword_id"`
	SpokeKeywordID  uuid.UUID `json:"spoke_keyword_id"`
	SimilarityScore *float64  `json:"similarity_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// EdgeInput names a hub/spoke pair by keyword text, as produced by clustering.
type EdgeInput struct {
	Hub        string   `json:"hub"`
	Spoke      string   `json:"spoke"`
	Similarity *float64 `json:"similarity"`
}
