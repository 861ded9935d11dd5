package clusters

import (
	"fmt"

	"github.com/google/uuid"
)

// Status is the validation outcome of a single cluster.
type Status string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
)

// Reasons a cluster is invalid.
const (
	ReasonTooFewSpokes   = "too_few_spokes"
	ReasonTooManySpokes  = "too_many_spokes"
	ReasonMissingSpoke   = "missing_spoke"
	ReasonUnscoredSpoke  = "unscored_spoke"
	ReasonBelowThreshold = "below_threshold"
	ReasonNoScoredSpokes = "no_scored_spokes"
)

// Config bounds cluster size and coherence.
type Config struct {
	MinSpokes           int     `json:"min_spokes"`
	MaxSpokes           int     `json:"max_spokes"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

// DefaultConfig returns the standard bounds: 2 to 8 spokes, threshold 0.6.
func DefaultConfig() Config {
	return Config{
		MinSpokes:           2,
		MaxSpokes:           8,
		SimilarityThreshold: 0.6,
	}
}

// Validate checks that the bounds are usable.
func (c Config) Validate() error {
	if c.MinSpokes < 1 {
		return fmt.Errorf("min_spokes must be positive")
	}
	if c.MaxSpokes < c.MinSpokes {
		return fmt.Errorf("max_spokes must be at least min_spokes")
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be within [0,1]")
	}
	return nil
}

// Result is the validation outcome for one hub.
type Result struct {
	HubKeywordID     uuid.UUID `json:"hub_keyword_id"`
	Hub              string    `json:"hub_keyword,omitempty"`
	ValidationStatus Status    `json:"validation_status"`
	AvgSimilarity    float64   `json:"avg_similarity"`
	SpokeCount       int       `json:"spoke_count"`
	Reasons          []string  `json:"reasons,omitempty"`
}

// Summary aggregates cluster outcomes.
type Summary struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
}

// Report is the validation outcome for every cluster of a workflow.
type Report struct {
	WorkflowID uuid.UUID `json:"workflow_id"`
	Config     Config    `json:"config"`
	Clusters   []Result  `json:"clusters"`
	Summary    Summary   `json:"summary"`
}

// Validator checks hub/spoke clusters against a Config.
type Validator struct {
	cfg Config
}

// NewValidator creates a Validator for cfg.
func NewValidator(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateWorkflowClusters groups edges by hub and validates each cluster.
// Edges belonging to other workflows are ignored. A spoke that is not among
// keywords, or has no score, makes its cluster invalid and is excluded from
// the similarity average.
func (v *Validator) ValidateWorkflowClusters(workflowID uuid.UUID, edges []Edge, keywords []Keyword) Report {
	known := make(map[uuid.UUID]Keyword, len(keywords))
	for _, k := range keywords {
		if k.WorkflowID == workflowID {
			known[k.ID] = k
		}
	}

	var hubs []uuid.UUID
	grouped := make(map[uuid.UUID][]Edge)
	for _, e := range edges {
		if e.WorkflowID != workflowID {
			continue
		}
		if _, ok := grouped[e.HubKeywordID]; !ok {
			hubs = append(hubs, e.HubKeywordID)
		}
		grouped[e.HubKeywordID] = append(grouped[e.HubKeywordID], e)
	}

	report := Report{
		WorkflowID: workflowID,
		Config:     v.cfg,
		Clusters:   make([]Result, 0, len(hubs)),
	}

	for _, hub := range hubs {
		result := v.validateCluster(hub, grouped[hub], known)
		report.Clusters = append(report.Clusters, result)

		report.Summary.Total++
		if result.ValidationStatus == StatusValid {
			report.Summary.Valid++
		} else {
			report.Summary.Invalid++
		}
	}

	return report
}

func (v *Validator) validateCluster(hub uuid.UUID, edges []Edge, known map[uuid.UUID]Keyword) Result {
	result := Result{HubKeywordID: hub}
	if k, ok := known[hub]; ok {
		result.Hub = k.Keyword
	}

	seen := make(map[uuid.UUID]bool, len(edges))
	var (
		sum      float64
		scored   int
		missing  int
		unscored int
		below    int
	)

	for _, e := range edges {
		if seen[e.SpokeKeywordID] {
			continue
		}
		seen[e.SpokeKeywordID] = true

		if _, ok := known[e.SpokeKeywordID]; !ok {
			missing++
			continue
		}
		if e.SimilarityScore == nil {
			unscored++
			continue
		}

		score := *e.SimilarityScore
		sum += score
		scored++
		if score < v.cfg.SimilarityThreshold {
			below++
		}
	}

	result.SpokeCount = len(seen)
	if scored > 0 {
		result.AvgSimilarity = sum / float64(scored)
	}

	if result.SpokeCount < v.cfg.MinSpokes {
		result.Reasons = append(result.Reasons, ReasonTooFewSpokes)
	}
	if result.SpokeCount > v.cfg.MaxSpokes {
		result.Reasons = append(result.Reasons, ReasonTooManySpokes)
	}
	if missing > 0 {
		result.Reasons = append(result.Reasons, ReasonMissingSpoke)
	}
	if unscored > 0 {
		result.Reasons = append(result.Reasons, ReasonUnscoredSpoke)
	}
	if below > 0 {
		result.Reasons = append(result.Reasons, ReasonBelowThreshold)
	}
	if scored == 0 {
		result.Reasons = append(result.Reasons, ReasonNoScoredSpokes)
	}

	result.ValidationStatus = StatusValid
	if len(result.Reasons) > 0 {
		result.ValidationStatus = StatusInvalid
	}

	return result
}
