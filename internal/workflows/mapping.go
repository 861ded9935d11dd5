package workflows

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/JaimeStill/intent/internal/steps"
	"github.com/JaimeStill/intent/pkg/query"
	"github.com/JaimeStill/intent/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "workflows", "w").
	Project("id", "ID").
	Project("organization_id", "OrganizationID").
	Project("name", "Name").
	Project("state", "State").
	Project("seed_keywords_approved", "SeedKeywordsApproved").
	Project("subtopics_approved", "SubtopicsApproved").
	Project("results", "Results").
	Project("failed_step", "FailedStep").
	Project("failure", "Failure").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

const returningColumns = `id, organization_id, name, state, seed_keywords_approved,
	subtopics_approved, results, failed_step, failure, created_at, updated_at`

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for workflow queries.
type Filters struct {
	State *string `json:"state,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.WhereEquals("State", f.State)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters
	if s := values.Get("state"); s != "" {
		f.State = &s
	}
	return f
}

func scanWorkflow(s repository.Scanner) (Workflow, error) {
	var (
		w          Workflow
		state      string
		resultsRaw []byte
		failedStep *string
		failure    []byte
	)

	err := s.Scan(
		&w.ID,
		&w.OrganizationID,
		&w.Name,
		&state,
		&w.SeedKeywordsApproved,
		&w.SubtopicsApproved,
		&resultsRaw,
		&failedStep,
		&failure,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return w, err
	}

	w.State = steps.Step(state)
	w.Results = make(map[steps.Step]json.RawMessage)

	if len(resultsRaw) > 0 {
		if err := json.Unmarshal(resultsRaw, &w.Results); err != nil {
			return w, fmt.Errorf("unmarshal results: %w", err)
		}
	}

	if failedStep != nil {
		fs := steps.Step(*failedStep)
		w.FailedStep = &fs
	}
	if len(failure) > 0 {
		w.Failure = json.RawMessage(failure)
	}

	return w, nil
}
