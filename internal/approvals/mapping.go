package approvals

import (
	"encoding/json"
	"fmt"

	"github.com/JaimeStill/intent/pkg/query"
	"github.com/JaimeStill/intent/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "approvals", "ap").
	Project("id", "ID").
	Project("workflow_id", "WorkflowID").
	Project("approval_type", "Type").
	Project("decision", "Decision").
	Project("approved_items", "ApprovedItems").
	Project("decided_by", "DecidedBy").
	Project("notes", "Notes").
	Project("created_at", "CreatedAt")

const returningColumns = "id, workflow_id, approval_type, decision, approved_items, decided_by, notes, created_at"

// seq is not projected; it only breaks created_at ties in insert order.
var newestFirst = []query.SortField{
	{Field: "CreatedAt", Descending: true},
	{Field: "ap.seq", Descending: true},
}

func scanApproval(s repository.Scanner) (Approval, error) {
	var (
		a     Approval
		t     string
		d     string
		items []byte
	)

	if err := s.Scan(&a.ID, &a.WorkflowID, &t, &d, &items, &a.DecidedBy, &a.Notes, &a.CreatedAt); err != nil {
		return a, err
	}

	a.Type = Type(t)
	a.Decision = Decision(d)
	a.ApprovedItems = []string{}

	if len(items) > 0 {
		if err := json.Unmarshal(items, &a.ApprovedItems); err != nil {
			return a, fmt.Errorf("unmarshal approved_items: %w", err)
		}
	}
	return a, nil
}
