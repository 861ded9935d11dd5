// Package blocking explains why a workflow is not progressing.
package blocking

import (
	"strings"

	"github.com/JaimeStill/intent/internal/gates"
	"github.com/JaimeStill/intent/internal/steps"
	"github.com/JaimeStill/intent/internal/workflows"
)

// StepFailure is the gate id reported for a workflow whose last attempt at
// its current step failed.
const StepFailure = "step_failure"

// Condition describes what is holding a workflow at its current step.
type Condition struct {
	GateID         string     `json:"gate_id"`
	Step           steps.Step `json:"step"`
	Reason         string     `json:"reason"`
	RequiredAction string     `json:"required_action"`
	ActionLink     string     `json:"action_link"`
}

// Status is the answer to "is this workflow blocked?".
type Status struct {
	Blocked   bool       `json:"blocked"`
	Condition *Condition `json:"condition,omitempty"`
}

type entry struct {
	gate           gates.ID
	reason         string
	requiredAction string
	linkTemplate   string
	// flag, when set, releases the condition as soon as it is raised,
	// regardless of whether the step has advanced.
	flag workflows.Flag
}

var conditions = map[steps.Step]entry{
	steps.Longtails: {
		gate:           gates.SeedApproval,
		reason:         "Seed keywords are awaiting approval",
		requiredAction: "Review and approve the seed keywords",
		linkTemplate:   "/workflows/{workflow_id}/approvals/seeds/latest",
		flag:           workflows.FlagSeedKeywords,
	},
	steps.Subtopics: {
		gate:           gates.LongtailClustering,
		reason:         "Long-tail keywords and clusters are incomplete",
		requiredAction: "Complete long-tail expansion and clustering",
		linkTemplate:   "/workflows/{workflow_id}/clusters/validation",
	},
	steps.Articles: {
		gate:           gates.SubtopicApproval,
		reason:         "Subtopics are awaiting approval",
		requiredAction: "Review and approve the subtopics",
		linkTemplate:   "/workflows/{workflow_id}/approvals/subtopics/latest",
		flag:           workflows.FlagSubtopics,
	},
}

func (e entry) condition(wf *workflows.Workflow) *Condition {
	return &Condition{
		GateID:         string(e.gate),
		Step:           wf.State,
		Reason:         e.reason,
		RequiredAction: e.requiredAction,
		ActionLink:     link(e.linkTemplate, wf),
	}
}

func link(template string, wf *workflows.Workflow) string {
	return strings.ReplaceAll(template, "{workflow_id}", wf.ID.String())
}
