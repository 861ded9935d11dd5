// Package automation decides which background job follows a completed step
// or recorded approval, and carries those jobs over NATS.
package automation

import (
	"maps"

	"github.com/JaimeStill/intent/internal/steps"
)

// Outcome is what happened to a step.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeApproved  Outcome = "approved"
)

// Event is a step outcome that may trigger the next job.
type Event struct {
	Step    steps.Step
	Outcome Outcome
}

// Succeeded is the event raised when s completes.
func Succeeded(s steps.Step) Event {
	return Event{Step: s, Outcome: OutcomeSucceeded}
}

// Approved is the event raised when the output of s is approved.
func Approved(s steps.Step) Event {
	return Event{Step: s, Outcome: OutcomeApproved}
}

func (e Event) String() string {
	return string(e.Step) + "." + string(e.Outcome)
}

// Subtopic success deliberately has no edge: articles wait for explicit
// subtopic approval.
var graph = map[Event]steps.Step{
	Approved(steps.Seeds):       steps.Longtails,
	Succeeded(steps.Longtails):  steps.Filtering,
	Succeeded(steps.Filtering):  steps.Clustering,
	Succeeded(steps.Clustering): steps.Validation,
	Succeeded(steps.Validation): steps.Subtopics,
	Approved(steps.Subtopics):   steps.Articles,
}

// Next returns the step dispatched in response to e.
func Next(e Event) (steps.Step, bool) {
	s, ok := graph[e]
	return s, ok
}

// Edges returns a copy of the automation graph.
func Edges() map[Event]steps.Step {
	return maps.Clone(graph)
}
