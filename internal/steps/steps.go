// Package steps defines the canonical workflow step ordering and the
// sequencer that enforces forward-only progression.
package steps

import (
	"fmt"
	"slices"
)

// Step identifies a position in the workflow pipeline.
// A workflow's state is the step it will execute next.
type Step string

const (
	Identity    Step = "identity"
	ICP         Step = "icp"
	Competitors Step = "competitors"
	Seeds       Step = "seeds"
	Longtails   Step = "longtails"
	Filtering   Step = "filtering"
	Clustering  Step = "clustering"
	Validation  Step = "validation"
	Subtopics   Step = "subtopics"
	Articles    Step = "articles"
	Completed   Step = "completed"
)

// Order is the canonical step sequence. Completed is terminal and never executes.
var Order = []Step{
	Identity,
	ICP,
	Competitors,
	Seeds,
	Longtails,
	Filtering,
	Clustering,
	Validation,
	Subtopics,
	Articles,
	Completed,
}

// Initial is the state of a newly created workflow.
const Initial = Identity

// IndexOf returns the zero-based position of s, or -1 if s is not a known step.
func IndexOf(s Step) int {
	return slices.Index(Order, s)
}

// Position returns the 1-based step number of s, or 0 if unknown.
func Position(s Step) int {
	return IndexOf(s) + 1
}

// Next returns the step that follows s.
func Next(s Step) (Step, bool) {
	i := IndexOf(s)
	if i < 0 || i >= len(Order)-1 {
		return "", false
	}
	return Order[i+1], true
}

// Valid reports whether s is a known step.
func (s Step) Valid() bool {
	return IndexOf(s) >= 0
}

// Executable reports whether s is a step that runs, as opposed to the terminal state.
func (s Step) Executable() bool {
	return s.Valid() && s != Completed
}

// Before reports whether s precedes other in the canonical order.
func (s Step) Before(other Step) bool {
	return IndexOf(s) < IndexOf(other)
}

// After reports whether s follows other in the canonical order.
func (s Step) After(other Step) bool {
	return IndexOf(s) > IndexOf(other)
}

// Parse converts a raw identifier into an executable Step.
func Parse(raw string) (Step, error) {
	s := Step(raw)
	if !s.Executable() {
		return "", fmt.Errorf("unknown step %q", raw)
	}
	return s, nil
}

// Executables returns every step that runs, in order.
func Executables() []Step {
	return slices.Clone(Order[:len(Order)-1])
}
