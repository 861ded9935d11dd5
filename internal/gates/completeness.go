package gates

import (
	"context"
	"fmt"
	"strings"

	"github.com/JaimeStill/intent/internal/clusters"
	"github.com/JaimeStill/intent/internal/steps"
	"github.com/JaimeStill/intent/internal/workflows"
)

type completenessGate struct {
	counter ClusterCounter
}

// NewLongtailClustering creates the gate that holds subtopic generation
// until long-tail keywords and cluster edges exist.
func NewLongtailClustering(counter ClusterCounter) Gate {
	return &completenessGate{counter: counter}
}

func (g *completenessGate) ID() ID { return LongtailClustering }
func (g *completenessGate) Step() steps.Step { return steps.Subtopics }
func (g *completenessGate) StatusKey() string { return "longtailClusteringStatus" }

func (g *completenessGate) Evaluate(ctx context.Context, wf *workflows.Workflow) (Evaluation, error) {
	keywords, err := g.counter.CountKeywords(ctx, wf.ID, clusters.SourceLongtails)
	if err != nil {
		return Evaluation{}, fmt.Errorf("count longtail keywords: %w", err)
	}

	edges, err := g.counter.CountEdges(ctx, wf.ID)
	if err != nil {
		return Evaluation{}, fmt.Errorf("count cluster edges: %w", err)
	}

	if keywords > 0 && edges > 0 {
		return Evaluation{Allowed: true}, nil
	}

	var missing []string
	if keywords == 0 {
		missing = append(missing, "long-tail keywords")
	}
	if edges == 0 {
		missing = append(missing, "keyword clusters")
	}

	return Evaluation{
		SubStatus:      SubStatusIncomplete,
		Message:        "missing " + strings.Join(missing, " and "),
		RequiredAction: "Complete long-tail expansion and clustering",
	}, nil
}
