package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/clusters"
	"github.com/JaimeStill/intent/internal/faults"
	"github.com/JaimeStill/intent/internal/generation"
	"github.com/JaimeStill/intent/internal/steps"
	"github.com/JaimeStill/intent/internal/workflows"
)

// RunInput is what a runner receives for one step execution.
type RunInput struct {
	Workflow       *workflows.Workflow
	Step           steps.Step
	IdempotencyKey string
	Input          json.RawMessage
}

// Output is a runner's result plus the rows its commit should write.
type Output struct {
	Payload       json.RawMessage
	TokensUsed    int
	Cost          float64
	GeneratedAt   time.Time
	KeywordSource string
	Keywords      []string
	Edges         []clusters.EdgeInput
	// Artifacts are blob keys written by the runner. They are deleted when
	// the commit fails.
	Artifacts []string
}

// Runner produces the output of a single step.
type Runner interface {
	Run(ctx context.Context, in RunInput) (*Output, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, in RunInput) (*Output, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, in RunInput) (*Output, error) {
	return f(ctx, in)
}

// ApprovedItems returns the items of the latest approval for a step.
type ApprovedItems interface {
	ApprovedItems(ctx context.Context, workflowID uuid.UUID, step steps.Step) ([]string, error)
}

// ClusterValidator validates the clusters recorded for a workflow.
type ClusterValidator interface {
	Validate(ctx context.Context, workflowID, organizationID uuid.UUID) (*clusters.Report, error)
}

// IdentityRunner confirms the business identity supplied by the caller.
// It runs locally and consumes no tokens.
func IdentityRunner(now func() time.Time) Runner {
	return RunnerFunc(func(ctx context.Context, in RunInput) (*Output, error) {
		var identity map[string]any
		if err := json.Unmarshal(in.Input, &identity); err != nil {
			return nil, faults.Validation("invalid identity input", err)
		}

		confirmedAt := now().UTC()
		identity["confirmed_at"] = confirmedAt

		payload, err := json.Marshal(identity)
		if err != nil {
			return nil, fmt.Errorf("marshal identity: %w", err)
		}
		return &Output{Payload: payload, GeneratedAt: confirmedAt}, nil
	})
}

// approvalSource names the approval whose items feed a step.
var approvalSource = map[steps.Step]steps.Step{
	steps.Longtails: steps.Seeds,
	steps.Articles:  steps.Subtopics,
}

// GenerationRunner delegates a step to the generation service, passing every
// prior result as context, then extracts keywords or edges from the payload.
type GenerationRunner struct {
	generator generation.Generator
	approvals ApprovedItems
}

// NewGenerationRunner creates a GenerationRunner. approvals may be nil.
func NewGenerationRunner(generator generation.Generator, approvals ApprovedItems) *GenerationRunner {
	return &GenerationRunner{generator: generator, approvals: approvals}
}

// Run calls the generation service for in.Step.
func (g *GenerationRunner) Run(ctx context.Context, in RunInput) (*Output, error) {
	req := generation.Request{
		WorkflowID:     in.Workflow.ID,
		OrganizationID: in.Workflow.OrganizationID,
		Step:           in.Step,
		IdempotencyKey: in.IdempotencyKey,
		Input:          in.Input,
		Context:        priorResults(in.Workflow, in.Step),
	}

	if source, ok := approvalSource[in.Step]; ok && g.approvals != nil {
		items, err := g.approvals.ApprovedItems(ctx, in.Workflow.ID, source)
		if err != nil {
			return nil, faults.Datastore(fmt.Sprintf("read %s approval", source), err)
		}
		req.ApprovedItems = items
	}

	res, err := g.generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	out := &Output{
		Payload:     res.ResultPayload,
		TokensUsed:  res.TokensUsed,
		Cost:        res.Cost,
		GeneratedAt: res.GeneratedAt,
	}

	if err := extract(in.Step, out); err != nil {
		return nil, faults.Transient(fmt.Sprintf("unusable %s output", in.Step), err)
	}
	return out, nil
}

// ValidationRunner validates the workflow's clusters locally. A workflow with
// no valid clusters still completes; the report carries the outcome.
func ValidationRunner(validator ClusterValidator, now func() time.Time) Runner {
	return RunnerFunc(func(ctx context.Context, in RunInput) (*Output, error) {
		report, err := validator.Validate(ctx, in.Workflow.ID, in.Workflow.OrganizationID)
		if err != nil {
			return nil, faults.Datastore("validate clusters", err)
		}

		payload, err := json.Marshal(report)
		if err != nil {
			return nil, fmt.Errorf("marshal validation report: %w", err)
		}
		return &Output{Payload: payload, GeneratedAt: now().UTC()}, nil
	})
}

func priorResults(wf *workflows.Workflow, step steps.Step) map[steps.Step]json.RawMessage {
	prior := make(map[steps.Step]json.RawMessage)
	for s, payload := range wf.Results {
		if s.Before(step) && len(payload) > 0 {
			prior[s] = payload
		}
	}
	return prior
}

// keywordItem accepts either a bare string or an object with a keyword field.
type keywordItem string

func (k *keywordItem) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*k = keywordItem(s)
		return nil
	}
	var obj struct {
		Keyword string `json:"keyword"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*k = keywordItem(obj.Keyword)
	return nil
}

type keywordPayload struct {
	Keywords  []keywordItem `json:"keywords"`
	Seeds     []keywordItem `json:"seeds"`
	Longtails []keywordItem `json:"longtails"`
}

type clusterPayload struct {
	Clusters []struct {
		Hub    string `json:"hub"`
		Spokes []struct {
			Keyword    string   `json:"keyword"`
			Similarity *float64 `json:"similarity"`
		} `json:"spokes"`
	} `json:"clusters"`
}

var keywordSources = map[steps.Step]string{
	steps.Seeds:     clusters.SourceSeeds,
	steps.Longtails: clusters.SourceLongtails,
	steps.Filtering: clusters.SourceFiltering,
}

func extract(step steps.Step, out *Output) error {
	if source, ok := keywordSources[step]; ok {
		var p keywordPayload
		if err := json.Unmarshal(out.Payload, &p); err != nil {
			return fmt.Errorf("decode keywords: %w", err)
		}
		out.KeywordSource = source
		for _, list := range [][]keywordItem{p.Keywords, p.Seeds, p.Longtails} {
			for _, k := range list {
				if kw := strings.TrimSpace(string(k)); kw != "" {
					out.Keywords = append(out.Keywords, kw)
				}
			}
		}
		return nil
	}

	if step == steps.Clustering {
		var p clusterPayload
		if err := json.Unmarshal(out.Payload, &p); err != nil {
			return fmt.Errorf("decode clusters: %w", err)
		}
		for _, c := range p.Clusters {
			for _, s := range c.Spokes {
				if s.Similarity != nil && (*s.Similarity < 0 || *s.Similarity > 1) {
					return fmt.Errorf("similarity %v for %q outside [0,1]", *s.Similarity, s.Keyword)
				}
				out.Edges = append(out.Edges, clusters.EdgeInput{
					Hub:        c.Hub,
					Spoke:      s.Keyword,
					Similarity: s.Similarity,
				})
			}
		}
	}
	return nil
}

// RunnerDeps are the collaborators of the standard runner set.
type RunnerDeps struct {
	Generator generation.Generator
	Approvals ApprovedItems
	Validator ClusterValidator
	Artifacts ArtifactStore
	Logger    *slog.Logger
	Now       func() time.Time
}

// StandardRunners maps every executable step to its runner: identity and
// validation run locally, articles upload their bodies, and the rest
// delegate to the generation service.
func StandardRunners(cfg *Config, deps RunnerDeps) map[steps.Step]Runner {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	gen := NewGenerationRunner(deps.Generator, deps.Approvals)
	runners := map[steps.Step]Runner{
		steps.Identity:   IdentityRunner(now),
		steps.Validation: ValidationRunner(deps.Validator, now),
		steps.Articles:   NewArticlesRunner(gen, deps.Artifacts, cfg, deps.Logger),
	}
	for _, s := range steps.Executables() {
		if _, ok := runners[s]; !ok {
			runners[s] = gen
		}
	}
	return runners
}
