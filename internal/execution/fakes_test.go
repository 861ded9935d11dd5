package execution_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/intent/internal/approvals"
	"github.com/JaimeStill/intent/internal/automation"
	"github.com/JaimeStill/intent/internal/clusters"
	"github.com/JaimeStill/intent/internal/execution"
	"github.com/JaimeStill/intent/internal/faults"
	"github.com/JaimeStill/intent/internal/gates"
	"github.com/JaimeStill/intent/internal/generation"
	"github.com/JaimeStill/intent/internal/steps"
	"github.com/JaimeStill/intent/internal/workflows"
	"github.com/JaimeStill/intent/pkg/storage"
)

var (
	testOrg   = uuid.MustParse("11111111-2222-3333-4444-555555555555")
	otherOrg  = uuid.MustParse("99999999-2222-3333-4444-555555555555")
	fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memStore struct {
	mu           sync.Mutex
	workflows    map[uuid.UUID]*workflows.Workflow
	commits      []execution.Commit
	failures     []workflows.Failure
	executions   []execution.Execution
	finds        int
	beforeCommit func(wf *workflows.Workflow)
	commitErr    error
}

func newStore(wfs ...*workflows.Workflow) *memStore {
	s := &memStore{workflows: make(map[uuid.UUID]*workflows.Workflow)}
	for _, wf := range wfs {
		s.workflows[wf.ID] = wf
	}
	return s
}

func clone(wf *workflows.Workflow) *workflows.Workflow {
	c := *wf
	c.Results = maps.Clone(wf.Results)
	return &c
}

func (s *memStore) Find(_ context.Context, id uuid.UUID, org *uuid.UUID) (*workflows.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++

	wf, ok := s.workflows[id]
	if !ok || (org != nil && *org != wf.OrganizationID) {
		return nil, workflows.ErrNotFound
	}
	return clone(wf), nil
}

func (s *memStore) Commit(_ context.Context, c execution.Commit) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.commitErr != nil {
		return nil, s.commitErr
	}

	wf := s.workflows[c.WorkflowID]
	if s.beforeCommit != nil {
		s.beforeCommit(wf)
	}
	if wf.State != c.Step {
		return nil, faults.RaceCondition(wf.ID)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, c.Output.Payload); err != nil {
		return nil, faults.Datastore("record step result", err)
	}
	stored := json.RawMessage(compact.Bytes())

	if wf.Results == nil {
		wf.Results = make(map[steps.Step]json.RawMessage)
	}
	wf.Results[c.Step] = stored
	wf.State = c.Next
	wf.FailedStep = nil
	wf.Failure = nil

	s.commits = append(s.commits, c)
	s.executions = append(s.executions, execution.Execution{
		IdempotencyKey: c.IdempotencyKey,
		WorkflowID:     c.WorkflowID,
		Step:           c.Step,
		Status:         execution.StatusSucceeded,
		TokensUsed:     c.Output.TokensUsed,
		Cost:           c.Output.Cost,
		DurationMS:     c.Duration.Milliseconds(),
		CreatedAt:      fixedTime,
	})
	return stored, nil
}

func (s *memStore) MarkFailed(_ context.Context, id uuid.UUID, step steps.Step, failure workflows.Failure, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures = append(s.failures, failure)
	wf := s.workflows[id]
	if wf.State == step {
		failed := step
		wf.FailedStep = &failed
		wf.Failure, _ = json.Marshal(failure)
	}
	return nil
}

func (s *memStore) Executions(_ context.Context, id uuid.UUID) ([]execution.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []execution.Execution
	for _, e := range s.executions {
		if e.WorkflowID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) get(id uuid.UUID) *workflows.Workflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.workflows[id])
}

type generator struct {
	mu       sync.Mutex
	calls    int
	payloads map[steps.Step]string
	requests []generation.Request
	err      error
	started  chan struct{}
	block    chan struct{}
}

func (g *generator) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	g.mu.Lock()
	g.calls++
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	if g.started != nil {
		select {
		case g.started <- struct{}{}:
		default:
		}
	}
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.err != nil {
		return nil, g.err
	}

	payload, ok := g.payloads[req.Step]
	if !ok {
		payload = `{"step": "` + string(req.Step) + `", "items": ["a", "b"]}`
	}
	return &generation.Result{
		ResultPayload: json.RawMessage(payload),
		TokensUsed:    120,
		Cost:          0.02,
		GeneratedAt:   fixedTime,
	}, nil
}

func (g *generator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type recorder struct {
	mu      sync.Mutex
	actions []string
	details []map[string]any
}

func (r *recorder) Log(_ uuid.UUID, _ *uuid.UUID, action string, details map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
	r.details = append(r.details, details)
}

func (r *recorder) count(action string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.actions {
		if a == action {
			n++
		}
	}
	return n
}

type trigger struct {
	mu     sync.Mutex
	events []automation.Event
}

func (t *trigger) Trigger(_ context.Context, e automation.Event, _, _ uuid.UUID) automation.Dispatch {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)

	if next, ok := automation.Next(e); ok {
		return automation.Dispatch{Event: e.String(), Status: automation.StatusPublished, Step: next, JobID: "job-1"}
	}
	return automation.Dispatch{Event: e.String(), Status: automation.StatusNoEdge}
}

type approvalReader struct {
	latest map[approvals.Type]*approvals.Approval
}

func (r approvalReader) Latest(_ context.Context, _ uuid.UUID, t approvals.Type) (*approvals.Approval, error) {
	if a, ok := r.latest[t]; ok {
		return a, nil
	}
	return nil, approvals.ErrNotFound
}

type counter struct {
	keywords int
	edges    int
}

func (c counter) CountKeywords(context.Context, uuid.UUID, string) (int, error) {
	return c.keywords, nil
}

func (c counter) CountEdges(context.Context, uuid.UUID) (int, error) {
	return c.edges, nil
}

type validator struct {
	report *clusters.Report
	err    error
}

func (v validator) Validate(_ context.Context, workflowID, _ uuid.UUID) (*clusters.Report, error) {
	if v.err != nil {
		return nil, v.err
	}
	r := *v.report
	r.WorkflowID = workflowID
	return &r, nil
}

type blobs struct {
	mu        sync.Mutex
	data      map[string][]byte
	types     map[string]string
	deleted   []string
	uploadErr error
}

func newBlobs() *blobs {
	return &blobs{data: make(map[string][]byte), types: make(map[string]string)}
}

func (b *blobs) Upload(_ context.Context, key string, r io.Reader, contentType string) error {
	if b.uploadErr != nil {
		return b.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = data
	b.types[key] = contentType
	return nil
}

func (b *blobs) Download(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *blobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.data[key]; !ok {
		return storage.ErrNotFound
	}
	delete(b.data, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *blobs) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// harness wires a Coordinator over in-memory collaborators and the real
// gate executor.
type harness struct {
	store       *memStore
	generator   *generator
	recorder    *recorder
	trigger     *trigger
	approvals   approvalReader
	counter     counter
	validator   validator
	blobs       *blobs
	cfg         *execution.Config
	coordinator *execution.Coordinator
}

type option func(*harness)

func withConfig(cfg execution.Config) option {
	return func(h *harness) { h.cfg = &cfg }
}

func withApproval(t approvals.Type, d approvals.Decision, items ...string) option {
	return func(h *harness) {
		h.approvals.latest[t] = &approvals.Approval{
			ID:            uuid.New(),
			Type:          t,
			Decision:      d,
			ApprovedItems: items,
			CreatedAt:     fixedTime,
		}
	}
}

func withClusters(keywords, edges int) option {
	return func(h *harness) { h.counter = counter{keywords: keywords, edges: edges} }
}

func newHarness(t *testing.T, store *memStore, opts ...option) *harness {
	t.Helper()

	h := &harness{
		store:     store,
		generator: &generator{payloads: map[steps.Step]string{}},
		recorder:  &recorder{},
		trigger:   &trigger{},
		approvals: approvalReader{latest: map[approvals.Type]*approvals.Approval{}},
		validator: validator{report: &clusters.Report{
			Config:  clusters.DefaultConfig(),
			Summary: clusters.Summary{Total: 1, Valid: 1},
		}},
		blobs: newBlobs(),
		cfg:   &execution.Config{},
	}
	for _, opt := range opts {
		opt(h)
	}
	require.NoError(t, h.cfg.Finalize(nil))

	schemas, err := execution.NewSchemas()
	require.NoError(t, err)

	logger := discard()
	now := func() time.Time { return fixedTime }

	runners := execution.StandardRunners(h.cfg, execution.RunnerDeps{
		Generator: h.generator,
		Approvals: itemsFromApprovals{h.approvals},
		Validator: h.validator,
		Artifacts: h.blobs,
		Logger:    logger,
		Now:       now,
	})

	executor := gates.NewStandardExecutor(store, h.approvals, h.counter, h.recorder, logger)

	h.coordinator, err = execution.New(h.cfg, execution.Deps{
		Store:    store,
		Schemas:  schemas,
		Runners:  runners,
		Gates:    executor,
		Trigger:  h.trigger,
		Recorder: h.recorder,
		Logger:   logger,
	})
	require.NoError(t, err)
	return h
}

type itemsFromApprovals struct {
	reader approvalReader
}

func (i itemsFromApprovals) ApprovedItems(ctx context.Context, workflowID uuid.UUID, step steps.Step) ([]string, error) {
	t, ok := approvals.TypeFor(step)
	if !ok {
		return nil, nil
	}
	a, err := i.reader.Latest(ctx, workflowID, t)
	if err != nil || a.Decision != approvals.DecisionApproved {
		return nil, nil
	}
	return a.ApprovedItems, nil
}

// workflowAt builds a workflow positioned at state with a stored result for
// every earlier step.
func workflowAt(state steps.Step) *workflows.Workflow {
	wf := &workflows.Workflow{
		ID:             uuid.New(),
		OrganizationID: testOrg,
		Name:           "spring campaign",
		State:          state,
		Results:        map[steps.Step]json.RawMessage{},
		CreatedAt:      fixedTime,
		UpdatedAt:      fixedTime,
	}
	for _, s := range steps.Order {
		if !s.Before(state) {
			break
		}
		wf.Results[s] = json.RawMessage(`{"step":"` + string(s) + `"}`)
	}
	if state.After(steps.Seeds) {
		wf.SeedKeywordsApproved = true
	}
	if state.After(steps.Subtopics) {
		wf.SubtopicsApproved = true
	}
	return wf
}
