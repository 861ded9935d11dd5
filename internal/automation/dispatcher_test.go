package automation_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/intent/internal/audit"
	"github.com/JaimeStill/intent/internal/automation"
	"github.com/JaimeStill/intent/internal/steps"
)

type recordedEntry struct {
	workflowID uuid.UUID
	action     string
	details    map[string]any
}

type recorder struct {
	mu      sync.Mutex
	entries []recordedEntry
}

func (r *recorder) Log(workflowID uuid.UUID, _ *uuid.UUID, action string, details map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, recordedEntry{workflowID: workflowID, action: action, details: details})
}

func (r *recorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.action
	}
	return out
}

type publisher struct {
	subject string
	data    []byte
	err     error
}

func (p *publisher) Publish(subject string, data []byte) error {
	p.subject = subject
	p.data = data
	return p.err
}

type mockPolicy struct {
	mock.Mock
}

func (m *mockPolicy) AutoDispatch(ctx context.Context, organizationID uuid.UUID) (bool, error) {
	args := m.Called(ctx, organizationID)
	return args.Bool(0), args.Error(1)
}

func policy(auto bool, err error) *mockPolicy {
	m := new(mockPolicy)
	m.On("AutoDispatch", mock.Anything, mock.Anything).Return(auto, err)
	return m
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTriggerPublishesJob(t *testing.T) {
	pub := &publisher{}
	rec := &recorder{}
	d := automation.NewDispatcher(pub, policy(true, nil), rec, "intent.jobs", discard())

	wf, org := uuid.New(), uuid.New()
	result := d.Trigger(context.Background(), automation.Succeeded(steps.Clustering), wf, org)

	assert.Equal(t, automation.StatusPublished, result.Status)
	assert.Equal(t, steps.Validation, result.Step)
	assert.NotEmpty(t, result.JobID)
	assert.Equal(t, []string{audit.ActionDispatchAttempt}, rec.actions())

	require.Equal(t, "intent.jobs", pub.subject)
	var job automation.Job
	require.NoError(t, json.Unmarshal(pub.data, &job))
	assert.Equal(t, result.JobID, job.ID)
	assert.Equal(t, wf, job.WorkflowID)
	assert.Equal(t, org, job.OrganizationID)
	assert.Equal(t, steps.Validation, job.Step)
	assert.Equal(t, "clustering.succeeded", job.Trigger)
}

func TestTriggerNoEdge(t *testing.T) {
	pub := &publisher{}
	rec := &recorder{}
	pol := new(mockPolicy)
	d := automation.NewDispatcher(pub, pol, rec, "intent.jobs", discard())

	result := d.Trigger(context.Background(), automation.Succeeded(steps.Subtopics), uuid.New(), uuid.New())

	assert.Equal(t, automation.StatusNoEdge, result.Status)
	pol.AssertNotCalled(t, "AutoDispatch", mock.Anything, mock.Anything)
	assert.Nil(t, pub.data)
	assert.Empty(t, rec.actions())
}

func TestTriggerSkippedWhenAutoDispatchDisabled(t *testing.T) {
	pub := &publisher{}
	rec := &recorder{}
	d := automation.NewDispatcher(pub, policy(false, nil), rec, "intent.jobs", discard())

	result := d.Trigger(context.Background(), automation.Approved(steps.Seeds), uuid.New(), uuid.New())

	assert.Equal(t, automation.StatusSkipped, result.Status)
	assert.Equal(t, steps.Longtails, result.Step)
	assert.Nil(t, pub.data)
	assert.Equal(t, []string{audit.ActionDispatchSkipped}, rec.actions())
}

func TestTriggerPublishFailureIsAudited(t *testing.T) {
	pub := &publisher{err: errors.New("connection closed")}
	rec := &recorder{}
	d := automation.NewDispatcher(pub, policy(true, nil), rec, "intent.jobs", discard())

	result := d.Trigger(context.Background(), automation.Succeeded(steps.Longtails), uuid.New(), uuid.New())

	assert.Equal(t, automation.StatusFailed, result.Status)
	assert.Equal(t, []string{audit.ActionDispatchAttempt, audit.ActionDispatchFailed}, rec.actions())
	assert.Equal(t, "connection closed", rec.entries[1].details["error"])
}

func TestTriggerAttemptRecordUnchangedByFailure(t *testing.T) {
	pub := &publisher{err: errors.New("nats down")}
	rec := &recorder{}
	d := automation.NewDispatcher(pub, policy(true, nil), rec, "intent.jobs", discard())

	d.Trigger(context.Background(), automation.Succeeded(steps.Longtails), uuid.New(), uuid.New())

	require.Len(t, rec.entries, 2)
	attempted, failed := rec.entries[0].details, rec.entries[1].details
	assert.NotContains(t, attempted, "error")
	assert.Equal(t, "nats down", failed["error"])
	assert.Equal(t, attempted["job_id"], failed["job_id"])
	assert.Equal(t, attempted["event"], failed["event"])
}

func TestTriggerPolicyFailureIsAudited(t *testing.T) {
	pub := &publisher{}
	rec := &recorder{}
	d := automation.NewDispatcher(pub, policy(false, errors.New("settings unavailable")), rec, "intent.jobs", discard())

	result := d.Trigger(context.Background(), automation.Succeeded(steps.Filtering), uuid.New(), uuid.New())

	assert.Equal(t, automation.StatusFailed, result.Status)
	assert.Nil(t, pub.data)
	assert.Equal(t, []string{audit.ActionDispatchFailed}, rec.actions())
}
