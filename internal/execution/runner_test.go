package execution_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/intent/internal/clusters"
	"github.com/JaimeStill/intent/internal/execution"
	"github.com/JaimeStill/intent/internal/faults"
	"github.com/JaimeStill/intent/internal/steps"
)

func TestSeedsRecordKeywords(t *testing.T) {
	wf := workflowAt(steps.Seeds)
	h := newHarness(t, newStore(wf))
	h.generator.payloads[steps.Seeds] = `{"seeds": ["crm software", " ", "sales pipeline"]}`

	resp, err := h.coordinator.Execute(context.Background(), request(wf, steps.Seeds, `{"limit": 10}`))
	require.NoError(t, err)
	assert.Equal(t, steps.Longtails, resp.WorkflowState)

	require.Len(t, h.store.commits, 1)
	out := h.store.commits[0].Output
	assert.Equal(t, clusters.SourceSeeds, out.KeywordSource)
	assert.Equal(t, []string{"crm software", "sales pipeline"}, out.Keywords)
	assert.Equal(t, 120, out.TokensUsed)
}

func TestGenerationContextCarriesPriorResults(t *testing.T) {
	wf := workflowAt(steps.Seeds)
	h := newHarness(t, newStore(wf))

	_, err := h.coordinator.Execute(context.Background(), request(wf, steps.Seeds, ""))
	require.NoError(t, err)

	require.Len(t, h.generator.requests, 1)
	req := h.generator.requests[0]
	assert.Equal(t, wf.ID, req.WorkflowID)
	assert.Equal(t, testOrg, req.OrganizationID)
	assert.NotEmpty(t, req.IdempotencyKey)
	assert.Len(t, req.Context, 3)
	assert.Contains(t, req.Context, steps.Identity)
	assert.Contains(t, req.Context, steps.ICP)
	assert.Contains(t, req.Context, steps.Competitors)
	assert.Nil(t, req.ApprovedItems)
}

func TestClusteringRecordsEdges(t *testing.T) {
	wf := workflowAt(steps.Clustering)
	h := newHarness(t, newStore(wf))
	h.generator.payloads[steps.Clustering] = `{
		"clusters": [
			{"hub": "crm", "spokes": [
				{"keyword": "crm tools", "similarity": 0.8},
				{"keyword": "crm pricing"}
			]}
		]
	}`

	_, err := h.coordinator.Execute(context.Background(), request(wf, steps.Clustering, ""))
	require.NoError(t, err)

	require.Len(t, h.store.commits, 1)
	edges := h.store.commits[0].Output.Edges
	require.Len(t, edges, 2)
	assert.Equal(t, "crm", edges[0].Hub)
	assert.Equal(t, "crm tools", edges[0].Spoke)
	require.NotNil(t, edges[0].Similarity)
	assert.InDelta(t, 0.8, *edges[0].Similarity, 1e-9)
	assert.Nil(t, edges[1].Similarity)
	assert.Empty(t, h.store.commits[0].Output.Keywords)
}

func TestClusteringRejectsSimilarityOutOfRange(t *testing.T) {
	for _, sim := range []string{"1.9", "-0.4"} {
		t.Run(sim, func(t *testing.T) {
			wf := workflowAt(steps.Clustering)
			h := newHarness(t, newStore(wf))
			h.generator.payloads[steps.Clustering] = `{"clusters": [{"hub": "crm", "spokes": [
				{"keyword": "crm tools", "similarity": 0.8},
				{"keyword": "crm pricing", "similarity": ` + sim + `}
			]}]}`

			_, err := h.coordinator.Execute(context.Background(), request(wf, steps.Clustering, ""))
			require.Error(t, err)
			assert.Equal(t, faults.KindTransient, faults.KindOf(err))
			assert.Contains(t, err.Error(), "unusable clustering output")
			assert.Empty(t, h.store.commits)
			assert.Equal(t, steps.Clustering, h.store.get(wf.ID).State)
		})
	}
}

func TestUnusableKeywordOutputFails(t *testing.T) {
	wf := workflowAt(steps.Seeds)
	h := newHarness(t, newStore(wf))
	h.generator.payloads[steps.Seeds] = `["not", "an", "object"]`

	_, err := h.coordinator.Execute(context.Background(), request(wf, steps.Seeds, ""))
	assert.Equal(t, faults.KindTransient, faults.KindOf(err))
	assert.Equal(t, steps.Seeds, h.store.get(wf.ID).State)
}

func TestValidationRunsLocally(t *testing.T) {
	wf := workflowAt(steps.Validation)
	h := newHarness(t, newStore(wf))

	resp, err := h.coordinator.Execute(context.Background(), request(wf, steps.Validation, ""))
	require.NoError(t, err)
	assert.Equal(t, 0, h.generator.callCount())
	assert.Equal(t, steps.Subtopics, resp.WorkflowState)

	var report clusters.Report
	require.NoError(t, json.Unmarshal(resp.Payload, &report))
	assert.Equal(t, wf.ID, report.WorkflowID)
	assert.Equal(t, 1, report.Summary.Valid)
}

func TestValidationReadFailure(t *testing.T) {
	runner := execution.ValidationRunner(validator{err: errors.New("connection refused")}, time.Now)
	_, err := runner.Run(context.Background(), execution.RunInput{
		Workflow: workflowAt(steps.Validation),
		Step:     steps.Validation,
	})
	assert.Equal(t, faults.KindDatastore, faults.KindOf(err))
}

func TestArticlesUploadBodies(t *testing.T) {
	wf := workflowAt(steps.Articles)
	h := newHarness(t, newStore(wf))
	h.generator.payloads[steps.Articles] = `{"articles": [
		{"title": "Choosing a CRM", "subtopic": "crm selection", "body": "# Choosing a CRM\n\nStart with the pipeline."},
		{"title": "CRM Pricing", "body": "# CRM Pricing\n\nSeats add up."}
	]}`

	resp, err := h.coordinator.Execute(context.Background(), request(wf, steps.Articles, ""))
	require.NoError(t, err)
	assert.Equal(t, steps.Completed, resp.WorkflowState)
	assert.Equal(t, 2, h.blobs.len())

	var payload struct {
		Articles []struct {
			Title       string `json:"title"`
			Body        string `json:"body"`
			ArtifactKey string `json:"artifact_key"`
			Artifact    string `json:"artifact"`
			Size        string `json:"size"`
		} `json:"articles"`
	}
	require.NoError(t, json.Unmarshal(resp.Payload, &payload))
	require.Len(t, payload.Articles, 2)

	for _, a := range payload.Articles {
		assert.Empty(t, a.Body)
		assert.True(t, strings.HasPrefix(a.ArtifactKey, "articles/"+wf.ID.String()+"/"))
		assert.True(t, strings.HasSuffix(a.Artifact, ".md"))
		assert.Equal(t, execution.ArtifactKey("articles", wf.ID, a.Artifact), a.ArtifactKey)
		assert.NotEmpty(t, a.Size)
	}

	body, err := h.blobs.Download(context.Background(), payload.Articles[0].ArtifactKey)
	require.NoError(t, err)
	defer body.Close()
	assert.Equal(t, "text/markdown; charset=utf-8", h.blobs.types[payload.Articles[0].ArtifactKey])
	assert.Equal(t, h.store.commits[0].Output.Artifacts, []string{payload.Articles[0].ArtifactKey, payload.Articles[1].ArtifactKey})
}

func TestArticlesAboveSizeLimitFail(t *testing.T) {
	wf := workflowAt(steps.Articles)
	h := newHarness(t, newStore(wf), withConfig(execution.Config{MaxArticleSize: "16B"}))
	h.generator.payloads[steps.Articles] = `{"articles": [{"title": "Long", "body": "this body is longer than sixteen bytes"}]}`

	_, err := h.coordinator.Execute(context.Background(), request(wf, steps.Articles, ""))
	require.Error(t, err)
	assert.Equal(t, faults.KindTransient, faults.KindOf(err))
	assert.Contains(t, err.Error(), "above the 16.0 B limit")
	assert.Equal(t, 0, h.blobs.len())
}

func TestArticlesUploadFailure(t *testing.T) {
	wf := workflowAt(steps.Articles)
	h := newHarness(t, newStore(wf))
	h.blobs.uploadErr = errors.New("container unavailable")
	h.generator.payloads[steps.Articles] = `{"articles": [{"title": "A", "body": "# A"}]}`

	_, err := h.coordinator.Execute(context.Background(), request(wf, steps.Articles, ""))
	assert.Equal(t, faults.KindTransient, faults.KindOf(err))
	assert.NotNil(t, h.store.get(wf.ID).FailedStep)
}

func TestArticlesRemovedWhenCommitFails(t *testing.T) {
	wf := workflowAt(steps.Articles)
	store := newStore(wf)
	store.commitErr = faults.Datastore("record step result", errors.New("connection reset"))
	h := newHarness(t, store)
	h.generator.payloads[steps.Articles] = `{"articles": [{"title": "A", "body": "# A"}, {"title": "B", "body": "# B"}]}`

	_, err := h.coordinator.Execute(context.Background(), request(wf, steps.Articles, ""))
	assert.Equal(t, faults.KindDatastore, faults.KindOf(err))
	assert.Equal(t, 0, h.blobs.len())
	assert.Len(t, h.blobs.deleted, 2)
}

func TestIdentityRunnerRejectsNonObject(t *testing.T) {
	runner := execution.IdentityRunner(func() time.Time { return fixedTime })
	_, err := runner.Run(context.Background(), execution.RunInput{
		Workflow: workflowAt(steps.Identity),
		Step:     steps.Identity,
		Input:    json.RawMessage(`"acme"`),
	})
	assert.Equal(t, faults.KindValidation, faults.KindOf(err))
}
