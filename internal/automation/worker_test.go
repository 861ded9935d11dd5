package automation_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/intent/internal/automation"
	"github.com/JaimeStill/intent/internal/steps"
	"github.com/JaimeStill/intent/pkg/lifecycle"
)

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()

	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

type jobHandler struct {
	mu   sync.Mutex
	jobs []automation.Job
	err  error
	done chan struct{}
}

func newJobHandler(err error) *jobHandler {
	return &jobHandler{err: err, done: make(chan struct{}, 8)}
}

func (h *jobHandler) HandleJob(_ context.Context, job automation.Job) error {
	h.mu.Lock()
	h.jobs = append(h.jobs, job)
	h.mu.Unlock()
	h.done <- struct{}{}
	return h.err
}

func (h *jobHandler) received() []automation.Job {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]automation.Job(nil), h.jobs...)
}

func workerConfig(t *testing.T) *automation.Config {
	cfg := &automation.Config{}
	require.NoError(t, cfg.Finalize(nil))
	return cfg
}

func TestWorkerHandlesDispatchedJob(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	cfg := workerConfig(t)
	handler := newJobHandler(nil)
	worker := automation.NewWorker(nc, cfg, handler, discard())
	require.NoError(t, worker.Subscribe(context.Background()))
	defer worker.Stop(time.Second)
	require.NoError(t, nc.Flush())

	d := automation.NewDispatcher(nc, policy(true, nil), &recorder{}, cfg.Subject, discard())
	wf, org := uuid.New(), uuid.New()
	result := d.Trigger(context.Background(), automation.Succeeded(steps.Validation), wf, org)
	require.Equal(t, automation.StatusPublished, result.Status)

	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job not handled")
	}

	jobs := handler.received()
	require.Len(t, jobs, 1)
	assert.Equal(t, result.JobID, jobs[0].ID)
	assert.Equal(t, wf, jobs[0].WorkflowID)
	assert.Equal(t, steps.Subtopics, jobs[0].Step)
}

func TestWorkerSurvivesFailuresAndMalformedJobs(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	cfg := workerConfig(t)
	handler := newJobHandler(errors.New("step failed"))
	worker := automation.NewWorker(nc, cfg, handler, discard())
	require.NoError(t, worker.Subscribe(context.Background()))
	defer worker.Stop(time.Second)
	require.NoError(t, nc.Flush())

	require.NoError(t, nc.Publish(cfg.Subject, []byte("{not json")))

	job := automation.NewJob(automation.Succeeded(steps.Longtails), steps.Filtering, uuid.New(), uuid.New())
	data, err := json.Marshal(job)
	require.NoError(t, err)

	for range 2 {
		require.NoError(t, nc.Publish(cfg.Subject, data))
	}

	for range 2 {
		select {
		case <-handler.done:
		case <-time.After(2 * time.Second):
			t.Fatal("job not handled")
		}
	}

	assert.Len(t, handler.received(), 2)
}

func TestWorkerLifecycle(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	cfg := workerConfig(t)
	handler := newJobHandler(nil)
	worker := automation.NewWorker(nc, cfg, handler, discard())

	lc := lifecycle.New()
	require.NoError(t, worker.Start(lc, time.Second))
	lc.WaitForStartup()
	require.NoError(t, nc.Flush())

	job := automation.NewJob(automation.Approved(steps.Subtopics), steps.Articles, uuid.New(), uuid.New())
	data, err := json.Marshal(job)
	require.NoError(t, err)
	require.NoError(t, nc.Publish(cfg.Subject, data))

	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job not handled")
	}

	require.NoError(t, lc.Shutdown(5*time.Second))
}

func TestConfigDefaults(t *testing.T) {
	cfg := workerConfig(t)
	assert.Equal(t, "intent.jobs", cfg.Subject)
	assert.Equal(t, "intent-workers", cfg.Queue)
	assert.True(t, cfg.Worker())

	t.Setenv("TEST_WORKER_ENABLED", "false")
	cfg = &automation.Config{}
	require.NoError(t, cfg.Finalize(&automation.Env{WorkerEnabled: "TEST_WORKER_ENABLED"}))
	assert.False(t, cfg.Worker())
}
