package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/JaimeStill/intent/pkg/lifecycle"
)

// JobHandler executes a dispatched job.
type JobHandler interface {
	HandleJob(ctx context.Context, job Job) error
}

// Worker consumes jobs from a NATS queue group.
type Worker struct {
	conn    *nats.Conn
	subject string
	queue   string
	handler JobHandler
	logger  *slog.Logger
	metrics *metrics

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewWorker creates a Worker for the subject and queue in cfg.
func NewWorker(conn *nats.Conn, cfg *Config, handler JobHandler, logger *slog.Logger) *Worker {
	return &Worker{
		conn:    conn,
		subject: cfg.Subject,
		queue:   cfg.Queue,
		handler: handler,
		logger:  logger.With("system", "worker"),
		metrics: newMetrics(),
	}
}

// Subscribe joins the queue group. Jobs run with ctx as their parent.
func (w *Worker) Subscribe(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sub != nil {
		return nil
	}

	sub, err := w.conn.QueueSubscribe(w.subject, w.queue, func(msg *nats.Msg) {
		w.handle(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", w.subject, err)
	}

	w.sub = sub
	w.logger.Info("worker subscribed", "subject", w.subject, "queue", w.queue)
	return nil
}

// Stop drains the subscription and waits up to timeout for in-flight jobs.
func (w *Worker) Stop(timeout time.Duration) {
	w.mu.Lock()
	sub := w.sub
	w.sub = nil
	w.mu.Unlock()

	if sub == nil {
		return
	}

	if err := sub.Drain(); err != nil {
		w.logger.Warn("worker drain failed", "error", err)
		return
	}

	deadline := time.Now().Add(timeout)
	for sub.IsValid() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
}

// Start subscribes during startup and stops on shutdown, allowing in-flight
// jobs up to drainTimeout to finish.
func (w *Worker) Start(lc *lifecycle.Coordinator, drainTimeout time.Duration) error {
	lc.OnStartup(func() {
		if err := w.Subscribe(lc.Context()); err != nil {
			w.logger.Error("worker subscribe failed", "error", err)
		}
	})

	lc.OnDrain(func() {
		w.logger.Info("stopping worker")
		w.Stop(drainTimeout)
		w.logger.Info("worker stopped")
	})

	return nil
}

func (w *Worker) handle(ctx context.Context, msg *nats.Msg) {
	var job Job
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		w.metrics.jobs.WithLabelValues("", "rejected").Inc()
		w.logger.Error("malformed job", "error", err)
		return
	}

	w.logger.Info("job received",
		"job_id", job.ID,
		"workflow_id", job.WorkflowID,
		"step", job.Step,
		"trigger", job.Trigger,
	)

	if err := w.handler.HandleJob(ctx, job); err != nil {
		w.metrics.jobs.WithLabelValues(string(job.Step), "failed").Inc()
		w.logger.Error("job failed",
			"job_id", job.ID,
			"workflow_id", job.WorkflowID,
			"step", job.Step,
			"error", err,
		)
		return
	}

	w.metrics.jobs.WithLabelValues(string(job.Step), "succeeded").Inc()
	w.logger.Info("job completed", "job_id", job.ID, "workflow_id", job.WorkflowID, "step", job.Step)
}
