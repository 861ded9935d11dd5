package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/pkg/lifecycle"
)

// Sink persists audit entries.
type Sink interface {
	Append(ctx context.Context, entry Entry) error
}

// Logger queues entries on a buffered channel drained by one worker into a Sink.
// Log never blocks: a full buffer or a closed logger drops the entry and
// reports the drop on the local diagnostic log.
type Logger struct {
	sink    Sink
	entries chan Entry
	done    chan struct{}
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics

	mu     sync.RWMutex
	closed bool
}

// NewLogger creates a Logger and starts its worker.
func NewLogger(sink Sink, cfg *Config, logger *slog.Logger) *Logger {
	l := &Logger{
		sink:    sink,
		entries: make(chan Entry, cfg.BufferSize),
		done:    make(chan struct{}),
		timeout: cfg.WriteTimeoutDuration(),
		logger:  logger.With("system", "audit"),
		metrics: newMetrics(),
	}
	go l.run()
	return l
}

// Start registers a flush hook that writes pending entries after request
// intake has stopped and before the database closes.
func (l *Logger) Start(lc *lifecycle.Coordinator) error {
	lc.OnFlush(func() {
		l.logger.Info("flushing audit log")
		l.Close()
		l.logger.Info("audit log flushed")
	})
	return nil
}

// Log enqueues an entry. It never blocks and never fails.
func (l *Logger) Log(workflowID uuid.UUID, organizationID *uuid.UUID, action string, details map[string]any) {
	entry := Entry{
		ID:             uuid.New(),
		WorkflowID:     workflowID,
		OrganizationID: organizationID,
		Action:         action,
		Details:        details,
		CreatedAt:      time.Now().UTC(),
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		l.drop(entry, "logger closed")
		return
	}

	select {
	case l.entries <- entry:
	default:
		l.drop(entry, "buffer full")
	}
}

// Close stops accepting entries and waits for queued entries to be written.
func (l *Logger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.closed = true
	close(l.entries)
	l.mu.Unlock()

	<-l.done
}

func (l *Logger) run() {
	defer close(l.done)
	for entry := range l.entries {
		if err := l.write(entry); err != nil {
			l.metrics.entries.WithLabelValues("failed").Inc()
			l.logger.Error("audit write failed",
				"workflow_id", entry.WorkflowID,
				"action", entry.Action,
				"error", err,
			)
			continue
		}
		l.metrics.entries.WithLabelValues("written").Inc()
	}
}

func (l *Logger) write(entry Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	return l.sink.Append(ctx, entry)
}

func (l *Logger) drop(entry Entry, reason string) {
	l.metrics.entries.WithLabelValues("dropped").Inc()
	l.logger.Warn("audit entry dropped",
		"reason", reason,
		"workflow_id", entry.WorkflowID,
		"action", entry.Action,
	)
}
