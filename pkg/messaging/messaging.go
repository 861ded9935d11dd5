// Package messaging provides a NATS connection with lifecycle coordination.
package messaging

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/JaimeStill/intent/pkg/lifecycle"
)

// System manages the NATS connection and lifecycle coordination.
type System interface {
	// Conn returns the underlying NATS connection.
	Conn() *nats.Conn
	// Publish sends data on subject without waiting for delivery.
	Publish(subject string, data []byte) error
	// Start registers shutdown hooks with the lifecycle coordinator.
	Start(lc *lifecycle.Coordinator) error
}

type messaging struct {
	conn         *nats.Conn
	logger       *slog.Logger
	drainTimeout time.Duration
}

// New connects to NATS with the given configuration. Connection failures at
// startup are retried in the background rather than returned.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	logger = logger.With("system", "messaging")

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWaitDuration()),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats at %s: %w", cfg.URL, err)
	}

	return &messaging{
		conn:         conn,
		logger:       logger,
		drainTimeout: cfg.DrainTimeoutDuration(),
	}, nil
}

func (m *messaging) Conn() *nats.Conn {
	return m.conn
}

func (m *messaging) Publish(subject string, data []byte) error {
	return m.conn.Publish(subject, data)
}

func (m *messaging) Start(lc *lifecycle.Coordinator) error {
	m.logger.Info("starting messaging connection")

	lc.OnShutdown(func() {
		m.logger.Info("draining messaging connection")

		closed := make(chan struct{})
		m.conn.SetClosedHandler(func(*nats.Conn) { close(closed) })

		if err := m.conn.Drain(); err != nil {
			m.logger.Error("messaging drain failed", "error", err)
			m.conn.Close()
			return
		}

		select {
		case <-closed:
			m.logger.Info("messaging connection closed")
		case <-time.After(m.drainTimeout):
			m.logger.Warn("messaging drain timed out")
			m.conn.Close()
		}
	})

	return nil
}
