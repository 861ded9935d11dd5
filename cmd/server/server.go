package main

import (
	"fmt"
	"time"

	"github.com/JaimeStill/intent/internal/automation"
	"github.com/JaimeStill/intent/internal/config"
	"github.com/JaimeStill/intent/internal/infrastructure"
)

type Server struct {
	cfg     *config.Config
	infra   *infrastructure.Infrastructure
	modules *Modules
	http    *httpServer
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	modules, err := NewModules(infra, cfg)
	if err != nil {
		return nil, err
	}

	router := buildRouter(infra)
	modules.Mount(router)

	infra.Logger.Info(
		"server initialized",
		"addr", cfg.Server.Addr(),
		"version", cfg.Version,
		"env", cfg.Env(),
	)

	return &Server{
		cfg:     cfg,
		infra:   infra,
		modules: modules,
		http:    newHTTPServer(&cfg.Server, router, infra.Logger),
	}, nil
}

func (s *Server) Start() error {
	s.infra.Logger.Info("starting service")

	if err := s.infra.Start(); err != nil {
		return err
	}

	if err := s.modules.Domain.AuditLog.Start(s.infra.Lifecycle); err != nil {
		return fmt.Errorf("audit start failed: %w", err)
	}

	if s.cfg.Automation.Worker() {
		worker := automation.NewWorker(
			s.infra.Messaging.Conn(),
			&s.cfg.Automation,
			s.modules.Domain.Coordinator,
			s.infra.Logger,
		)
		if err := worker.Start(s.infra.Lifecycle, s.cfg.Messaging.DrainTimeoutDuration()); err != nil {
			return fmt.Errorf("worker start failed: %w", err)
		}
	}

	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	go func() {
		s.infra.Lifecycle.WaitForStartup()
		s.infra.Logger.Info("all subsystems ready")
	}()

	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown")
	return s.infra.Lifecycle.Shutdown(timeout)
}
