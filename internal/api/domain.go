package api

import (
	"fmt"

	"github.com/JaimeStill/intent/internal/approvals"
	"github.com/JaimeStill/intent/internal/audit"
	"github.com/JaimeStill/intent/internal/automation"
	"github.com/JaimeStill/intent/internal/blocking"
	"github.com/JaimeStill/intent/internal/clusters"
	"github.com/JaimeStill/intent/internal/execution"
	"github.com/JaimeStill/intent/internal/gates"
	"github.com/JaimeStill/intent/internal/generation"
	"github.com/JaimeStill/intent/internal/settings"
	"github.com/JaimeStill/intent/internal/workflows"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Workflows   workflows.System
	Approvals   approvals.System
	Clusters    clusters.System
	Settings    settings.System
	Audit       audit.System
	AuditLog    *audit.Logger
	Gates       *gates.Executor
	Blocking    *blocking.Resolver
	Dispatcher  *automation.Dispatcher
	Executions  execution.Store
	Coordinator *execution.Coordinator
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) (*Domain, error) {
	cfg := runtime.Config
	db := runtime.Database.Connection()
	logger := runtime.Logger

	auditStore := audit.NewStore(db, logger, runtime.Pagination)
	auditLog := audit.NewLogger(auditStore, &cfg.Audit, logger)

	settingsSystem := settings.New(
		db,
		settings.NewCache(cfg.Settings.CacheSize, cfg.Settings.CacheTTLDuration()),
		logger,
	)

	workflowsSystem := workflows.New(db, logger, runtime.Pagination)
	clustersSystem := clusters.New(db, settingsSystem, workflowsSystem, logger)

	dispatcher := automation.NewDispatcher(
		runtime.Messaging,
		settingsSystem,
		auditLog,
		cfg.Automation.Subject,
		logger,
	)

	approvalsSystem := approvals.New(db, workflowsSystem, auditLog, dispatcher, logger)

	executor := gates.NewStandardExecutor(workflowsSystem, approvalsSystem, clustersSystem, auditLog, logger)
	resolver := blocking.NewResolver(workflowsSystem, executor, auditLog, logger)

	schemas, err := execution.NewSchemas()
	if err != nil {
		return nil, fmt.Errorf("load step schemas: %w", err)
	}

	store := execution.NewStore(db, workflowsSystem)
	runners := execution.StandardRunners(&cfg.Execution, execution.RunnerDeps{
		Generator: generation.NewClient(&cfg.Generation, logger),
		Approvals: approvalsSystem,
		Validator: clustersSystem,
		Artifacts: runtime.Storage,
		Logger:    logger,
	})

	coordinator, err := execution.New(&cfg.Execution, execution.Deps{
		Store:    store,
		Schemas:  schemas,
		Runners:  runners,
		Gates:    executor,
		Trigger:  dispatcher,
		Recorder: auditLog,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create coordinator: %w", err)
	}

	return &Domain{
		Workflows:   workflowsSystem,
		Approvals:   approvalsSystem,
		Clusters:    clustersSystem,
		Settings:    settingsSystem,
		Audit:       auditStore,
		AuditLog:    auditLog,
		Gates:       executor,
		Blocking:    resolver,
		Dispatcher:  dispatcher,
		Executions:  store,
		Coordinator: coordinator,
	}, nil
}
