package api

import (
	"net/http"

	"github.com/JaimeStill/intent/internal/execution"
	"github.com/JaimeStill/intent/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, domain *Domain, runtime *Runtime) {
	routes.Register(
		mux,
		domain.Workflows.Handler().Routes(),
		domain.Approvals.Handler().Routes(),
		domain.Gates.Handler().Routes(),
		domain.Blocking.Handler().Routes(),
		domain.Clusters.Handler().Routes(),
		domain.Audit.Handler().Routes(),
		domain.Settings.Handler().Routes(),
		execution.NewHandler(
			domain.Coordinator,
			domain.Executions,
			runtime.Storage,
			&runtime.Config.Execution,
			runtime.Logger,
		).Routes(),
	)
}
