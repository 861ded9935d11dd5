package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/intent/internal/api"
	"github.com/JaimeStill/intent/internal/config"
	"github.com/JaimeStill/intent/internal/infrastructure"
	"github.com/JaimeStill/intent/pkg/database"
	"github.com/JaimeStill/intent/pkg/messaging"
	"github.com/JaimeStill/intent/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;"

func validConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{
		Database:  database.Config{Name: "intent", User: "intent", Password: "intent"},
		Storage:   storage.Config{ConnectionString: azuriteConnString},
		Messaging: messaging.Config{URL: "nats://127.0.0.1:1", MaxReconnects: 1, ReconnectWait: "10ms"},
	}
	cfg.Identity.Mode = "static"
	cfg.Identity.StaticOrganizationID = "7d444840-9dc0-11d1-b245-5ffdce74fad2"

	require.NoError(t, cfg.Server.Finalize())
	require.NoError(t, cfg.Database.Finalize(nil))
	require.NoError(t, cfg.Storage.Finalize(nil))
	require.NoError(t, cfg.Messaging.Finalize(nil))
	require.NoError(t, cfg.API.Finalize())
	require.NoError(t, cfg.Generation.Finalize(nil))
	require.NoError(t, cfg.Execution.Finalize(nil))
	require.NoError(t, cfg.Audit.Finalize(nil))
	require.NoError(t, cfg.Identity.Finalize(nil))
	require.NoError(t, cfg.Settings.Finalize(nil))
	require.NoError(t, cfg.Automation.Finalize(nil))
	return cfg
}

func setupInfra(t *testing.T, cfg *config.Config) *infrastructure.Infrastructure {
	t.Helper()
	infra, err := infrastructure.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { infra.Messaging.Conn().Close() })
	return infra
}

func TestNewRuntime(t *testing.T) {
	cfg := validConfig(t)
	runtime := api.NewRuntime(cfg, setupInfra(t, cfg))

	assert.Equal(t, 20, runtime.Pagination.DefaultPageSize)
	assert.Equal(t, 100, runtime.Pagination.MaxPageSize)
	assert.NotNil(t, runtime.Logger)
	assert.NotNil(t, runtime.Database)
	assert.NotNil(t, runtime.Storage)
	assert.NotNil(t, runtime.Messaging)
	assert.Same(t, cfg, runtime.Config)
}

func TestNewDomain(t *testing.T) {
	cfg := validConfig(t)
	domain, err := api.NewDomain(api.NewRuntime(cfg, setupInfra(t, cfg)))
	require.NoError(t, err)

	assert.NotNil(t, domain.Workflows)
	assert.NotNil(t, domain.Approvals)
	assert.NotNil(t, domain.Gates)
	assert.NotNil(t, domain.Blocking)
	assert.NotNil(t, domain.Coordinator)
	assert.NotNil(t, domain.Dispatcher)
	assert.NotNil(t, domain.AuditLog)
}

func TestNewModule(t *testing.T) {
	cfg := validConfig(t)
	m, domain, err := api.NewModule(cfg, setupInfra(t, cfg))
	require.NoError(t, err)
	require.NotNil(t, domain)
	assert.Equal(t, "/api", m.Prefix())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/workflows/7d444840-9dc0-11d1-b245-5ffdce74fad2/steps/publish", nil)
	m.Serve(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
