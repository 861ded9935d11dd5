package infrastructure_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/intent/internal/config"
	"github.com/JaimeStill/intent/internal/infrastructure"
	"github.com/JaimeStill/intent/pkg/database"
	"github.com/JaimeStill/intent/pkg/messaging"
	"github.com/JaimeStill/intent/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;"

func validConfig() *config.Config {
	return &config.Config{
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			Name:            "intent",
			User:            "intent",
			Password:        "intent",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: "15m",
			ConnTimeout:     "5s",
		},
		Storage: storage.Config{
			ContainerName:    "articles",
			ConnectionString: azuriteConnString,
		},
		Messaging: messaging.Config{
			URL:           "nats://127.0.0.1:1",
			Name:          "intent-test",
			MaxReconnects: 1,
			ReconnectWait: "10ms",
			DrainTimeout:  "100ms",
		},
		Version: "0.1.0",
	}
}

func TestNew(t *testing.T) {
	infra, err := infrastructure.New(validConfig())
	require.NoError(t, err)
	t.Cleanup(func() { infra.Messaging.Conn().Close() })

	assert.NotNil(t, infra.Lifecycle)
	assert.NotNil(t, infra.Logger)
	assert.NotNil(t, infra.Database)
	assert.NotNil(t, infra.Storage)
	assert.NotNil(t, infra.Messaging)
	assert.NotNil(t, infra.Database.Connection())
}

func TestNewInvalidStorageConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.ConnectionString = "not-a-connection-string"

	_, err := infrastructure.New(cfg)
	assert.ErrorContains(t, err, "storage init failed")
}

func TestStart(t *testing.T) {
	infra, err := infrastructure.New(validConfig())
	require.NoError(t, err)
	t.Cleanup(func() { infra.Messaging.Conn().Close() })

	require.NoError(t, infra.Start())
}
