package execution_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/intent/internal/execution"
)

func TestConfigDefaults(t *testing.T) {
	cfg := &execution.Config{}
	require.NoError(t, cfg.Finalize(nil))

	assert.Equal(t, 5*time.Minute, cfg.TimeoutDuration())
	assert.Equal(t, 2*time.Minute, cfg.SoftTimeoutDuration())
	assert.Equal(t, int64(1<<20), cfg.MaxArticleSizeBytes())
	assert.Equal(t, "articles", cfg.ArtifactPrefix)
}

func TestConfigEnv(t *testing.T) {
	t.Setenv("TEST_EXEC_TIMEOUT", "10m")
	t.Setenv("TEST_EXEC_MAX_ARTICLE_SIZE", "256KB")

	cfg := &execution.Config{}
	require.NoError(t, cfg.Finalize(&execution.Env{
		Timeout:        "TEST_EXEC_TIMEOUT",
		MaxArticleSize: "TEST_EXEC_MAX_ARTICLE_SIZE",
	}))

	assert.Equal(t, 10*time.Minute, cfg.TimeoutDuration())
	assert.Equal(t, int64(256*1024), cfg.MaxArticleSizeBytes())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  execution.Config
	}{
		{"bad timeout", execution.Config{Timeout: "soon"}},
		{"soft above hard", execution.Config{Timeout: "1m", SoftTimeout: "2m"}},
		{"bad size", execution.Config{MaxArticleSize: "big"}},
		{"zero size", execution.Config{MaxArticleSize: "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			assert.Error(t, cfg.Finalize(nil))
		})
	}
}

func TestConfigMerge(t *testing.T) {
	base := &execution.Config{Timeout: "5m", SoftTimeout: "2m"}
	base.Merge(&execution.Config{Timeout: "8m"})

	assert.Equal(t, "8m", base.Timeout)
	assert.Equal(t, "2m", base.SoftTimeout)
}
