package generation_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/intent/internal/faults"
	"github.com/JaimeStill/intent/internal/generation"
	"github.com/JaimeStill/intent/internal/steps"
)

func newClient(t *testing.T, url string) *generation.Client {
	t.Helper()
	cfg := &generation.Config{
		BaseURL:         url,
		APIKey:          "secret",
		MaxRetries:      2,
		InitialInterval: "1ms",
		MaxInterval:     "5ms",
	}
	require.NoError(t, cfg.Finalize(nil))
	return generation.NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func request() generation.Request {
	return generation.Request{
		WorkflowID:     uuid.New(),
		OrganizationID: uuid.New(),
		Step:           steps.ICP,
		IdempotencyKey: "01HZX3J4K5M6N7P8Q9R0S1T2V3",
		Input:          json.RawMessage(`{"audience":"runners"}`),
	}
}

func TestGenerateSuccess(t *testing.T) {
	var got generation.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Write([]byte(`{"result_payload":{"personas":["trail runner"]},"tokens_used":812,"cost":0.0123,"generated_at":"2026-03-01T12:00:00Z"}`))
	}))
	defer server.Close()

	req := request()
	result, err := newClient(t, server.URL).Generate(context.Background(), req)
	require.NoError(t, err)

	assert.JSONEq(t, `{"personas":["trail runner"]}`, string(result.ResultPayload))
	assert.Equal(t, 812, result.TokensUsed)
	assert.InDelta(t, 0.0123, result.Cost, 1e-9)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), result.GeneratedAt)
	assert.Equal(t, req.Step, got.Step)
	assert.Equal(t, req.IdempotencyKey, got.IdempotencyKey)
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"result_payload":{"ok":true},"tokens_used":1}`))
	}))
	defer server.Close()

	result, err := newClient(t, server.URL).Generate(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load())
	assert.JSONEq(t, `{"ok":true}`, string(result.ResultPayload))
	assert.False(t, result.GeneratedAt.IsZero())
}

func TestGenerateExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newClient(t, server.URL).Generate(context.Background(), request())
	require.Error(t, err)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, faults.KindTransient, faults.KindOf(err))
}

func TestGenerateDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown step", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newClient(t, server.URL).Generate(context.Background(), request())
	require.Error(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, err.Error(), "unknown step")
	assert.Equal(t, faults.KindTransient, faults.KindOf(err))
}

func TestGenerateRejectsOversizedResponse(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"result_payload":{"body":"` + strings.Repeat("x", 2048) + `"}}`))
	}))
	defer server.Close()

	cfg := &generation.Config{BaseURL: server.URL, MaxRetries: 2, InitialInterval: "1ms", MaxResponseSize: "1KB"}
	require.NoError(t, cfg.Finalize(nil))
	assert.Equal(t, int64(1024), cfg.MaxResponseSizeBytes())

	_, err := generation.NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))).Generate(context.Background(), request())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "response exceeds 1 KB")
	assert.Equal(t, faults.KindTransient, faults.KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateParsesFencedStringPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ := json.Marshal("Here you go:\n```json\n{\"seeds\":[\"trail shoes\"]}\n```")
		w.Write([]byte(`{"result_payload":` + string(payload) + `,"tokens_used":5}`))
	}))
	defer server.Close()

	result, err := newClient(t, server.URL).Generate(context.Background(), request())
	require.NoError(t, err)
	assert.JSONEq(t, `{"seeds":["trail shoes"]}`, string(result.ResultPayload))
}

func TestGenerateRejectsEmptyPayload(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"result_payload":null,"tokens_used":5}`))
	}))
	defer server.Close()

	_, err := newClient(t, server.URL).Generate(context.Background(), request())
	require.Error(t, err)
	assert.ErrorIs(t, err, generation.ErrEmptyPayload)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateHonorsCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newClient(t, server.URL).Generate(ctx, request())
	assert.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	cfg := &generation.Config{}
	require.NoError(t, cfg.Finalize(nil))

	assert.Equal(t, "http://localhost:8090", cfg.BaseURL)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 90*time.Second, cfg.RequestTimeoutDuration())
	assert.Equal(t, 500*time.Millisecond, cfg.InitialIntervalDuration())
	assert.Equal(t, 10*time.Second, cfg.MaxIntervalDuration())

	assert.Equal(t, int64(16<<20), cfg.MaxResponseSizeBytes())

	bad := &generation.Config{MaxInterval: "often"}
	assert.Error(t, bad.Finalize(nil))

	bad = &generation.Config{MaxResponseSize: "lots"}
	assert.Error(t, bad.Finalize(nil))
}
