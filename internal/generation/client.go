package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/JaimeStill/intent/internal/faults"
	"github.com/JaimeStill/intent/pkg/formatting"
)

// ErrEmptyPayload indicates the service answered without a result payload.
var ErrEmptyPayload = errors.New("generation returned an empty result_payload")

// Client calls the generation service over HTTP with bounded retries.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	initial    time.Duration
	max        time.Duration
	maxBody    int64
	logger     *slog.Logger
}

// NewClient creates a Client from cfg.
func NewClient(cfg *Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeoutDuration(),
		},
		maxRetries: cfg.MaxRetries,
		initial:    cfg.InitialIntervalDuration(),
		max:        cfg.MaxIntervalDuration(),
		maxBody:    cfg.MaxResponseSizeBytes(),
		logger:     logger.With("system", "generation"),
	}
}

// Generate runs a step on the generation service. Network failures, 429 and
// 5xx responses are retried with exponential backoff; other failures are
// returned immediately. Exhausted retries surface as a transient service
// fault.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal generation request: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initial
	policy.MaxInterval = c.max
	policy.MaxElapsedTime = 0

	var (
		result   *Result
		attempts int
	)

	operation := func() error {
		attempts++
		r, err := c.do(ctx, body)
		if err != nil {
			return err
		}
		result = r
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("generation attempt failed",
			"workflow_id", req.WorkflowID,
			"step", req.Step,
			"attempt", attempts,
			"retry_in", wait,
			"error", err,
		)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return nil, faults.Transient(fmt.Sprintf("generation failed for %s after %d attempt(s)", req.Step, attempts), err)
	}

	c.logger.Info("generation completed",
		"workflow_id", req.WorkflowID,
		"step", req.Step,
		"attempts", attempts,
		"tokens_used", result.TokensUsed,
	)
	return result, nil
}

func (c *Client) do(ctx context.Context, body []byte) (*Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(data)) > c.maxBody {
		return nil, backoff.Permanent(fmt.Errorf("response exceeds %s", formatting.FormatBytes(c.maxBody, 0)))
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("generation service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}

	payload, err := normalizePayload(result.ResultPayload)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	result.ResultPayload = payload

	if result.GeneratedAt.IsZero() {
		result.GeneratedAt = time.Now().UTC()
	}
	return &result, nil
}

// normalizePayload accepts a payload that is either structured JSON or a
// string holding JSON, optionally inside a markdown code fence.
func normalizePayload(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrEmptyPayload
	}

	if trimmed[0] != '"' {
		return trimmed, nil
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return nil, fmt.Errorf("decode result_payload: %w", err)
	}

	parsed, err := formatting.Parse[json.RawMessage](text)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(parsed)) == 0 {
		return nil, ErrEmptyPayload
	}
	return parsed, nil
}
