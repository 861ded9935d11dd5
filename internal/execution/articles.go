package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/intent/internal/faults"
	"github.com/JaimeStill/intent/pkg/formatting"
)

const (
	articleContentType = "text/markdown; charset=utf-8"
	uploadConcurrency  = 4
)

// ArtifactStore persists article bodies.
type ArtifactStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ArticlesRunner generates articles and moves each body into blob storage,
// leaving the artifact key and size in the stored payload.
type ArticlesRunner struct {
	generation *GenerationRunner
	artifacts  ArtifactStore
	prefix     string
	maxSize    int64
	logger     *slog.Logger
}

// NewArticlesRunner creates an ArticlesRunner.
func NewArticlesRunner(generation *GenerationRunner, artifacts ArtifactStore, cfg *Config, logger *slog.Logger) *ArticlesRunner {
	return &ArticlesRunner{
		generation: generation,
		artifacts:  artifacts,
		prefix:     cfg.ArtifactPrefix,
		maxSize:    cfg.MaxArticleSizeBytes(),
		logger:     logger.With("runner", "articles"),
	}
}

// ArtifactKey returns the blob key for an article artifact.
func ArtifactKey(prefix string, workflowID uuid.UUID, name string) string {
	return path.Join(prefix, workflowID.String(), name)
}

type article struct {
	Title       string `json:"title"`
	Subtopic    string `json:"subtopic,omitempty"`
	Body        string `json:"body,omitempty"`
	ArtifactKey string `json:"artifact_key,omitempty"`
	Artifact    string `json:"artifact,omitempty"`
	Size        string `json:"size,omitempty"`
}

type articlesPayload struct {
	Articles []article `json:"articles"`
}

// Run generates the articles and uploads their bodies. Uploads made before a
// failure are removed.
func (a *ArticlesRunner) Run(ctx context.Context, in RunInput) (*Output, error) {
	out, err := a.generation.Run(ctx, in)
	if err != nil {
		return nil, err
	}

	var p articlesPayload
	if err := json.Unmarshal(out.Payload, &p); err != nil {
		return nil, faults.Transient("unusable articles output", err)
	}

	for i, art := range p.Articles {
		size := int64(len(art.Body))
		if strings.TrimSpace(art.Body) == "" {
			return nil, faults.Transient(fmt.Sprintf("article %d has no body", i+1), nil)
		}
		if size > a.maxSize {
			return nil, faults.Transient(fmt.Sprintf(
				"article %d is %s, above the %s limit",
				i+1,
				formatting.FormatBytes(size, 1),
				formatting.FormatBytes(a.maxSize, 1),
			), nil)
		}
	}

	uploaded := make([]string, len(p.Articles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)

	for i := range p.Articles {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			art := &p.Articles[i]
			name := ulid.Make().String() + ".md"
			key := ArtifactKey(a.prefix, in.Workflow.ID, name)

			if err := a.artifacts.Upload(gctx, key, strings.NewReader(art.Body), articleContentType); err != nil {
				return fmt.Errorf("article %d: %w", i+1, err)
			}

			uploaded[i] = key
			art.Size = formatting.FormatBytes(int64(len(art.Body)), 1)
			art.Artifact = name
			art.ArtifactKey = key
			art.Body = ""
			return nil
		})
	}

	err = g.Wait()
	for _, key := range uploaded {
		if key != "" {
			out.Artifacts = append(out.Artifacts, key)
		}
	}
	if err != nil {
		a.Cleanup(ctx, out.Artifacts)
		return nil, faults.Transient("upload articles", err)
	}

	payload, err := json.Marshal(p)
	if err != nil {
		a.Cleanup(ctx, out.Artifacts)
		return nil, fmt.Errorf("marshal articles: %w", err)
	}
	out.Payload = payload
	return out, nil
}

// Cleanup deletes uploaded artifacts. Failures are logged, not returned.
func (a *ArticlesRunner) Cleanup(ctx context.Context, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := a.artifacts.Delete(ctx, key); err != nil {
			a.logger.Warn("artifact cleanup failed", "key", key, "error", err)
		}
	}
}
