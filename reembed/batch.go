package reembed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/sharerag/ai"
	"github.com/poiesic/sharerag/core"
	"github.com/poiesic/sharerag/retry"
)

// BatchProcessor embeds one batch of fragments and writes it back.
type BatchProcessor struct {
	store    Store
	embedder ai.Embedder
	policy   retry.Policy
	logger   *slog.Logger
}

// NewBatchProcessor creates a batch processor that retries embedding calls
// according to policy.
func NewBatchProcessor(store Store, embedder ai.Embedder, policy retry.Policy, logger *slog.Logger) *BatchProcessor {
	if policy.MaxAttempts <= 0 {
		policy = DefaultConfig().Retry
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		store:    store,
		embedder: embedder,
		policy:   policy,
		logger:   logger,
	}
}

// Process replaces the embedding of each record with a normalized vector of
// its content and uploads the batch. records is modified in place.
func (bp *BatchProcessor) Process(ctx context.Context, records []core.IndexedFragmentRecord) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i := range records {
		texts[i] = records[i].Content
	}

	var embeddings [][]float32
	err := retry.WithBackoff(ctx, bp.policy, bp.logger, func(ctx context.Context) error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.policy.MaxAttempts, err)
	}
	if len(embeddings) != len(records) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCount, len(records), len(embeddings))
	}

	for i := range records {
		records[i].Embedding = Normalize(embeddings[i])
	}
	if err := bp.store.Upload(ctx, records); err != nil {
		return fmt.Errorf("failed to update fragments: %w", err)
	}
	return nil
}
