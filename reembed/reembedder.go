// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/sharerag/ai"
	"github.com/poiesic/sharerag/core"
	"github.com/poiesic/sharerag/retry"
)

// Store reads and rewrites indexed fragment records.
// *badger.IndexRepository implements it.
type Store interface {
	Count(ctx context.Context) (int, error)
	ForEachBatch(ctx context.Context, batchSize int, fn func([]core.IndexedFragmentRecord) error) error
	Upload(ctx context.Context, records []core.IndexedFragmentRecord) error
}

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of fragments embedded per request
	BatchSize int

	// ReportInterval is how often to report progress (number of fragments)
	ReportInterval int

	// Retry governs embedding calls
	Retry retry.Policy
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		Retry:          retry.Policy{MaxAttempts: 3, BaseDelay: time.Second},
	}
}

// Reembedder rewrites the embedding of every fragment in a Store.
type Reembedder struct {
	store     Store
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder. Progress lines go to progress,
// typically os.Stderr. A nil config uses DefaultConfig.
func NewReembedder(store Store, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if progress == nil {
		progress = io.Discard
	}

	logger := slog.Default().With("component", "reembed")
	return &Reembedder{
		store:     store,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(store, embedder, config.Retry, logger),
		logger:    logger,
	}, nil
}

// Run reembeds every fragment and returns how many were rewritten.
func (r *Reembedder) Run(ctx context.Context) (int, error) {
	total, err := r.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count fragments: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No fragments found in index (0 fragments)\n")
		return 0, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d fragments (batch size: %d)\n", total, r.config.BatchSize)
	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.store.ForEachBatch(ctx, r.config.BatchSize, func(records []core.IndexedFragmentRecord) error {
		if err := r.processor.Process(ctx, records); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		processed += len(records)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		return processed, err
	}
	tracker.Finish()

	elapsed := tracker.Elapsed()
	r.logger.Info("reembedding complete", "fragments", processed, "elapsed", elapsed.Round(time.Millisecond))
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d fragments in %v\n", processed, elapsed.Round(time.Second))
	return processed, nil
}
