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

package index

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/sharerag/ai"
	"github.com/poiesic/sharerag/core"
	"github.com/poiesic/sharerag/retry"
	"github.com/poiesic/sharerag/storage"
)

// MinFragmentLength is the longest fragment text treated as noise and dropped
// before embedding.
const MinFragmentLength = 50

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9_=-]`)

// SafeID builds the index key for an item in a namespace, replacing every
// character the index rejects with an underscore.
func SafeID(namespace, id string) string {
	return unsafeIDChars.ReplaceAllString(namespace+"-"+id, "_")
}

// Document identifies the source of a batch of fragments.
type Document struct {
	ID          string // Safe id
	DriveID     string
	DriveItemID string
	URI         string
	Title       string
}

// Client indexes document fragments with embeddings and runs hybrid queries.
type Client struct {
	service    storage.IndexService
	embedder   ai.Embedder
	policy     retry.Policy
	stalePurge bool
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client) error

// WithRetryPolicy sets the backoff applied to embedding and upload calls.
// Default is a single attempt with no retry.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) error {
		if policy.MaxAttempts <= 0 {
			return retry.ErrInvalidMaxAttempts
		}
		c.policy = policy
		return nil
	}
}

// WithStalePurge controls whether fragments left over from a longer previous
// version of a document are deleted after upload. Enabled by default.
func WithStalePurge(enabled bool) Option {
	return func(c *Client) error {
		c.stalePurge = enabled
		return nil
	}
}

// WithClock replaces the time source used to stamp uploaded records.
func WithClock(now func() time.Time) Option {
	return func(c *Client) error {
		c.now = now
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "index")
		return nil
	}
}

// NewClient creates an index client over service, embedding with embedder.
func NewClient(service storage.IndexService, embedder ai.Embedder, opts ...Option) (*Client, error) {
	if service == nil {
		return nil, ErrIndexServiceRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	c := &Client{
		service:    service,
		embedder:   embedder,
		policy:     retry.Once(),
		stalePurge: true,
		now:        time.Now,
		logger:     slog.Default().With("component", "index"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// IsIndexed reports whether the index holds fragments for safeID. When since
// is non-zero the stored stamp must also be at or after it.
func (c *Client) IsIndexed(ctx context.Context, safeID string, since time.Time) (bool, error) {
	result, err := c.service.Exists(ctx, storage.ForDocuments(safeID))
	if err != nil {
		return false, fmt.Errorf("%w: %w", core.ErrIndexQuery, err)
	}
	if !result.Found {
		return false, nil
	}
	if since.IsZero() {
		return true, nil
	}
	return !result.LastModified.Before(since), nil
}

// IndexWithEmbeddings embeds the fragments of doc in one batch and uploads a
// record per fragment. Fragments of MinFragmentLength characters or fewer are
// dropped first; the rest are numbered from zero in order. Returns the number
// of records uploaded. A document with no fragments left fails with
// ErrNoFragments. A failed upload is not rolled back.
func (c *Client) IndexWithEmbeddings(ctx context.Context, doc Document, fragments []core.DocumentFragment) (int, error) {
	kept := make([]core.DocumentFragment, 0, len(fragments))
	for _, fragment := range fragments {
		if len(fragment.Text) > MinFragmentLength {
			kept = append(kept, fragment)
		}
	}
	logger := c.logger.With("document", doc.ID)
	logger.Debug("indexing fragments", "total", len(fragments), "kept", len(kept))

	if len(kept) == 0 {
		// Existing records stay untouched.
		return 0, fmt.Errorf("%w: %w: %s", core.ErrIndexUpload, ErrNoFragments, doc.ID)
	}

	vectors, err := c.embed(ctx, kept)
	if err != nil {
		return 0, err
	}

	stamp := c.now().UTC()
	records := make([]core.IndexedFragmentRecord, len(kept))
	for i, fragment := range kept {
		records[i] = core.IndexedFragmentRecord{
			ID:           core.FragmentID(doc.ID, i),
			Chunk:        i,
			DocumentID:   doc.ID,
			DriveID:      doc.DriveID,
			DriveItemID:  doc.DriveItemID,
			Content:      fragment.Text,
			Embedding:    vectors[i],
			URI:          doc.URI,
			Title:        doc.Title,
			LastModified: stamp,
			Snapshot:     fragment.Snapshot,
		}
	}

	err = retry.WithBackoff(ctx, c.policy, logger, func(ctx context.Context) error {
		return c.service.Upload(ctx, records)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrIndexUpload, err)
	}

	if c.stalePurge {
		if err := c.purgeStale(ctx, doc.ID, len(kept)); err != nil {
			// The new upload stands even if stale fragments remain.
			logger.Warn("failed to purge stale fragments", "err", err)
		}
	}

	logger.Info("indexed document", "fragments", len(kept))
	return len(kept), nil
}

func (c *Client) embed(ctx context.Context, fragments []core.DocumentFragment) ([][]float32, error) {
	texts := make([]string, len(fragments))
	for i, fragment := range fragments {
		texts[i] = fragment.Text
	}

	var vectors [][]float32
	err := retry.WithBackoff(ctx, c.policy, c.logger, func(ctx context.Context) error {
		var err error
		vectors, err = c.embedder.EmbedTexts(ctx, texts)
		if err == nil && len(vectors) != len(texts) {
			return retry.Permanent(fmt.Errorf("%w: got %d for %d texts", ErrEmbeddingCount, len(vectors), len(texts)))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingService, err)
	}
	return vectors, nil
}

// purgeStale deletes fragments of documentID numbered count or above.
func (c *Client) purgeStale(ctx context.Context, documentID string, count int) error {
	ids, err := c.service.FragmentIDs(ctx, documentID)
	if err != nil {
		return err
	}
	prefix := documentID + "-"
	var stale []string
	for _, id := range ids {
		chunk, err := strconv.Atoi(strings.TrimPrefix(id, prefix))
		if err != nil || !strings.HasPrefix(id, prefix) {
			continue
		}
		if chunk >= count {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	c.logger.Debug("purging stale fragments", "document", documentID, "count", len(stale))
	return c.service.Delete(ctx, stale)
}

// Query embeds text and returns up to k fragments in descending relevance.
// A nil documentIDs leaves the query unrestricted.
func (c *Client) Query(ctx context.Context, text string, documentIDs []string, k int) ([]core.IndexedItem, error) {
	vector, err := c.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", core.ErrIndexQuery, core.ErrEmbeddingService, err)
	}

	items, err := c.service.Query(ctx, storage.QueryRequest{
		Text:   text,
		Vector: vector,
		Filter: storage.ForDocuments(documentIDs...),
		K:      k,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrIndexQuery, err)
	}
	c.logger.Debug("index query", "documents", len(documentIDs), "k", k, "hits", len(items))
	return items, nil
}
