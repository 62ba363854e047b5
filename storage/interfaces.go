package storage

import (
	"context"
	"time"

	"github.com/poiesic/sharerag/core"
)

// ExistsResult reports whether any record matched a filter and, if so, the
// most recent last-modified stamp among the matches.
type ExistsResult struct {
	Found        bool
	LastModified time.Time
}

// QueryRequest is a hybrid text plus vector query.
type QueryRequest struct {
	// Text is matched against record content.
	Text string
	// Vector is the query embedding. Records are ranked by similarity to it.
	Vector []float32
	// Filter restricts the candidate records. The zero Filter matches all.
	Filter Filter
	// K caps the number of results.
	K int
}

// IndexService stores fragment records and answers hybrid queries over them.
// Implementations must be thread-safe and support concurrent access.
type IndexService interface {
	// Exists reports whether any record matches the filter.
	Exists(ctx context.Context, filter Filter) (*ExistsResult, error)

	// Upload inserts or replaces records by ID.
	Upload(ctx context.Context, records []core.IndexedFragmentRecord) error

	// Query returns at most K matches in descending score order.
	Query(ctx context.Context, req QueryRequest) ([]core.IndexedItem, error)

	// FragmentIDs lists the record IDs stored for a document.
	FragmentIDs(ctx context.Context, documentID string) ([]string, error)

	// Delete removes records by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error
}

// BlobStore holds page snapshots and hands out time-limited links to them.
type BlobStore interface {
	// Put stores data under name, replacing any previous blob.
	Put(ctx context.Context, name string, data []byte) error

	// Get returns the blob stored under name.
	// Returns ErrNotFound if no such blob exists.
	Get(ctx context.Context, name string) ([]byte, error)

	// Link returns a URL granting temporary read access to the blob.
	Link(ctx context.Context, name string) (string, error)
}
