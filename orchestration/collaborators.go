package orchestration

import (
	"context"
	"time"

	"github.com/poiesic/sharerag/auth"
	"github.com/poiesic/sharerag/chunking"
	"github.com/poiesic/sharerag/core"
	"github.com/poiesic/sharerag/index"
)

// Repository finds candidate documents and fetches item metadata.
// *graph.Client implements it.
type Repository interface {
	Search(ctx context.Context, query string, cc *auth.CallContext, maxResults int) ([]core.CandidateDocument, error)
	GetItem(ctx context.Context, driveID, itemID string, cc *auth.CallContext) (core.ItemInfo, error)
}

// Index checks, fills and queries the search index.
// *index.Client implements it.
type Index interface {
	IsIndexed(ctx context.Context, safeID string, since time.Time) (bool, error)
	IndexWithEmbeddings(ctx context.Context, doc index.Document, fragments []core.DocumentFragment) (int, error)
	Query(ctx context.Context, text string, documentIDs []string, k int) ([]core.IndexedItem, error)
}

// Chunkers selects a chunker for a file by name.
// *chunking.Registry implements it.
type Chunkers interface {
	ForFile(name, downloadURL string) (chunking.Chunker, error)
}
