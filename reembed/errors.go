package reembed

import "errors"

var (
	// ErrStoreRequired is returned when no fragment store is provided.
	ErrStoreRequired = errors.New("fragment store is required")

	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrEmbeddingCount is returned when the embedder answers a batch with the
	// wrong number of vectors.
	ErrEmbeddingCount = errors.New("embedding count mismatch")
)
