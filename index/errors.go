package index

import "errors"

var (
	// ErrIndexServiceRequired indicates a client built without an index backend.
	ErrIndexServiceRequired = errors.New("index service is required")

	// ErrEmbedderRequired indicates a client built without an embedder.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrEmbeddingCount indicates the embedder returned a different number of vectors than texts.
	ErrEmbeddingCount = errors.New("embedding count mismatch")

	// ErrNoFragments indicates every fragment of a document was too short to index.
	ErrNoFragments = errors.New("no indexable fragments")
)
