package sharerag

import "errors"

var (
	// ErrInvalidConfig indicates a configuration that fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTokenSourceUnavailable indicates Entra auth for the search index was
	// requested with an exchanger that cannot mint tokens for other resources.
	ErrTokenSourceUnavailable = errors.New("exchanger cannot provide a search token source")

	// ErrReembedUnsupported indicates a reembed request against a remote index.
	ErrReembedUnsupported = errors.New("reembedding requires the badger index backend")
)
