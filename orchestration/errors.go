package orchestration

import (
	"errors"
	"fmt"

	"github.com/poiesic/sharerag/auth"
	"github.com/poiesic/sharerag/core"
)

var (
	// ErrRepositoryRequired indicates an orchestrator built without a document repository.
	ErrRepositoryRequired = errors.New("document repository is required")

	// ErrIndexRequired indicates an orchestrator built without a search index client.
	ErrIndexRequired = errors.New("search index client is required")

	// ErrChunkersRequired indicates an orchestrator built without a chunker registry.
	ErrChunkersRequired = errors.New("chunker registry is required")

	// ErrInvalidMaxResults indicates a non-positive result limit.
	ErrInvalidMaxResults = errors.New("max results must be positive")
)

// errNoCallContext is returned for requests made without a CallContext.
var errNoCallContext = fmt.Errorf("%w: %w", core.ErrCredentialExchange, auth.ErrNoCredential)
