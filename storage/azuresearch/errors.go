package azuresearch

import (
	"errors"
	"fmt"
)

var (
	// ErrEndpointRequired indicates a client built without a service endpoint.
	ErrEndpointRequired = errors.New("search endpoint is required")

	// ErrIndexNameRequired indicates a client built without an index name.
	ErrIndexNameRequired = errors.New("search index name is required")

	// ErrCredentialRequired indicates a client with neither an api key nor a token source.
	ErrCredentialRequired = errors.New("search api key or token source is required")

	// ErrPartialUpload indicates the service rejected some documents of a batch.
	ErrPartialUpload = errors.New("some documents were not indexed")
)

// StatusError is a non-2xx response from the search service.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("search service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("search service returned status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}
