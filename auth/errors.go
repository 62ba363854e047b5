package auth

import "errors"

var (
	// ErrExchangerRequired is returned when no Exchanger is supplied.
	ErrExchangerRequired = errors.New("credential exchanger is required")

	// ErrNoCredential is returned when a context has neither a token nor a user credential.
	ErrNoCredential = errors.New("no credential available")

	// ErrInvalidEntraConfig is returned when tenant, client id or secret is missing.
	ErrInvalidEntraConfig = errors.New("tenant id, client id and client secret are required")
)
