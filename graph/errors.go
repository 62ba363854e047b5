package graph

import "errors"

var (
	// ErrTokenResolverRequired is returned when NewClient receives no token resolver.
	ErrTokenResolverRequired = errors.New("token resolver is required")

	// ErrInvalidMaxResults is returned when a search asks for fewer than one hit.
	ErrInvalidMaxResults = errors.New("maxResults must be greater than 0")
)
