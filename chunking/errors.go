package chunking

import "errors"

var (
	// ErrChunkerConsumed is yielded when a chunker is iterated a second time.
	ErrChunkerConsumed = errors.New("chunker already consumed")

	// ErrFetch indicates the source document could not be downloaded.
	ErrFetch = errors.New("unable to fetch document")

	// ErrInvalidDocument indicates the downloaded bytes could not be parsed.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrTokenizerUnavailable indicates the subword encoding could not be loaded.
	ErrTokenizerUnavailable = errors.New("tokenizer unavailable")
)
