// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialExchange indicates no downstream token could be obtained.
	ErrCredentialExchange = errors.New("credential exchange failed")

	// ErrRepositorySearch indicates the document repository rejected a search.
	ErrRepositorySearch = errors.New("repository search failed")

	// ErrItemFetch indicates item metadata could not be fetched.
	// It is also the only signal that the caller lacks read access to the item.
	ErrItemFetch = errors.New("unable to get item info")

	// ErrUnsupportedFileType indicates no chunker handles the file's format.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrIndexingTimeout indicates uploaded fragments never became visible.
	ErrIndexingTimeout = errors.New("indexing timed out")

	// ErrEmbeddingService indicates the embedding service failed.
	ErrEmbeddingService = errors.New("embedding service failed")

	// ErrIndexUpload indicates fragment records could not be uploaded.
	ErrIndexUpload = errors.New("index upload failed")

	// ErrIndexQuery indicates an index query failed.
	ErrIndexQuery = errors.New("index query failed")

	// ErrInvalidRecord indicates an IndexedFragmentRecord failed validation.
	ErrInvalidRecord = errors.New("invalid fragment record")

	// ErrEmptyDocumentID indicates the DocumentID field is empty.
	ErrEmptyDocumentID = errors.New("document id cannot be empty")

	// ErrFragmentIDMismatch indicates a record id does not match its document id and chunk.
	ErrFragmentIDMismatch = errors.New("fragment id does not match document id and chunk")
)

// RepositorySearchError carries the provider's status and error code.
type RepositorySearchError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RepositorySearchError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("repository search failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("repository search failed: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

func (e *RepositorySearchError) Unwrap() error {
	return ErrRepositorySearch
}

// UnsupportedFileTypeError names the extension that no chunker handles.
type UnsupportedFileTypeError struct {
	Extension string
}

func (e *UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("unsupported file type %q", e.Extension)
}

func (e *UnsupportedFileTypeError) Unwrap() error {
	return ErrUnsupportedFileType
}
