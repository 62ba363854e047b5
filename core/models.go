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
	"strconv"
	"time"
)

// CandidateDocument is a single hit returned by a repository search.
// Candidates are ephemeral and only live for the duration of one request.
type CandidateDocument struct {
	ID           string
	Name         string
	Title        string
	DriveID      string
	LastModified time.Time
	Rank         int
	Summary      string
}

// ItemInfo is the metadata the repository reports for a single drive item.
type ItemInfo struct {
	ID           string
	Name         string
	WebURL       string
	LastModified time.Time
	DownloadURL  string // Time-limited, pre-authenticated
}

// DocumentFragment is one chunk of a document's text.
// Snapshot names a retained page image in blob storage; empty when none was kept.
type DocumentFragment struct {
	Text     string
	Snapshot string
}

// HasSnapshot reports whether the fragment carries a retained image.
func (f DocumentFragment) HasSnapshot() bool {
	return f.Snapshot != ""
}

// IndexedFragmentRecord is the unit stored in the search index.
// ID is always DocumentID + "-" + Chunk.
type IndexedFragmentRecord struct {
	ID           string    `json:"id"`
	Chunk        int       `json:"chunk"`
	DocumentID   string    `json:"documentId"`
	DriveID      string    `json:"driveId"`
	DriveItemID  string    `json:"driveItemId"`
	Content      string    `json:"content"`
	Embedding    []float32 `json:"embedding"`
	URI          string    `json:"uri"`
	Title        string    `json:"title"`
	LastModified time.Time `json:"lastModified"`
	Snapshot     string    `json:"snapshot,omitempty"`
}

// IndexedItem is a ranked query result.
type IndexedItem struct {
	ID          string  `json:"id"`
	Score       float64 `json:"score"`
	Content     string  `json:"content"`
	URI         string  `json:"uri"`
	Title       string  `json:"title"`
	DocumentID  string  `json:"documentId"`
	DriveID     string  `json:"driveId"`
	DriveItemID string  `json:"driveItemId"`
	Snapshot    string  `json:"snapshot,omitempty"`
}

// FragmentID builds the composite record key for chunk n of a document.
func FragmentID(documentID string, chunk int) string {
	return documentID + "-" + strconv.Itoa(chunk)
}

// IndexState is the terminal state of an ensure-indexed run.
type IndexState int

const (
	// IndexStateFailed means the document could not be indexed.
	IndexStateFailed IndexState = iota
	// IndexStatePresent means the index already held a fresh copy.
	IndexStatePresent
	// IndexStateIndexed means the document was chunked, uploaded and observed in the index.
	IndexStateIndexed
)

// String returns a human-readable name for the state.
func (s IndexState) String() string {
	switch s {
	case IndexStatePresent:
		return "present"
	case IndexStateIndexed:
		return "indexed"
	default:
		return "failed"
	}
}

// IndexResult reports the outcome of ensuring one document is indexed.
// DocumentID is the safe id and is set even on failure.
type IndexResult struct {
	DocumentID string
	State      IndexState
	Err        error
}

// OK reports whether the document is available in the index.
func (r IndexResult) OK() bool {
	return r.State != IndexStateFailed && r.Err == nil
}
