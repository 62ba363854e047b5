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

// Package chunking turns downloaded documents into ordered text fragments.
//
// Each supported file format is a Format registered in a Registry by
// extension. The registry hands out single-use Chunkers:
//
//	registry := chunking.NewRegistry(
//	    &chunking.DocxFormat{Fetcher: fetcher, Counter: counter, TokenLimit: 500},
//	    &chunking.PDFFormat{Fetcher: fetcher, Store: blobs},
//	)
//	chunker, err := registry.ForFile(item.Name, item.DownloadURL)
//	for fragment, err := range chunker.Split(ctx, safeID) {
//	    ...
//	}
//
// Word documents are packed paragraph by paragraph up to a token budget.
// PDF documents produce one fragment per page; pages that look like
// diagrams or scans (see package vision) are rendered to PNG and stored as
// snapshots named "{prefix}-{page}.png".
package chunking
