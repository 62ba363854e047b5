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

// Package storage provides the storage abstraction layer for sharerag.
//
// This package defines the IndexService and BlobStore interfaces that decouple
// indexing and retrieval from the concrete backend. Two backends exist:
//
//   - storage/badger: embedded BadgerDB index and blob store, for local use and tests
//   - storage/azuresearch: Azure AI Search over its REST API
//
// # Filters
//
// Filter restricts operations to the fragments of specific documents. Local
// backends evaluate it with Matches, and the remote backend renders it with
// OData:
//
//	storage.ForDocuments("drive-a").OData()        // documentId eq 'drive-a'
//	storage.ForDocuments("a", "b").OData()         // search.in(documentId, 'a,b', ',')
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access from
// multiple goroutines. All methods accept context.Context for cancellation.
package storage
