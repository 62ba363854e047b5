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

// Package ai provides abstractions for the embedding service used to index
// and query document fragments.
//
// The core domain depends on the Embedder interface rather than a concrete
// client, so indexing and retrieval can be tested without a live service.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible or Azure OpenAI APIs
//   - ai/mock: Test double returning deterministic vectors
//
// Public constructors (openai.NewEmbedder) return the INTERFACE type. The mock
// constructor returns the CONCRETE type so tests can inspect call counts and
// inject behavior.
//
// # Usage Example
//
//	config := ai.DefaultConfig()
//	embedder, err := openai.NewEmbedder(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vector, err := embedder.EmbedText(ctx, "quarterly revenue")
package ai
