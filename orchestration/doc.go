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

// Package orchestration brings repository documents into the search index on
// demand and answers queries over them.
//
// # Ensure-indexed
//
// For a candidate document the orchestrator computes its safe id and checks
// the index for a copy at least as new as the source. A missing or stale
// document is fetched, chunked, embedded and uploaded, then polled until the
// index reports it. EnsureIndexed reports the outcome as a core.IndexResult
// and never returns an error.
//
// # Concurrency
//
// Two bounded ants pools do the work. The index pool runs ensure-indexed for
// the candidates of a Search; the access pool runs the per-document access
// checks of SearchIndexed. Results keep candidate order and relevance order
// respectively, whatever order the workers finish in.
//
//	o, err := orchestration.NewOrchestrator(graphClient, indexClient, registry,
//	    orchestration.WithPoolSize(4),
//	    orchestration.WithHub(notify.LogHub{}),
//	)
//	defer o.Release()
//
//	items, err := o.Search(ctx, "budget 2025", "what was approved?", cc, 3)
package orchestration
