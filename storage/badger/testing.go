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

package badger

// NewMemoryStores creates an in-memory index and blob store for testing.
// The blob store signs links under http://localhost with a fixed key.
// Caller must close the backend when done.
func NewMemoryStores() (*IndexRepository, *BlobRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}

	blobs, err := NewBlobRepository(backend, "http://localhost/media", []byte("sharerag-test-signing-key"))
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	return NewIndexRepository(backend), blobs, backend, nil
}
