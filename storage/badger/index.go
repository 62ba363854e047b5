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

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/sharerag/core"
	"github.com/poiesic/sharerag/storage"
)

// IndexRepository implements storage.IndexService on BadgerDB.
// Queries are brute-force: every candidate record is scored in process.
type IndexRepository struct {
	backend *Backend
}

var _ storage.IndexService = (*IndexRepository)(nil)

// NewIndexRepository creates a new IndexRepository.
func NewIndexRepository(backend *Backend) *IndexRepository {
	return &IndexRepository{backend: backend}
}

// Upload inserts or replaces records by ID. Records are validated first; an
// invalid record aborts the whole upload.
func (r *IndexRepository) Upload(ctx context.Context, records []core.IndexedFragmentRecord) error {
	if err := core.ValidateRecords(records); err != nil {
		return err
	}
	return r.backend.WithTransaction(ctx, func(ctx context.Context, tx *badger.Txn) error {
		for i := range records {
			record := &records[i]
			key := makeRecordKey(record.ID)

			// A record moving between documents must leave no stale link behind.
			old, err := readRecord(tx, key)
			if err != nil {
				return err
			}
			if old != nil && old.DocumentID != record.DocumentID {
				if err := tx.Delete(makeDocumentKey(old.DocumentID, old.ID)); err != nil {
					return err
				}
			}

			value, err := storage.MarshalRecord(record)
			if err != nil {
				return err
			}
			if err := tx.Set(key, value); err != nil {
				return err
			}
			if err := tx.Set(makeDocumentKey(record.DocumentID, record.ID), []byte{}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Exists reports whether any record matches the filter, with the latest
// last-modified stamp among the matches.
func (r *IndexRepository) Exists(ctx context.Context, filter storage.Filter) (*storage.ExistsResult, error) {
	result := &storage.ExistsResult{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return r.eachRecord(ctx, tx, filter, func(record *core.IndexedFragmentRecord) error {
			result.Found = true
			if record.LastModified.After(result.LastModified) {
				result.LastModified = record.LastModified
			}
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Query scores every record passing the filter and returns the top K.
// The score is the cosine similarity to the query vector, boosted when the
// content contains every non-stop word of the query text.
func (r *IndexRepository) Query(ctx context.Context, req storage.QueryRequest) ([]core.IndexedItem, error) {
	if req.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, req.K)
	}
	terms := queryTerms(tokenizeAndFilter(req.Text))

	var results []core.IndexedItem
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return r.eachRecord(ctx, tx, req.Filter, func(record *core.IndexedFragmentRecord) error {
			score := cosine(req.Vector, record.Embedding)
			if terms.containsAll(record.Content) {
				score += textMatchBoost
			}
			results = append(results, storage.ToItem(record, score))
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b core.IndexedItem) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(results) > req.K {
		results = results[:req.K]
	}
	return results, nil
}

// FragmentIDs lists the record IDs stored for a document, in key order.
func (r *IndexRepository) FragmentIDs(ctx context.Context, documentID string) ([]string, error) {
	var ids []string
	prefix := makePartialDocumentKey(documentID)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, prefix, true, func(key []byte, _ *badger.Item) error {
			ids = append(ids, string(key[len(prefix):]))
			return nil
		})
	}, false)
	return ids, err
}

// Delete removes records and their document links. Unknown IDs are ignored.
func (r *IndexRepository) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.backend.WithTransaction(ctx, func(ctx context.Context, tx *badger.Txn) error {
		for _, id := range ids {
			key := makeRecordKey(id)
			record, err := readRecord(tx, key)
			if err != nil {
				return err
			}
			if record == nil {
				continue
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
			if err := tx.Delete(makeDocumentKey(record.DocumentID, id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the total number of records stored.
func (r *IndexRepository) Count(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(indexRecordPrefix), true, func([]byte, *badger.Item) error {
			count++
			return nil
		})
	}, false)
	return count, err
}

// ForEachBatch visits every record in key order, at most batchSize at a time.
// Each batch is read in its own transaction, so fn may write back to the
// repository while iteration continues.
func (r *IndexRepository) ForEachBatch(ctx context.Context, batchSize int, fn func([]core.IndexedFragmentRecord) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	var ids []string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(indexRecordPrefix), true, func(key []byte, _ *badger.Item) error {
			ids = append(ids, string(key[len(indexRecordPrefix):]))
			return nil
		})
	}, false)
	if err != nil {
		return err
	}

	for start := 0; start < len(ids); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := ids[start:min(start+batchSize, len(ids))]
		batch := make([]core.IndexedFragmentRecord, 0, len(chunk))
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			for _, id := range chunk {
				record, err := readRecord(tx, makeRecordKey(id))
				if err != nil {
					return err
				}
				// Deleted since the key scan.
				if record == nil {
					continue
				}
				batch = append(batch, *record)
			}
			return nil
		}, false)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			continue
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

// eachRecord visits every record passing the filter. With an empty filter it
// scans the primary keys; otherwise it walks each document's links.
func (r *IndexRepository) eachRecord(ctx context.Context, tx *badger.Txn, filter storage.Filter, fn func(*core.IndexedFragmentRecord) error) error {
	if filter.IsEmpty() {
		return scanPrefix(tx, []byte(indexRecordPrefix), false, func(_ []byte, item *badger.Item) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			record, err := decodeItem(item)
			if err != nil {
				return err
			}
			return fn(record)
		})
	}

	seen := make(map[string]bool, len(filter.DocumentIDs))
	for _, documentID := range filter.DocumentIDs {
		if seen[documentID] {
			continue
		}
		seen[documentID] = true

		prefix := makePartialDocumentKey(documentID)
		err := scanPrefix(tx, prefix, true, func(key []byte, _ *badger.Item) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			record, err := readRecord(tx, makeRecordKey(string(key[len(prefix):])))
			if err != nil {
				return err
			}
			if record == nil {
				return nil
			}
			return fn(record)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// readRecord loads a record by key, returning nil when it does not exist.
func readRecord(tx *badger.Txn, key []byte) (*core.IndexedFragmentRecord, error) {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeItem(item)
}

func decodeItem(item *badger.Item) (*core.IndexedFragmentRecord, error) {
	var record *core.IndexedFragmentRecord
	err := item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalRecord(val)
		return err
	})
	return record, err
}
