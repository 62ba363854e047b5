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

package storage

import (
	"encoding/json"
	"fmt"

	"github.com/poiesic/sharerag/core"
)

// MarshalRecord serializes an IndexedFragmentRecord to bytes.
// The encoding is the same JSON document shape the remote index accepts.
func MarshalRecord(record *core.IndexedFragmentRecord) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalRecord deserializes an IndexedFragmentRecord from bytes.
func UnmarshalRecord(data []byte) (*core.IndexedFragmentRecord, error) {
	var record core.IndexedFragmentRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

// ToItem projects a stored record into a query result with the given score.
func ToItem(record *core.IndexedFragmentRecord, score float64) core.IndexedItem {
	return core.IndexedItem{
		ID:          record.ID,
		Score:       score,
		Content:     record.Content,
		URI:         record.URI,
		Title:       record.Title,
		DocumentID:  record.DocumentID,
		DriveID:     record.DriveID,
		DriveItemID: record.DriveItemID,
		Snapshot:    record.Snapshot,
	}
}
