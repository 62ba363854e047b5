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
	"fmt"
)

// ValidateRecord validates an IndexedFragmentRecord before upload.
// Returns an error wrapping ErrInvalidRecord if validation fails.
func ValidateRecord(record *IndexedFragmentRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if record.DocumentID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyDocumentID)
	}

	if record.Chunk < 0 {
		return fmt.Errorf("%w: negative chunk %d", ErrInvalidRecord, record.Chunk)
	}

	if record.ID != FragmentID(record.DocumentID, record.Chunk) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidRecord, ErrFragmentIDMismatch, record.ID)
	}

	return nil
}

// ValidateRecords validates every record in order and stops at the first failure.
func ValidateRecords(records []IndexedFragmentRecord) error {
	for i := range records {
		if err := ValidateRecord(&records[i]); err != nil {
			return err
		}
	}
	return nil
}
