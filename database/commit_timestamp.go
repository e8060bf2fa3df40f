// Copyright 2025 OpenMerit Labs
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

package database

import (
	"encoding/binary"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const commitTimestampBlobKey = "internal/commit_timestamp"

type commitTimestampRow struct {
	ID        uint `gorm:"primarykey"`
	Timestamp int64
}

func (commitTimestampRow) TableName() string {
	return "commit_timestamp"
}

// CommitTimestampError indicates the metadata and blob stores were not
// committed together, most likely from a crash between the two commits
type CommitTimestampError struct {
	MetadataTimestamp int64
	BlobTimestamp     int64
}

func (e CommitTimestampError) Error() string {
	return fmt.Sprintf(
		"commit timestamp mismatch: %d (metadata) != %d (blob)",
		e.MetadataTimestamp,
		e.BlobTimestamp,
	)
}

func (d *Database) checkCommitTimestamp() error {
	if err := d.metadata.AutoMigrate(&commitTimestampRow{}); err != nil {
		return fmt.Errorf("failed to migrate commit timestamp: %w", err)
	}
	var row commitTimestampRow
	result := d.metadata.First(&row, 1)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			// Fresh database
			return nil
		}
		return fmt.Errorf(
			"failed to get metadata commit timestamp: %w",
			result.Error,
		)
	}
	var blobTimestamp int64
	err := d.blob.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(commitTimestampBlobKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			blobTimestamp = int64(binary.BigEndian.Uint64(val)) //nolint:gosec
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			blobTimestamp = 0
		} else {
			return fmt.Errorf("failed to get blob commit timestamp: %w", err)
		}
	}
	if blobTimestamp != row.Timestamp {
		return CommitTimestampError{
			MetadataTimestamp: row.Timestamp,
			BlobTimestamp:     blobTimestamp,
		}
	}
	return nil
}

func (d *Database) updateCommitTimestamp(txn *Txn, timestamp int64) error {
	row := commitTimestampRow{ID: 1, Timestamp: timestamp}
	result := txn.Metadata().
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"timestamp"}),
		}).
		Create(&row)
	if result.Error != nil {
		return result.Error
	}
	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, uint64(timestamp)) //nolint:gosec
	return txn.Blob().Set([]byte(commitTimestampBlobKey), val)
}
