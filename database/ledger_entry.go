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
	"github.com/openmerit/meritd/database/models"
)

// AppendLedgerEntry appends a row to the operation log. The sequence number
// is assigned by the store and written back into the entry.
func (d *Database) AppendLedgerEntry(
	entry *models.LedgerEntry,
	txn *Txn,
) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Metadata().Create(entry).Error
}

// LatestLedgerSeq returns the highest assigned ledger sequence number, or 0
// for an empty log
func (d *Database) LatestLedgerSeq(txn *Txn) (uint64, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var ret []models.LedgerEntry
	result := txn.Metadata().
		Order("seq DESC").
		Limit(1).
		Find(&ret)
	if result.Error != nil {
		return 0, result.Error
	}
	if len(ret) == 0 {
		return 0, nil
	}
	return ret[0].Seq, nil
}

// LedgerEntriesAfter returns up to limit log rows with sequence numbers
// greater than afterSeq, in sequence order
func (d *Database) LedgerEntriesAfter(
	afterSeq uint64,
	limit int,
	txn *Txn,
) ([]models.LedgerEntry, error) {
	var ret []models.LedgerEntry
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	query := txn.Metadata().
		Where("seq > ?", afterSeq).
		Order("seq")
	if limit > 0 {
		query = query.Limit(limit)
	}
	result := query.Find(&ret)
	return ret, result.Error
}
