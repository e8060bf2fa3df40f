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
	"errors"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"gorm.io/gorm"
)

// Txn is a wrapper that coordinates the metadata and blob transactions.
// Metadata and blob are first-class siblings, not nested. Commit writes a
// shared timestamp into both stores so that a torn commit (process death
// between the two store commits) is detected at next startup.
type Txn struct {
	db          *Database
	metadataTxn *gorm.DB
	blobTxn     *badger.Txn
	lock        sync.Mutex
	finished    bool
	readWrite   bool
}

// NewTxn starts a transaction against both underlying stores
func NewTxn(db *Database, readWrite bool) *Txn {
	return &Txn{
		db:          db,
		metadataTxn: db.metadata.Begin(),
		blobTxn:     db.blob.NewTransaction(readWrite),
		readWrite:   readWrite,
	}
}

// Metadata returns the underlying metadata transaction handle
func (t *Txn) Metadata() *gorm.DB {
	return t.metadataTxn
}

// Blob returns the underlying blob transaction handle
func (t *Txn) Blob() *badger.Txn {
	return t.blobTxn
}

// Commit commits the metadata and blob transactions. The metadata store is
// committed first; a blob commit failure after a successful metadata commit
// is surfaced as a commit timestamp mismatch at next startup.
func (t *Txn) Commit() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.finished {
		return nil
	}
	t.finished = true
	if t.readWrite {
		if err := t.db.updateCommitTimestamp(t, time.Now().UnixMilli()); err != nil {
			t.metadataTxn.Rollback()
			t.blobTxn.Discard()
			return err
		}
	}
	if err := t.metadataTxn.Commit().Error; err != nil {
		t.blobTxn.Discard()
		return err
	}
	if err := t.blobTxn.Commit(); err != nil {
		return err
	}
	return nil
}

// Rollback discards both transactions. Safe to call after Commit.
func (t *Txn) Rollback() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.finished {
		return nil
	}
	t.finished = true
	var err error
	if rbErr := t.metadataTxn.Rollback().Error; rbErr != nil &&
		!errors.Is(rbErr, gorm.ErrInvalidTransaction) {
		err = rbErr
	}
	t.blobTxn.Discard()
	return err
}
