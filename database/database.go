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
	"io"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Config holds the database configuration
type Config struct {
	DataDir      string
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
}

// Database coordinates the two underlying stores: entity metadata in SQLite
// and heavy free-text payloads in Badger. Both are committed through a single
// Txn so that an operation's side effects land atomically or not at all.
type Database struct {
	logger       *slog.Logger
	metadata     *gorm.DB
	blob         *badger.DB
	dataDir      string
	promRegistry prometheus.Registerer
}

// New creates a new database instance. An empty DataDir selects fully
// in-memory storage for both stores, which is used by tests.
func New(cfg *Config) (*Database, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	metadataDb, err := openMetadataStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	blobDb, err := openBlobStore(cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}
	db := &Database{
		logger:       logger,
		metadata:     metadataDb,
		blob:         blobDb,
		dataDir:      cfg.DataDir,
		promRegistry: cfg.PromRegistry,
	}
	if err := db.checkCommitTimestamp(); err != nil {
		// Database is available for recovery, so return it with error
		return db, err
	}
	return db, nil
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.dataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Transaction starts a new database transaction and returns a handle to it
func (d *Database) Transaction(readWrite bool) *Txn {
	return NewTxn(d, readWrite)
}

// Update runs the provided function in a read-write transaction, committing
// on success and rolling back on error
func (d *Database) Update(fn func(*Txn) error) error {
	txn := d.Transaction(true)
	if err := fn(txn); err != nil {
		return errors.Join(err, txn.Rollback())
	}
	return txn.Commit()
}

// View runs the provided function in a read-only transaction
func (d *Database) View(fn func(*Txn) error) error {
	txn := d.Transaction(false)
	defer txn.Rollback() //nolint:errcheck
	return fn(txn)
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	if d.metadata != nil {
		if sqlDb, sqlErr := d.metadata.DB(); sqlErr == nil {
			err = errors.Join(err, sqlDb.Close())
		}
	}
	if d.blob != nil {
		err = errors.Join(err, d.blob.Close())
	}
	return err
}

// mapNotFound converts gorm's record-not-found into the model's sentinel
func mapNotFound(err error, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return err
}
