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

package database_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/openmerit/meritd/database"
	"github.com/openmerit/meritd/database/models"
	"github.com/openmerit/meritd/database/types"
)

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(&database.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected error creating database: %s", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck
	})
	return db
}

func TestAccountRoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	_, found, err := db.GetAccount("alice", nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if found {
		t.Fatalf("expected account to be absent")
	}
	err = db.SetAccount(&models.Account{Address: "alice", Balance: 123}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	account, found, err := db.GetAccount("alice", nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !found {
		t.Fatalf("expected account to be present")
	}
	if account.Balance != 123 {
		t.Fatalf("expected balance 123, got %d", account.Balance)
	}
}

func TestBlobRoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	_, err := db.GetBlob("missing", nil)
	if !errors.Is(err, types.ErrBlobKeyNotFound) {
		t.Fatalf("expected blob key not found, got %v", err)
	}
	want := []byte("a long free-text payload")
	txn := db.Transaction(true)
	if err := db.SetBlob("test/1", want, txn); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	got, err := db.GetBlob("test/1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("expected blob %q, got %q", want, got)
	}
	txn = db.Transaction(true)
	if err := db.DeleteBlob("test/1", txn); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	_, err = db.GetBlob("test/1", nil)
	if !errors.Is(err, types.ErrBlobKeyNotFound) {
		t.Fatalf("expected blob key not found after delete, got %v", err)
	}
}

func TestRollbackDiscardsBothStores(t *testing.T) {
	db := newTestDatabase(t)
	txn := db.Transaction(true)
	err := db.SetAccount(&models.Account{Address: "alice", Balance: 50}, txn)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := db.SetBlob("test/rollback", []byte("gone"), txn); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := txn.Rollback(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	_, found, err := db.GetAccount("alice", nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if found {
		t.Fatalf("expected account write to be rolled back")
	}
	_, err = db.GetBlob("test/rollback", nil)
	if !errors.Is(err, types.ErrBlobKeyNotFound) {
		t.Fatalf("expected blob write to be rolled back, got %v", err)
	}
}

func TestLedgerEntrySequence(t *testing.T) {
	db := newTestDatabase(t)
	seq, err := db.LatestLedgerSeq(nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if seq != 0 {
		t.Fatalf("expected empty log, got seq %d", seq)
	}
	for i := range 3 {
		entry := models.LedgerEntry{
			Op:        "test.op",
			Actor:     "alice",
			Timestamp: int64(1000 + i),
		}
		if err := db.AppendLedgerEntry(&entry, nil); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
	}
	seq, err = db.LatestLedgerSeq(nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if seq != 3 {
		t.Fatalf("expected latest seq 3, got %d", seq)
	}
	entries, err := db.LedgerEntriesAfter(1, 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after seq 1, got %d", len(entries))
	}
	if entries[0].Seq != 2 || entries[1].Seq != 3 {
		t.Fatalf(
			"expected seqs 2 and 3, got %d and %d",
			entries[0].Seq,
			entries[1].Seq,
		)
	}
}

func TestParamRoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	_, err := db.GetParam("missing", nil)
	if !errors.Is(err, models.ErrParamNotFound) {
		t.Fatalf("expected param not found, got %v", err)
	}
	if err := db.SetParam(&models.Param{Name: "test.param", UintValue: 42}, nil); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	param, err := db.GetParam("test.param", nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if param.UintValue != 42 {
		t.Fatalf("expected value 42, got %d", param.UintValue)
	}
	// Upsert by name updates the existing row
	if err := db.SetParam(&models.Param{Name: "test.param", UintValue: 99}, nil); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	param, err = db.GetParam("test.param", nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if param.UintValue != 99 {
		t.Fatalf("expected value 99, got %d", param.UintValue)
	}
}

func TestReopenPersists(t *testing.T) {
	dataDir := t.TempDir()
	db, err := database.New(&database.Config{DataDir: dataDir})
	if err != nil {
		t.Fatalf("unexpected error creating database: %s", err)
	}
	err = db.SetAccount(&models.Account{Address: "alice", Balance: 77}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	txn := db.Transaction(true)
	if err := db.SetBlob("test/persist", []byte("kept"), txn); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("unexpected error closing database: %s", err)
	}

	db, err = database.New(&database.Config{DataDir: dataDir})
	if err != nil {
		t.Fatalf("unexpected error reopening database: %s", err)
	}
	defer db.Close() //nolint:errcheck
	account, found, err := db.GetAccount("alice", nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !found || account.Balance != 77 {
		t.Fatalf("expected persisted account balance 77, got %+v", account)
	}
	val, err := db.GetBlob("test/persist", nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if string(val) != "kept" {
		t.Fatalf("expected persisted blob, got %q", val)
	}
}
