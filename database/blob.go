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
	"fmt"
	"log/slog"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/openmerit/meritd/database/types"
)

// Blob key prefixes. Free-text payloads too heavy for metadata rows live in
// the blob store keyed by entity id.
const (
	blobKeyEvaluationContent    = "evaluation/%d/content"
	blobKeyApplicationCover     = "application/%d/cover"
	blobKeyApplicationPortfolio = "application/%d/portfolio"
	blobKeyPoolDescription      = "pool/%d/description"
	blobKeyProposalDescription  = "proposal/%d/description"
	blobKeyCredentialEvidence   = "credential/%d/evidence/%d"
)

// badgerLogger wraps slog for use by badger
type badgerLogger struct {
	logger *slog.Logger
}

func (b badgerLogger) Errorf(msg string, args ...any) {
	b.logger.Error(fmt.Sprintf(msg, args...), "component", "blob")
}

func (b badgerLogger) Warningf(msg string, args ...any) {
	b.logger.Warn(fmt.Sprintf(msg, args...), "component", "blob")
}

func (b badgerLogger) Infof(msg string, args ...any) {
	b.logger.Info(fmt.Sprintf(msg, args...), "component", "blob")
}

func (b badgerLogger) Debugf(msg string, args ...any) {
	b.logger.Debug(fmt.Sprintf(msg, args...), "component", "blob")
}

// openBlobStore opens the Badger blob store. Uses an in-memory store if
// dataDir is empty.
func openBlobStore(dataDir string, logger *slog.Logger) (*badger.DB, error) {
	var opts badger.Options
	if dataDir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(filepath.Join(dataDir, "blob"))
	}
	opts = opts.WithLogger(badgerLogger{logger: logger})
	blobDb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}
	return blobDb, nil
}

// GetBlob retrieves a raw blob value by key
func (d *Database) GetBlob(key string, txn *Txn) ([]byte, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	item, err := txn.Blob().Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, types.ErrBlobKeyNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

// SetBlob stores a raw blob value by key
func (d *Database) SetBlob(key string, value []byte, txn *Txn) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Blob().Set([]byte(key), value)
}

// DeleteBlob removes a blob value by key
func (d *Database) DeleteBlob(key string, txn *Txn) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Blob().Delete([]byte(key))
}

// EvaluationContentBlobKey returns the blob key for an evaluation's content body
func EvaluationContentBlobKey(evaluationId uint) string {
	return fmt.Sprintf(blobKeyEvaluationContent, evaluationId)
}

// ApplicationCoverBlobKey returns the blob key for an application's cover letter
func ApplicationCoverBlobKey(applicationId uint) string {
	return fmt.Sprintf(blobKeyApplicationCover, applicationId)
}

// ApplicationPortfolioBlobKey returns the blob key for an application's portfolio
func ApplicationPortfolioBlobKey(applicationId uint) string {
	return fmt.Sprintf(blobKeyApplicationPortfolio, applicationId)
}

// PoolDescriptionBlobKey returns the blob key for a pool's description body
func PoolDescriptionBlobKey(poolId uint) string {
	return fmt.Sprintf(blobKeyPoolDescription, poolId)
}

// ProposalDescriptionBlobKey returns the blob key for a proposal's description body
func ProposalDescriptionBlobKey(proposalId uint) string {
	return fmt.Sprintf(blobKeyProposalDescription, proposalId)
}

// CredentialEvidenceBlobKey returns the blob key for the evidence attached to
// a level update, keyed by the update timestamp
func CredentialEvidenceBlobKey(credentialId uint, timestamp int64) string {
	return fmt.Sprintf(blobKeyCredentialEvidence, credentialId, timestamp)
}
