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

// GetCredential returns a credential by id
func (d *Database) GetCredential(
	credentialId uint,
	txn *Txn,
) (models.Credential, error) {
	tmpCredential := models.Credential{}
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	result := txn.Metadata().First(&tmpCredential, credentialId)
	if result.Error != nil {
		return tmpCredential, mapNotFound(
			result.Error,
			models.ErrCredentialNotFound,
		)
	}
	return tmpCredential, nil
}

// SetCredential creates or updates a credential row
func (d *Database) SetCredential(
	credential *models.Credential,
	txn *Txn,
) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Metadata().Save(credential).Error
}

// DeleteCredential removes a credential row. Only used by burn; revocation
// and expiry keep the row for history.
func (d *Database) DeleteCredential(
	credentialId uint,
	txn *Txn,
) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Metadata().
		Delete(&models.Credential{}, credentialId).
		Error
}

// CredentialsByOwner returns all credentials bound to an owner
func (d *Database) CredentialsByOwner(
	owner string,
	txn *Txn,
) ([]models.Credential, error) {
	var ret []models.Credential
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	result := txn.Metadata().
		Where("owner = ?", owner).
		Order("id").
		Find(&ret)
	return ret, result.Error
}

// CredentialsByCategory returns all credentials in a normalized category
func (d *Database) CredentialsByCategory(
	category string,
	txn *Txn,
) ([]models.Credential, error) {
	var ret []models.Credential
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	result := txn.Metadata().
		Where("category = ?", category).
		Order("id").
		Find(&ret)
	return ret, result.Error
}

// CredentialCounts returns the total and active-flagged credential counts
func (d *Database) CredentialCounts(
	txn *Txn,
) (total int64, active int64, err error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	if result := txn.Metadata().
		Model(&models.Credential{}).
		Count(&total); result.Error != nil {
		return 0, 0, result.Error
	}
	if result := txn.Metadata().
		Model(&models.Credential{}).
		Where("active = ? AND revoked = ?", true, false).
		Count(&active); result.Error != nil {
		return 0, 0, result.Error
	}
	return total, active, nil
}

// AddEndorsement appends an endorsement row
func (d *Database) AddEndorsement(
	endorsement *models.Endorsement,
	txn *Txn,
) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Metadata().Create(endorsement).Error
}

// LatestEndorsement returns the most recent endorsement by an endorser on a
// credential, or zero value with found=false when none exists
func (d *Database) LatestEndorsement(
	credentialId uint,
	endorser string,
	txn *Txn,
) (models.Endorsement, bool, error) {
	tmpEndorsement := models.Endorsement{}
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var ret []models.Endorsement
	result := txn.Metadata().
		Where("credential_id = ? AND endorser = ?", credentialId, endorser).
		Order("timestamp DESC").
		Limit(1).
		Find(&ret)
	if result.Error != nil {
		return tmpEndorsement, false, result.Error
	}
	if len(ret) == 0 {
		return tmpEndorsement, false, nil
	}
	return ret[0], true, nil
}

// EndorsementsByCredential returns the append-only endorsement list for a credential
func (d *Database) EndorsementsByCredential(
	credentialId uint,
	txn *Txn,
) ([]models.Endorsement, error) {
	var ret []models.Endorsement
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	result := txn.Metadata().
		Where("credential_id = ?", credentialId).
		Order("id").
		Find(&ret)
	return ret, result.Error
}
