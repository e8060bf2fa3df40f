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

// GetPool returns a pool by id
func (d *Database) GetPool(
	poolId uint,
	txn *Txn,
) (models.Pool, error) {
	tmpPool := models.Pool{}
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	result := txn.Metadata().First(&tmpPool, poolId)
	if result.Error != nil {
		return tmpPool, mapNotFound(result.Error, models.ErrPoolNotFound)
	}
	return tmpPool, nil
}

// SetPool creates or updates a pool row
func (d *Database) SetPool(
	pool *models.Pool,
	txn *Txn,
) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Metadata().Save(pool).Error
}

// PoolsByOwner returns all pools created by an owner
func (d *Database) PoolsByOwner(
	owner string,
	txn *Txn,
) ([]models.Pool, error) {
	var ret []models.Pool
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

// PoolsByStatus returns all pools in the given status
func (d *Database) PoolsByStatus(
	status models.PoolStatus,
	txn *Txn,
) ([]models.Pool, error) {
	var ret []models.Pool
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	result := txn.Metadata().
		Where("status = ?", status).
		Order("id").
		Find(&ret)
	return ret, result.Error
}

// PoolCounts returns total and active pool counts
func (d *Database) PoolCounts(
	txn *Txn,
) (total int64, active int64, err error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	if result := txn.Metadata().
		Model(&models.Pool{}).
		Count(&total); result.Error != nil {
		return 0, 0, result.Error
	}
	if result := txn.Metadata().
		Model(&models.Pool{}).
		Where("status = ?", models.PoolStatusActive).
		Count(&active); result.Error != nil {
		return 0, 0, result.Error
	}
	return total, active, nil
}

// GetApplication returns an application by id
func (d *Database) GetApplication(
	applicationId uint,
	txn *Txn,
) (models.Application, error) {
	tmpApplication := models.Application{}
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	result := txn.Metadata().First(&tmpApplication, applicationId)
	if result.Error != nil {
		return tmpApplication, mapNotFound(
			result.Error,
			models.ErrApplicationNotFound,
		)
	}
	return tmpApplication, nil
}

// SetApplication creates or updates an application row
func (d *Database) SetApplication(
	application *models.Application,
	txn *Txn,
) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Metadata().Save(application).Error
}

// LiveApplication returns the live (pending or accepted) application for a
// (pool, candidate) pair, or found=false when none exists. At most one can
// exist at a time.
func (d *Database) LiveApplication(
	poolId uint,
	candidate string,
	txn *Txn,
) (models.Application, bool, error) {
	tmpApplication := models.Application{}
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var ret []models.Application
	result := txn.Metadata().
		Where(
			"pool_id = ? AND candidate = ? AND status IN ?",
			poolId,
			candidate,
			[]models.ApplicationStatus{
				models.ApplicationStatusPending,
				models.ApplicationStatusAccepted,
			},
		).
		Limit(1).
		Find(&ret)
	if result.Error != nil {
		return tmpApplication, false, result.Error
	}
	if len(ret) == 0 {
		return tmpApplication, false, nil
	}
	return ret[0], true, nil
}

// ApplicationsByPool returns all applications for a pool, optionally filtered
// by status (pass nil for all)
func (d *Database) ApplicationsByPool(
	poolId uint,
	status *models.ApplicationStatus,
	txn *Txn,
) ([]models.Application, error) {
	var ret []models.Application
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	query := txn.Metadata().Where("pool_id = ?", poolId)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	result := query.Order("id").Find(&ret)
	return ret, result.Error
}

// ApplicationsByCandidate returns all applications submitted by a candidate
func (d *Database) ApplicationsByCandidate(
	candidate string,
	txn *Txn,
) ([]models.Application, error) {
	var ret []models.Application
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	result := txn.Metadata().
		Where("candidate = ?", candidate).
		Order("id").
		Find(&ret)
	return ret, result.Error
}
