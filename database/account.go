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

// GetAccount returns the account for an address, or found=false when the
// address has never held a balance
func (d *Database) GetAccount(
	address string,
	txn *Txn,
) (models.Account, bool, error) {
	tmpAccount := models.Account{}
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var ret []models.Account
	result := txn.Metadata().
		Where("address = ?", address).
		Limit(1).
		Find(&ret)
	if result.Error != nil {
		return tmpAccount, false, result.Error
	}
	if len(ret) == 0 {
		return tmpAccount, false, nil
	}
	return ret[0], true, nil
}

// SetAccount creates or updates an account row
func (d *Database) SetAccount(
	account *models.Account,
	txn *Txn,
) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Metadata().Save(account).Error
}

// TotalAccountBalance returns the sum of all account balances. Used by the
// value-conservation checks.
func (d *Database) TotalAccountBalance(txn *Txn) (uint64, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var total *uint64
	result := txn.Metadata().
		Model(&models.Account{}).
		Select("SUM(balance)").
		Scan(&total)
	if result.Error != nil {
		return 0, result.Error
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
