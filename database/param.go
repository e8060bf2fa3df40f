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
	"gorm.io/gorm/clause"
)

// GetParam returns a protocol parameter row by name
func (d *Database) GetParam(
	name string,
	txn *Txn,
) (models.Param, error) {
	tmpParam := models.Param{}
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	result := txn.Metadata().
		Where("name = ?", name).
		First(&tmpParam)
	if result.Error != nil {
		return tmpParam, mapNotFound(result.Error, models.ErrParamNotFound)
	}
	return tmpParam, nil
}

// SetParam creates or updates a protocol parameter by name
func (d *Database) SetParam(
	param *models.Param,
	txn *Txn,
) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Metadata().
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns(
				[]string{"uint_value", "string_value", "updated_at"},
			),
		}).
		Create(param).
		Error
}

// ParamsAll returns every protocol parameter
func (d *Database) ParamsAll(txn *Txn) ([]models.Param, error) {
	var ret []models.Param
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	result := txn.Metadata().Order("name").Find(&ret)
	return ret, result.Error
}
