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

// HasCapability reports whether the subject holds the given capability
func (d *Database) HasCapability(
	subject string,
	capability models.Capability,
	txn *Txn,
) (bool, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var count int64
	result := txn.Metadata().
		Model(&models.CapabilityAssignment{}).
		Where("subject = ? AND capability = ?", subject, capability).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// GrantCapability assigns a capability to a subject. Granting an already-held
// capability is a no-op.
func (d *Database) GrantCapability(
	assignment *models.CapabilityAssignment,
	txn *Txn,
) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	held, err := d.HasCapability(
		assignment.Subject,
		assignment.Capability,
		txn,
	)
	if err != nil {
		return err
	}
	if held {
		return nil
	}
	return txn.Metadata().Create(assignment).Error
}

// RevokeCapability removes a capability from a subject
func (d *Database) RevokeCapability(
	subject string,
	capability models.Capability,
	txn *Txn,
) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Metadata().
		Where("subject = ? AND capability = ?", subject, capability).
		Delete(&models.CapabilityAssignment{}).
		Error
}

// CapabilitiesBySubject returns all capabilities held by a subject
func (d *Database) CapabilitiesBySubject(
	subject string,
	txn *Txn,
) ([]models.Capability, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var assignments []models.CapabilityAssignment
	result := txn.Metadata().
		Where("subject = ?", subject).
		Order("capability").
		Find(&assignments)
	if result.Error != nil {
		return nil, result.Error
	}
	ret := make([]models.Capability, 0, len(assignments))
	for _, assignment := range assignments {
		ret = append(ret, assignment.Capability)
	}
	return ret, nil
}
