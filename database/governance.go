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

// GetProposal returns a proposal by id
func (d *Database) GetProposal(
	proposalId uint,
	txn *Txn,
) (models.Proposal, error) {
	tmpProposal := models.Proposal{}
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	result := txn.Metadata().First(&tmpProposal, proposalId)
	if result.Error != nil {
		return tmpProposal, mapNotFound(
			result.Error,
			models.ErrProposalNotFound,
		)
	}
	return tmpProposal, nil
}

// SetProposal creates or updates a proposal row
func (d *Database) SetProposal(
	proposal *models.Proposal,
	txn *Txn,
) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Metadata().Save(proposal).Error
}

// ProposalsByProposer returns all proposals created by a proposer
func (d *Database) ProposalsByProposer(
	proposer string,
	txn *Txn,
) ([]models.Proposal, error) {
	var ret []models.Proposal
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	result := txn.Metadata().
		Where("proposer = ?", proposer).
		Order("id").
		Find(&ret)
	return ret, result.Error
}

// ProposalCounts returns total and executed proposal counts
func (d *Database) ProposalCounts(
	txn *Txn,
) (total int64, executed int64, err error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	if result := txn.Metadata().
		Model(&models.Proposal{}).
		Count(&total); result.Error != nil {
		return 0, 0, result.Error
	}
	if result := txn.Metadata().
		Model(&models.Proposal{}).
		Where("executed = ?", true).
		Count(&executed); result.Error != nil {
		return 0, 0, result.Error
	}
	return total, executed, nil
}

// AddProposalAction appends an action row to a proposal
func (d *Database) AddProposalAction(
	action *models.ProposalAction,
	txn *Txn,
) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Metadata().Create(action).Error
}

// SetProposalAction updates an action row (execution outcome)
func (d *Database) SetProposalAction(
	action *models.ProposalAction,
	txn *Txn,
) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Metadata().Save(action).Error
}

// ProposalActions returns a proposal's actions in execution order
func (d *Database) ProposalActions(
	proposalId uint,
	txn *Txn,
) ([]models.ProposalAction, error) {
	var ret []models.ProposalAction
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	result := txn.Metadata().
		Where("proposal_id = ?", proposalId).
		Order("action_index").
		Find(&ret)
	return ret, result.Error
}

// GetVoteReceipt returns the vote receipt for a (proposal, voter) pair, or
// found=false when the account has not voted
func (d *Database) GetVoteReceipt(
	proposalId uint,
	voter string,
	txn *Txn,
) (models.VoteReceipt, bool, error) {
	tmpReceipt := models.VoteReceipt{}
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var ret []models.VoteReceipt
	result := txn.Metadata().
		Where("proposal_id = ? AND voter = ?", proposalId, voter).
		Limit(1).
		Find(&ret)
	if result.Error != nil {
		return tmpReceipt, false, result.Error
	}
	if len(ret) == 0 {
		return tmpReceipt, false, nil
	}
	return ret[0], true, nil
}

// AddVoteReceipt appends a vote receipt. Receipts are immutable; there is no
// corresponding update operation.
func (d *Database) AddVoteReceipt(
	receipt *models.VoteReceipt,
	txn *Txn,
) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Metadata().Create(receipt).Error
}

// GetDelegation returns the delegation row for a delegator, or found=false
func (d *Database) GetDelegation(
	delegator string,
	txn *Txn,
) (models.Delegation, bool, error) {
	tmpDelegation := models.Delegation{}
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var ret []models.Delegation
	result := txn.Metadata().
		Where("delegator = ?", delegator).
		Limit(1).
		Find(&ret)
	if result.Error != nil {
		return tmpDelegation, false, result.Error
	}
	if len(ret) == 0 {
		return tmpDelegation, false, nil
	}
	return ret[0], true, nil
}

// SetDelegation creates or updates a delegation row
func (d *Database) SetDelegation(
	delegation *models.Delegation,
	txn *Txn,
) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Metadata().Save(delegation).Error
}

// DeleteDelegation removes a delegator's delegation row
func (d *Database) DeleteDelegation(
	delegator string,
	txn *Txn,
) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Metadata().
		Where("delegator = ?", delegator).
		Delete(&models.Delegation{}).
		Error
}

// DelegationsTo returns all delegations pointing at a delegatee
func (d *Database) DelegationsTo(
	delegatee string,
	txn *Txn,
) ([]models.Delegation, error) {
	var ret []models.Delegation
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	result := txn.Metadata().
		Where("delegatee = ?", delegatee).
		Order("id").
		Find(&ret)
	return ret, result.Error
}
