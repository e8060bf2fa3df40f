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

package models

import "errors"

var ErrVoteReceiptNotFound = errors.New("vote receipt not found")

// VoteChoice is the ballot option for a governance vote
type VoteChoice uint8

const (
	VoteChoiceAgainst VoteChoice = 0
	VoteChoiceFor     VoteChoice = 1
	VoteChoiceAbstain VoteChoice = 2
)

func (c VoteChoice) String() string {
	switch c {
	case VoteChoiceAgainst:
		return "against"
	case VoteChoiceFor:
		return "for"
	case VoteChoiceAbstain:
		return "abstain"
	default:
		return "unknown"
	}
}

// Valid returns true if the choice is a known ballot option
func (c VoteChoice) Valid() bool {
	switch c {
	case VoteChoiceAgainst, VoteChoiceFor, VoteChoiceAbstain:
		return true
	default:
		return false
	}
}

// VoteReceipt records one account's vote on one proposal. Receipts are
// immutable once written; the weight is frozen at cast time.
type VoteReceipt struct {
	ID         uint   `gorm:"primarykey"`
	ProposalID uint   `gorm:"uniqueIndex:idx_vote_proposal_voter,priority:1;not null"`
	Voter      string `gorm:"uniqueIndex:idx_vote_proposal_voter,priority:2;not null"`
	Choice     VoteChoice `gorm:"not null"`
	Weight     uint64     `gorm:"not null"`
	Reason     string
	CastAt     int64 `gorm:"not null"`
}

// TableName returns the table name
func (VoteReceipt) TableName() string {
	return "vote_receipt"
}

// Delegation moves a delegator's current voting power to a delegatee.
// One row per delegator; re-delegation updates the row in place after the
// ledger recomputes the amount moved.
type Delegation struct {
	ID        uint   `gorm:"primarykey"`
	Delegator string `gorm:"uniqueIndex;not null"`
	Delegatee string `gorm:"index;not null"`
	Amount    uint64 `gorm:"not null"`
	UpdatedAt int64
}

// TableName returns the table name
func (Delegation) TableName() string {
	return "delegation"
}
