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

var (
	ErrProposalNotFound       = errors.New("proposal not found")
	ErrProposalActionNotFound = errors.New("proposal action not found")
)

// ProposalStatus is the lifecycle state of a governance proposal.
// Pending -> Active -> {Succeeded, Defeated}; Succeeded -> Queued -> Executed.
// Any non-terminal state may transition to Cancelled.
type ProposalStatus uint8

const (
	ProposalStatusPending   ProposalStatus = 0
	ProposalStatusActive    ProposalStatus = 1
	ProposalStatusSucceeded ProposalStatus = 2
	ProposalStatusDefeated  ProposalStatus = 3
	ProposalStatusQueued    ProposalStatus = 4
	ProposalStatusExecuted  ProposalStatus = 5
	ProposalStatusCancelled ProposalStatus = 6
)

func (s ProposalStatus) String() string {
	switch s {
	case ProposalStatusPending:
		return "pending"
	case ProposalStatusActive:
		return "active"
	case ProposalStatusSucceeded:
		return "succeeded"
	case ProposalStatusDefeated:
		return "defeated"
	case ProposalStatusQueued:
		return "queued"
	case ProposalStatusExecuted:
		return "executed"
	case ProposalStatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status admits no further transitions
func (s ProposalStatus) Terminal() bool {
	return s == ProposalStatusDefeated ||
		s == ProposalStatusExecuted ||
		s == ProposalStatusCancelled
}

// Proposal is a governance proposal. Its action list is stored as
// ProposalAction rows, index-aligned and validated once at creation.
// The description body lives in the blob store keyed by ID.
type Proposal struct {
	ID           uint   `gorm:"primarykey"`
	Proposer     string `gorm:"index;not null"`
	Title        string `gorm:"not null"`
	StartTime    int64  `gorm:"not null"` // voting opens
	EndTime      int64  `gorm:"not null"` // voting closes
	Status       ProposalStatus `gorm:"index;not null"`
	ForVotes     uint64
	AgainstVotes uint64
	AbstainVotes uint64
	Executed     bool
	Emergency    bool
	SnapshotSeq  uint64 // ledger sequence at creation, retained for audit
	CreatedAt    int64  `gorm:"not null"`
	QueuedAt     int64
	ExecutableAt int64 // earliest execution time once queued
	ExecutedAt   int64
}

// TableName returns the table name
func (Proposal) TableName() string {
	return "proposal"
}

// ProposalAction is a single (target, value, call) tuple of a proposal.
// Execution is best-effort: each row records its own outcome independently.
type ProposalAction struct {
	ID          uint   `gorm:"primarykey"`
	ProposalID  uint   `gorm:"index:idx_proposal_action,priority:1;not null"`
	ActionIndex uint32 `gorm:"index:idx_proposal_action,priority:2;not null"`
	Target      string `gorm:"not null"`
	Method      string `gorm:"not null"`
	Args        []byte
	Value       uint64
	Executed    bool
	Failed      bool
	Result      string
}

// TableName returns the table name
func (ProposalAction) TableName() string {
	return "proposal_action"
}
