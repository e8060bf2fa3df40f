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

var ErrApplicationNotFound = errors.New("application not found")

// ApplicationStatus is the lifecycle state of a pool application
type ApplicationStatus uint8

const (
	ApplicationStatusPending   ApplicationStatus = 0
	ApplicationStatusAccepted  ApplicationStatus = 1
	ApplicationStatusRejected  ApplicationStatus = 2
	ApplicationStatusWithdrawn ApplicationStatus = 3
)

func (s ApplicationStatus) String() string {
	switch s {
	case ApplicationStatusPending:
		return "pending"
	case ApplicationStatusAccepted:
		return "accepted"
	case ApplicationStatusRejected:
		return "rejected"
	case ApplicationStatusWithdrawn:
		return "withdrawn"
	default:
		return "unknown"
	}
}

// Application is a candidate's staked, credential-backed submission to a pool.
// At most one live (Pending or Accepted) application may exist per
// (pool, candidate) pair; the ledger enforces this on submission.
// Cover letter and portfolio bodies live in the blob store keyed by ID.
type Application struct {
	ID            uint   `gorm:"primarykey"`
	PoolID        uint   `gorm:"index:idx_application_pool_candidate,priority:1;not null"`
	Candidate     string `gorm:"index:idx_application_pool_candidate,priority:2;not null"`
	CredentialIDs []uint `gorm:"serializer:json;not null"`
	Stake         uint64 `gorm:"not null"`
	AppliedAt     int64  `gorm:"not null"`
	Status        ApplicationStatus `gorm:"index;not null"`
	MatchScore    uint              // 0-100
	// StakeReleased is set once the stake has left protocol custody, either
	// by refund, withdrawal payout, or a rejected-stake claim
	StakeReleased bool
}

// TableName returns the table name
func (Application) TableName() string {
	return "application"
}

// Live reports whether the application still binds the (pool, candidate) pair
func (a *Application) Live() bool {
	return a.Status == ApplicationStatusPending ||
		a.Status == ApplicationStatusAccepted
}
