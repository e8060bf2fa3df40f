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

var ErrPoolNotFound = errors.New("pool not found")

// PoolStatus is the lifecycle state of a matching pool.
// Active is the only non-terminal state.
type PoolStatus uint8

const (
	PoolStatusActive    PoolStatus = 0
	PoolStatusCompleted PoolStatus = 1
	PoolStatusCancelled PoolStatus = 2
	PoolStatusExpired   PoolStatus = 3
)

func (s PoolStatus) String() string {
	switch s {
	case PoolStatusActive:
		return "active"
	case PoolStatusCompleted:
		return "completed"
	case PoolStatusCancelled:
		return "cancelled"
	case PoolStatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status admits no further transitions
func (s PoolStatus) Terminal() bool {
	return s != PoolStatusActive
}

// Pool is a staked job-matching listing. The requirement arrays are
// index-aligned and validated once at creation; they are immutable afterward.
type Pool struct {
	ID                uint   `gorm:"primarykey"`
	Owner             string `gorm:"index;not null"`
	Title             string `gorm:"not null"`
	RequiredSkills    []string `gorm:"serializer:json;not null"` // normalized categories
	MinimumLevels     []uint   `gorm:"serializer:json;not null"`
	SalaryMin         uint64
	SalaryMax         uint64
	Stake             uint64     `gorm:"not null"`
	Deadline          int64      `gorm:"index;not null"`
	Status            PoolStatus `gorm:"index;not null"`
	SelectedCandidate string
	ApplicationCount  uint64
	CreatedAt         int64 `gorm:"not null"`
}

// TableName returns the table name
func (Pool) TableName() string {
	return "pool"
}
