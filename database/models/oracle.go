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

var ErrOracleNotFound = errors.New("oracle not found")

// OracleRecord is a staked oracle participant registration. A participant has
// at most one record; re-registration after deactivation reuses the row.
type OracleRecord struct {
	ID              uint     `gorm:"primarykey"`
	Participant     string   `gorm:"uniqueIndex;not null"`
	Name            string
	Specializations []string `gorm:"serializer:json"`
	Stake           uint64   `gorm:"not null"`
	RegisteredAt    int64    `gorm:"not null"`
	Active          bool     `gorm:"index"`
	EvaluationCount uint64
	LastEvaluation  int64 // submission cooldown anchor
	DefenseCount    uint32
	FailedCount     uint32
}

// TableName returns the table name
func (OracleRecord) TableName() string {
	return "oracle_record"
}
