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

var ErrEvaluationNotFound = errors.New("evaluation not found")

// Evaluation is a work evaluation recorded against a credential holder.
// Rows are immutable once written except for the reversal flag, which is set
// when a challenge against the evaluation is not upheld. The free-text content
// body lives in the blob store keyed by ID.
type Evaluation struct {
	ID                  uint     `gorm:"primarykey"`
	Subject             string   `gorm:"index;not null"`
	CredentialIDs       []uint   `gorm:"serializer:json;not null"`
	Description         string
	OverallScore        uint64   `gorm:"not null"` // 0-10000, hundredths of a percent
	PerCredentialScores []uint64 `gorm:"serializer:json;not null"`
	Evaluator           string   `gorm:"index;not null"`
	Timestamp           int64    `gorm:"index;not null"`
	EvidenceHash        []byte   `gorm:"size:32"`
	ReversalNeeded      bool
	ReversedAt          int64
}

// TableName returns the table name
func (Evaluation) TableName() string {
	return "evaluation"
}

// Reputation is the running reputation score for a subject, maintained as a
// bounded weighted average over received evaluations.
type Reputation struct {
	ID              uint   `gorm:"primarykey"`
	Subject         string `gorm:"uniqueIndex;not null"`
	Score           uint64 // 0-10000
	EvaluationCount uint64
	UpdatedAt       int64
}

// TableName returns the table name
func (Reputation) TableName() string {
	return "reputation"
}
