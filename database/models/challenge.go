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

var ErrChallengeNotFound = errors.New("challenge not found")

// Challenge is a staked dispute against an evaluation. At most one unresolved
// challenge may exist per evaluation at a time.
type Challenge struct {
	ID                 uint   `gorm:"primarykey"`
	EvaluationID       uint   `gorm:"index;not null"`
	Challenger         string `gorm:"index;not null"`
	Reason             string
	Stake              uint64 `gorm:"not null"`
	CreatedAt          int64  `gorm:"not null"`
	ResolutionDeadline int64
	Resolved           bool `gorm:"index"`
	UpheldOriginal     bool
	Resolution         string
	Resolver           string
}

// TableName returns the table name
func (Challenge) TableName() string {
	return "challenge"
}
