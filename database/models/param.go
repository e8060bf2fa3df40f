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

var ErrParamNotFound = errors.New("param not found")

// Param is a protocol parameter. Numeric parameters use UintValue; the few
// string-valued parameters (fee collector address) use StringValue.
// Parameters are protocol state: mutated only through governance execution or
// admin settings operations, never via out-of-band files.
type Param struct {
	ID          uint   `gorm:"primarykey"`
	Name        string `gorm:"uniqueIndex;not null"`
	UintValue   uint64
	StringValue string
	UpdatedAt   int64
}

// TableName returns the table name
func (Param) TableName() string {
	return "param"
}
