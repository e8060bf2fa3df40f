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

var ErrAccountNotFound = errors.New("account not found")

// Account holds the spendable balance for an address. Staked value is debited
// from here into protocol custody (recorded on the staking entity row) and
// returned through settlement transfers.
type Account struct {
	ID      uint   `gorm:"primarykey"`
	Address string `gorm:"uniqueIndex;not null"`
	Balance uint64
	AddedAt int64
}

// TableName returns the table name
func (Account) TableName() string {
	return "account"
}
