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

// LedgerEntry is one row of the append-only operation log. The primary key is
// the ledger sequence number; rows are never updated or deleted, giving a
// total order over all committed operations.
type LedgerEntry struct {
	Seq       uint64 `gorm:"primarykey;autoIncrement"`
	Op        string `gorm:"index;not null"`
	Actor     string `gorm:"index;not null"`
	Ref       string // entity reference, e.g. "pool/4" or "credential/17"
	Timestamp int64  `gorm:"not null"`
}

// TableName returns the table name
func (LedgerEntry) TableName() string {
	return "ledger_entry"
}
