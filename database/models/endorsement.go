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

// Endorsement is an append-only third-party attestation on a credential.
// One endorser may add at most one endorsement per cooldown window per
// credential; the cooldown is enforced by the ledger, not the schema.
type Endorsement struct {
	ID           uint   `gorm:"primarykey"`
	CredentialID uint   `gorm:"index:idx_endorsement_cred_endorser,priority:1;not null"`
	Endorser     string `gorm:"index:idx_endorsement_cred_endorser,priority:2;not null"`
	Note         string
	Timestamp    int64 `gorm:"not null"`
}

// TableName returns the table name
func (Endorsement) TableName() string {
	return "endorsement"
}
