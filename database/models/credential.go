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

var ErrCredentialNotFound = errors.New("credential not found")

// Credential is a non-transferable skill credential bound to a single owner.
// Credentials are never deleted on revocation or expiry, only marked inactive;
// the sole destructive operation is an explicit burn.
type Credential struct {
	ID          uint   `gorm:"primarykey"`
	Owner       string `gorm:"index;not null"`
	Category    string `gorm:"index;not null"` // normalized at write time
	Subcategory string
	Level       uint  `gorm:"not null"` // 1-10
	IssuedAt    int64 `gorm:"not null"`
	Expiry      int64 `gorm:"not null"`
	Issuer      string
	Active      bool `gorm:"index"`
	Revoked     bool
	Metadata    string
}

// TableName returns the table name
func (Credential) TableName() string {
	return "credential"
}

// IsActive reports whether the credential is usable at the given time:
// active flag set, not revoked, and not expired.
func (c *Credential) IsActive(now int64) bool {
	return c.Active && !c.Revoked && c.Expiry > now
}
