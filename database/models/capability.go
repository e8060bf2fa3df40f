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

// Capability is a closed enum of protocol authorization capabilities
type Capability uint8

const (
	CapabilityAdmin     Capability = 0
	CapabilityIssuer    Capability = 1
	CapabilityOracle    Capability = 2
	CapabilityUpdater   Capability = 3
	CapabilityResolver  Capability = 4
	CapabilityEmergency Capability = 5
)

func (c Capability) String() string {
	switch c {
	case CapabilityAdmin:
		return "admin"
	case CapabilityIssuer:
		return "issuer"
	case CapabilityOracle:
		return "oracle"
	case CapabilityUpdater:
		return "updater"
	case CapabilityResolver:
		return "resolver"
	case CapabilityEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// Valid returns true if the capability is a known value
func (c Capability) Valid() bool {
	return c <= CapabilityEmergency
}

// CapabilityAssignment grants one capability to one subject address
type CapabilityAssignment struct {
	ID         uint   `gorm:"primarykey"`
	Subject    string `gorm:"uniqueIndex:idx_capability_subject_cap,priority:1;not null"`
	Capability Capability `gorm:"uniqueIndex:idx_capability_subject_cap,priority:2;not null"`
	GrantedBy  string
	GrantedAt  int64
}

// TableName returns the table name
func (CapabilityAssignment) TableName() string {
	return "capability_assignment"
}
