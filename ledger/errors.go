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

package ledger

import (
	"errors"
	"fmt"

	"github.com/openmerit/meritd/database/models"
)

// ErrReentrancy indicates a nested re-entry into an operation family while a
// settlement was in progress
var ErrReentrancy = errors.New("reentrant operation detected")

// ValidationError indicates malformed or out-of-range input, rejected before
// any state change
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// AuthorizationError indicates the caller lacks a required capability or
// ownership
type AuthorizationError struct {
	Actor  string
	Reason string
}

func (e AuthorizationError) Error() string {
	return fmt.Sprintf("authorization: %s: %s", e.Actor, e.Reason)
}

// StateError indicates an operation attempted in the wrong lifecycle stage
type StateError struct {
	Entity string
	Reason string
}

func (e StateError) Error() string {
	return fmt.Sprintf("state: %s: %s", e.Entity, e.Reason)
}

// EconomicError indicates insufficient stake or balance
type EconomicError struct {
	Reason string
	Need   uint64
	Have   uint64
}

func (e EconomicError) Error() string {
	return fmt.Sprintf(
		"economic: %s: need %d, have %d",
		e.Reason,
		e.Need,
		e.Have,
	)
}

func validationErr(field, reason string) error {
	return ValidationError{Field: field, Reason: reason}
}

func authErr(actor, reason string) error {
	return AuthorizationError{Actor: actor, Reason: reason}
}

func capabilityErr(actor string, capability models.Capability) error {
	return AuthorizationError{
		Actor:  actor,
		Reason: fmt.Sprintf("missing %s capability", capability),
	}
}

func stateErr(entity, reason string) error {
	return StateError{Entity: entity, Reason: reason}
}
