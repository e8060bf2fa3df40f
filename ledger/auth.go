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
	"github.com/openmerit/meritd/database"
	"github.com/openmerit/meritd/database/models"
)

// bootstrapAdmin grants the configured bootstrap address the admin capability
// when no capability assignments exist yet
func (l *LedgerState) bootstrapAdmin(txn *database.Txn) error {
	if l.config.BootstrapAdmin == "" {
		return nil
	}
	existing, err := l.db.CapabilitiesBySubject(l.config.BootstrapAdmin, txn)
	if err != nil {
		return err
	}
	for _, capability := range existing {
		if capability == models.CapabilityAdmin {
			return nil
		}
	}
	return l.db.GrantCapability(
		&models.CapabilityAssignment{
			Subject:    l.config.BootstrapAdmin,
			Capability: models.CapabilityAdmin,
		},
		txn,
	)
}

// requireCapability rejects the operation unless the actor holds the
// capability. Admin implies every other capability.
func (l *LedgerState) requireCapability(
	ctx *opCtx,
	actor string,
	capability models.Capability,
) error {
	held, err := l.db.HasCapability(actor, capability, ctx.txn)
	if err != nil {
		return err
	}
	if held {
		return nil
	}
	if capability != models.CapabilityAdmin {
		admin, err := l.db.HasCapability(
			actor,
			models.CapabilityAdmin,
			ctx.txn,
		)
		if err != nil {
			return err
		}
		if admin {
			return nil
		}
	}
	return capabilityErr(actor, capability)
}

// GrantCapability assigns a capability to a subject. Only admins may grant.
func (l *LedgerState) GrantCapability(
	actor string,
	subject string,
	capability models.Capability,
) error {
	return l.runOp("auth.grant", actor, func(ctx *opCtx) error {
		if err := l.requireCapability(ctx, actor, models.CapabilityAdmin); err != nil {
			return err
		}
		if subject == "" {
			return validationErr("subject", "empty address")
		}
		if !capability.Valid() {
			return validationErr("capability", "unknown capability")
		}
		ctx.ref = "capability/" + subject
		err := l.db.GrantCapability(
			&models.CapabilityAssignment{
				Subject:    subject,
				Capability: capability,
			},
			ctx.txn,
		)
		if err != nil {
			return err
		}
		ctx.emit(CapabilityGrantedEventType, CapabilityEvent{
			Subject:    subject,
			Capability: capability,
			Actor:      actor,
		})
		return nil
	})
}

// RevokeCapability removes a capability from a subject. Only admins may
// revoke, and an admin may not revoke their own admin capability, so the
// ledger always retains at least one admin.
func (l *LedgerState) RevokeCapability(
	actor string,
	subject string,
	capability models.Capability,
) error {
	return l.runOp("auth.revoke", actor, func(ctx *opCtx) error {
		if err := l.requireCapability(ctx, actor, models.CapabilityAdmin); err != nil {
			return err
		}
		if subject == actor && capability == models.CapabilityAdmin {
			return stateErr("capability", "cannot revoke own admin capability")
		}
		ctx.ref = "capability/" + subject
		err := l.db.RevokeCapability(subject, capability, ctx.txn)
		if err != nil {
			return err
		}
		ctx.emit(CapabilityRevokedEventType, CapabilityEvent{
			Subject:    subject,
			Capability: capability,
			Actor:      actor,
		})
		return nil
	})
}

// CapabilitiesOf returns the capabilities held by a subject
func (l *LedgerState) CapabilitiesOf(
	subject string,
) ([]models.Capability, error) {
	var ret []models.Capability
	err := l.view(func(txn *database.Txn) error {
		var err error
		ret, err = l.db.CapabilitiesBySubject(subject, txn)
		return err
	})
	return ret, err
}
