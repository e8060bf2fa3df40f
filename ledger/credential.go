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
	"fmt"
	"strings"
	"time"

	"github.com/openmerit/meritd/database"
	"github.com/openmerit/meritd/database/models"
)

// normalizeCategory case-folds and whitespace-collapses a category string so
// category lookups are case- and spacing-insensitive
func normalizeCategory(category string) string {
	return strings.Join(strings.Fields(strings.ToLower(category)), " ")
}

// IssueCredentialInput is the input to IssueCredential and BatchIssueCredentials
type IssueCredentialInput struct {
	Owner       string
	Category    string
	Subcategory string
	Level       uint
	Expiry      int64 // zero selects the default TTL
	Metadata    string
}

func (l *LedgerState) validateIssue(
	ctx *opCtx,
	input *IssueCredentialInput,
) error {
	if input.Owner == "" {
		return validationErr("owner", "empty address")
	}
	if normalizeCategory(input.Category) == "" {
		return validationErr("category", "empty category")
	}
	if input.Level < 1 || input.Level > 10 {
		return validationErr(
			"level",
			fmt.Sprintf("%d outside [1, 10]", input.Level),
		)
	}
	if input.Expiry != 0 && input.Expiry <= ctx.now.Unix() {
		return validationErr("expiry", "must be in the future")
	}
	return nil
}

func (l *LedgerState) issueCredential(
	ctx *opCtx,
	input *IssueCredentialInput,
) (uint, error) {
	if err := l.validateIssue(ctx, input); err != nil {
		return 0, err
	}
	expiry := input.Expiry
	if expiry == 0 {
		ttl, err := l.paramUint(ParamDefaultCredentialTTL, ctx.txn)
		if err != nil {
			return 0, err
		}
		expiry = ctx.now.Add(time.Duration(ttl) * time.Second).Unix()
	}
	credential := models.Credential{
		Owner:       input.Owner,
		Category:    normalizeCategory(input.Category),
		Subcategory: input.Subcategory,
		Level:       input.Level,
		IssuedAt:    ctx.now.Unix(),
		Expiry:      expiry,
		Issuer:      ctx.actor,
		Active:      true,
		Metadata:    input.Metadata,
	}
	if err := l.db.SetCredential(&credential, ctx.txn); err != nil {
		return 0, err
	}
	ctx.emit(CredentialIssuedEventType, CredentialEvent{
		CredentialId: credential.ID,
		Owner:        credential.Owner,
		Category:     credential.Category,
		Level:        credential.Level,
		Actor:        ctx.actor,
	})
	return credential.ID, nil
}

// IssueCredential mints a non-transferable credential bound to the owner.
// Restricted to the issuer capability. A zero expiry selects the default TTL.
func (l *LedgerState) IssueCredential(
	actor string,
	input IssueCredentialInput,
) (uint, error) {
	var credentialId uint
	err := l.runOp("registry.issue", actor, func(ctx *opCtx) error {
		err := l.requireCapability(ctx, actor, models.CapabilityIssuer)
		if err != nil {
			return err
		}
		credentialId, err = l.issueCredential(ctx, &input)
		if err != nil {
			return err
		}
		ctx.ref = fmt.Sprintf("credential/%d", credentialId)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return credentialId, nil
}

// BatchIssueCredentials issues every element or none. Any invalid element
// rolls back the whole batch.
func (l *LedgerState) BatchIssueCredentials(
	actor string,
	inputs []IssueCredentialInput,
) ([]uint, error) {
	if len(inputs) == 0 {
		return nil, validationErr("inputs", "empty batch")
	}
	credentialIds := make([]uint, 0, len(inputs))
	err := l.runOp("registry.batch-issue", actor, func(ctx *opCtx) error {
		err := l.requireCapability(ctx, actor, models.CapabilityIssuer)
		if err != nil {
			return err
		}
		for i := range inputs {
			credentialId, err := l.issueCredential(ctx, &inputs[i])
			if err != nil {
				return fmt.Errorf("batch element %d: %w", i, err)
			}
			credentialIds = append(credentialIds, credentialId)
		}
		ctx.ref = fmt.Sprintf("credential/%d", credentialIds[0])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return credentialIds, nil
}

// UpdateCredentialLevel changes a credential's proficiency level. Restricted
// to the oracle capability; the credential must be usable and the new level
// must differ from the old one. The supporting evidence is retained in the
// blob store.
func (l *LedgerState) UpdateCredentialLevel(
	actor string,
	credentialId uint,
	newLevel uint,
	evidence string,
) error {
	return l.runOp("registry.update-level", actor, func(ctx *opCtx) error {
		if newLevel < 1 || newLevel > 10 {
			return validationErr(
				"level",
				fmt.Sprintf("%d outside [1, 10]", newLevel),
			)
		}
		err := l.requireCapability(ctx, actor, models.CapabilityOracle)
		if err != nil {
			return err
		}
		credential, err := l.db.GetCredential(credentialId, ctx.txn)
		if err != nil {
			return err
		}
		if !credential.IsActive(ctx.now.Unix()) {
			return stateErr("credential", "not active")
		}
		if credential.Level == newLevel {
			return validationErr("level", "no-op update")
		}
		ctx.ref = fmt.Sprintf("credential/%d", credentialId)
		credential.Level = newLevel
		if err := l.db.SetCredential(&credential, ctx.txn); err != nil {
			return err
		}
		if evidence != "" {
			key := database.CredentialEvidenceBlobKey(
				credentialId,
				ctx.now.Unix(),
			)
			if err := l.db.SetBlob(key, []byte(evidence), ctx.txn); err != nil {
				return err
			}
		}
		ctx.emit(CredentialUpdatedEventType, CredentialEvent{
			CredentialId: credential.ID,
			Owner:        credential.Owner,
			Category:     credential.Category,
			Level:        newLevel,
			Actor:        actor,
		})
		return nil
	})
}

// RevokeCredential permanently marks a credential revoked. Callable by the
// owner, an oracle, or an admin. The row is retained for history.
func (l *LedgerState) RevokeCredential(
	actor string,
	credentialId uint,
	reason string,
) error {
	return l.runOp("registry.revoke", actor, func(ctx *opCtx) error {
		credential, err := l.db.GetCredential(credentialId, ctx.txn)
		if err != nil {
			return err
		}
		if actor != credential.Owner {
			if err := l.requireCapability(ctx, actor, models.CapabilityOracle); err != nil {
				return err
			}
		}
		if credential.Revoked {
			return stateErr("credential", "already revoked")
		}
		ctx.ref = fmt.Sprintf("credential/%d", credentialId)
		credential.Revoked = true
		credential.Active = false
		if reason != "" {
			credential.Metadata = reason
		}
		if err := l.db.SetCredential(&credential, ctx.txn); err != nil {
			return err
		}
		ctx.emit(CredentialRevokedEventType, CredentialEvent{
			CredentialId: credential.ID,
			Owner:        credential.Owner,
			Category:     credential.Category,
			Level:        credential.Level,
			Actor:        actor,
		})
		return nil
	})
}

// EndorseCredential appends a third-party endorsement. Self-endorsement is
// forbidden and each endorser is limited to one endorsement per cooldown
// window per credential.
func (l *LedgerState) EndorseCredential(
	actor string,
	credentialId uint,
	note string,
) error {
	return l.runOp("registry.endorse", actor, func(ctx *opCtx) error {
		credential, err := l.db.GetCredential(credentialId, ctx.txn)
		if err != nil {
			return err
		}
		if actor == credential.Owner {
			return validationErr("endorser", "self-endorsement forbidden")
		}
		cooldown, err := l.paramUint(ParamEndorseCooldown, ctx.txn)
		if err != nil {
			return err
		}
		latest, found, err := l.db.LatestEndorsement(
			credentialId,
			actor,
			ctx.txn,
		)
		if err != nil {
			return err
		}
		if found && ctx.now.Unix()-latest.Timestamp < int64(cooldown) {
			return stateErr("endorsement", "cooldown not elapsed")
		}
		ctx.ref = fmt.Sprintf("credential/%d", credentialId)
		err = l.db.AddEndorsement(
			&models.Endorsement{
				CredentialID: credentialId,
				Endorser:     actor,
				Note:         note,
				Timestamp:    ctx.now.Unix(),
			},
			ctx.txn,
		)
		if err != nil {
			return err
		}
		endorsements, err := l.db.EndorsementsByCredential(
			credentialId,
			ctx.txn,
		)
		if err != nil {
			return err
		}
		ctx.emit(CredentialEndorsedEventType, EndorsementEvent{
			CredentialId: credentialId,
			Endorser:     actor,
			Count:        uint64(len(endorsements)),
		})
		return nil
	})
}

// RenewCredential restores a credential to active with a later expiry.
// Restricted to the updater capability. Renewal clears a revocation, which is
// what lets a lapsed-and-revoked credential come back into use.
func (l *LedgerState) RenewCredential(
	actor string,
	credentialId uint,
	newExpiry int64,
) error {
	return l.runOp("registry.renew", actor, func(ctx *opCtx) error {
		err := l.requireCapability(ctx, actor, models.CapabilityUpdater)
		if err != nil {
			return err
		}
		credential, err := l.db.GetCredential(credentialId, ctx.txn)
		if err != nil {
			return err
		}
		if newExpiry <= ctx.now.Unix() {
			return validationErr("expiry", "must be in the future")
		}
		if newExpiry <= credential.Expiry {
			return validationErr("expiry", "must extend the current expiry")
		}
		ctx.ref = fmt.Sprintf("credential/%d", credentialId)
		credential.Expiry = newExpiry
		credential.Active = true
		credential.Revoked = false
		if err := l.db.SetCredential(&credential, ctx.txn); err != nil {
			return err
		}
		ctx.emit(CredentialRenewedEventType, CredentialEvent{
			CredentialId: credential.ID,
			Owner:        credential.Owner,
			Category:     credential.Category,
			Level:        credential.Level,
			Actor:        actor,
		})
		return nil
	})
}

// BurnCredential hard-deletes a credential row. Callable by the owner or an
// admin. Endorsements are retained as historical record.
func (l *LedgerState) BurnCredential(
	actor string,
	credentialId uint,
) error {
	return l.runOp("registry.burn", actor, func(ctx *opCtx) error {
		credential, err := l.db.GetCredential(credentialId, ctx.txn)
		if err != nil {
			return err
		}
		if actor != credential.Owner {
			if err := l.requireCapability(ctx, actor, models.CapabilityAdmin); err != nil {
				return err
			}
		}
		ctx.ref = fmt.Sprintf("credential/%d", credentialId)
		if err := l.db.DeleteCredential(credentialId, ctx.txn); err != nil {
			return err
		}
		ctx.emit(CredentialBurnedEventType, CredentialEvent{
			CredentialId: credential.ID,
			Owner:        credential.Owner,
			Category:     credential.Category,
			Level:        credential.Level,
			Actor:        actor,
		})
		return nil
	})
}

// IsCredentialActive reports whether a credential is usable right now
func (l *LedgerState) IsCredentialActive(credentialId uint) (bool, error) {
	var active bool
	err := l.view(func(txn *database.Txn) error {
		credential, err := l.db.GetCredential(credentialId, txn)
		if err != nil {
			return err
		}
		active = credential.IsActive(l.config.Clock.Now().Unix())
		return nil
	})
	return active, err
}

// CredentialByID returns a credential by id
func (l *LedgerState) CredentialByID(
	credentialId uint,
) (models.Credential, error) {
	var ret models.Credential
	err := l.view(func(txn *database.Txn) error {
		var err error
		ret, err = l.db.GetCredential(credentialId, txn)
		return err
	})
	return ret, err
}

// CredentialsOf returns all credentials bound to an owner
func (l *LedgerState) CredentialsOf(
	owner string,
) ([]models.Credential, error) {
	var ret []models.Credential
	err := l.view(func(txn *database.Txn) error {
		var err error
		ret, err = l.db.CredentialsByOwner(owner, txn)
		return err
	})
	return ret, err
}

// CredentialsInCategory returns all credentials in a category. The lookup is
// case-insensitive via write-time normalization.
func (l *LedgerState) CredentialsInCategory(
	category string,
) ([]models.Credential, error) {
	var ret []models.Credential
	err := l.view(func(txn *database.Txn) error {
		var err error
		ret, err = l.db.CredentialsByCategory(
			normalizeCategory(category),
			txn,
		)
		return err
	})
	return ret, err
}

// EndorsementsOf returns the append-only endorsement list for a credential
func (l *LedgerState) EndorsementsOf(
	credentialId uint,
) ([]models.Endorsement, error) {
	var ret []models.Endorsement
	err := l.view(func(txn *database.Txn) error {
		var err error
		ret, err = l.db.EndorsementsByCredential(credentialId, txn)
		return err
	})
	return ret, err
}

// CredentialStats reports total and active credential counts
func (l *LedgerState) CredentialStats() (total, active int64, err error) {
	err = l.view(func(txn *database.Txn) error {
		var err error
		total, active, err = l.db.CredentialCounts(txn)
		return err
	})
	return total, active, err
}
