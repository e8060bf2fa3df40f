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
	"time"

	"github.com/openmerit/meritd/database"
	"github.com/openmerit/meritd/database/models"
)

// votingPower computes an account's live voting power: level*100 summed over
// active credentials, plus power delegated in, minus the amount the account
// has delegated out. Delegated amounts are the values recorded when the
// delegation was made; they move again only when the delegator re-delegates
// or undelegates.
func (l *LedgerState) votingPower(
	address string,
	now int64,
	txn *database.Txn,
) (uint64, error) {
	credentials, err := l.db.CredentialsByOwner(address, txn)
	if err != nil {
		return 0, err
	}
	var power uint64
	for i := range credentials {
		if credentials[i].IsActive(now) {
			power += uint64(credentials[i].Level) * 100
		}
	}
	delegation, found, err := l.db.GetDelegation(address, txn)
	if err != nil {
		return 0, err
	}
	if found {
		if delegation.Amount >= power {
			power = 0
		} else {
			power -= delegation.Amount
		}
	}
	incoming, err := l.db.DelegationsTo(address, txn)
	if err != nil {
		return 0, err
	}
	for i := range incoming {
		power += incoming[i].Amount
	}
	return power, nil
}

// credentialPower is the delegatable base: active credentials only, no
// delegation adjustments
func (l *LedgerState) credentialPower(
	address string,
	now int64,
	txn *database.Txn,
) (uint64, error) {
	credentials, err := l.db.CredentialsByOwner(address, txn)
	if err != nil {
		return 0, err
	}
	var power uint64
	for i := range credentials {
		if credentials[i].IsActive(now) {
			power += uint64(credentials[i].Level) * 100
		}
	}
	return power, nil
}

// Delegate moves the caller's current credential power to the delegatee.
// Re-delegating recomputes the amount from the caller's current credentials.
func (l *LedgerState) Delegate(actor, delegatee string) error {
	return l.runOp("governance.delegate", actor, func(ctx *opCtx) error {
		if delegatee == "" {
			return validationErr("delegatee", "empty address")
		}
		if delegatee == actor {
			return validationErr("delegatee", "self-delegation forbidden")
		}
		amount, err := l.credentialPower(actor, ctx.now.Unix(), ctx.txn)
		if err != nil {
			return err
		}
		delegation, found, err := l.db.GetDelegation(actor, ctx.txn)
		if err != nil {
			return err
		}
		if !found {
			delegation.Delegator = actor
		}
		delegation.Delegatee = delegatee
		delegation.Amount = amount
		delegation.UpdatedAt = ctx.now.Unix()
		if err := l.db.SetDelegation(&delegation, ctx.txn); err != nil {
			return err
		}
		ctx.ref = "delegation/" + actor
		ctx.emit(DelegationChangedEventType, DelegationEvent{
			Delegator: actor,
			Delegatee: delegatee,
			Amount:    amount,
		})
		return nil
	})
}

// Undelegate returns the caller's delegated power to themselves
func (l *LedgerState) Undelegate(actor string) error {
	return l.runOp("governance.undelegate", actor, func(ctx *opCtx) error {
		delegation, found, err := l.db.GetDelegation(actor, ctx.txn)
		if err != nil {
			return err
		}
		if !found {
			return stateErr("delegation", "no delegation exists")
		}
		if err := l.db.DeleteDelegation(actor, ctx.txn); err != nil {
			return err
		}
		ctx.ref = "delegation/" + actor
		ctx.emit(DelegationChangedEventType, DelegationEvent{
			Delegator: actor,
			Delegatee: delegation.Delegatee,
			Amount:    delegation.Amount,
			Revoked:   true,
		})
		return nil
	})
}

// ProposalActionInput is one (target, method, args, value) tuple of a proposal
type ProposalActionInput struct {
	Target string
	Method string
	Args   []byte
	Value  uint64
}

// CreateProposalInput is the input to CreateProposal
type CreateProposalInput struct {
	Title       string
	Description string
	Actions     []ProposalActionInput
}

func (l *LedgerState) createProposal(
	ctx *opCtx,
	input *CreateProposalInput,
	emergency bool,
) (uint, error) {
	if input.Title == "" {
		return 0, validationErr("title", "empty title")
	}
	for i := range input.Actions {
		if input.Actions[i].Target == "" || input.Actions[i].Method == "" {
			return 0, validationErr(
				"actions",
				fmt.Sprintf("element %d missing target or method", i),
			)
		}
	}
	delayParam, periodParam := ParamVotingDelay, ParamVotingPeriod
	if emergency {
		delayParam = ParamEmergencyVotingDelay
		periodParam = ParamEmergencyVotingPeriod
	}
	delay, err := l.paramUint(delayParam, ctx.txn)
	if err != nil {
		return 0, err
	}
	period, err := l.paramUint(periodParam, ctx.txn)
	if err != nil {
		return 0, err
	}
	snapshotSeq, err := l.db.LatestLedgerSeq(ctx.txn)
	if err != nil {
		return 0, err
	}
	startTime := ctx.now.Add(time.Duration(delay) * time.Second).Unix()
	proposal := models.Proposal{
		Proposer:    ctx.actor,
		Title:       input.Title,
		StartTime:   startTime,
		EndTime:     startTime + int64(period),
		Status:      models.ProposalStatusPending,
		Emergency:   emergency,
		SnapshotSeq: snapshotSeq,
		CreatedAt:   ctx.now.Unix(),
	}
	if err := l.db.SetProposal(&proposal, ctx.txn); err != nil {
		return 0, err
	}
	for i := range input.Actions {
		err := l.db.AddProposalAction(
			&models.ProposalAction{
				ProposalID:  proposal.ID,
				ActionIndex: uint32(i), //nolint:gosec
				Target:      input.Actions[i].Target,
				Method:      input.Actions[i].Method,
				Args:        input.Actions[i].Args,
				Value:       input.Actions[i].Value,
			},
			ctx.txn,
		)
		if err != nil {
			return 0, err
		}
	}
	if input.Description != "" {
		key := database.ProposalDescriptionBlobKey(proposal.ID)
		err := l.db.SetBlob(key, []byte(input.Description), ctx.txn)
		if err != nil {
			return 0, err
		}
	}
	ctx.emit(ProposalCreatedEventType, ProposalEvent{
		ProposalId: proposal.ID,
		Proposer:   ctx.actor,
		Status:     models.ProposalStatusPending,
		Emergency:  emergency,
	})
	return proposal.ID, nil
}

// CreateProposal opens a standard proposal. The proposer's live voting power
// must meet the proposal threshold.
func (l *LedgerState) CreateProposal(
	actor string,
	input CreateProposalInput,
) (uint, error) {
	var proposalId uint
	err := l.runOp("governance.create-proposal", actor, func(ctx *opCtx) error {
		threshold, err := l.paramUint(ParamProposalThreshold, ctx.txn)
		if err != nil {
			return err
		}
		power, err := l.votingPower(actor, ctx.now.Unix(), ctx.txn)
		if err != nil {
			return err
		}
		if power < threshold {
			return EconomicError{
				Reason: "voting power below proposal threshold",
				Need:   threshold,
				Have:   power,
			}
		}
		proposalId, err = l.createProposal(ctx, &input, false)
		if err != nil {
			return err
		}
		ctx.ref = fmt.Sprintf("proposal/%d", proposalId)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return proposalId, nil
}

// CreateEmergencyProposal opens a fast-track proposal with the shorter
// emergency delay, period, and quorum. Restricted to the emergency
// capability.
func (l *LedgerState) CreateEmergencyProposal(
	actor string,
	input CreateProposalInput,
) (uint, error) {
	var proposalId uint
	err := l.runOp("governance.create-emergency", actor, func(ctx *opCtx) error {
		err := l.requireCapability(ctx, actor, models.CapabilityEmergency)
		if err != nil {
			return err
		}
		proposalId, err = l.createProposal(ctx, &input, true)
		if err != nil {
			return err
		}
		ctx.ref = fmt.Sprintf("proposal/%d", proposalId)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return proposalId, nil
}

// refreshStatus applies the lazy time-based transitions: Pending becomes
// Active once voting opens, Active resolves to Succeeded or Defeated once
// voting closes. Mutates the proposal in place without persisting.
func (l *LedgerState) refreshStatus(
	proposal *models.Proposal,
	now int64,
	txn *database.Txn,
) (changed bool, err error) {
	if proposal.Status == models.ProposalStatusPending &&
		now >= proposal.StartTime {
		proposal.Status = models.ProposalStatusActive
		changed = true
	}
	if proposal.Status == models.ProposalStatusActive &&
		now >= proposal.EndTime {
		quorumParam := ParamQuorum
		if proposal.Emergency {
			quorumParam = ParamEmergencyQuorum
		}
		quorum, err := l.paramUint(quorumParam, txn)
		if err != nil {
			return changed, err
		}
		participation := proposal.ForVotes +
			proposal.AgainstVotes +
			proposal.AbstainVotes
		if proposal.ForVotes > proposal.AgainstVotes &&
			participation >= quorum {
			proposal.Status = models.ProposalStatusSucceeded
		} else {
			proposal.Status = models.ProposalStatusDefeated
		}
		changed = true
	}
	return changed, nil
}

// CastVote records one immutable ballot. The weight is the voter's live
// voting power at cast time, frozen into the receipt; later delegation
// changes cannot alter a cast vote.
func (l *LedgerState) CastVote(
	actor string,
	proposalId uint,
	choice models.VoteChoice,
	reason string,
) error {
	return l.runOp("governance.cast-vote", actor, func(ctx *opCtx) error {
		if !choice.Valid() {
			return validationErr("choice", "unknown ballot option")
		}
		proposal, err := l.db.GetProposal(proposalId, ctx.txn)
		if err != nil {
			return err
		}
		if _, err := l.refreshStatus(&proposal, ctx.now.Unix(), ctx.txn); err != nil {
			return err
		}
		if proposal.Status != models.ProposalStatusActive {
			return stateErr("proposal", "voting not open")
		}
		_, voted, err := l.db.GetVoteReceipt(proposalId, actor, ctx.txn)
		if err != nil {
			return err
		}
		if voted {
			return stateErr("vote", "already voted")
		}
		weight, err := l.votingPower(actor, ctx.now.Unix(), ctx.txn)
		if err != nil {
			return err
		}
		ctx.ref = fmt.Sprintf("proposal/%d", proposalId)
		err = l.db.AddVoteReceipt(
			&models.VoteReceipt{
				ProposalID: proposalId,
				Voter:      actor,
				Choice:     choice,
				Weight:     weight,
				Reason:     reason,
				CastAt:     ctx.now.Unix(),
			},
			ctx.txn,
		)
		if err != nil {
			return err
		}
		switch choice {
		case models.VoteChoiceFor:
			proposal.ForVotes += weight
		case models.VoteChoiceAgainst:
			proposal.AgainstVotes += weight
		case models.VoteChoiceAbstain:
			proposal.AbstainVotes += weight
		}
		if err := l.db.SetProposal(&proposal, ctx.txn); err != nil {
			return err
		}
		ctx.emit(VoteCastEventType, VoteEvent{
			ProposalId: proposalId,
			Voter:      actor,
			Choice:     choice,
			Weight:     weight,
		})
		return nil
	})
}

// RefreshProposalStatus applies any pending lazy transition and persists it.
// Callable by anyone.
func (l *LedgerState) RefreshProposalStatus(
	actor string,
	proposalId uint,
) (models.ProposalStatus, error) {
	var status models.ProposalStatus
	err := l.runOp("governance.refresh-status", actor, func(ctx *opCtx) error {
		proposal, err := l.db.GetProposal(proposalId, ctx.txn)
		if err != nil {
			return err
		}
		changed, err := l.refreshStatus(&proposal, ctx.now.Unix(), ctx.txn)
		if err != nil {
			return err
		}
		ctx.ref = fmt.Sprintf("proposal/%d", proposalId)
		if changed {
			if err := l.db.SetProposal(&proposal, ctx.txn); err != nil {
				return err
			}
		}
		status = proposal.Status
		return nil
	})
	if err != nil {
		return 0, err
	}
	return status, nil
}

// QueueProposal moves a succeeded proposal into the execution queue.
// Standard proposals wait out the execution delay; emergency proposals are
// executable immediately.
func (l *LedgerState) QueueProposal(actor string, proposalId uint) error {
	return l.runOp("governance.queue-proposal", actor, func(ctx *opCtx) error {
		proposal, err := l.db.GetProposal(proposalId, ctx.txn)
		if err != nil {
			return err
		}
		if _, err := l.refreshStatus(&proposal, ctx.now.Unix(), ctx.txn); err != nil {
			return err
		}
		if proposal.Status != models.ProposalStatusSucceeded {
			return stateErr("proposal", "not succeeded")
		}
		delay := uint64(0)
		if !proposal.Emergency {
			delay, err = l.paramUint(ParamExecutionDelay, ctx.txn)
			if err != nil {
				return err
			}
		}
		ctx.ref = fmt.Sprintf("proposal/%d", proposalId)
		proposal.Status = models.ProposalStatusQueued
		proposal.QueuedAt = ctx.now.Unix()
		proposal.ExecutableAt = ctx.now.Unix() + int64(delay)
		if err := l.db.SetProposal(&proposal, ctx.txn); err != nil {
			return err
		}
		ctx.emit(ProposalQueuedEventType, ProposalEvent{
			ProposalId: proposalId,
			Proposer:   proposal.Proposer,
			Status:     models.ProposalStatusQueued,
			Emergency:  proposal.Emergency,
		})
		return nil
	})
}

// ExecuteProposal runs every queued action in order. Execution is
// best-effort: a failing action records its outcome and does not block the
// remaining actions or roll back the ones already applied. The proposal as a
// whole can execute at most once.
func (l *LedgerState) ExecuteProposal(actor string, proposalId uint) error {
	return l.runOp("governance.execute-proposal", actor, func(ctx *opCtx) error {
		proposal, err := l.db.GetProposal(proposalId, ctx.txn)
		if err != nil {
			return err
		}
		if proposal.Status != models.ProposalStatusQueued {
			return stateErr("proposal", "not queued")
		}
		if proposal.Executed {
			return stateErr("proposal", "already executed")
		}
		if ctx.now.Unix() < proposal.ExecutableAt {
			return stateErr("proposal", "execution delay not elapsed")
		}
		actions, err := l.db.ProposalActions(proposalId, ctx.txn)
		if err != nil {
			return err
		}
		ctx.ref = fmt.Sprintf("proposal/%d", proposalId)
		for i := range actions {
			result := l.executeAction(ctx, &actions[i])
			actions[i].Executed = true
			if result != nil {
				actions[i].Failed = true
				actions[i].Result = result.Error()
			} else {
				actions[i].Result = "ok"
			}
			if err := l.db.SetProposalAction(&actions[i], ctx.txn); err != nil {
				return err
			}
		}
		proposal.Status = models.ProposalStatusExecuted
		proposal.Executed = true
		proposal.ExecutedAt = ctx.now.Unix()
		if err := l.db.SetProposal(&proposal, ctx.txn); err != nil {
			return err
		}
		ctx.emit(ProposalExecutedEventType, ProposalEvent{
			ProposalId: proposalId,
			Proposer:   proposal.Proposer,
			Status:     models.ProposalStatusExecuted,
			Emergency:  proposal.Emergency,
		})
		return nil
	})
}

// govDispatch is the closed table of callable governance targets. Each entry
// maps a (target, method) pair to the parameter it sets; the new value rides
// in the action's Value field, or in Args for string parameters.
var govDispatch = map[string]map[string]string{
	"matchingpool": {
		"setMinPoolStake":        ParamMinPoolStake,
		"setMinApplicationStake": ParamMinApplicationStake,
		"setFeeBps":              ParamFeeBps,
		"setMinPoolDuration":     ParamMinPoolDuration,
		"setMaxPoolDuration":     ParamMaxPoolDuration,
	},
	"oracle": {
		"setMinOracleStake":      ParamMinOracleStake,
		"setMinChallengeStake":   ParamMinChallengeStake,
		"setCooldown":            ParamOracleCooldown,
		"setChallengeWindow":     ParamChallengeWindow,
		"setSlashBps":            ParamSlashBps,
		"setMaxFailedChallenges": ParamMaxFailedChallenges,
		"setReputationWeightCap": ParamReputationWeightCap,
	},
	"registry": {
		"setEndorseCooldown":      ParamEndorseCooldown,
		"setDefaultCredentialTTL": ParamDefaultCredentialTTL,
	},
	"governance": {
		"setVotingDelay":           ParamVotingDelay,
		"setVotingPeriod":          ParamVotingPeriod,
		"setExecutionDelay":        ParamExecutionDelay,
		"setEmergencyVotingDelay":  ParamEmergencyVotingDelay,
		"setEmergencyVotingPeriod": ParamEmergencyVotingPeriod,
		"setQuorum":                ParamQuorum,
		"setEmergencyQuorum":       ParamEmergencyQuorum,
		"setProposalThreshold":     ParamProposalThreshold,
	},
}

// govStringDispatch covers the string-valued parameters
var govStringDispatch = map[string]map[string]string{
	"matchingpool": {
		"setFeeCollector": ParamFeeCollector,
	},
}

func (l *LedgerState) executeAction(
	ctx *opCtx,
	action *models.ProposalAction,
) error {
	if methods, ok := govStringDispatch[action.Target]; ok {
		if paramName, ok := methods[action.Method]; ok {
			value := string(action.Args)
			if value == "" {
				return validationErr("args", "empty string value")
			}
			return l.db.SetParam(
				&models.Param{Name: paramName, StringValue: value},
				ctx.txn,
			)
		}
	}
	methods, ok := govDispatch[action.Target]
	if !ok {
		return validationErr(
			"target",
			fmt.Sprintf("unknown target %q", action.Target),
		)
	}
	paramName, ok := methods[action.Method]
	if !ok {
		return validationErr(
			"method",
			fmt.Sprintf(
				"unknown method %q on target %q",
				action.Method,
				action.Target,
			),
		)
	}
	if err := validateUintParam(paramName, action.Value); err != nil {
		return err
	}
	return l.db.SetParam(
		&models.Param{Name: paramName, UintValue: action.Value},
		ctx.txn,
	)
}

// CancelProposal cancels a non-terminal proposal. Only the proposer or an
// admin may cancel.
func (l *LedgerState) CancelProposal(actor string, proposalId uint) error {
	return l.runOp("governance.cancel-proposal", actor, func(ctx *opCtx) error {
		proposal, err := l.db.GetProposal(proposalId, ctx.txn)
		if err != nil {
			return err
		}
		if actor != proposal.Proposer {
			err := l.requireCapability(ctx, actor, models.CapabilityAdmin)
			if err != nil {
				return err
			}
		}
		if proposal.Status.Terminal() {
			return stateErr("proposal", "already terminal")
		}
		ctx.ref = fmt.Sprintf("proposal/%d", proposalId)
		proposal.Status = models.ProposalStatusCancelled
		if err := l.db.SetProposal(&proposal, ctx.txn); err != nil {
			return err
		}
		ctx.emit(ProposalCanceledEventType, ProposalEvent{
			ProposalId: proposalId,
			Proposer:   proposal.Proposer,
			Status:     models.ProposalStatusCancelled,
			Emergency:  proposal.Emergency,
		})
		return nil
	})
}

// UpdateGovernanceSettings sets governance parameters directly. Admin-only;
// every value is bounds-checked before any is applied.
func (l *LedgerState) UpdateGovernanceSettings(
	actor string,
	settings map[string]uint64,
) error {
	return l.runOp("governance.update-settings", actor, func(ctx *opCtx) error {
		err := l.requireCapability(ctx, actor, models.CapabilityAdmin)
		if err != nil {
			return err
		}
		if len(settings) == 0 {
			return validationErr("settings", "empty settings")
		}
		for name, value := range settings {
			if err := validateUintParam(name, value); err != nil {
				return err
			}
		}
		for name, value := range settings {
			err := l.db.SetParam(
				&models.Param{Name: name, UintValue: value},
				ctx.txn,
			)
			if err != nil {
				return err
			}
		}
		ctx.ref = fmt.Sprintf("params/%d", len(settings))
		return nil
	})
}

// ProposalByID returns a proposal by id
func (l *LedgerState) ProposalByID(
	proposalId uint,
) (models.Proposal, error) {
	var ret models.Proposal
	err := l.view(func(txn *database.Txn) error {
		var err error
		ret, err = l.db.GetProposal(proposalId, txn)
		return err
	})
	return ret, err
}

// ProposalsOf returns all proposals created by a proposer
func (l *LedgerState) ProposalsOf(
	proposer string,
) ([]models.Proposal, error) {
	var ret []models.Proposal
	err := l.view(func(txn *database.Txn) error {
		var err error
		ret, err = l.db.ProposalsByProposer(proposer, txn)
		return err
	})
	return ret, err
}

// ProposalActionsOf returns a proposal's action rows in index order
func (l *LedgerState) ProposalActionsOf(
	proposalId uint,
) ([]models.ProposalAction, error) {
	var ret []models.ProposalAction
	err := l.view(func(txn *database.Txn) error {
		var err error
		ret, err = l.db.ProposalActions(proposalId, txn)
		return err
	})
	return ret, err
}

// ReceiptOf returns the vote receipt for a (proposal, voter) pair
func (l *LedgerState) ReceiptOf(
	proposalId uint,
	voter string,
) (models.VoteReceipt, bool, error) {
	var (
		ret   models.VoteReceipt
		found bool
	)
	err := l.view(func(txn *database.Txn) error {
		var err error
		ret, found, err = l.db.GetVoteReceipt(proposalId, voter, txn)
		return err
	})
	return ret, found, err
}

// VotingPowerOf returns an account's live voting power
func (l *LedgerState) VotingPowerOf(address string) (uint64, error) {
	var power uint64
	err := l.view(func(txn *database.Txn) error {
		var err error
		power, err = l.votingPower(
			address,
			l.config.Clock.Now().Unix(),
			txn,
		)
		return err
	})
	return power, err
}

// GovernanceStats reports total and executed proposal counts
func (l *LedgerState) GovernanceStats() (total, executed int64, err error) {
	err = l.view(func(txn *database.Txn) error {
		var err error
		total, executed, err = l.db.ProposalCounts(txn)
		return err
	})
	return total, executed, err
}
