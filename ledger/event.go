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
	"github.com/openmerit/meritd/database/models"
	"github.com/openmerit/meritd/event"
)

const (
	CredentialIssuedEventType   event.EventType = "registry.credential-issued"
	CredentialUpdatedEventType  event.EventType = "registry.credential-updated"
	CredentialRevokedEventType  event.EventType = "registry.credential-revoked"
	CredentialRenewedEventType  event.EventType = "registry.credential-renewed"
	CredentialBurnedEventType   event.EventType = "registry.credential-burned"
	CredentialEndorsedEventType event.EventType = "registry.credential-endorsed"

	PoolCreatedEventType          event.EventType = "matching.pool-created"
	ApplicationSubmittedEventType event.EventType = "matching.application-submitted"
	CandidateSelectedEventType    event.EventType = "matching.candidate-selected"
	PoolCompletedEventType        event.EventType = "matching.pool-completed"
	ApplicationWithdrawnEventType event.EventType = "matching.application-withdrawn"
	PoolClosedEventType           event.EventType = "matching.pool-closed"
	PoolExpiredEventType          event.EventType = "matching.pool-expired"
	StakeClaimedEventType         event.EventType = "matching.stake-claimed"

	OracleRegisteredEventType    event.EventType = "oracle.registered"
	OracleDeactivatedEventType   event.EventType = "oracle.deactivated"
	EvaluationSubmittedEventType event.EventType = "oracle.evaluation-submitted"
	ChallengeOpenedEventType     event.EventType = "oracle.challenge-opened"
	ChallengeResolvedEventType   event.EventType = "oracle.challenge-resolved"
	OracleSlashedEventType       event.EventType = "oracle.slashed"

	DelegationChangedEventType event.EventType = "governance.delegation-changed"
	ProposalCreatedEventType   event.EventType = "governance.proposal-created"
	VoteCastEventType          event.EventType = "governance.vote-cast"
	ProposalQueuedEventType    event.EventType = "governance.proposal-queued"
	ProposalExecutedEventType  event.EventType = "governance.proposal-executed"
	ProposalCanceledEventType  event.EventType = "governance.proposal-canceled"

	CapabilityGrantedEventType event.EventType = "auth.capability-granted"
	CapabilityRevokedEventType event.EventType = "auth.capability-revoked"
	TransferEventType          event.EventType = "ledger.transfer"
)

type CredentialEvent struct {
	CredentialId uint
	Owner        string
	Category     string
	Level        uint
	Actor        string
}

type EndorsementEvent struct {
	CredentialId uint
	Endorser     string
	Count        uint64
}

type PoolEvent struct {
	PoolId uint
	Owner  string
	Stake  uint64
	Status models.PoolStatus
}

type ApplicationEvent struct {
	ApplicationId uint
	PoolId        uint
	Candidate     string
	Stake         uint64
	MatchScore    uint
}

type PoolCompletionEvent struct {
	PoolId            uint
	Candidate         string
	CandidatePayout   uint64
	Fee               uint64
	OwnerRefund       uint64
}

type OracleEvent struct {
	Participant string
	Stake       uint64
}

type EvaluationEvent struct {
	EvaluationId uint
	Evaluator    string
	Subject      string
	Score        uint64
}

type ChallengeEvent struct {
	ChallengeId    uint
	EvaluationId   uint
	Challenger     string
	Stake          uint64
	UpheldOriginal bool
}

type SlashEvent struct {
	Participant string
	Amount      uint64
	Recipient   string
}

type DelegationEvent struct {
	Delegator string
	Delegatee string
	Amount    uint64
	Revoked   bool
}

type ProposalEvent struct {
	ProposalId uint
	Proposer   string
	Status     models.ProposalStatus
	Emergency  bool
}

type VoteEvent struct {
	ProposalId uint
	Voter      string
	Choice     models.VoteChoice
	Weight     uint64
}

type CapabilityEvent struct {
	Subject    string
	Capability models.Capability
	Actor      string
}

type TransferEvent struct {
	From   string
	To     string
	Amount uint64
	Op     string
}
