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

	"github.com/openmerit/meritd/database"
	"github.com/openmerit/meritd/database/models"
)

const maxEvaluationScore = 10_000

// RegisterOracle stakes and registers the caller as an oracle participant.
// Re-registration after deactivation reuses the record and resets the
// failed-challenge counter; the lifetime evaluation count is retained.
func (l *LedgerState) RegisterOracle(
	actor string,
	name string,
	specializations []string,
	stake uint64,
) error {
	return l.runOp("oracle.register", actor, func(ctx *opCtx) error {
		minStake, err := l.paramUint(ParamMinOracleStake, ctx.txn)
		if err != nil {
			return err
		}
		if stake < minStake {
			return EconomicError{
				Reason: "oracle stake below minimum",
				Need:   minStake,
				Have:   stake,
			}
		}
		normalized := make([]string, len(specializations))
		for i, specialization := range specializations {
			normalized[i] = normalizeCategory(specialization)
		}
		oracle, err := l.db.GetOracle(actor, ctx.txn)
		if err != nil && !errors.Is(err, models.ErrOracleNotFound) {
			return err
		}
		if err == nil && oracle.Active {
			return stateErr("oracle", "already registered")
		}
		if err := l.stakeToEscrow(ctx, actor, stake); err != nil {
			return err
		}
		oracle.Participant = actor
		oracle.Name = name
		oracle.Specializations = normalized
		oracle.Stake = stake
		oracle.RegisteredAt = ctx.now.Unix()
		oracle.Active = true
		oracle.FailedCount = 0
		if err := l.db.SetOracle(&oracle, ctx.txn); err != nil {
			return err
		}
		ctx.ref = "oracle/" + actor
		ctx.emit(OracleRegisteredEventType, OracleEvent{
			Participant: actor,
			Stake:       stake,
		})
		return nil
	})
}

// DeactivateOracle retires the caller's registration and returns the
// remaining stake. Blocked while any evaluation of theirs has an open
// challenge, since the stake backs the resolution.
func (l *LedgerState) DeactivateOracle(actor string) error {
	return l.runOp("oracle.deactivate", actor, func(ctx *opCtx) error {
		oracle, err := l.db.GetOracle(actor, ctx.txn)
		if err != nil {
			return err
		}
		if !oracle.Active {
			return stateErr("oracle", "not active")
		}
		open, err := l.db.OpenChallengesByEvaluator(actor, ctx.txn)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return stateErr("oracle", "open challenges pending resolution")
		}
		ctx.ref = "oracle/" + actor
		stake := oracle.Stake
		oracle.Active = false
		oracle.Stake = 0
		if err := l.db.SetOracle(&oracle, ctx.txn); err != nil {
			return err
		}
		if err := l.releaseEscrow(ctx, actor, stake); err != nil {
			return err
		}
		ctx.emit(OracleDeactivatedEventType, OracleEvent{
			Participant: actor,
			Stake:       stake,
		})
		return nil
	})
}

// SubmitWorkEvaluationInput is the input to SubmitWorkEvaluation
type SubmitWorkEvaluationInput struct {
	Subject             string
	CredentialIds       []uint
	Description         string
	Content             string
	OverallScore        uint64
	PerCredentialScores []uint64
	EvidenceHash        []byte
}

// SubmitWorkEvaluation records an evaluation against a credential holder and
// folds it into the subject's running reputation. The running score is a
// bounded weighted average: newScore = (oldScore*weight + incoming) /
// (weight+1) with weight = min(priorCount, cap), so history's influence is
// capped and recent evaluations keep mattering as the record grows.
func (l *LedgerState) SubmitWorkEvaluation(
	actor string,
	input SubmitWorkEvaluationInput,
) (uint, error) {
	var evaluationId uint
	err := l.runOp("oracle.submit-evaluation", actor, func(ctx *opCtx) error {
		if input.Subject == "" {
			return validationErr("subject", "empty address")
		}
		if len(input.CredentialIds) == 0 {
			return validationErr("credentialIds", "empty credential list")
		}
		if len(input.PerCredentialScores) != len(input.CredentialIds) {
			return validationErr(
				"perCredentialScores",
				"length does not match credentialIds",
			)
		}
		if input.OverallScore > maxEvaluationScore {
			return validationErr(
				"overallScore",
				fmt.Sprintf("exceeds %d", maxEvaluationScore),
			)
		}
		for i, score := range input.PerCredentialScores {
			if score > maxEvaluationScore {
				return validationErr(
					"perCredentialScores",
					fmt.Sprintf("element %d exceeds %d", i, maxEvaluationScore),
				)
			}
		}
		oracle, err := l.db.GetOracle(actor, ctx.txn)
		if err != nil {
			if errors.Is(err, models.ErrOracleNotFound) {
				return authErr(actor, "not a registered oracle")
			}
			return err
		}
		if !oracle.Active {
			return authErr(actor, "oracle not active")
		}
		cooldown, err := l.paramUint(ParamOracleCooldown, ctx.txn)
		if err != nil {
			return err
		}
		if oracle.LastEvaluation != 0 &&
			ctx.now.Unix()-oracle.LastEvaluation < int64(cooldown) {
			return stateErr("oracle", "submission cooldown not elapsed")
		}
		for _, credentialId := range input.CredentialIds {
			credential, err := l.db.GetCredential(credentialId, ctx.txn)
			if err != nil {
				return err
			}
			if credential.Owner != input.Subject {
				return validationErr(
					"credentialIds",
					fmt.Sprintf(
						"credential %d not owned by subject", credentialId,
					),
				)
			}
			if !credential.IsActive(ctx.now.Unix()) {
				return stateErr(
					"credential",
					fmt.Sprintf("credential %d not active", credentialId),
				)
			}
		}
		evaluation := models.Evaluation{
			Subject:             input.Subject,
			CredentialIDs:       input.CredentialIds,
			Description:         input.Description,
			OverallScore:        input.OverallScore,
			PerCredentialScores: input.PerCredentialScores,
			Evaluator:           actor,
			Timestamp:           ctx.now.Unix(),
			EvidenceHash:        input.EvidenceHash,
		}
		if err := l.db.SetEvaluation(&evaluation, ctx.txn); err != nil {
			return err
		}
		if input.Content != "" {
			key := database.EvaluationContentBlobKey(evaluation.ID)
			err := l.db.SetBlob(key, []byte(input.Content), ctx.txn)
			if err != nil {
				return err
			}
		}
		weightCap, err := l.paramUint(ParamReputationWeightCap, ctx.txn)
		if err != nil {
			return err
		}
		reputation, _, err := l.db.GetReputation(input.Subject, ctx.txn)
		if err != nil {
			return err
		}
		if reputation.Subject == "" {
			reputation.Subject = input.Subject
		}
		weight := min(reputation.EvaluationCount, weightCap)
		reputation.Score = (reputation.Score*weight + input.OverallScore) /
			(weight + 1)
		reputation.EvaluationCount++
		reputation.UpdatedAt = ctx.now.Unix()
		if err := l.db.SetReputation(&reputation, ctx.txn); err != nil {
			return err
		}
		oracle.EvaluationCount++
		oracle.LastEvaluation = ctx.now.Unix()
		if err := l.db.SetOracle(&oracle, ctx.txn); err != nil {
			return err
		}
		evaluationId = evaluation.ID
		ctx.ref = fmt.Sprintf("evaluation/%d", evaluationId)
		ctx.emit(EvaluationSubmittedEventType, EvaluationEvent{
			EvaluationId: evaluationId,
			Evaluator:    actor,
			Subject:      input.Subject,
			Score:        input.OverallScore,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return evaluationId, nil
}

// ChallengeEvaluation opens a staked dispute against an evaluation. Allowed
// only within the challenge window and while no other challenge on the same
// evaluation is open.
func (l *LedgerState) ChallengeEvaluation(
	actor string,
	evaluationId uint,
	reason string,
	stake uint64,
) (uint, error) {
	var challengeId uint
	err := l.runOp("oracle.challenge", actor, func(ctx *opCtx) error {
		minStake, err := l.paramUint(ParamMinChallengeStake, ctx.txn)
		if err != nil {
			return err
		}
		if stake < minStake {
			return EconomicError{
				Reason: "challenge stake below minimum",
				Need:   minStake,
				Have:   stake,
			}
		}
		evaluation, err := l.db.GetEvaluation(evaluationId, ctx.txn)
		if err != nil {
			return err
		}
		window, err := l.paramUint(ParamChallengeWindow, ctx.txn)
		if err != nil {
			return err
		}
		if ctx.now.Unix()-evaluation.Timestamp > int64(window) {
			return stateErr("challenge", "challenge window closed")
		}
		_, open, err := l.db.OpenChallengeForEvaluation(evaluationId, ctx.txn)
		if err != nil {
			return err
		}
		if open {
			return stateErr("challenge", "open challenge already exists")
		}
		if err := l.stakeToEscrow(ctx, actor, stake); err != nil {
			return err
		}
		challenge := models.Challenge{
			EvaluationID:       evaluationId,
			Challenger:         actor,
			Reason:             reason,
			Stake:              stake,
			CreatedAt:          ctx.now.Unix(),
			ResolutionDeadline: ctx.now.Unix() + int64(window),
		}
		if err := l.db.SetChallenge(&challenge, ctx.txn); err != nil {
			return err
		}
		challengeId = challenge.ID
		ctx.ref = fmt.Sprintf("challenge/%d", challengeId)
		ctx.emit(ChallengeOpenedEventType, ChallengeEvent{
			ChallengeId:  challengeId,
			EvaluationId: evaluationId,
			Challenger:   actor,
			Stake:        stake,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return challengeId, nil
}

// ResolveChallenge settles an open challenge. Restricted to the resolver
// capability. When the original evaluation is upheld the challenger's stake
// comes back to them and the oracle's defense counter increments; the
// protocol imposes no monetary penalty for a losing challenge. When it is not
// upheld, a slice of the oracle's stake is slashed and paid to the challenger
// on top of their own stake, the oracle's failure counter increments, and the
// evaluation is flagged as needing a reputation reversal. Enough accumulated
// failures retire the oracle automatically, with the residual stake refunded
// rather than stranded.
func (l *LedgerState) ResolveChallenge(
	actor string,
	challengeId uint,
	upholdOriginal bool,
	resolution string,
) error {
	return l.runOp("oracle.resolve-challenge", actor, func(ctx *opCtx) error {
		err := l.requireCapability(ctx, actor, models.CapabilityResolver)
		if err != nil {
			return err
		}
		challenge, err := l.db.GetChallenge(challengeId, ctx.txn)
		if err != nil {
			return err
		}
		if challenge.Resolved {
			return stateErr("challenge", "already resolved")
		}
		evaluation, err := l.db.GetEvaluation(
			challenge.EvaluationID,
			ctx.txn,
		)
		if err != nil {
			return err
		}
		oracle, err := l.db.GetOracle(evaluation.Evaluator, ctx.txn)
		if err != nil {
			return err
		}
		ctx.ref = fmt.Sprintf("challenge/%d", challengeId)
		challenge.Resolved = true
		challenge.UpheldOriginal = upholdOriginal
		challenge.Resolution = resolution
		challenge.Resolver = actor
		if err := l.db.SetChallenge(&challenge, ctx.txn); err != nil {
			return err
		}
		if upholdOriginal {
			oracle.DefenseCount++
			if err := l.db.SetOracle(&oracle, ctx.txn); err != nil {
				return err
			}
			err := l.releaseEscrow(
				ctx,
				challenge.Challenger,
				challenge.Stake,
			)
			if err != nil {
				return err
			}
		} else {
			slashBps, err := l.paramUint(ParamSlashBps, ctx.txn)
			if err != nil {
				return err
			}
			maxFailed, err := l.paramUint(ParamMaxFailedChallenges, ctx.txn)
			if err != nil {
				return err
			}
			slashed := oracle.Stake * slashBps / 10_000
			oracle.Stake -= slashed
			oracle.FailedCount++
			evaluation.ReversalNeeded = true
			evaluation.ReversedAt = ctx.now.Unix()
			if err := l.db.SetEvaluation(&evaluation, ctx.txn); err != nil {
				return err
			}
			err = l.releaseEscrow(
				ctx,
				challenge.Challenger,
				challenge.Stake+slashed,
			)
			if err != nil {
				return err
			}
			ctx.emit(OracleSlashedEventType, SlashEvent{
				Participant: oracle.Participant,
				Amount:      slashed,
				Recipient:   challenge.Challenger,
			})
			if uint64(oracle.FailedCount) >= maxFailed && oracle.Active {
				residual := oracle.Stake
				oracle.Active = false
				oracle.Stake = 0
				err := l.releaseEscrow(ctx, oracle.Participant, residual)
				if err != nil {
					return err
				}
				ctx.emit(OracleDeactivatedEventType, OracleEvent{
					Participant: oracle.Participant,
					Stake:       residual,
				})
			}
			if err := l.db.SetOracle(&oracle, ctx.txn); err != nil {
				return err
			}
		}
		ctx.emit(ChallengeResolvedEventType, ChallengeEvent{
			ChallengeId:    challengeId,
			EvaluationId:   challenge.EvaluationID,
			Challenger:     challenge.Challenger,
			Stake:          challenge.Stake,
			UpheldOriginal: upholdOriginal,
		})
		return nil
	})
}

// OracleOf returns the oracle record for a participant
func (l *LedgerState) OracleOf(
	participant string,
) (models.OracleRecord, error) {
	var ret models.OracleRecord
	err := l.view(func(txn *database.Txn) error {
		var err error
		ret, err = l.db.GetOracle(participant, txn)
		return err
	})
	return ret, err
}

// EvaluationByID returns an evaluation by id
func (l *LedgerState) EvaluationByID(
	evaluationId uint,
) (models.Evaluation, error) {
	var ret models.Evaluation
	err := l.view(func(txn *database.Txn) error {
		var err error
		ret, err = l.db.GetEvaluation(evaluationId, txn)
		return err
	})
	return ret, err
}

// EvaluationsOf returns all evaluations recorded against a subject
func (l *LedgerState) EvaluationsOf(
	subject string,
) ([]models.Evaluation, error) {
	var ret []models.Evaluation
	err := l.view(func(txn *database.Txn) error {
		var err error
		ret, err = l.db.EvaluationsBySubject(subject, txn)
		return err
	})
	return ret, err
}

// ReputationOf returns the running reputation for a subject. A subject with
// no evaluations has a zero-valued reputation.
func (l *LedgerState) ReputationOf(
	subject string,
) (models.Reputation, error) {
	var ret models.Reputation
	err := l.view(func(txn *database.Txn) error {
		reputation, found, err := l.db.GetReputation(subject, txn)
		if err != nil {
			return err
		}
		if found {
			ret = reputation
		} else {
			ret.Subject = subject
		}
		return nil
	})
	return ret, err
}

// ChallengeByID returns a challenge by id
func (l *LedgerState) ChallengeByID(
	challengeId uint,
) (models.Challenge, error) {
	var ret models.Challenge
	err := l.view(func(txn *database.Txn) error {
		var err error
		ret, err = l.db.GetChallenge(challengeId, txn)
		return err
	})
	return ret, err
}
