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

// CreatePoolInput is the input to CreatePool
type CreatePoolInput struct {
	Title          string
	Description    string
	RequiredSkills []string
	MinimumLevels  []uint
	SalaryMin      uint64
	SalaryMax      uint64
	Stake          uint64
	Deadline       int64
}

// CreatePool opens a staked job pool. The requirement arrays are validated
// once here and are immutable afterward.
func (l *LedgerState) CreatePool(
	actor string,
	input CreatePoolInput,
) (uint, error) {
	var poolId uint
	err := l.runOp("matching.create-pool", actor, func(ctx *opCtx) error {
		if input.Title == "" {
			return validationErr("title", "empty title")
		}
		if len(input.RequiredSkills) == 0 {
			return validationErr("requiredSkills", "empty skill list")
		}
		if len(input.RequiredSkills) != len(input.MinimumLevels) {
			return validationErr(
				"minimumLevels",
				"length does not match requiredSkills",
			)
		}
		skills := make([]string, len(input.RequiredSkills))
		for i, skill := range input.RequiredSkills {
			normalized := normalizeCategory(skill)
			if normalized == "" {
				return validationErr("requiredSkills", "empty skill")
			}
			skills[i] = normalized
		}
		for _, level := range input.MinimumLevels {
			if level < 1 || level > 10 {
				return validationErr(
					"minimumLevels",
					fmt.Sprintf("level %d outside [1, 10]", level),
				)
			}
		}
		if input.SalaryMin > input.SalaryMax {
			return validationErr("salaryMin", "exceeds salaryMax")
		}
		minStake, err := l.paramUint(ParamMinPoolStake, ctx.txn)
		if err != nil {
			return err
		}
		if input.Stake < minStake {
			return EconomicError{
				Reason: "pool stake below minimum",
				Need:   minStake,
				Have:   input.Stake,
			}
		}
		minDuration, err := l.paramUint(ParamMinPoolDuration, ctx.txn)
		if err != nil {
			return err
		}
		maxDuration, err := l.paramUint(ParamMaxPoolDuration, ctx.txn)
		if err != nil {
			return err
		}
		now := ctx.now.Unix()
		if input.Deadline < now+int64(minDuration) ||
			input.Deadline > now+int64(maxDuration) {
			return validationErr("deadline", "outside the allowed window")
		}
		if err := l.stakeToEscrow(ctx, actor, input.Stake); err != nil {
			return err
		}
		pool := models.Pool{
			Owner:          actor,
			Title:          input.Title,
			RequiredSkills: skills,
			MinimumLevels:  input.MinimumLevels,
			SalaryMin:      input.SalaryMin,
			SalaryMax:      input.SalaryMax,
			Stake:          input.Stake,
			Deadline:       input.Deadline,
			Status:         models.PoolStatusActive,
			CreatedAt:      now,
		}
		if err := l.db.SetPool(&pool, ctx.txn); err != nil {
			return err
		}
		if input.Description != "" {
			key := database.PoolDescriptionBlobKey(pool.ID)
			err := l.db.SetBlob(key, []byte(input.Description), ctx.txn)
			if err != nil {
				return err
			}
		}
		poolId = pool.ID
		ctx.ref = fmt.Sprintf("pool/%d", poolId)
		ctx.emit(PoolCreatedEventType, PoolEvent{
			PoolId: poolId,
			Owner:  actor,
			Stake:  input.Stake,
			Status: models.PoolStatusActive,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return poolId, nil
}

// matchScore rates how well the candidate's credentials satisfy the pool's
// requirements. For each required skill the highest-level matching credential
// contributes 100 when it meets the minimum, a proportional fraction when
// below it, and 0 when the skill is missing. The result is the floor average
// across all required skills, always in [0, 100].
func matchScore(pool *models.Pool, credentials []models.Credential) uint {
	if len(pool.RequiredSkills) == 0 {
		return 0
	}
	var total uint64
	for i, skill := range pool.RequiredSkills {
		minimum := uint64(pool.MinimumLevels[i])
		var best uint64
		for _, credential := range credentials {
			if credential.Category == skill &&
				uint64(credential.Level) > best {
				best = uint64(credential.Level)
			}
		}
		switch {
		case best == 0:
			// missing skill contributes 0
		case best >= minimum:
			total += 100
		default:
			total += 100 * best / minimum
		}
	}
	return uint(total / uint64(len(pool.RequiredSkills)))
}

// SubmitApplication stakes and files a credential-backed application against
// an active pool. At most one live application per (pool, candidate) pair.
func (l *LedgerState) SubmitApplication(
	actor string,
	poolId uint,
	credentialIds []uint,
	stake uint64,
	coverLetter string,
	portfolio string,
) (uint, error) {
	var applicationId uint
	err := l.runOp("matching.submit-application", actor, func(ctx *opCtx) error {
		if len(credentialIds) == 0 {
			return validationErr("credentialIds", "empty credential list")
		}
		pool, err := l.db.GetPool(poolId, ctx.txn)
		if err != nil {
			return err
		}
		if pool.Status != models.PoolStatusActive {
			return stateErr("pool", "not active")
		}
		if ctx.now.Unix() >= pool.Deadline {
			return stateErr("pool", "deadline passed")
		}
		minStake, err := l.paramUint(ParamMinApplicationStake, ctx.txn)
		if err != nil {
			return err
		}
		if stake < minStake {
			return EconomicError{
				Reason: "application stake below minimum",
				Need:   minStake,
				Have:   stake,
			}
		}
		_, live, err := l.db.LiveApplication(poolId, actor, ctx.txn)
		if err != nil {
			return err
		}
		if live {
			return stateErr("application", "live application already exists")
		}
		credentials := make([]models.Credential, 0, len(credentialIds))
		for _, credentialId := range credentialIds {
			credential, err := l.db.GetCredential(credentialId, ctx.txn)
			if err != nil {
				return err
			}
			if credential.Owner != actor {
				return authErr(actor, fmt.Sprintf(
					"credential %d not owned by caller", credentialId,
				))
			}
			if !credential.IsActive(ctx.now.Unix()) {
				return stateErr(
					"credential",
					fmt.Sprintf("credential %d not active", credentialId),
				)
			}
			credentials = append(credentials, credential)
		}
		if err := l.stakeToEscrow(ctx, actor, stake); err != nil {
			return err
		}
		application := models.Application{
			PoolID:        poolId,
			Candidate:     actor,
			CredentialIDs: credentialIds,
			Stake:         stake,
			AppliedAt:     ctx.now.Unix(),
			Status:        models.ApplicationStatusPending,
			MatchScore:    matchScore(&pool, credentials),
		}
		if err := l.db.SetApplication(&application, ctx.txn); err != nil {
			return err
		}
		if coverLetter != "" {
			key := database.ApplicationCoverBlobKey(application.ID)
			err := l.db.SetBlob(key, []byte(coverLetter), ctx.txn)
			if err != nil {
				return err
			}
		}
		if portfolio != "" {
			key := database.ApplicationPortfolioBlobKey(application.ID)
			err := l.db.SetBlob(key, []byte(portfolio), ctx.txn)
			if err != nil {
				return err
			}
		}
		pool.ApplicationCount++
		if err := l.db.SetPool(&pool, ctx.txn); err != nil {
			return err
		}
		applicationId = application.ID
		ctx.ref = fmt.Sprintf("application/%d", applicationId)
		ctx.emit(ApplicationSubmittedEventType, ApplicationEvent{
			ApplicationId: applicationId,
			PoolId:        poolId,
			Candidate:     actor,
			Stake:         stake,
			MatchScore:    application.MatchScore,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return applicationId, nil
}

// SelectCandidate marks a pending application accepted. Owner-only, and only
// before any prior selection.
func (l *LedgerState) SelectCandidate(
	actor string,
	poolId uint,
	candidate string,
) error {
	return l.runOp("matching.select-candidate", actor, func(ctx *opCtx) error {
		pool, err := l.db.GetPool(poolId, ctx.txn)
		if err != nil {
			return err
		}
		if pool.Owner != actor {
			return authErr(actor, "not the pool owner")
		}
		if pool.Status != models.PoolStatusActive {
			return stateErr("pool", "not active")
		}
		if pool.SelectedCandidate != "" {
			return stateErr("pool", "candidate already selected")
		}
		application, live, err := l.db.LiveApplication(
			poolId,
			candidate,
			ctx.txn,
		)
		if err != nil {
			return err
		}
		if !live || application.Status != models.ApplicationStatusPending {
			return stateErr("application", "no pending application")
		}
		ctx.ref = fmt.Sprintf("pool/%d", poolId)
		application.Status = models.ApplicationStatusAccepted
		if err := l.db.SetApplication(&application, ctx.txn); err != nil {
			return err
		}
		pool.SelectedCandidate = candidate
		if err := l.db.SetPool(&pool, ctx.txn); err != nil {
			return err
		}
		ctx.emit(CandidateSelectedEventType, ApplicationEvent{
			ApplicationId: application.ID,
			PoolId:        poolId,
			Candidate:     candidate,
			Stake:         application.Stake,
			MatchScore:    application.MatchScore,
		})
		return nil
	})
}

// CompletePool settles a pool with a selected candidate. The platform fee is
// basis points of the combined owner and candidate stake, deducted from the
// owner's refund. The candidate's stake comes back in full. Remaining pending
// applications flip to rejected with their stakes left claimable.
func (l *LedgerState) CompletePool(actor string, poolId uint) error {
	return l.runOp("matching.complete-pool", actor, func(ctx *opCtx) error {
		pool, err := l.db.GetPool(poolId, ctx.txn)
		if err != nil {
			return err
		}
		if pool.Owner != actor {
			return authErr(actor, "not the pool owner")
		}
		if pool.Status != models.PoolStatusActive {
			return stateErr("pool", "not active")
		}
		if pool.SelectedCandidate == "" {
			return stateErr("pool", "no candidate selected")
		}
		accepted, live, err := l.db.LiveApplication(
			poolId,
			pool.SelectedCandidate,
			ctx.txn,
		)
		if err != nil {
			return err
		}
		if !live || accepted.Status != models.ApplicationStatusAccepted {
			return stateErr("application", "selected application not accepted")
		}
		feeBps, err := l.paramUint(ParamFeeBps, ctx.txn)
		if err != nil {
			return err
		}
		feeCollector, err := l.paramString(ParamFeeCollector, ctx.txn)
		if err != nil {
			return err
		}
		fee := (pool.Stake + accepted.Stake) * feeBps / 10_000
		if fee > pool.Stake {
			fee = pool.Stake
		}
		ctx.ref = fmt.Sprintf("pool/%d", poolId)

		// Reject remaining pending applications before any transfer
		pendingStatus := models.ApplicationStatusPending
		pending, err := l.db.ApplicationsByPool(
			poolId,
			&pendingStatus,
			ctx.txn,
		)
		if err != nil {
			return err
		}
		for i := range pending {
			pending[i].Status = models.ApplicationStatusRejected
			if err := l.db.SetApplication(&pending[i], ctx.txn); err != nil {
				return err
			}
		}
		accepted.StakeReleased = true
		if err := l.db.SetApplication(&accepted, ctx.txn); err != nil {
			return err
		}
		pool.Status = models.PoolStatusCompleted
		if err := l.db.SetPool(&pool, ctx.txn); err != nil {
			return err
		}
		if err := l.releaseEscrow(ctx, accepted.Candidate, accepted.Stake); err != nil {
			return err
		}
		if err := l.releaseEscrow(ctx, feeCollector, fee); err != nil {
			return err
		}
		if err := l.releaseEscrow(ctx, pool.Owner, pool.Stake-fee); err != nil {
			return err
		}
		ctx.emit(PoolCompletedEventType, PoolCompletionEvent{
			PoolId:          poolId,
			Candidate:       accepted.Candidate,
			CandidatePayout: accepted.Stake,
			Fee:             fee,
			OwnerRefund:     pool.Stake - fee,
		})
		return nil
	})
}

// WithdrawApplication pulls a pending application back with a time-decayed
// penalty growing linearly from zero at application time to the full stake at
// the pool deadline. The penalty goes to the fee collector.
func (l *LedgerState) WithdrawApplication(actor string, poolId uint) error {
	return l.runOp("matching.withdraw-application", actor, func(ctx *opCtx) error {
		application, live, err := l.db.LiveApplication(poolId, actor, ctx.txn)
		if err != nil {
			return err
		}
		if !live || application.Status != models.ApplicationStatusPending {
			return stateErr("application", "no pending application")
		}
		pool, err := l.db.GetPool(poolId, ctx.txn)
		if err != nil {
			return err
		}
		penalty := withdrawalPenalty(
			application.Stake,
			application.AppliedAt,
			pool.Deadline,
			ctx.now.Unix(),
		)
		feeCollector, err := l.paramString(ParamFeeCollector, ctx.txn)
		if err != nil {
			return err
		}
		ctx.ref = fmt.Sprintf("application/%d", application.ID)
		application.Status = models.ApplicationStatusWithdrawn
		application.StakeReleased = true
		if err := l.db.SetApplication(&application, ctx.txn); err != nil {
			return err
		}
		if err := l.releaseEscrow(ctx, actor, application.Stake-penalty); err != nil {
			return err
		}
		if err := l.releaseEscrow(ctx, feeCollector, penalty); err != nil {
			return err
		}
		ctx.emit(ApplicationWithdrawnEventType, ApplicationEvent{
			ApplicationId: application.ID,
			PoolId:        poolId,
			Candidate:     actor,
			Stake:         application.Stake - penalty,
			MatchScore:    application.MatchScore,
		})
		return nil
	})
}

// withdrawalPenalty grows linearly from 0 at appliedAt to the full stake at
// the deadline, clamped to [0, stake]
func withdrawalPenalty(stake uint64, appliedAt, deadline, now int64) uint64 {
	if now <= appliedAt || deadline <= appliedAt {
		return 0
	}
	if now >= deadline {
		return stake
	}
	elapsed := uint64(now - appliedAt)
	window := uint64(deadline - appliedAt)
	return stake * elapsed / window
}

// ClosePool cancels a pool before any selection, refunding the owner and all
// pending applicants in full
func (l *LedgerState) ClosePool(actor string, poolId uint) error {
	return l.runOp("matching.close-pool", actor, func(ctx *opCtx) error {
		pool, err := l.db.GetPool(poolId, ctx.txn)
		if err != nil {
			return err
		}
		if pool.Owner != actor {
			return authErr(actor, "not the pool owner")
		}
		if pool.Status != models.PoolStatusActive {
			return stateErr("pool", "not active")
		}
		if pool.SelectedCandidate != "" {
			return stateErr("pool", "candidate already selected")
		}
		ctx.ref = fmt.Sprintf("pool/%d", poolId)
		pendingStatus := models.ApplicationStatusPending
		pending, err := l.db.ApplicationsByPool(
			poolId,
			&pendingStatus,
			ctx.txn,
		)
		if err != nil {
			return err
		}
		for i := range pending {
			pending[i].Status = models.ApplicationStatusRejected
			pending[i].StakeReleased = true
			if err := l.db.SetApplication(&pending[i], ctx.txn); err != nil {
				return err
			}
			err := l.releaseEscrow(
				ctx,
				pending[i].Candidate,
				pending[i].Stake,
			)
			if err != nil {
				return err
			}
		}
		pool.Status = models.PoolStatusCancelled
		if err := l.db.SetPool(&pool, ctx.txn); err != nil {
			return err
		}
		if err := l.releaseEscrow(ctx, pool.Owner, pool.Stake); err != nil {
			return err
		}
		ctx.emit(PoolClosedEventType, PoolEvent{
			PoolId: poolId,
			Owner:  pool.Owner,
			Stake:  pool.Stake,
			Status: models.PoolStatusCancelled,
		})
		return nil
	})
}

// ExpireOldPools sweeps past-deadline pools with no live applications into
// the expired state, refunding the owner's stake. Callable by anyone; pools
// that do not qualify are skipped. Returns the ids actually expired.
func (l *LedgerState) ExpireOldPools(
	actor string,
	poolIds []uint,
) ([]uint, error) {
	if len(poolIds) == 0 {
		return nil, validationErr("poolIds", "empty pool list")
	}
	var expired []uint
	err := l.runOp("matching.expire-pools", actor, func(ctx *opCtx) error {
		for _, poolId := range poolIds {
			pool, err := l.db.GetPool(poolId, ctx.txn)
			if err != nil {
				if errors.Is(err, models.ErrPoolNotFound) {
					continue
				}
				return err
			}
			if pool.Status != models.PoolStatusActive {
				continue
			}
			if ctx.now.Unix() < pool.Deadline {
				continue
			}
			applications, err := l.db.ApplicationsByPool(poolId, nil, ctx.txn)
			if err != nil {
				return err
			}
			hasLive := false
			for i := range applications {
				if applications[i].Live() {
					hasLive = true
					break
				}
			}
			if hasLive {
				continue
			}
			pool.Status = models.PoolStatusExpired
			if err := l.db.SetPool(&pool, ctx.txn); err != nil {
				return err
			}
			if err := l.releaseEscrow(ctx, pool.Owner, pool.Stake); err != nil {
				return err
			}
			expired = append(expired, poolId)
			ctx.emit(PoolExpiredEventType, PoolEvent{
				PoolId: poolId,
				Owner:  pool.Owner,
				Stake:  pool.Stake,
				Status: models.PoolStatusExpired,
			})
		}
		ctx.ref = fmt.Sprintf("pools/%d", len(expired))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

// ClaimRejectedStake releases the stake of a rejected application back to its
// candidate. Rejection during pool completion leaves stakes in custody; this
// is the pull side of that design.
func (l *LedgerState) ClaimRejectedStake(actor string, poolId uint) error {
	return l.runOp("matching.claim-stake", actor, func(ctx *opCtx) error {
		applications, err := l.db.ApplicationsByPool(poolId, nil, ctx.txn)
		if err != nil {
			return err
		}
		var claim *models.Application
		for i := range applications {
			if applications[i].Candidate == actor &&
				applications[i].Status == models.ApplicationStatusRejected &&
				!applications[i].StakeReleased {
				claim = &applications[i]
				break
			}
		}
		if claim == nil {
			return stateErr("application", "no claimable rejected stake")
		}
		ctx.ref = fmt.Sprintf("application/%d", claim.ID)
		claim.StakeReleased = true
		if err := l.db.SetApplication(claim, ctx.txn); err != nil {
			return err
		}
		if err := l.releaseEscrow(ctx, actor, claim.Stake); err != nil {
			return err
		}
		ctx.emit(StakeClaimedEventType, ApplicationEvent{
			ApplicationId: claim.ID,
			PoolId:        poolId,
			Candidate:     actor,
			Stake:         claim.Stake,
			MatchScore:    claim.MatchScore,
		})
		return nil
	})
}

// PoolByID returns a pool by id
func (l *LedgerState) PoolByID(poolId uint) (models.Pool, error) {
	var ret models.Pool
	err := l.view(func(txn *database.Txn) error {
		var err error
		ret, err = l.db.GetPool(poolId, txn)
		return err
	})
	return ret, err
}

// PoolsOf returns all pools created by an owner
func (l *LedgerState) PoolsOf(owner string) ([]models.Pool, error) {
	var ret []models.Pool
	err := l.view(func(txn *database.Txn) error {
		var err error
		ret, err = l.db.PoolsByOwner(owner, txn)
		return err
	})
	return ret, err
}

// ApplicationsForPool returns all applications filed against a pool
func (l *LedgerState) ApplicationsForPool(
	poolId uint,
) ([]models.Application, error) {
	var ret []models.Application
	err := l.view(func(txn *database.Txn) error {
		var err error
		ret, err = l.db.ApplicationsByPool(poolId, nil, txn)
		return err
	})
	return ret, err
}

// ApplicationsOf returns all applications filed by a candidate
func (l *LedgerState) ApplicationsOf(
	candidate string,
) ([]models.Application, error) {
	var ret []models.Application
	err := l.view(func(txn *database.Txn) error {
		var err error
		ret, err = l.db.ApplicationsByCandidate(candidate, txn)
		return err
	})
	return ret, err
}

// PoolStats reports total and active pool counts
func (l *LedgerState) PoolStats() (total, active int64, err error) {
	err = l.view(func(txn *database.Txn) error {
		var err error
		total, active, err = l.db.PoolCounts(txn)
		return err
	})
	return total, active, err
}
