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

package ledger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/openmerit/meritd/database/models"
	"github.com/openmerit/meritd/ledger"
)

// createTestPool stakes and opens a pool owned by "owner" requiring frontend
// level 6, with a 30 day deadline
func createTestPool(
	t *testing.T,
	ls *ledger.LedgerState,
	clock *ledger.ManualClock,
	stake uint64,
) uint {
	t.Helper()
	fund(t, ls, "owner", stake)
	poolId, err := ls.CreatePool("owner", ledger.CreatePoolInput{
		Title:          "Senior frontend engineer",
		Description:    "Build the dashboard",
		RequiredSkills: []string{"frontend"},
		MinimumLevels:  []uint{6},
		SalaryMin:      50_000,
		SalaryMax:      90_000,
		Stake:          stake,
		Deadline:       clock.Now().Add(30 * 24 * time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("unexpected error creating pool: %s", err)
	}
	return poolId
}

func TestCreatePoolValidation(t *testing.T) {
	ls, clock := newTestLedger(t)
	fund(t, ls, "owner", 10_000)
	deadline := clock.Now().Add(30 * 24 * time.Hour).Unix()
	var valErr ledger.ValidationError
	_, err := ls.CreatePool("owner", ledger.CreatePoolInput{
		Title:          "Mismatched arrays",
		RequiredSkills: []string{"frontend", "backend"},
		MinimumLevels:  []uint{6},
		Stake:          1000,
		Deadline:       deadline,
	})
	if !errors.As(err, &valErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = ls.CreatePool("owner", ledger.CreatePoolInput{
		Title:          "Bad salary range",
		RequiredSkills: []string{"frontend"},
		MinimumLevels:  []uint{6},
		SalaryMin:      100,
		SalaryMax:      50,
		Stake:          1000,
		Deadline:       deadline,
	})
	if !errors.As(err, &valErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = ls.CreatePool("owner", ledger.CreatePoolInput{
		Title:          "Deadline too soon",
		RequiredSkills: []string{"frontend"},
		MinimumLevels:  []uint{6},
		Stake:          1000,
		Deadline:       clock.Now().Add(time.Hour).Unix(),
	})
	if !errors.As(err, &valErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var econErr ledger.EconomicError
	_, err = ls.CreatePool("owner", ledger.CreatePoolInput{
		Title:          "Stake below minimum",
		RequiredSkills: []string{"frontend"},
		MinimumLevels:  []uint{6},
		Stake:          10,
		Deadline:       deadline,
	})
	if !errors.As(err, &econErr) {
		t.Fatalf("expected economic error, got %v", err)
	}
}

func TestMatchScoreFullMatch(t *testing.T) {
	ls, clock := newTestLedger(t)
	credentialId := issueCredential(t, ls, "candidate", "frontend", 8)
	poolId := createTestPool(t, ls, clock, 1000)
	fund(t, ls, "candidate", 100)
	applicationId, err := ls.SubmitApplication(
		"candidate",
		poolId,
		[]uint{credentialId},
		100,
		"cover letter",
		"portfolio",
	)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	applications, err := ls.ApplicationsForPool(poolId)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(applications) != 1 || applications[0].ID != applicationId {
		t.Fatalf("expected the submitted application")
	}
	if applications[0].MatchScore != 100 {
		t.Fatalf("expected match score 100, got %d", applications[0].MatchScore)
	}
}

func TestMatchScorePartialAndMissing(t *testing.T) {
	ls, clock := newTestLedger(t)
	// Level 3 frontend against minimum 6, no backend credential at all
	frontendId := issueCredential(t, ls, "candidate", "frontend", 3)
	fund(t, ls, "owner", 1000)
	poolId, err := ls.CreatePool("owner", ledger.CreatePoolInput{
		Title:          "Full stack",
		RequiredSkills: []string{"frontend", "backend"},
		MinimumLevels:  []uint{6, 6},
		Stake:          1000,
		Deadline:       clock.Now().Add(30 * 24 * time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	fund(t, ls, "candidate", 100)
	_, err = ls.SubmitApplication(
		"candidate",
		poolId,
		[]uint{frontendId},
		100,
		"",
		"",
	)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	applications, err := ls.ApplicationsForPool(poolId)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	// frontend contributes 100*3/6=50, backend contributes 0, average 25
	if applications[0].MatchScore != 25 {
		t.Fatalf("expected match score 25, got %d", applications[0].MatchScore)
	}
}

func TestApplicationRequiresOwnedActiveCredentials(t *testing.T) {
	ls, clock := newTestLedger(t)
	otherId := issueCredential(t, ls, "someone-else", "frontend", 8)
	poolId := createTestPool(t, ls, clock, 1000)
	fund(t, ls, "candidate", 100)
	var authErr ledger.AuthorizationError
	_, err := ls.SubmitApplication(
		"candidate",
		poolId,
		[]uint{otherId},
		100,
		"",
		"",
	)
	if !errors.As(err, &authErr) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	revokedId := issueCredential(t, ls, "candidate", "frontend", 8)
	if err := ls.RevokeCredential("candidate", revokedId, ""); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	var stErr ledger.StateError
	_, err = ls.SubmitApplication(
		"candidate",
		poolId,
		[]uint{revokedId},
		100,
		"",
		"",
	)
	if !errors.As(err, &stErr) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestDuplicateLiveApplication(t *testing.T) {
	ls, clock := newTestLedger(t)
	credentialId := issueCredential(t, ls, "candidate", "frontend", 8)
	poolId := createTestPool(t, ls, clock, 1000)
	fund(t, ls, "candidate", 300)
	_, err := ls.SubmitApplication(
		"candidate", poolId, []uint{credentialId}, 100, "", "",
	)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	var stErr ledger.StateError
	_, err = ls.SubmitApplication(
		"candidate", poolId, []uint{credentialId}, 100, "", "",
	)
	if !errors.As(err, &stErr) {
		t.Fatalf("expected state error on duplicate application, got %v", err)
	}
	// Withdrawing frees the slot
	if err := ls.WithdrawApplication("candidate", poolId); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	_, err = ls.SubmitApplication(
		"candidate", poolId, []uint{credentialId}, 100, "", "",
	)
	if err != nil {
		t.Fatalf("unexpected error after withdrawal: %s", err)
	}
}

// The full happy path: a level-8 frontend credential against a level-6
// requirement scores 100, the owner selects and completes, and the payouts
// land where they should
func TestPoolCompletionPayouts(t *testing.T) {
	ls, clock := newTestLedger(t)
	credentialId := issueCredential(t, ls, "candidate", "frontend", 8)
	poolId := createTestPool(t, ls, clock, 1000)
	fund(t, ls, "candidate", 100)
	_, err := ls.SubmitApplication(
		"candidate", poolId, []uint{credentialId}, 100, "", "",
	)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := ls.SelectCandidate("owner", poolId, "candidate"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	supplyBefore, err := ls.TotalSupply()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := ls.CompletePool("owner", poolId); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	// fee = (1000+100) * 250bps = 27 (floor)
	fee := uint64(1100 * 250 / 10_000)
	if got := balance(t, ls, "candidate"); got != 100 {
		t.Fatalf("expected candidate balance 100, got %d", got)
	}
	if got := balance(t, ls, "owner"); got != 1000-fee {
		t.Fatalf("expected owner balance %d, got %d", 1000-fee, got)
	}
	if got := balance(t, ls, "fees"); got != fee {
		t.Fatalf("expected fee collector balance %d, got %d", fee, got)
	}
	supplyAfter, err := ls.TotalSupply()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if supplyBefore != supplyAfter {
		t.Fatalf(
			"value not conserved: %d before, %d after",
			supplyBefore,
			supplyAfter,
		)
	}
	pool, err := ls.PoolByID(poolId)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if pool.Status != models.PoolStatusCompleted {
		t.Fatalf("expected pool completed, got %s", pool.Status)
	}
}

func TestWithdrawPenaltyDecay(t *testing.T) {
	ls, clock := newTestLedger(t)
	credentialId := issueCredential(t, ls, "early", "frontend", 8)
	lateId := issueCredential(t, ls, "late", "frontend", 7)
	poolId := createTestPool(t, ls, clock, 1000)
	fund(t, ls, "early", 100)
	fund(t, ls, "late", 100)
	_, err := ls.SubmitApplication(
		"early", poolId, []uint{credentialId}, 100, "", "",
	)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	_, err = ls.SubmitApplication(
		"late", poolId, []uint{lateId}, 100, "", "",
	)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	// Withdraw a second after applying: penalty rounds to zero over a 30 day
	// window
	clock.Advance(time.Second)
	if err := ls.WithdrawApplication("early", poolId); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got := balance(t, ls, "early"); got != 100 {
		t.Fatalf("expected full refund, got %d", got)
	}
	// Withdraw exactly at the deadline: the full stake is forfeited
	clock.Set(time.Unix(mustPoolDeadline(t, ls, poolId), 0))
	if err := ls.WithdrawApplication("late", poolId); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got := balance(t, ls, "late"); got != 0 {
		t.Fatalf("expected zero refund at deadline, got %d", got)
	}
	if got := balance(t, ls, "fees"); got != 100 {
		t.Fatalf("expected fee collector to hold the penalty, got %d", got)
	}
}

func mustPoolDeadline(t *testing.T, ls *ledger.LedgerState, poolId uint) int64 {
	t.Helper()
	pool, err := ls.PoolByID(poolId)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	return pool.Deadline
}

func TestClosePoolRefunds(t *testing.T) {
	ls, clock := newTestLedger(t)
	credentialId := issueCredential(t, ls, "candidate", "frontend", 8)
	poolId := createTestPool(t, ls, clock, 1000)
	fund(t, ls, "candidate", 100)
	_, err := ls.SubmitApplication(
		"candidate", poolId, []uint{credentialId}, 100, "", "",
	)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := ls.ClosePool("owner", poolId); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got := balance(t, ls, "owner"); got != 1000 {
		t.Fatalf("expected owner refund 1000, got %d", got)
	}
	if got := balance(t, ls, "candidate"); got != 100 {
		t.Fatalf("expected candidate refund 100, got %d", got)
	}
	pool, err := ls.PoolByID(poolId)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if pool.Status != models.PoolStatusCancelled {
		t.Fatalf("expected pool cancelled, got %s", pool.Status)
	}
}

func TestExpireOldPools(t *testing.T) {
	ls, clock := newTestLedger(t)
	emptyPoolId := createTestPool(t, ls, clock, 1000)
	credentialId := issueCredential(t, ls, "candidate", "frontend", 8)
	fund(t, ls, "owner", 500)
	busyPoolId, err := ls.CreatePool("owner", ledger.CreatePoolInput{
		Title:          "Still has applicants",
		RequiredSkills: []string{"frontend"},
		MinimumLevels:  []uint{6},
		Stake:          500,
		Deadline:       clock.Now().Add(30 * 24 * time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	fund(t, ls, "candidate", 100)
	_, err = ls.SubmitApplication(
		"candidate", busyPoolId, []uint{credentialId}, 100, "", "",
	)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	// Nothing is expirable before the deadline
	expired, err := ls.ExpireOldPools("sweeper", []uint{emptyPoolId, busyPoolId})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(expired) != 0 {
		t.Fatalf("expected no pools expired, got %d", len(expired))
	}
	clock.Advance(31 * 24 * time.Hour)
	expired, err = ls.ExpireOldPools("sweeper", []uint{emptyPoolId, busyPoolId})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(expired) != 1 || expired[0] != emptyPoolId {
		t.Fatalf("expected only the empty pool to expire, got %v", expired)
	}
	if got := balance(t, ls, "owner"); got != 1000 {
		t.Fatalf("expected owner refund 1000, got %d", got)
	}
}

func TestClaimRejectedStake(t *testing.T) {
	ls, clock := newTestLedger(t)
	winnerId := issueCredential(t, ls, "winner", "frontend", 8)
	loserId := issueCredential(t, ls, "loser", "frontend", 6)
	poolId := createTestPool(t, ls, clock, 1000)
	fund(t, ls, "winner", 100)
	fund(t, ls, "loser", 100)
	_, err := ls.SubmitApplication(
		"winner", poolId, []uint{winnerId}, 100, "", "",
	)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	_, err = ls.SubmitApplication(
		"loser", poolId, []uint{loserId}, 100, "", "",
	)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := ls.SelectCandidate("owner", poolId, "winner"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := ls.CompletePool("owner", poolId); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	// The rejected stake stays in custody until claimed
	if got := balance(t, ls, "loser"); got != 0 {
		t.Fatalf("expected loser balance 0 before claim, got %d", got)
	}
	if err := ls.ClaimRejectedStake("loser", poolId); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got := balance(t, ls, "loser"); got != 100 {
		t.Fatalf("expected loser balance 100 after claim, got %d", got)
	}
	var stErr ledger.StateError
	err = ls.ClaimRejectedStake("loser", poolId)
	if !errors.As(err, &stErr) {
		t.Fatalf("expected state error on double claim, got %v", err)
	}
}
