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

	"github.com/openmerit/meritd/ledger"
)

// registerTestOracle funds and registers an oracle with the given stake
func registerTestOracle(
	t *testing.T,
	ls *ledger.LedgerState,
	participant string,
	stake uint64,
) {
	t.Helper()
	fund(t, ls, participant, stake)
	err := ls.RegisterOracle(
		participant,
		"Test Oracle",
		[]string{"frontend"},
		stake,
	)
	if err != nil {
		t.Fatalf("unexpected error registering oracle: %s", err)
	}
}

// submitTestEvaluation records an evaluation of subject's credential
func submitTestEvaluation(
	t *testing.T,
	ls *ledger.LedgerState,
	evaluator string,
	subject string,
	credentialId uint,
	score uint64,
) uint {
	t.Helper()
	evaluationId, err := ls.SubmitWorkEvaluation(
		evaluator,
		ledger.SubmitWorkEvaluationInput{
			Subject:             subject,
			CredentialIds:       []uint{credentialId},
			Description:         "quarterly review",
			Content:             "detailed findings",
			OverallScore:        score,
			PerCredentialScores: []uint64{score},
		},
	)
	if err != nil {
		t.Fatalf("unexpected error submitting evaluation: %s", err)
	}
	return evaluationId
}

func TestRegisterOracle(t *testing.T) {
	ls, _ := newTestLedger(t)
	fund(t, ls, "oracle1", 1000)
	var econErr ledger.EconomicError
	err := ls.RegisterOracle("oracle1", "Cheap", nil, 100)
	if !errors.As(err, &econErr) {
		t.Fatalf("expected economic error below minimum stake, got %v", err)
	}
	if err := ls.RegisterOracle("oracle1", "Proper", nil, 1000); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got := balance(t, ls, "oracle1"); got != 0 {
		t.Fatalf("expected stake to leave the account, got %d", got)
	}
	var stErr ledger.StateError
	fund(t, ls, "oracle1", 1000)
	err = ls.RegisterOracle("oracle1", "Again", nil, 1000)
	if !errors.As(err, &stErr) {
		t.Fatalf("expected state error on double registration, got %v", err)
	}
}

func TestDeactivateOracleReturnsStake(t *testing.T) {
	ls, _ := newTestLedger(t)
	registerTestOracle(t, ls, "oracle1", 1000)
	if err := ls.DeactivateOracle("oracle1"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got := balance(t, ls, "oracle1"); got != 1000 {
		t.Fatalf("expected stake returned, got %d", got)
	}
	// Re-registration reuses the record
	err := ls.RegisterOracle("oracle1", "Back", nil, 1000)
	if err != nil {
		t.Fatalf("unexpected error re-registering: %s", err)
	}
}

func TestEvaluationCooldown(t *testing.T) {
	ls, clock := newTestLedger(t)
	credentialId := issueCredential(t, ls, "subject", "frontend", 7)
	registerTestOracle(t, ls, "oracle1", 1000)
	submitTestEvaluation(t, ls, "oracle1", "subject", credentialId, 8000)
	clock.Advance(30 * time.Minute)
	var stErr ledger.StateError
	_, err := ls.SubmitWorkEvaluation(
		"oracle1",
		ledger.SubmitWorkEvaluationInput{
			Subject:             "subject",
			CredentialIds:       []uint{credentialId},
			OverallScore:        7000,
			PerCredentialScores: []uint64{7000},
		},
	)
	if !errors.As(err, &stErr) {
		t.Fatalf("expected state error inside cooldown, got %v", err)
	}
	clock.Advance(31 * time.Minute)
	submitTestEvaluation(t, ls, "oracle1", "subject", credentialId, 7000)
}

func TestEvaluationValidation(t *testing.T) {
	ls, _ := newTestLedger(t)
	credentialId := issueCredential(t, ls, "subject", "frontend", 7)
	otherId := issueCredential(t, ls, "someone-else", "frontend", 5)
	registerTestOracle(t, ls, "oracle1", 1000)
	var valErr ledger.ValidationError
	_, err := ls.SubmitWorkEvaluation("oracle1", ledger.SubmitWorkEvaluationInput{
		Subject:             "subject",
		CredentialIds:       []uint{credentialId},
		OverallScore:        10_001,
		PerCredentialScores: []uint64{5000},
	})
	if !errors.As(err, &valErr) {
		t.Fatalf("expected validation error for score above cap, got %v", err)
	}
	_, err = ls.SubmitWorkEvaluation("oracle1", ledger.SubmitWorkEvaluationInput{
		Subject:             "subject",
		CredentialIds:       []uint{credentialId},
		OverallScore:        5000,
		PerCredentialScores: []uint64{5000, 5000},
	})
	if !errors.As(err, &valErr) {
		t.Fatalf("expected validation error for misaligned arrays, got %v", err)
	}
	_, err = ls.SubmitWorkEvaluation("oracle1", ledger.SubmitWorkEvaluationInput{
		Subject:             "subject",
		CredentialIds:       []uint{otherId},
		OverallScore:        5000,
		PerCredentialScores: []uint64{5000},
	})
	if !errors.As(err, &valErr) {
		t.Fatalf("expected validation error for foreign credential, got %v", err)
	}
	var authErr ledger.AuthorizationError
	_, err = ls.SubmitWorkEvaluation("rando", ledger.SubmitWorkEvaluationInput{
		Subject:             "subject",
		CredentialIds:       []uint{credentialId},
		OverallScore:        5000,
		PerCredentialScores: []uint64{5000},
	})
	if !errors.As(err, &authErr) {
		t.Fatalf("expected authorization error for non-oracle, got %v", err)
	}
}

// The running score follows the bounded weighted average exactly: the first
// evaluation lands at face value, later ones are blended with weight
// min(count, cap)
func TestReputationWeightedAverage(t *testing.T) {
	ls, clock := newTestLedger(t)
	credentialId := issueCredential(t, ls, "subject", "frontend", 7)
	registerTestOracle(t, ls, "oracle1", 1000)
	submitTestEvaluation(t, ls, "oracle1", "subject", credentialId, 8000)
	reputation, err := ls.ReputationOf("subject")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if reputation.Score != 8000 {
		t.Fatalf("expected score 8000, got %d", reputation.Score)
	}
	clock.Advance(2 * time.Hour)
	submitTestEvaluation(t, ls, "oracle1", "subject", credentialId, 6000)
	reputation, err = ls.ReputationOf("subject")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	// (8000*1 + 6000) / 2 = 7000
	if reputation.Score != 7000 {
		t.Fatalf("expected score 7000, got %d", reputation.Score)
	}
	clock.Advance(2 * time.Hour)
	submitTestEvaluation(t, ls, "oracle1", "subject", credentialId, 4000)
	reputation, err = ls.ReputationOf("subject")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	// (7000*2 + 4000) / 3 = 6000
	if reputation.Score != 6000 {
		t.Fatalf("expected score 6000, got %d", reputation.Score)
	}
	if reputation.EvaluationCount != 3 {
		t.Fatalf(
			"expected 3 evaluations counted, got %d",
			reputation.EvaluationCount,
		)
	}
}

func TestChallengeWindow(t *testing.T) {
	ls, clock := newTestLedger(t)
	credentialId := issueCredential(t, ls, "subject", "frontend", 7)
	registerTestOracle(t, ls, "oracle1", 1000)
	evaluationId := submitTestEvaluation(
		t, ls, "oracle1", "subject", credentialId, 8500,
	)
	fund(t, ls, "challenger", 100)
	clock.Advance(8 * 24 * time.Hour)
	var stErr ledger.StateError
	_, err := ls.ChallengeEvaluation("challenger", evaluationId, "stale", 50)
	if !errors.As(err, &stErr) {
		t.Fatalf("expected state error outside window, got %v", err)
	}
}

func TestOneOpenChallengePerEvaluation(t *testing.T) {
	ls, _ := newTestLedger(t)
	credentialId := issueCredential(t, ls, "subject", "frontend", 7)
	registerTestOracle(t, ls, "oracle1", 1000)
	evaluationId := submitTestEvaluation(
		t, ls, "oracle1", "subject", credentialId, 8500,
	)
	fund(t, ls, "challenger1", 100)
	fund(t, ls, "challenger2", 100)
	_, err := ls.ChallengeEvaluation("challenger1", evaluationId, "wrong", 50)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	var stErr ledger.StateError
	_, err = ls.ChallengeEvaluation("challenger2", evaluationId, "also wrong", 50)
	if !errors.As(err, &stErr) {
		t.Fatalf("expected state error on second open challenge, got %v", err)
	}
}

// The slashing scenario: an 8500 evaluation challenged within the window and
// not upheld costs the oracle 10% of stake, paid to the challenger on top of
// their own stake back
func TestChallengeSlashing(t *testing.T) {
	ls, _ := newTestLedger(t)
	credentialId := issueCredential(t, ls, "subject", "frontend", 7)
	registerTestOracle(t, ls, "oracle1", 1000)
	evaluationId := submitTestEvaluation(
		t, ls, "oracle1", "subject", credentialId, 8500,
	)
	fund(t, ls, "challenger", 50)
	challengeId, err := ls.ChallengeEvaluation(
		"challenger", evaluationId, "inflated", 50,
	)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	err = ls.ResolveChallenge(testAdmin, challengeId, false, "evidence holds")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	// Stake back plus 10% of the oracle's 1000
	if got := balance(t, ls, "challenger"); got != 150 {
		t.Fatalf("expected challenger balance 150, got %d", got)
	}
	oracle, err := ls.OracleOf("oracle1")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if oracle.Stake != 900 {
		t.Fatalf("expected oracle stake 900, got %d", oracle.Stake)
	}
	if oracle.FailedCount != 1 {
		t.Fatalf("expected 1 failed challenge, got %d", oracle.FailedCount)
	}
	evaluation, err := ls.EvaluationByID(evaluationId)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !evaluation.ReversalNeeded {
		t.Fatalf("expected evaluation flagged for reversal")
	}
}

func TestChallengeUpheld(t *testing.T) {
	ls, _ := newTestLedger(t)
	credentialId := issueCredential(t, ls, "subject", "frontend", 7)
	registerTestOracle(t, ls, "oracle1", 1000)
	evaluationId := submitTestEvaluation(
		t, ls, "oracle1", "subject", credentialId, 8500,
	)
	fund(t, ls, "challenger", 50)
	challengeId, err := ls.ChallengeEvaluation(
		"challenger", evaluationId, "inflated", 50,
	)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	err = ls.ResolveChallenge(testAdmin, challengeId, true, "evaluation stands")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got := balance(t, ls, "challenger"); got != 50 {
		t.Fatalf("expected challenger stake returned, got %d", got)
	}
	oracle, err := ls.OracleOf("oracle1")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if oracle.Stake != 1000 {
		t.Fatalf("expected oracle stake untouched, got %d", oracle.Stake)
	}
	if oracle.DefenseCount != 1 {
		t.Fatalf("expected 1 successful defense, got %d", oracle.DefenseCount)
	}
}

func TestResolverCapabilityRequired(t *testing.T) {
	ls, _ := newTestLedger(t)
	credentialId := issueCredential(t, ls, "subject", "frontend", 7)
	registerTestOracle(t, ls, "oracle1", 1000)
	evaluationId := submitTestEvaluation(
		t, ls, "oracle1", "subject", credentialId, 8500,
	)
	fund(t, ls, "challenger", 50)
	challengeId, err := ls.ChallengeEvaluation(
		"challenger", evaluationId, "inflated", 50,
	)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	var authErr ledger.AuthorizationError
	err = ls.ResolveChallenge("rando", challengeId, true, "")
	if !errors.As(err, &authErr) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestDeactivateBlockedByOpenChallenge(t *testing.T) {
	ls, _ := newTestLedger(t)
	credentialId := issueCredential(t, ls, "subject", "frontend", 7)
	registerTestOracle(t, ls, "oracle1", 1000)
	evaluationId := submitTestEvaluation(
		t, ls, "oracle1", "subject", credentialId, 8500,
	)
	fund(t, ls, "challenger", 50)
	challengeId, err := ls.ChallengeEvaluation(
		"challenger", evaluationId, "inflated", 50,
	)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	var stErr ledger.StateError
	err = ls.DeactivateOracle("oracle1")
	if !errors.As(err, &stErr) {
		t.Fatalf("expected state error with open challenge, got %v", err)
	}
	err = ls.ResolveChallenge(testAdmin, challengeId, true, "stands")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := ls.DeactivateOracle("oracle1"); err != nil {
		t.Fatalf("unexpected error after resolution: %s", err)
	}
}

// Three failed challenges retire the oracle automatically, with whatever
// stake remains after the final slash refunded
func TestAutoDeactivateAfterFailedChallenges(t *testing.T) {
	ls, clock := newTestLedger(t)
	credentialId := issueCredential(t, ls, "subject", "frontend", 7)
	registerTestOracle(t, ls, "oracle1", 1000)
	expectedStake := uint64(1000)
	for i := range 3 {
		evaluationId := submitTestEvaluation(
			t, ls, "oracle1", "subject", credentialId, 8500,
		)
		fund(t, ls, "challenger", 50)
		challengeId, err := ls.ChallengeEvaluation(
			"challenger", evaluationId, "inflated", 50,
		)
		if err != nil {
			t.Fatalf("unexpected error on round %d: %s", i, err)
		}
		err = ls.ResolveChallenge(testAdmin, challengeId, false, "holds")
		if err != nil {
			t.Fatalf("unexpected error on round %d: %s", i, err)
		}
		expectedStake -= expectedStake / 10
		clock.Advance(2 * time.Hour)
	}
	oracle, err := ls.OracleOf("oracle1")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if oracle.Active {
		t.Fatalf("expected oracle deactivated after 3 failures")
	}
	if oracle.FailedCount != 3 {
		t.Fatalf("expected 3 failed challenges, got %d", oracle.FailedCount)
	}
	if oracle.Stake != 0 {
		t.Fatalf("expected no stranded stake, got %d", oracle.Stake)
	}
	// 1000 -> 900 -> 810 -> 729 refunded on auto-deactivation
	if got := balance(t, ls, "oracle1"); got != expectedStake {
		t.Fatalf(
			"expected residual stake %d refunded, got %d",
			expectedStake,
			got,
		)
	}
}
