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

	"github.com/openmerit/meritd/database"
	"github.com/openmerit/meritd/database/models"
	"github.com/openmerit/meritd/ledger"
)

const testAdmin = "admin"

func newTestLedger(t *testing.T) (*ledger.LedgerState, *ledger.ManualClock) {
	t.Helper()
	db, err := database.New(&database.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected error creating database: %s", err)
	}
	clock := ledger.NewManualClock(time.Unix(1_700_000_000, 0))
	ls, err := ledger.NewLedgerState(db, ledger.LedgerStateConfig{
		Clock:          clock,
		BootstrapAdmin: testAdmin,
	})
	if err != nil {
		t.Fatalf("unexpected error creating ledger: %s", err)
	}
	t.Cleanup(func() {
		ls.Close() //nolint:errcheck
	})
	return ls, clock
}

func fund(t *testing.T, ls *ledger.LedgerState, address string, amount uint64) {
	t.Helper()
	if err := ls.Mint(testAdmin, address, amount); err != nil {
		t.Fatalf("unexpected error funding %s: %s", address, err)
	}
}

func balance(t *testing.T, ls *ledger.LedgerState, address string) uint64 {
	t.Helper()
	ret, err := ls.BalanceOf(address)
	if err != nil {
		t.Fatalf("unexpected error reading balance: %s", err)
	}
	return ret
}

func issueCredential(
	t *testing.T,
	ls *ledger.LedgerState,
	owner string,
	category string,
	level uint,
) uint {
	t.Helper()
	credentialId, err := ls.IssueCredential(
		testAdmin,
		ledger.IssueCredentialInput{
			Owner:    owner,
			Category: category,
			Level:    level,
		},
	)
	if err != nil {
		t.Fatalf("unexpected error issuing credential: %s", err)
	}
	return credentialId
}

func TestMintRequiresAdmin(t *testing.T) {
	ls, _ := newTestLedger(t)
	err := ls.Mint("mallory", "mallory", 1000)
	var authErr ledger.AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	fund(t, ls, "alice", 1000)
	if got := balance(t, ls, "alice"); got != 1000 {
		t.Fatalf("expected balance 1000, got %d", got)
	}
}

func TestTransfer(t *testing.T) {
	ls, _ := newTestLedger(t)
	fund(t, ls, "alice", 500)
	if err := ls.Transfer("alice", "bob", 200); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got := balance(t, ls, "alice"); got != 300 {
		t.Fatalf("expected balance 300, got %d", got)
	}
	if got := balance(t, ls, "bob"); got != 200 {
		t.Fatalf("expected balance 200, got %d", got)
	}
	err := ls.Transfer("alice", "bob", 9999)
	var econErr ledger.EconomicError
	if !errors.As(err, &econErr) {
		t.Fatalf("expected economic error, got %v", err)
	}
}

func TestLedgerSeqMonotonic(t *testing.T) {
	ls, _ := newTestLedger(t)
	fund(t, ls, "alice", 100)
	fund(t, ls, "bob", 100)
	if err := ls.Transfer("alice", "bob", 10); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	entries, err := ls.Database().LedgerEntriesAfter(0, 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(entries))
	}
	var lastSeq uint64
	for _, entry := range entries {
		if entry.Seq <= lastSeq {
			t.Fatalf(
				"sequence not strictly increasing: %d after %d",
				entry.Seq,
				lastSeq,
			)
		}
		lastSeq = entry.Seq
	}
}

func TestCapabilityGrantRevoke(t *testing.T) {
	ls, _ := newTestLedger(t)
	// Issuing requires the issuer capability (or admin)
	_, err := ls.IssueCredential("carol", ledger.IssueCredentialInput{
		Owner:    "dave",
		Category: "backend",
		Level:    5,
	})
	var authErr ledger.AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	err = ls.GrantCapability(testAdmin, "carol", models.CapabilityIssuer)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	_, err = ls.IssueCredential("carol", ledger.IssueCredentialInput{
		Owner:    "dave",
		Category: "backend",
		Level:    5,
	})
	if err != nil {
		t.Fatalf("unexpected error after grant: %s", err)
	}
	err = ls.RevokeCapability(testAdmin, "carol", models.CapabilityIssuer)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	_, err = ls.IssueCredential("carol", ledger.IssueCredentialInput{
		Owner:    "dave",
		Category: "backend",
		Level:    5,
	})
	if !errors.As(err, &authErr) {
		t.Fatalf("expected authorization error after revoke, got %v", err)
	}
}

func TestRevokeOwnAdminForbidden(t *testing.T) {
	ls, _ := newTestLedger(t)
	err := ls.RevokeCapability(testAdmin, testAdmin, models.CapabilityAdmin)
	var stateErr ledger.StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestSupplyConservedByTransfers(t *testing.T) {
	ls, _ := newTestLedger(t)
	fund(t, ls, "alice", 1000)
	fund(t, ls, "bob", 500)
	supply, err := ls.TotalSupply()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if supply != 1500 {
		t.Fatalf("expected supply 1500, got %d", supply)
	}
	if err := ls.Transfer("alice", "bob", 250); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	supply, err = ls.TotalSupply()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if supply != 1500 {
		t.Fatalf("expected supply 1500 after transfer, got %d", supply)
	}
}
