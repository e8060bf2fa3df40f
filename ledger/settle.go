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

	"github.com/openmerit/meritd/database"
	"github.com/openmerit/meritd/database/models"
)

// escrowAccount holds all stakes while they are in protocol custody
const escrowAccount = "escrow"

// pendingTransfer is a credit queued during an operation body and applied
// during settlement, after every state mutation has succeeded. Debits happen
// inline so insufficient funds reject the operation up front; credits are
// deferred so a partially-applied operation never pays anyone out.
type pendingTransfer struct {
	from   string
	to     string
	amount uint64
}

// debit removes funds from an account immediately, failing the operation when
// the balance is short
func (l *LedgerState) debit(
	ctx *opCtx,
	address string,
	amount uint64,
) error {
	if amount == 0 {
		return nil
	}
	account, found, err := l.db.GetAccount(address, ctx.txn)
	if err != nil {
		return err
	}
	if !found || account.Balance < amount {
		return EconomicError{
			Reason: fmt.Sprintf("insufficient balance for %s", address),
			Need:   amount,
			Have:   account.Balance,
		}
	}
	account.Balance -= amount
	return l.db.SetAccount(&account, ctx.txn)
}

// queueCredit defers a credit until settlement
func (l *LedgerState) queueCredit(
	ctx *opCtx,
	from string,
	to string,
	amount uint64,
) {
	if amount == 0 {
		return
	}
	ctx.transfers = append(ctx.transfers, pendingTransfer{
		from:   from,
		to:     to,
		amount: amount,
	})
}

// stakeToEscrow debits the staker and queues the matching escrow credit
func (l *LedgerState) stakeToEscrow(
	ctx *opCtx,
	staker string,
	amount uint64,
) error {
	if err := l.debit(ctx, staker, amount); err != nil {
		return err
	}
	l.queueCredit(ctx, staker, escrowAccount, amount)
	return nil
}

// releaseEscrow debits escrow and queues a credit to the recipient. Escrow
// going short here means a bookkeeping bug, not user error, so it fails the
// whole operation.
func (l *LedgerState) releaseEscrow(
	ctx *opCtx,
	to string,
	amount uint64,
) error {
	if err := l.debit(ctx, escrowAccount, amount); err != nil {
		return fmt.Errorf("escrow release: %w", err)
	}
	l.queueCredit(ctx, escrowAccount, to, amount)
	return nil
}

// settleTransfers applies the queued credits. Runs after the operation body
// and log append, inside the same transaction.
func (l *LedgerState) settleTransfers(ctx *opCtx) error {
	for _, transfer := range ctx.transfers {
		account, _, err := l.db.GetAccount(transfer.to, ctx.txn)
		if err != nil {
			return err
		}
		if account.Address == "" {
			account.Address = transfer.to
		}
		account.Balance += transfer.amount
		if err := l.db.SetAccount(&account, ctx.txn); err != nil {
			return err
		}
		ctx.emit(TransferEventType, TransferEvent{
			From:   transfer.from,
			To:     transfer.to,
			Amount: transfer.amount,
			Op:     ctx.op,
		})
	}
	return nil
}

// Mint credits new funds to an address. Restricted to admin; this is the only
// operation that changes the total supply upward.
func (l *LedgerState) Mint(actor, to string, amount uint64) error {
	return l.runOp("ledger.mint", actor, func(ctx *opCtx) error {
		if err := l.requireCapability(ctx, actor, models.CapabilityAdmin); err != nil {
			return err
		}
		if to == "" {
			return validationErr("to", "empty address")
		}
		if amount == 0 {
			return validationErr("amount", "must be positive")
		}
		ctx.ref = "account/" + to
		l.queueCredit(ctx, "", to, amount)
		return nil
	})
}

// Transfer moves funds between accounts. The actor can only spend their own
// balance.
func (l *LedgerState) Transfer(actor, to string, amount uint64) error {
	return l.runOp("ledger.transfer", actor, func(ctx *opCtx) error {
		if to == "" {
			return validationErr("to", "empty address")
		}
		if to == actor {
			return validationErr("to", "cannot transfer to self")
		}
		if amount == 0 {
			return validationErr("amount", "must be positive")
		}
		ctx.ref = "account/" + to
		if err := l.debit(ctx, actor, amount); err != nil {
			return err
		}
		l.queueCredit(ctx, actor, to, amount)
		return nil
	})
}

// BalanceOf returns the current balance for an address. Unknown addresses
// have a zero balance.
func (l *LedgerState) BalanceOf(address string) (uint64, error) {
	var balance uint64
	err := l.view(func(txn *database.Txn) error {
		account, found, err := l.db.GetAccount(address, txn)
		if err != nil {
			return err
		}
		if found {
			balance = account.Balance
		}
		return nil
	})
	return balance, err
}

// TotalSupply returns the sum of every account balance, escrow included
func (l *LedgerState) TotalSupply() (uint64, error) {
	var total uint64
	err := l.view(func(txn *database.Txn) error {
		var err error
		total, err = l.db.TotalAccountBalance(txn)
		return err
	})
	return total, err
}
