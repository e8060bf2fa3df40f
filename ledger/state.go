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
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/openmerit/meritd/database"
	"github.com/openmerit/meritd/database/models"
	"github.com/openmerit/meritd/event"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerStateConfig is the configuration for LedgerState
type LedgerStateConfig struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Clock        Clock
	// BootstrapAdmin receives the admin capability when the capability table
	// is empty. Without it a fresh ledger has no way to grant anything.
	BootstrapAdmin string
}

// LedgerState applies operations against the stores. All mutating operations
// are serialized behind a single mutex; each runs in one transaction that
// either commits every side effect (entity rows, balance moves, the log row)
// or none of them.
type LedgerState struct {
	sync.RWMutex
	config  LedgerStateConfig
	db      *database.Database
	metrics *stateMetrics
	// inOp tracks operation families mid-settlement. An operation that winds
	// up re-entering its own family (via a governance execution hook, for
	// example) is rejected rather than allowed to interleave.
	inOp map[string]bool
}

func NewLedgerState(
	db *database.Database,
	cfg LedgerStateConfig,
) (*LedgerState, error) {
	if db == nil {
		return nil, errors.New("no database provided")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	ls := &LedgerState{
		config: cfg,
		db:     db,
		inOp:   make(map[string]bool),
	}
	if cfg.PromRegistry != nil {
		ls.metrics = newStateMetrics(cfg.PromRegistry)
	}
	err := db.Update(func(txn *database.Txn) error {
		if err := seedParams(db, txn); err != nil {
			return fmt.Errorf("seed params: %w", err)
		}
		return ls.bootstrapAdmin(txn)
	})
	if err != nil {
		return nil, err
	}
	if ls.metrics != nil {
		seq, err := db.LatestLedgerSeq(nil)
		if err != nil {
			return nil, err
		}
		ls.metrics.ledgerSeq.Set(float64(seq))
	}
	return ls, nil
}

// Database returns the underlying database
func (l *LedgerState) Database() *database.Database {
	return l.db
}

// Close releases the ledger's database handles
func (l *LedgerState) Close() error {
	return l.db.Close()
}

// opCtx carries the per-operation transaction, the evaluation timestamp, and
// the side effects queued for after the state mutations succeed
type opCtx struct {
	txn       *database.Txn
	now       time.Time
	op        string
	actor     string
	ref       string
	transfers []pendingTransfer
	events    []queuedEvent
}

type queuedEvent struct {
	eventType event.EventType
	data      any
}

func (c *opCtx) emit(eventType event.EventType, data any) {
	c.events = append(c.events, queuedEvent{eventType: eventType, data: data})
}

// opFamily derives the reentrancy-guard key from an operation name, e.g.
// "matching.complete-pool" guards the "matching" family
func opFamily(op string) string {
	if idx := strings.IndexByte(op, '.'); idx >= 0 {
		return op[:idx]
	}
	return op
}

// runOp executes a single mutating operation. Lifecycle: serialize, guard the
// operation family, open a read-write transaction, run the operation body
// (validation and state mutations, with credits queued rather than applied),
// append the log row, settle queued credits, commit, then publish events.
// Any error before commit rolls back every side effect.
func (l *LedgerState) runOp(
	op string,
	actor string,
	fn func(*opCtx) error,
) error {
	l.Lock()
	defer l.Unlock()
	family := opFamily(op)
	if l.inOp[family] {
		return ErrReentrancy
	}
	l.inOp[family] = true
	defer delete(l.inOp, family)

	ctx := &opCtx{
		now:   l.config.Clock.Now(),
		op:    op,
		actor: actor,
	}
	err := func() error {
		ctx.txn = l.db.Transaction(true)
		defer ctx.txn.Rollback() //nolint:errcheck
		if err := fn(ctx); err != nil {
			return err
		}
		entry := models.LedgerEntry{
			Op:        op,
			Actor:     actor,
			Ref:       ctx.ref,
			Timestamp: ctx.now.Unix(),
		}
		if err := l.db.AppendLedgerEntry(&entry, ctx.txn); err != nil {
			return fmt.Errorf("append ledger entry: %w", err)
		}
		if err := l.settleTransfers(ctx); err != nil {
			return err
		}
		if err := ctx.txn.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		if l.metrics != nil {
			l.metrics.ledgerSeq.Set(float64(entry.Seq))
		}
		return nil
	}()
	if err != nil {
		if l.metrics != nil {
			l.metrics.opErrors.WithLabelValues(op).Inc()
		}
		l.config.Logger.Debug(
			"operation rejected",
			"component", "ledger",
			"op", op,
			"actor", actor,
			"error", err,
		)
		return err
	}
	if l.metrics != nil {
		l.metrics.opsTotal.WithLabelValues(op).Inc()
	}
	l.config.Logger.Info(
		"operation applied",
		"component", "ledger",
		"op", op,
		"actor", actor,
		"ref", ctx.ref,
	)
	if l.config.EventBus != nil {
		for _, evt := range ctx.events {
			l.config.EventBus.Publish(
				evt.eventType,
				event.NewEvent(evt.eventType, evt.data),
			)
		}
	}
	return nil
}

// view runs a read-only query against a consistent snapshot
func (l *LedgerState) view(fn func(*database.Txn) error) error {
	l.RLock()
	defer l.RUnlock()
	return l.db.View(fn)
}
