package ledger

import (
	"fmt"
	"sync"

	"github.com/orb-momentum-bot/pkg/symlock"
)

// errInvariant reports a violated ledger invariant. It is returned, never
// panicked, so callers (mainly tests) can assert on it.
func errInvariant(tag, symbol string) error {
	return fmt.Errorf("ledger invariant %s violated for %s", tag, symbol)
}

// Ledger is the authoritative in-process position book. It owns a symlock
// group so callers can serialize the full read-decide-act-write sequence for
// a symbol (including, when the caller chooses, an order-placement RPC)
// against both concurrent reconciliation and concurrent evaluation of the
// same symbol.
type Ledger struct {
	locks *symlock.Group

	mu        sync.Mutex
	positions map[string]*Position
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		locks:     symlock.NewGroup(),
		positions: make(map[string]*Position),
	}
}

// WithSymbol runs fn while holding symbol's logical lock. fn
// receives the current position for symbol (created fresh in SEARCHING
// state if this is the first time the symbol is seen) and may mutate it in
// place; any RPC fn performs is itself serialized against concurrent
// reconciliation/evaluation for the same symbol, which is the point of the
// lock. The structural map lookup is protected independently so WithSymbol
// never blocks on unrelated symbols even while another symbol's fn is
// in-flight on an RPC.
func (l *Ledger) WithSymbol(symbol string, fn func(pos *Position)) {
	l.locks.With(symbol, func() {
		pos := l.getOrCreate(symbol)
		fn(pos)
	})
}

// Snapshot returns a copy of the current position for symbol, or the zero
// Position with State SEARCHING if the symbol has never been seen. Intended
// for read-only consumers (dashboard, metrics) that must not hold up the
// logical lock.
func (l *Ledger) Snapshot(symbol string) Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	if pos, ok := l.positions[symbol]; ok {
		return *pos
	}
	return Position{Symbol: symbol, State: StateSearching}
}

// All returns a snapshot copy of every tracked position, keyed by symbol.
func (l *Ledger) All() map[string]Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]Position, len(l.positions))
	for sym, pos := range l.positions {
		out[sym] = *pos
	}
	return out
}

// Drop removes a closed symbol's record and its lock entry entirely. Callers
// must only do this from within a WithSymbol closure for that symbol, with
// the position already in StateClosed, to avoid racing a concurrent
// getOrCreate.
func (l *Ledger) Drop(symbol string) {
	l.mu.Lock()
	delete(l.positions, symbol)
	l.mu.Unlock()
	l.locks.Forget(symbol)
}

// CountInPosition returns the number of symbols currently IN_POSITION, used
// by the strategy evaluator's max_concurrent_positions gate.
func (l *Ledger) CountInPosition() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, pos := range l.positions {
		if pos.State == StateInPosition {
			n++
		}
	}
	return n
}

func (l *Ledger) getOrCreate(symbol string) *Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[symbol]
	if !ok {
		pos = &Position{Symbol: symbol, State: StateSearching}
		l.positions[symbol] = pos
	}
	return pos
}
