// Package reconcile implements the execution and balance reconciler: the only component permitted to adopt the broker's remote truth over
// local ledger state, and the only writer of completed trades into the
// journal.
package reconcile

import (
	"time"

	"github.com/orb-momentum-bot/pkg/ledger"
	"github.com/shopspring/decimal"
)

// OrderStatus is the neutral enum the transport layer maps localized broker
// status strings onto.
type OrderStatus string

const (
	StatusAccepted     OrderStatus = "ACCEPTED"
	StatusPartialFill  OrderStatus = "PARTIAL_FILL"
	StatusFill         OrderStatus = "FILL"
	StatusCancelled    OrderStatus = "CANCELLED"
	StatusRejected     OrderStatus = "REJECTED"
	StatusModified     OrderStatus = "MODIFIED"
)

// Side mirrors the order side reported on the update.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderUpdate is the parsed account-global order-update event.
type OrderUpdate struct {
	OrderID      string
	Symbol       string
	Side         Side
	Status       OrderStatus
	ExecQty      int64
	ExecPrice    decimal.Decimal
	UnfilledQty  int64
	OriginalQty  int64
	ExecSeq      int64 // 0 if the broker does not supply one
	HasExecSeq   bool
}

// BalanceUpdate is the parsed account-global balance-update event.
type BalanceUpdate struct {
	Symbol    string
	HeldSize  int64
	AvgPrice  decimal.Decimal
}

// CompletedTrade is one line the reconciler appends to the trade journal each
// time an exit completes: a partial take-profit once its fills reach
// SizeToSell, or a full exit once they reach OriginalSizeBeforeExit.
type CompletedTrade struct {
	Symbol                 string
	EntryTime              time.Time
	EntryPrice             decimal.Decimal
	ExitFillValue          decimal.Decimal
	ExitFillQuantity       int64
	OriginalSizeBeforeExit int64
	ExitSignal             ledger.ExitSignal
	ClosedAt               time.Time
}

// Journal receives one CompletedTrade per completed exit (partial take-profit
// or full exit); fill events that do not complete an exit are not recorded.
type Journal interface {
	Append(trade CompletedTrade) error
}

// Subscriptions is the narrow subscription-manager surface the reconciler
// needs: a balance update discovering an untracked position must trigger a
// feed subscription.
type Subscriptions interface {
	EnsureSubscribed(symbol string)
	Unsubscribe(symbol string)
}

// Reconciler applies order-update and balance-update events to the ledger.
type Reconciler struct {
	ledger  *ledger.Ledger
	journal Journal
	subs    Subscriptions

	seen seenOrders
}

// New creates a Reconciler. journal and subs may be nil in tests that only
// exercise ledger transitions.
func New(l *ledger.Ledger, journal Journal, subs Subscriptions) *Reconciler {
	return &Reconciler{ledger: l, journal: journal, subs: subs, seen: newSeenOrders()}
}

// OnOrderUpdate applies one order-update event. It is idempotent: a duplicate or out-of-order update is dropped
// before it can double-count a fill.
func (r *Reconciler) OnOrderUpdate(u OrderUpdate) {
	r.ledger.WithSymbol(u.Symbol, func(pos *ledger.Position) {
		if !r.seen.accept(u) {
			return
		}
		switch pos.State {
		case ledger.StatePendingEntry:
			r.applyEntryUpdate(pos, u)
		case ledger.StatePendingExit:
			r.applyExitUpdate(pos, u)
		default:
			// An update for an order we no longer recognize (already
			// terminal, or for a symbol with no open workflow); ignore.
		}
	})
}

func (r *Reconciler) applyEntryUpdate(pos *ledger.Position, u OrderUpdate) {
	if pos.PendingOrderID != "" && pos.PendingOrderID != u.OrderID {
		return
	}

	switch u.Status {
	case StatusPartialFill, StatusFill:
		pos.FilledQuantity += u.ExecQty
		pos.FilledValue = pos.FilledValue.Add(u.ExecPrice.Mul(decimal.NewFromInt(u.ExecQty)))

		if u.UnfilledQty == 0 || pos.FilledQuantity >= pos.OriginalOrderQty {
			finalizeEntry(pos)
		}

	case StatusCancelled, StatusRejected:
		if pos.FilledQuantity == 0 {
			pos.State = ledger.StateClosed
			if r.subs != nil {
				r.subs.Unsubscribe(pos.Symbol)
			}
			// Free the symbol for a later entry.
			r.ledger.Drop(pos.Symbol)
			return
		}
		finalizeEntry(pos)
	}
}

// finalizeEntry transitions a PENDING_ENTRY position to IN_POSITION using
// its current fill accumulators.
func finalizeEntry(pos *ledger.Position) {
	pos.Size = pos.FilledQuantity
	pos.EntryPrice = pos.FilledValue.Div(decimal.NewFromInt(pos.FilledQuantity))
	pos.EntryTime = time.Now()
	pos.PendingOrderID = ""
	pos.PartialProfitTaken = false
	pos.State = ledger.StateInPosition
}

func (r *Reconciler) applyExitUpdate(pos *ledger.Position, u OrderUpdate) {
	if pos.PendingOrderID != "" && pos.PendingOrderID != u.OrderID {
		return
	}

	switch u.Status {
	case StatusPartialFill, StatusFill:
		pos.FilledQuantity += u.ExecQty
		pos.FilledValue = pos.FilledValue.Add(u.ExecPrice.Mul(decimal.NewFromInt(u.ExecQty)))

		if pos.ExitSignal == ledger.ExitPartialTakeProfit {
			r.applyPartialExitFill(pos)
		} else {
			r.applyFullExitFill(pos, u)
		}

	case StatusCancelled, StatusRejected:
		remaining := pos.OriginalSizeBeforeExit - pos.FilledQuantity
		pos.Size = remaining
		pos.PendingOrderID = ""
		pos.ExitSignal = ledger.ExitNone
		pos.SizeToSell = 0
		pos.FilledQuantity = 0
		pos.FilledValue = decimal.Zero
		if remaining > 0 {
			pos.State = ledger.StateInPosition
		} else {
			pos.State = ledger.StateClosed
			r.ledger.Drop(pos.Symbol)
		}
	}
}

func (r *Reconciler) applyPartialExitFill(pos *ledger.Position) {
	if pos.FilledQuantity < pos.SizeToSell {
		return
	}
	r.recordExit(pos, ledger.ExitPartialTakeProfit)

	pos.Size -= pos.FilledQuantity
	pos.PartialProfitTaken = true
	pos.PendingOrderID = ""
	pos.ExitSignal = ledger.ExitNone
	pos.SizeToSell = 0
	pos.FilledQuantity = 0
	pos.FilledValue = decimal.Zero

	if pos.Size <= 0 {
		pos.State = ledger.StateClosed
		r.ledger.Drop(pos.Symbol)
	} else {
		pos.State = ledger.StateInPosition
	}
}

func (r *Reconciler) applyFullExitFill(pos *ledger.Position, u OrderUpdate) {
	if pos.FilledQuantity < pos.OriginalSizeBeforeExit {
		return
	}
	r.recordExit(pos, pos.ExitSignal)
	pos.Size = 0
	pos.State = ledger.StateClosed
	// The dropped record frees the symbol so a fresh breakout can open a new
	// position; the completed trade already lives in the journal.
	r.ledger.Drop(pos.Symbol)
}

func (r *Reconciler) recordExit(pos *ledger.Position, signal ledger.ExitSignal) {
	if r.journal == nil {
		return
	}
	_ = r.journal.Append(CompletedTrade{
		Symbol:                 pos.Symbol,
		EntryTime:              pos.EntryTime,
		EntryPrice:             pos.EntryPrice,
		ExitFillValue:          pos.FilledValue,
		ExitFillQuantity:       pos.FilledQuantity,
		OriginalSizeBeforeExit: pos.OriginalSizeBeforeExit,
		ExitSignal:             signal,
		ClosedAt:               time.Now(),
	})
}

// OnBalanceUpdate applies one balance-update event. These run at lower priority than order updates in the sense that
// they never change the entry_price of a tracked position; they only adopt
// remote size. The one exception is an untracked remote holding, which is
// adopted with the broker's average price as its entry price.
func (r *Reconciler) OnBalanceUpdate(b BalanceUpdate) {
	r.ledger.WithSymbol(b.Symbol, func(pos *ledger.Position) {
		switch {
		case pos.State == ledger.StateSearching && b.HeldSize > 0:
			pos.State = ledger.StateInPosition
			pos.Size = b.HeldSize
			pos.EntryPrice = b.AvgPrice
			pos.EntryTime = time.Now()
			if r.subs != nil {
				r.subs.EnsureSubscribed(b.Symbol)
			}

		case (pos.State == ledger.StateInPosition || pos.State == ledger.StatePendingExit) && b.HeldSize == 0:
			pos.Size = 0
			pos.State = ledger.StateClosed
			if r.subs != nil {
				r.subs.Unsubscribe(b.Symbol)
			}
			r.ledger.Drop(b.Symbol)

		case (pos.State == ledger.StateInPosition || pos.State == ledger.StatePendingExit) && pos.Size != b.HeldSize:
			pos.Size = b.HeldSize
		}
	})
}
