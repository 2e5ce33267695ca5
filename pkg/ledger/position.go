// Package ledger implements the authoritative in-process position ledger.
// The ledger never talks to the broker;
// it is mutated only by the execution reconciler, the strategy evaluator,
// and the kill-switch, always under the symbol's logical lock.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// State is a position's point in its lifecycle.
type State string

const (
	StateSearching        State = "SEARCHING"
	StatePendingEntry     State = "PENDING_ENTRY"
	StateInPosition       State = "IN_POSITION"
	StatePendingExit      State = "PENDING_EXIT"
	StateClosed           State = "CLOSED"
	StateErrorExitOrder   State = "ERROR_EXIT_ORDER"
	StateErrorLiquidation State = "ERROR_LIQUIDATION"
)

// ExitSignal names why an exit attempt was started.
type ExitSignal string

const (
	ExitNone               ExitSignal = ""
	ExitHaltStop           ExitSignal = "HALT_STOP"
	ExitTimeStop           ExitSignal = "TIME_STOP"
	ExitTakeProfit         ExitSignal = "TAKE_PROFIT"
	ExitStopLoss           ExitSignal = "STOP_LOSS"
	ExitEMACrossSell       ExitSignal = "EMA_CROSS_SELL"
	ExitVWAPBreakSell      ExitSignal = "VWAP_BREAK_SELL"
	ExitPartialTakeProfit  ExitSignal = "PARTIAL_TAKE_PROFIT"
	ExitKillSwitch         ExitSignal = "KILL_SWITCH"
)

// RiskParams is the immutable strategy-configuration snapshot locked into a
// position at entry time.
type RiskParams struct {
	TargetProfitPct  decimal.Decimal
	StopLossPct      decimal.Decimal
	PartialProfitPct decimal.Decimal // may be the zero value meaning "not configured"
	HasPartialProfit bool
	PartialRatio     decimal.Decimal
}

// Position is the per-symbol record tracked by the ledger.
type Position struct {
	Symbol string
	State  State

	EntryPrice decimal.Decimal
	Size       int64
	EntryTime  time.Time

	PendingOrderID       string
	OriginalOrderQty     int64
	FilledQuantity       int64
	FilledValue          decimal.Decimal
	ExitSignal           ExitSignal
	OriginalSizeBeforeExit int64
	SizeToSell           int64
	PartialProfitTaken   bool

	Risk RiskParams
}

// ProfitPct returns (close-entry)/entry*100. Callers must only call this for
// a position with EntryPrice > 0.
func (p *Position) ProfitPct(close decimal.Decimal) decimal.Decimal {
	if p.EntryPrice.IsZero() {
		return decimal.Zero
	}
	return close.Sub(p.EntryPrice).Div(p.EntryPrice).Mul(decimal.NewFromInt(100))
}

// checkInvariants validates the state-machine invariants for tests; it does not run on
// every mutation in production (that would defeat the point of invariants
// being properties of correct transitions, not runtime assertions), but
// reconciler and evaluator unit tests call it after every transition.
func (p *Position) checkInvariants() error {
	switch p.State {
	case StateInPosition:
		if p.Size <= 0 || p.EntryPrice.LessThanOrEqual(decimal.Zero) || p.PendingOrderID != "" {
			return errInvariant("in-position requires size, entry price, no pending order", p.Symbol)
		}
	case StatePendingEntry, StatePendingExit:
		if p.PendingOrderID == "" {
			return errInvariant("pending state requires a pending order id", p.Symbol)
		}
	}
	return nil
}
