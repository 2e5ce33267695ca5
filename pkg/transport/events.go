// Package transport owns the long-lived bidirectional brokerage channel:
// connecting, registering/unregistering per-symbol and account-global
// feeds, and parsing raw frames into the tagged event variants the core
// consumes.
package transport

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeEvent is a parsed "0B"-equivalent per-trade record.
type TradeEvent struct {
	Symbol      string
	Price       decimal.Decimal
	SignedVol   int64 // positive = buyer-initiated, negative = seller-initiated
	EventTime   time.Time
}

// BookEvent is a parsed "0D"-equivalent order-book snapshot.
type BookEvent struct {
	Symbol         string
	Ask1           decimal.Decimal
	Bid1           decimal.Decimal
	Ask1Volume     int64
	Bid1Volume     int64
	TotalAskVolume int64
	TotalBidVolume int64
}

// HaltEvent is a parsed "1h"-equivalent volatility-halt (VI) notice.
type HaltEvent struct {
	Symbol      string
	Activated   bool
	HaltType    string
	Direction   string
	ReleaseTime string // HHMMSS, "" if not applicable
}

// OrderUpdateEvent is a parsed "00"-equivalent account-global execution
// report. RawStatus is the raw localized broker string; callers map it to the
// neutral pkg/reconcile.OrderStatus enum.
type OrderUpdateEvent struct {
	OrderID        string
	Symbol         string
	RawStatus      string
	ExecQuantity   int64
	ExecPrice      decimal.Decimal
	UnfilledQty    int64
	OriginalQty    int64
}

// BalanceEvent is a parsed "04"-equivalent account-global balance update.
type BalanceEvent struct {
	Symbol   string
	HeldSize int64
	AvgPrice decimal.Decimal
}

// RegistrationAck reports the result of a REG/REMOVE acknowledgement frame.
type RegistrationAck struct {
	Registering bool // true for REG, false for REMOVE
	Accepted    bool
	Message     string
}

// Event is the dispatched union; exactly one field is non-nil.
type Event struct {
	Trade        *TradeEvent
	Book         *BookEvent
	Halt         *HaltEvent
	OrderUpdate  *OrderUpdateEvent
	Balance      *BalanceEvent
	Registration *RegistrationAck
}
