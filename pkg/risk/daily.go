package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DailyLimits accumulates realized P&L per trading day and reports when the
// configured daily loss limit is breached. Crossing the limit is a
// liquidate-and-stop condition, not a soft warning: the supervisor wires
// Breached into the kill switch.
type DailyLimits struct {
	maxDailyLoss decimal.Decimal // positive magnitude; zero disables the limit

	mu       sync.Mutex
	day      time.Time
	realized decimal.Decimal
	breached bool
}

// NewDailyLimits creates a limiter. maxDailyLoss is the loss magnitude that
// trips it (e.g. 500000 means stop after -500000); zero disables.
func NewDailyLimits(maxDailyLoss decimal.Decimal) *DailyLimits {
	return &DailyLimits{maxDailyLoss: maxDailyLoss}
}

// OnRealized folds one exit's realized P&L in. A trade on a new calendar day
// resets the accumulator first.
func (d *DailyLimits) OnRealized(pnl decimal.Decimal, when time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	day := time.Date(when.Year(), when.Month(), when.Day(), 0, 0, 0, 0, when.Location())
	if !d.day.Equal(day) {
		d.day = day
		d.realized = decimal.Zero
		d.breached = false
	}
	d.realized = d.realized.Add(pnl)

	if d.maxDailyLoss.IsPositive() && d.realized.LessThanOrEqual(d.maxDailyLoss.Neg()) {
		d.breached = true
	}
}

// Realized returns the current day's accumulated P&L.
func (d *DailyLimits) Realized() decimal.Decimal {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.realized
}

// Breached reports whether today's losses crossed the limit.
func (d *DailyLimits) Breached() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.breached
}
