// Package aggregator folds the raw tick stream into completed one-minute
// bars, maintains the per-symbol signed-volume counters that feed
// trade strength, and tracks the per-symbol volatility-halt flag
//.
package aggregator

import (
	"sync"
	"time"

	"github.com/orb-momentum-bot/pkg/types"
	"github.com/shopspring/decimal"
)

// CompletedBar is emitted exactly once per minute rollover per symbol; it is
// the sole trigger for indicator recomputation and strategy evaluation.
type CompletedBar struct {
	Symbol string
	Bar    types.Bar
}

// Aggregator consumes per-symbol ticks and emits completed bars on minute
// rollover. It must observe ticks for a given symbol in their broker-reported
// sequence; across symbols there is no ordering requirement, so callers
// dispatch ticks per-symbol (e.g. one goroutine per symbol, or a
// symlock-guarded handler).
type Aggregator struct {
	mu      sync.Mutex
	current map[string]*types.PartialBar
}

// New creates an empty aggregator.
func New() *Aggregator {
	return &Aggregator{current: make(map[string]*types.PartialBar)}
}

// OnTick folds one trade tick into the symbol's in-progress bar. price must
// be > 0 and volume > 0; eventTime is the broker-reported trade time, never
// wall-clock. Returns the completed bar and true if this tick rolled the
// minute over.
func (a *Aggregator) OnTick(symbol string, price decimal.Decimal, volume int64, eventTime time.Time) (CompletedBar, bool) {
	m := types.TruncateToMinute(eventTime)

	a.mu.Lock()
	defer a.mu.Unlock()

	cur, ok := a.current[symbol]
	if !ok {
		a.current[symbol] = &types.PartialBar{Minute: m, Open: price, High: price, Low: price, Close: price, Volume: volume}
		return CompletedBar{}, false
	}

	if cur.Minute.Equal(m) {
		if price.GreaterThan(cur.High) {
			cur.High = price
		}
		if price.LessThan(cur.Low) {
			cur.Low = price
		}
		cur.Close = price
		cur.Volume += volume
		return CompletedBar{}, false
	}

	// m > cur.Minute, since per-symbol ticks arrive in broker order: freeze
	// the old bucket and start a new one, even if more than one minute
	// elapsed between ticks. Missing minutes are never synthesized.
	completed := CompletedBar{Symbol: symbol, Bar: cur.Freeze()}
	a.current[symbol] = &types.PartialBar{Minute: m, Open: price, High: price, Low: price, Close: price, Volume: volume}
	return completed, true
}

// Flush freezes and returns the in-progress bar for symbol, if any, without
// starting a new one. Used on engine shutdown per symbol.
func (a *Aggregator) Flush(symbol string) (CompletedBar, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur, ok := a.current[symbol]
	if !ok {
		return CompletedBar{}, false
	}
	delete(a.current, symbol)
	return CompletedBar{Symbol: symbol, Bar: cur.Freeze()}, true
}

// Drop discards in-progress state for a symbol without emitting it (called
// on unsubscribe).
func (a *Aggregator) Drop(symbol string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.current, symbol)
}
