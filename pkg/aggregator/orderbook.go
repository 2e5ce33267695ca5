package aggregator

import "sync"

// OrderBookTracker caches the most recent total bid/ask resting volumes
// reported by the book feed, used to compute the order-book imbalance.
// It is a last-value cache, not a windowed aggregate: the book
// feed already reports cumulative totals per update.
type OrderBookTracker struct {
	mu    sync.RWMutex
	books map[string]bookState
}

type bookState struct {
	totalBidVolume int64
	totalAskVolume int64
}

// NewOrderBookTracker creates an empty tracker.
func NewOrderBookTracker() *OrderBookTracker {
	return &OrderBookTracker{books: make(map[string]bookState)}
}

// OnBookUpdate records the latest total bid/ask volumes for symbol.
func (o *OrderBookTracker) OnBookUpdate(symbol string, totalBidVolume, totalAskVolume int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.books[symbol] = bookState{totalBidVolume: totalBidVolume, totalAskVolume: totalAskVolume}
}

// Snapshot returns the latest (bidVolume, askVolume) for symbol, or (0, 0) if
// no book update has ever arrived.
func (o *OrderBookTracker) Snapshot(symbol string) (bidVolume, askVolume int64) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s := o.books[symbol]
	return s.totalBidVolume, s.totalAskVolume
}

// Drop removes a symbol's cached book state (called on unsubscribe).
func (o *OrderBookTracker) Drop(symbol string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.books, symbol)
}
