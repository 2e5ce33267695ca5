package aggregator

import "sync"

// HaltTracker maintains the per-symbol volatility-halt flag. The
// strategy evaluator treats a true flag as both a hard block on new entries
// and a forced-exit signal on open positions.
type HaltTracker struct {
	mu      sync.RWMutex
	flagged map[string]bool
}

// NewHaltTracker creates an empty tracker.
func NewHaltTracker() *HaltTracker {
	return &HaltTracker{flagged: make(map[string]bool)}
}

// Activate sets the halt flag for symbol.
func (h *HaltTracker) Activate(symbol string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.flagged[symbol] = true
}

// Release clears the halt flag for symbol.
func (h *HaltTracker) Release(symbol string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.flagged[symbol] = false
}

// IsHalted reports the current halt flag for symbol (false if never set).
func (h *HaltTracker) IsHalted(symbol string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.flagged[symbol]
}

// Drop removes a symbol's halt flag entirely (called on unsubscribe).
func (h *HaltTracker) Drop(symbol string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.flagged, symbol)
}
