// Package frame implements the per-symbol ring of completed bars that feeds
// the indicator kit.
package frame

import (
	"sync"

	"github.com/orb-momentum-bot/pkg/types"
)

// Store holds an append-only-per-minute sequence of bars for every symbol.
// All access is serialized per symbol by its caller; Store itself
// only guards the top-level symbol map so new symbols can be added
// concurrently with reads of unrelated symbols.
type Store struct {
	mu     sync.RWMutex
	frames map[string][]types.Bar
	// maxBars bounds memory per symbol; 0 means unbounded. A single trading
	// session at one-minute bars never exceeds a few hundred entries, but the
	// cap protects against a symbol left subscribed across many sessions.
	maxBars int
}

// New creates an empty frame store. maxBars caps the ring length per symbol;
// pass 0 for no cap.
func New(maxBars int) *Store {
	return &Store{
		frames:  make(map[string][]types.Bar),
		maxBars: maxBars,
	}
}

// AppendOrReplace appends bar to symbol's sequence, or overwrites the last
// bar if it shares the same timestamp (a late/duplicate bar). Equal to
// loading bars one at a time: loading N bars into an empty frame equals
// loading the first k then the remaining N-k, provided timestamps match.
func (s *Store) AppendOrReplace(symbol string, bar types.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bars := s.frames[symbol]
	if n := len(bars); n > 0 && bars[n-1].Timestamp.Equal(bar.Timestamp) {
		bars[n-1] = bar
		s.frames[symbol] = bars
		return
	}
	bars = append(bars, bar)
	if s.maxBars > 0 && len(bars) > s.maxBars {
		bars = bars[len(bars)-s.maxBars:]
	}
	s.frames[symbol] = bars
}

// LoadHistory seeds a symbol's frame from a one-shot history fetch. Bars must
// already be sorted ascending by timestamp. Existing bars for the symbol are replaced.
func (s *Store) LoadHistory(symbol string, bars []types.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]types.Bar, len(bars))
	copy(cp, bars)
	if s.maxBars > 0 && len(cp) > s.maxBars {
		cp = cp[len(cp)-s.maxBars:]
	}
	s.frames[symbol] = cp
}

// Bars returns a snapshot copy of the symbol's completed-bar sequence.
func (s *Store) Bars(symbol string) []types.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bars := s.frames[symbol]
	cp := make([]types.Bar, len(bars))
	copy(cp, bars)
	return cp
}

// Drop removes all cached bars for a symbol (called on unsubscribe).
func (s *Store) Drop(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.frames, symbol)
}
