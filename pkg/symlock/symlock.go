// Package symlock provides the per-symbol logical lock the engine state
// lives under: positions, frames, the in-progress candle, cumulative
// volumes, and the halt flag are all keyed by symbol. Order-update handling
// and strategy evaluation for the same symbol share this lock so the two
// can never interleave; across symbols, locks are independent and
// acquisition never blocks on an unrelated symbol.
package symlock

import "sync"

// Group hands out one *sync.Mutex per symbol, created lazily.
type Group struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewGroup creates an empty lock group.
func NewGroup() *Group {
	return &Group{locks: make(map[string]*sync.Mutex)}
}

func (g *Group) lockFor(symbol string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		g.locks[symbol] = l
	}
	return l
}

// With runs fn while holding symbol's logical lock.
func (g *Group) With(symbol string, fn func()) {
	l := g.lockFor(symbol)
	l.Lock()
	defer l.Unlock()
	fn()
}

// Forget releases the per-symbol mutex entry, e.g. after an unsubscribe. Safe
// to call even if a lock is momentarily still held elsewhere; a fresh mutex
// is created on next use, which is harmless because Forget is only called
// once no further work for that symbol is in flight.
func (g *Group) Forget(symbol string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.locks, symbol)
}
