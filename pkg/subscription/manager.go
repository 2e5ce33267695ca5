// Package subscription keeps the set of symbols receiving real-time feeds in
// sync with the engine's needs: every screener candidate and every symbol
// with an open position gets the trade, order-book, and halt feeds; nothing
// else does. Unsubscribing a symbol also drops its per-symbol caches.
package subscription

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/orb-momentum-bot/internal/telemetry"
	"github.com/orb-momentum-bot/pkg/ledger"
	"github.com/orb-momentum-bot/pkg/transport"
	"github.com/orb-momentum-bot/pkg/types"
)

// historyBars is how many minute bars the one-shot history fetch seeds a
// newly subscribed symbol's frame with.
const historyBars = 120

// perSymbolFeeds are the three feeds registered per symbol.
var perSymbolFeeds = []transport.FeedType{
	transport.FeedTrade,
	transport.FeedOrderBook,
	transport.FeedHalt,
}

// accountFeeds are registered once at startup and kept until shutdown.
var accountFeeds = []transport.FeedType{
	transport.FeedOrderUpdate,
	transport.FeedBalance,
}

// Feeds is the transport surface the manager drives; satisfied by
// *transport.Client.
type Feeds interface {
	Register(feed transport.FeedType, symbols []string) error
	Unregister(feed transport.FeedType, symbols []string) error
}

// HistorySource performs the one-shot minute-chart fetch that seeds a newly
// subscribed symbol's frame; satisfied by *brokerclient.Client.
type HistorySource interface {
	MinuteHistory(ctx context.Context, symbol string, count int) ([]types.Bar, error)
}

// FrameSeeder is the frame store's history-load surface.
type FrameSeeder interface {
	LoadHistory(symbol string, bars []types.Bar)
}

// Dropper clears one per-symbol cache on unsubscribe (frame store, candle
// aggregator, trade counters, halt tracker, book tracker).
type Dropper interface {
	Drop(symbol string)
}

// Manager owns the subscribed set and the candidate set.
type Manager struct {
	feeds    Feeds
	history  HistorySource
	frames   FrameSeeder
	droppers []Dropper
	book     *ledger.Ledger
	log      *telemetry.Logger

	mu         sync.Mutex
	subscribed map[string]bool
	candidates map[string]bool

	pendingAcks int
	ackErr      error
	ready       chan struct{}
}

// New creates a Manager. droppers receive Drop(symbol) whenever a symbol is
// unsubscribed.
func New(feeds Feeds, history HistorySource, frames FrameSeeder, book *ledger.Ledger, log *telemetry.Logger, droppers ...Dropper) *Manager {
	return &Manager{
		feeds:      feeds,
		history:    history,
		frames:     frames,
		droppers:   droppers,
		book:       book,
		log:        log,
		subscribed: make(map[string]bool),
		candidates: make(map[string]bool),
		ready:      make(chan struct{}),
	}
}

// RegisterAccountFeeds subscribes the two account-global feeds. The engine
// refuses to enter the running state until WaitReady confirms both
// acknowledgements arrived accepted.
func (m *Manager) RegisterAccountFeeds() error {
	m.mu.Lock()
	m.pendingAcks = len(accountFeeds)
	m.mu.Unlock()

	for _, feed := range accountFeeds {
		if err := m.feeds.Register(feed, nil); err != nil {
			return fmt.Errorf("register account feed %s: %w", feed, err)
		}
	}
	return nil
}

// OnRegistrationAck consumes a REG/REMOVE acknowledgement from the transport.
// Only the startup account-feed acks gate readiness; later per-symbol
// registration failures are logged but non-fatal.
func (m *Manager) OnRegistrationAck(ack transport.RegistrationAck) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pendingAcks > 0 && ack.Registering {
		if !ack.Accepted && m.ackErr == nil {
			m.ackErr = fmt.Errorf("account feed registration rejected: %s", ack.Message)
		}
		m.pendingAcks--
		if m.pendingAcks == 0 {
			close(m.ready)
		}
		return
	}

	if !ack.Accepted {
		m.logf("WS_SUB", "WARN registration rejected: %s", ack.Message)
	}
}

// WaitReady blocks until the startup account-feed acknowledgements arrive,
// returning an error if any was rejected or ctx expires first.
func (m *Manager) WaitReady(ctx context.Context) error {
	select {
	case <-m.ready:
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.ackErr
	case <-ctx.Done():
		return fmt.Errorf("account feed registration: %w", ctx.Err())
	}
}

// SetCandidates publishes the screener's latest pick and reconciles
// subscriptions: required = candidates plus every symbol holding an open
// workflow in the ledger; the diff against the current subscribed set is
// registered/unregistered accordingly.
func (m *Manager) SetCandidates(ctx context.Context, symbols []string) {
	m.mu.Lock()
	m.candidates = make(map[string]bool, len(symbols))
	for _, s := range symbols {
		m.candidates[types.NormalizeSymbol(s)] = true
	}
	m.mu.Unlock()

	m.reconcile(ctx)
}

// IsCandidate reports whether symbol is on the current watchlist.
func (m *Manager) IsCandidate(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.candidates[symbol]
}

// Candidates returns the current watchlist, sorted.
func (m *Manager) Candidates() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.candidates))
	for s := range m.candidates {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// EnsureSubscribed subscribes symbol's feeds if they are not already active.
// Called by the reconciler when a balance update reveals a remote holding
// the engine did not know about.
func (m *Manager) EnsureSubscribed(symbol string) {
	m.mu.Lock()
	already := m.subscribed[symbol]
	m.mu.Unlock()
	if already {
		return
	}
	m.subscribe(context.Background(), []string{symbol})
}

// Unsubscribe removes symbol's feeds unless the symbol is still required
// (still a candidate, or still holding an open workflow).
func (m *Manager) Unsubscribe(symbol string) {
	m.mu.Lock()
	required := m.candidates[symbol]
	m.mu.Unlock()
	if required || m.hasOpenWorkflow(symbol) {
		return
	}
	m.unsubscribe([]string{symbol})
}

// Subscribed returns a sorted copy of the currently subscribed symbols.
func (m *Manager) Subscribed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.subscribed))
	for s := range m.subscribed {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// reconcile computes the add/remove diff and applies it.
func (m *Manager) reconcile(ctx context.Context) {
	required := make(map[string]bool)
	m.mu.Lock()
	for s := range m.candidates {
		required[s] = true
	}
	m.mu.Unlock()
	for sym, pos := range m.book.All() {
		switch pos.State {
		case ledger.StatePendingEntry, ledger.StateInPosition, ledger.StatePendingExit:
			required[sym] = true
		}
	}

	m.mu.Lock()
	var add, remove []string
	for s := range required {
		if !m.subscribed[s] {
			add = append(add, s)
		}
	}
	for s := range m.subscribed {
		if !required[s] {
			remove = append(remove, s)
		}
	}
	m.mu.Unlock()

	sort.Strings(add)
	sort.Strings(remove)
	if len(add) > 0 {
		m.subscribe(ctx, add)
	}
	if len(remove) > 0 {
		m.unsubscribe(remove)
	}
}

func (m *Manager) subscribe(ctx context.Context, symbols []string) {
	for _, feed := range perSymbolFeeds {
		if err := m.feeds.Register(feed, symbols); err != nil {
			m.logf("WS_SUB", "WARN register %s failed: %v", feed, err)
		}
	}

	m.mu.Lock()
	for _, s := range symbols {
		m.subscribed[s] = true
	}
	m.mu.Unlock()

	for _, s := range symbols {
		m.seedHistory(ctx, s)
	}
	m.logf("WS_SUB", "subscribed %d symbols: %v", len(symbols), symbols)
}

func (m *Manager) unsubscribe(symbols []string) {
	for _, feed := range perSymbolFeeds {
		if err := m.feeds.Unregister(feed, symbols); err != nil {
			m.logf("WS_SUB", "WARN unregister %s failed: %v", feed, err)
		}
	}

	m.mu.Lock()
	for _, s := range symbols {
		delete(m.subscribed, s)
	}
	m.mu.Unlock()

	for _, s := range symbols {
		for _, d := range m.droppers {
			d.Drop(s)
		}
	}
	m.logf("WS_SUB", "unsubscribed %d symbols: %v", len(symbols), symbols)
}

// seedHistory runs the one-shot minute-chart fetch for a newly subscribed
// symbol. A failed fetch leaves the frame empty; live bars will fill it.
func (m *Manager) seedHistory(ctx context.Context, symbol string) {
	if m.history == nil || m.frames == nil {
		return
	}
	bars, err := m.history.MinuteHistory(ctx, symbol, historyBars)
	if err != nil {
		m.logf(symbol, "WARN history seed failed: %v", err)
		return
	}
	m.frames.LoadHistory(symbol, bars)
	m.logf(symbol, "seeded %d history bars", len(bars))
}

func (m *Manager) hasOpenWorkflow(symbol string) bool {
	switch m.book.Snapshot(symbol).State {
	case ledger.StatePendingEntry, ledger.StateInPosition, ledger.StatePendingExit:
		return true
	}
	return false
}

func (m *Manager) logf(tag, format string, args ...any) {
	if m.log != nil {
		m.log.Infof(tag, format, args...)
	}
}
