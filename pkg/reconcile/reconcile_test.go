package reconcile

import (
	"testing"

	"github.com/orb-momentum-bot/pkg/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJournal struct {
	trades []CompletedTrade
}

func (j *fakeJournal) Append(t CompletedTrade) error {
	j.trades = append(j.trades, t)
	return nil
}

type fakeSubs struct {
	subscribed   map[string]bool
	unsubscribed map[string]bool
}

func newFakeSubs() *fakeSubs {
	return &fakeSubs{subscribed: map[string]bool{}, unsubscribed: map[string]bool{}}
}

func (f *fakeSubs) EnsureSubscribed(symbol string) { f.subscribed[symbol] = true }
func (f *fakeSubs) Unsubscribe(symbol string)      { f.unsubscribed[symbol] = true }

func TestOnOrderUpdate_EntryFullFill(t *testing.T) {
	l := ledger.New()
	l.WithSymbol("X", func(p *ledger.Position) {
		p.State = ledger.StatePendingEntry
		p.PendingOrderID = "ord1"
		p.OriginalOrderQty = 99
	})

	r := New(l, nil, nil)
	r.OnOrderUpdate(OrderUpdate{
		OrderID: "ord1", Symbol: "X", Side: SideBuy, Status: StatusFill,
		ExecQty: 99, ExecPrice: decimal.NewFromInt(10050), UnfilledQty: 0, OriginalQty: 99,
	})

	snap := l.Snapshot("X")
	assert.Equal(t, ledger.StateInPosition, snap.State)
	assert.EqualValues(t, 99, snap.Size)
	assert.True(t, snap.EntryPrice.Equal(decimal.NewFromInt(10050)))
	assert.Empty(t, snap.PendingOrderID)
}

func TestOnOrderUpdate_PartialEntryThenCancel(t *testing.T) {
	l := ledger.New()
	l.WithSymbol("Y", func(p *ledger.Position) {
		p.State = ledger.StatePendingEntry
		p.PendingOrderID = "ord2"
		p.OriginalOrderQty = 100
	})

	r := New(l, nil, nil)
	r.OnOrderUpdate(OrderUpdate{
		OrderID: "ord2", Symbol: "Y", Status: StatusPartialFill,
		ExecQty: 30, ExecPrice: decimal.NewFromInt(1000), UnfilledQty: 70, OriginalQty: 100,
	})
	r.OnOrderUpdate(OrderUpdate{
		OrderID: "ord2", Symbol: "Y", Status: StatusCancelled,
		ExecQty: 0, UnfilledQty: 70, OriginalQty: 100,
	})

	snap := l.Snapshot("Y")
	require.Equal(t, ledger.StateInPosition, snap.State)
	assert.EqualValues(t, 30, snap.Size)
	assert.True(t, snap.EntryPrice.Equal(decimal.NewFromInt(1000)))
}

func TestOnBalanceUpdate_ClosesDrift(t *testing.T) {
	l := ledger.New()
	l.WithSymbol("Z", func(p *ledger.Position) {
		p.State = ledger.StateInPosition
		p.Size = 50
		p.EntryPrice = decimal.NewFromInt(5000)
	})

	subs := newFakeSubs()
	r := New(l, nil, subs)
	r.OnBalanceUpdate(BalanceUpdate{Symbol: "Z", HeldSize: 0})

	// The record is dropped so the symbol is free to re-enter.
	assert.Empty(t, l.All())
	assert.Equal(t, ledger.StateSearching, l.Snapshot("Z").State)
	assert.True(t, subs.unsubscribed["Z"])
}

func TestOnOrderUpdate_PartialTakeProfitExactMatch(t *testing.T) {
	l := ledger.New()
	l.WithSymbol("W", func(p *ledger.Position) {
		p.State = ledger.StatePendingExit
		p.PendingOrderID = "ord3"
		p.Size = 99
		p.OriginalSizeBeforeExit = 99
		p.ExitSignal = ledger.ExitPartialTakeProfit
		p.SizeToSell = 40
	})

	journal := &fakeJournal{}
	r := New(l, journal, nil)
	r.OnOrderUpdate(OrderUpdate{
		OrderID: "ord3", Symbol: "W", Status: StatusFill,
		ExecQty: 40, ExecPrice: decimal.NewFromInt(10205), UnfilledQty: 0,
	})

	snap := l.Snapshot("W")
	assert.Equal(t, ledger.StateInPosition, snap.State)
	assert.EqualValues(t, 59, snap.Size)
	assert.True(t, snap.PartialProfitTaken)
	require.Len(t, journal.trades, 1)
	assert.Equal(t, ledger.ExitPartialTakeProfit, journal.trades[0].ExitSignal)
}

func TestOnOrderUpdate_DuplicateCancelIsNoop(t *testing.T) {
	l := ledger.New()
	l.WithSymbol("V", func(p *ledger.Position) {
		p.State = ledger.StatePendingExit
		p.PendingOrderID = "ord4"
		p.Size = 10
		p.OriginalSizeBeforeExit = 10
		p.ExitSignal = ledger.ExitStopLoss
	})

	journal := &fakeJournal{}
	r := New(l, journal, nil)
	r.OnOrderUpdate(OrderUpdate{OrderID: "ord4", Symbol: "V", Status: StatusFill, ExecQty: 10, UnfilledQty: 0})
	// A cancel arriving after all fills: idempotent no-op since the closed
	// position was dropped and the fresh record has no pending workflow.
	r.OnOrderUpdate(OrderUpdate{OrderID: "ord4", Symbol: "V", Status: StatusCancelled, ExecQty: 0, UnfilledQty: 0})

	assert.Equal(t, ledger.StateSearching, l.Snapshot("V").State)
	assert.Len(t, journal.trades, 1)
}

func TestOnOrderUpdate_FullExitFreesSymbolForReentry(t *testing.T) {
	l := ledger.New()
	l.WithSymbol("R", func(p *ledger.Position) {
		p.State = ledger.StatePendingExit
		p.PendingOrderID = "ord5"
		p.Size = 20
		p.EntryPrice = decimal.NewFromInt(1000)
		p.OriginalSizeBeforeExit = 20
		p.ExitSignal = ledger.ExitTakeProfit
		p.SizeToSell = 20
	})

	r := New(l, nil, nil)
	r.OnOrderUpdate(OrderUpdate{OrderID: "ord5", Symbol: "R", Status: StatusFill, ExecQty: 20, ExecPrice: decimal.NewFromInt(1100), UnfilledQty: 0})

	// Closing drops the record entirely; the next completed bar can evaluate
	// a fresh entry for the symbol.
	assert.Empty(t, l.All())
	snap := l.Snapshot("R")
	assert.Equal(t, ledger.StateSearching, snap.State)
	assert.Zero(t, snap.Size)
}

func TestSeenOrders_DropsDuplicateExecSeq(t *testing.T) {
	s := newSeenOrders()
	u := OrderUpdate{OrderID: "o1", ExecSeq: 1, HasExecSeq: true}
	assert.True(t, s.accept(u))
	assert.False(t, s.accept(u))
}
