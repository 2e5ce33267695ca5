package strategyeval

import (
	"context"
	"testing"
	"time"

	"github.com/orb-momentum-bot/pkg/ledger"
	"github.com/orb-momentum-bot/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFrames struct{ bars map[string][]types.Bar }

func (f *fakeFrames) Bars(symbol string) []types.Bar { return f.bars[symbol] }

type fakeHalts struct{ halted map[string]bool }

func (f *fakeHalts) IsHalted(symbol string) bool { return f.halted[symbol] }

type fakeCandidates struct{ set map[string]bool }

func (f *fakeCandidates) IsCandidate(symbol string) bool { return f.set[symbol] }

type fakeBook struct{ bid, ask int64 }

func (f *fakeBook) Snapshot(symbol string) (int64, int64) { return f.bid, f.ask }

type fakeTrades struct{ buy, sell int64 }

func (f *fakeTrades) Snapshot(symbol string) (int64, int64) { return f.buy, f.sell }

type fakeOrders struct {
	buyQty  int64
	buyErr  error
	sellQty int64
	sellErr error
}

func (f *fakeOrders) BuyMarket(ctx context.Context, symbol string, quantity int64) (string, string, error) {
	f.buyQty = quantity
	if f.buyErr != nil {
		return "", "", f.buyErr
	}
	return "order-buy-1", "ref1", nil
}

func (f *fakeOrders) SellMarket(ctx context.Context, symbol string, quantity int64) (string, string, error) {
	f.sellQty = quantity
	if f.sellErr != nil {
		return "", "", f.sellErr
	}
	return "order-sell-1", "ref2", nil
}

func loc() *time.Location { return time.UTC }

func breakoutBars() []types.Bar {
	day := time.Date(2026, 7, 31, 0, 0, 0, 0, loc())
	mk := func(hh, mm int, o, h, l, c, v int64) types.Bar {
		ts := day.Add(time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute)
		return types.Bar{
			Timestamp: ts,
			Open:      decimal.NewFromInt(o), High: decimal.NewFromInt(h),
			Low: decimal.NewFromInt(l), Close: decimal.NewFromInt(c),
			Volume: v,
		}
	}
	bars := []types.Bar{
		mk(9, 1, 9900, 10000, 9850, 9950, 1000),
		mk(9, 5, 9950, 10000, 9900, 9980, 1000),
		mk(9, 10, 9980, 10000, 9950, 9990, 1000),
	}
	// Filler bars so the RVOL and EMA windows are computable; the thresholds
	// in this test are loose, only definedness matters.
	for i := 0; i < 20; i++ {
		bars = append(bars, mk(9, 16+i, 9990, 10010, 9970, 10000, 900))
	}
	// The breakout bar closes above the opening-range high plus buffer.
	bars = append(bars, mk(9, 22, 10000, 10080, 9990, 10050, 2000))
	return bars
}

func TestEvaluateEntry_HappyPath(t *testing.T) {
	l := ledger.New()
	frames := &fakeFrames{bars: map[string][]types.Bar{"X": breakoutBars()}}
	halts := &fakeHalts{halted: map[string]bool{}}
	candidates := &fakeCandidates{set: map[string]bool{"X": true}}
	book := &fakeBook{bid: 200, ask: 100} // OBI = 2.0
	trades := &fakeTrades{buy: 150, sell: 100}
	orders := &fakeOrders{}

	ev := New(l, frames, halts, candidates, book, trades, orders, nil)

	cfg := Config{
		ORBMinutes:        15,
		BreakoutBufferPct: decimal.NewFromFloat(0.15),
		TargetProfitPct:   decimal.NewFromFloat(2.5),
		StopLossPct:       decimal.NewFromFloat(-1.0),
		EMAShortPeriod:    3,
		EMALongPeriod:     5,
		RVOLPeriod:        5,
		RVOLThreshold:     decimal.NewFromInt(1),
		OBIThreshold:      decimal.NewFromFloat(1.5),
		StrengthThreshold: decimal.NewFromInt(100),
		MaxConcurrentPositions: 5,
		InvestmentAmount:       decimal.NewFromInt(1_000_000),
		SessionOpen:            TimeOfDay{Hour: 9, Minute: 0},
		TimeStop:               TimeOfDay{Hour: 15, Minute: 20},
	}

	ev.OnCompletedBar(context.Background(), "X", cfg, time.Date(2026, 7, 31, 9, 22, 0, 0, loc()))

	snap := l.Snapshot("X")
	require.Equal(t, ledger.StatePendingEntry, snap.State)
	assert.EqualValues(t, 99, snap.OriginalOrderQty) // floor(1_000_000/10050) = 99
	assert.EqualValues(t, 99, orders.buyQty)
}

func TestEvaluateExit_HaltStopTakesPriority(t *testing.T) {
	l := ledger.New()
	l.WithSymbol("Z", func(p *ledger.Position) {
		p.State = ledger.StateInPosition
		p.Size = 10
		p.EntryPrice = decimal.NewFromInt(1000)
		p.Risk = ledger.RiskParams{TargetProfitPct: decimal.NewFromInt(100), StopLossPct: decimal.NewFromInt(-100)}
	})

	bars := []types.Bar{{Timestamp: time.Date(2026, 7, 31, 9, 30, 0, 0, loc()), Close: decimal.NewFromInt(1000), High: decimal.NewFromInt(1000), Low: decimal.NewFromInt(1000), Open: decimal.NewFromInt(1000), Volume: 10}}
	frames := &fakeFrames{bars: map[string][]types.Bar{"Z": bars}}
	halts := &fakeHalts{halted: map[string]bool{"Z": true}}
	orders := &fakeOrders{}

	ev := New(l, frames, halts, &fakeCandidates{set: map[string]bool{}}, &fakeBook{}, &fakeTrades{}, orders, nil)
	cfg := Config{TimeStop: TimeOfDay{Hour: 15, Minute: 20}}

	ev.OnCompletedBar(context.Background(), "Z", cfg, time.Date(2026, 7, 31, 9, 30, 0, 0, loc()))

	snap := l.Snapshot("Z")
	require.Equal(t, ledger.StatePendingExit, snap.State)
	assert.Equal(t, ledger.ExitHaltStop, snap.ExitSignal)
	assert.EqualValues(t, 10, orders.sellQty)
}

func TestEvaluateExit_PartialTakeProfitCeiling(t *testing.T) {
	l := ledger.New()
	l.WithSymbol("W", func(p *ledger.Position) {
		p.State = ledger.StateInPosition
		p.Size = 99
		p.EntryPrice = decimal.NewFromInt(10050)
		p.Risk = ledger.RiskParams{
			TargetProfitPct: decimal.NewFromFloat(2.5), StopLossPct: decimal.NewFromFloat(-1.0),
			HasPartialProfit: true, PartialProfitPct: decimal.NewFromFloat(1.5), PartialRatio: decimal.NewFromFloat(0.4),
		}
	})

	bars := []types.Bar{
		{Timestamp: time.Date(2026, 7, 31, 9, 40, 0, 0, loc()), Close: decimal.NewFromInt(10205), High: decimal.NewFromInt(10210), Low: decimal.NewFromInt(10150), Open: decimal.NewFromInt(10150), Volume: 500},
	}
	frames := &fakeFrames{bars: map[string][]types.Bar{"W": bars}}
	orders := &fakeOrders{}
	ev := New(l, frames, &fakeHalts{halted: map[string]bool{}}, &fakeCandidates{set: map[string]bool{}}, &fakeBook{}, &fakeTrades{}, orders, nil)
	cfg := Config{TimeStop: TimeOfDay{Hour: 15, Minute: 20}}

	ev.OnCompletedBar(context.Background(), "W", cfg, time.Date(2026, 7, 31, 9, 40, 0, 0, loc()))

	snap := l.Snapshot("W")
	require.Equal(t, ledger.StatePendingExit, snap.State)
	assert.Equal(t, ledger.ExitPartialTakeProfit, snap.ExitSignal)
	assert.EqualValues(t, 40, snap.SizeToSell) // ceil(99*0.4) = 40
}
