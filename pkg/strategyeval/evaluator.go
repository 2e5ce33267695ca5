// Package strategyeval is the strategy evaluator: invoked once
// per completed-bar event per symbol, it applies the entry rule and the
// exit-rule priority chain against a locked configuration snapshot.
package strategyeval

import (
	"context"
	"time"

	"github.com/orb-momentum-bot/internal/telemetry"
	"github.com/orb-momentum-bot/pkg/indicator"
	"github.com/orb-momentum-bot/pkg/ledger"
	"github.com/orb-momentum-bot/pkg/risk"
	"github.com/orb-momentum-bot/pkg/types"
	"github.com/shopspring/decimal"
)

// Frames is the read surface of the frame store the evaluator needs.
type Frames interface {
	Bars(symbol string) []types.Bar
}

// Halts is the read surface of the halt tracker.
type Halts interface {
	IsHalted(symbol string) bool
}

// Candidates reports whether a symbol is currently on the screener's
// watchlist.
type Candidates interface {
	IsCandidate(symbol string) bool
}

// OrderBook is the read surface of the per-symbol resting-volume cache,
// satisfied by *pkg/aggregator.OrderBookTracker.
type OrderBook interface {
	Snapshot(symbol string) (bidVolume, askVolume int64)
}

// TradeCounters is the read surface of the cumulative buy/sell volume
// cache, satisfied by *pkg/aggregator.TradeCounters.
type TradeCounters interface {
	Snapshot(symbol string) (buyVolume, sellVolume int64)
}

// Orders is the narrow order-placement surface the evaluator drives; it is
// satisfied by *pkg/gateway.Gateway.
type Orders interface {
	BuyMarket(ctx context.Context, symbol string, quantity int64) (orderID, clientRef string, err error)
	SellMarket(ctx context.Context, symbol string, quantity int64) (orderID, clientRef string, err error)
}

// Evaluator runs the entry and exit rules against one completed bar.
type Evaluator struct {
	ledger     *ledger.Ledger
	frames     Frames
	halts      Halts
	candidates Candidates
	book       OrderBook
	trades     TradeCounters
	orders     Orders
	log        *telemetry.Logger
}

// New constructs an Evaluator. log may be nil to disable logging (tests).
func New(l *ledger.Ledger, frames Frames, halts Halts, candidates Candidates, book OrderBook, trades TradeCounters, orders Orders, log *telemetry.Logger) *Evaluator {
	return &Evaluator{ledger: l, frames: frames, halts: halts, candidates: candidates, book: book, trades: trades, orders: orders, log: log}
}

func (e *Evaluator) logf(tag, format string, args ...any) {
	if e.log != nil {
		e.log.Infof(tag, format, args...)
	}
}

// OnCompletedBar evaluates symbol against cfg for the bar that just closed.
// bar must already be appended to the frame store; OnCompletedBar reads the
// frame itself to compute indicators over the full history plus the new
// bar. now is the wall-clock time used for the time-stop gate.
func (e *Evaluator) OnCompletedBar(ctx context.Context, symbol string, cfg Config, now time.Time) {
	e.ledger.WithSymbol(symbol, func(pos *ledger.Position) {
		switch pos.State {
		case ledger.StateInPosition:
			e.evaluateExit(ctx, pos, cfg, now)
		case ledger.StateSearching:
			e.evaluateEntry(ctx, pos, cfg)
		}
	})
}

func (e *Evaluator) evaluateEntry(ctx context.Context, pos *ledger.Position, cfg Config) {
	symbol := pos.Symbol
	bars := e.frames.Bars(symbol)
	if len(bars) == 0 {
		return
	}
	last := bars[len(bars)-1]

	if e.candidates != nil && !e.candidates.IsCandidate(symbol) {
		return
	}
	if e.ledger.CountInPosition() >= cfg.MaxConcurrentPositions {
		return
	}
	if e.halts != nil && e.halts.IsHalted(symbol) {
		return
	}

	sessionOpen := sessionOpenFor(last.Timestamp, cfg.SessionOpen)
	orb := indicator.ORB(bars, sessionOpen, time.Duration(cfg.ORBMinutes)*time.Minute)
	if indicator.IsUnknown(orb.High) {
		return
	}

	breakoutLevel := orb.High.Mul(decimal.NewFromInt(1).Add(cfg.BreakoutBufferPct.Div(decimal.NewFromInt(100))))
	if !last.Close.GreaterThan(breakoutLevel) {
		return
	}

	rvol := indicator.RVOL(bars, cfg.RVOLPeriod)
	if indicator.IsUnknown(rvol) || rvol.LessThan(cfg.RVOLThreshold) {
		return
	}

	bidVol, askVol := e.book.Snapshot(symbol)
	obi := indicator.OBI(bidVol, askVol)
	if indicator.IsUnknown(obi) || obi.LessThan(cfg.OBIThreshold) {
		return
	}

	emaShort := indicator.EMA(bars, cfg.EMAShortPeriod)
	emaLong := indicator.EMA(bars, cfg.EMALongPeriod)
	if indicator.IsUnknown(emaShort) || indicator.IsUnknown(emaLong) || !emaShort.GreaterThan(emaLong) {
		return
	}

	buyVol, sellVol := e.trades.Snapshot(symbol)
	strength := indicator.Strength(buyVol, sellVol)
	if indicator.IsUnknown(strength) || strength.LessThan(cfg.StrengthThreshold) {
		return
	}

	qty := risk.SharesFor(cfg.InvestmentAmount, last.Close)
	if qty <= 0 {
		return
	}

	orderID, _, err := e.orders.BuyMarket(ctx, symbol, qty)
	if err != nil {
		e.logf(symbol, "buy_market rejected: %v", err)
		return
	}

	pos.State = ledger.StatePendingEntry
	pos.PendingOrderID = orderID
	pos.OriginalOrderQty = qty
	pos.FilledQuantity = 0
	pos.FilledValue = decimal.Zero
	pos.Risk = ledger.RiskParams{
		TargetProfitPct:  cfg.TargetProfitPct,
		StopLossPct:      cfg.StopLossPct,
		PartialProfitPct: cfg.PartialProfitPct,
		HasPartialProfit: cfg.HasPartialProfit,
		PartialRatio:     cfg.PartialProfitRatio,
	}
	e.logf(symbol, "entry signal: buy %d shares @ ~%s, order %s", qty, last.Close, orderID)
}

func (e *Evaluator) evaluateExit(ctx context.Context, pos *ledger.Position, cfg Config, now time.Time) {
	symbol := pos.Symbol
	bars := e.frames.Bars(symbol)
	if len(bars) == 0 {
		return
	}

	signal := e.decideExitSignal(pos, bars, cfg, now)
	if signal == ledger.ExitNone {
		return
	}

	sizeToSell := pos.Size
	if signal == ledger.ExitPartialTakeProfit {
		sizeToSell = ceilDiv(pos.Size, pos.Risk.PartialRatio)
		if sizeToSell >= pos.Size {
			signal = ledger.ExitTakeProfit
			sizeToSell = pos.Size
		}
	}

	orderID, _, err := e.orders.SellMarket(ctx, symbol, sizeToSell)
	if err != nil {
		// The position is still held but the engine could not start the exit;
		// flag it for the operator instead of silently retrying every bar.
		pos.State = ledger.StateErrorExitOrder
		e.logf(symbol, "sell_market rejected for exit %s: %v", signal, err)
		return
	}

	pos.State = ledger.StatePendingExit
	pos.PendingOrderID = orderID
	pos.ExitSignal = signal
	pos.OriginalSizeBeforeExit = pos.Size
	pos.SizeToSell = sizeToSell
	pos.FilledQuantity = 0
	pos.FilledValue = decimal.Zero
	e.logf(symbol, "exit signal %s: sell %d shares, order %s", signal, sizeToSell, orderID)
}

// decideExitSignal applies the exit-rule priority chain, first match wins
//.
func (e *Evaluator) decideExitSignal(pos *ledger.Position, bars []types.Bar, cfg Config, now time.Time) ledger.ExitSignal {
	symbol := pos.Symbol
	last := bars[len(bars)-1]

	if e.halts != nil && e.halts.IsHalted(symbol) {
		return ledger.ExitHaltStop
	}
	if afterTimeStop(now, cfg.TimeStop) {
		return ledger.ExitTimeStop
	}

	profitPct := pos.ProfitPct(last.Close)
	if profitPct.GreaterThanOrEqual(pos.Risk.TargetProfitPct) {
		return ledger.ExitTakeProfit
	}
	if profitPct.LessThanOrEqual(pos.Risk.StopLossPct) {
		return ledger.ExitStopLoss
	}

	if len(bars) >= 2 {
		prevBars := bars[:len(bars)-1]
		emaShort := indicator.EMA(bars, cfg.EMAShortPeriod)
		emaLong := indicator.EMA(bars, cfg.EMALongPeriod)
		prevEMAShort := indicator.EMA(prevBars, cfg.EMAShortPeriod)
		prevEMALong := indicator.EMA(prevBars, cfg.EMALongPeriod)
		if allKnown(emaShort, emaLong, prevEMAShort, prevEMALong) &&
			emaShort.LessThan(emaLong) && prevEMAShort.GreaterThanOrEqual(prevEMALong) {
			return ledger.ExitEMACrossSell
		}

		vwap := indicator.VWAP(bars)
		prevVWAP := indicator.VWAP(prevBars)
		prevClose := prevBars[len(prevBars)-1].Close
		if allKnown(vwap, prevVWAP) && last.Close.LessThan(vwap) && prevClose.GreaterThanOrEqual(prevVWAP) {
			return ledger.ExitVWAPBreakSell
		}
	}

	if pos.Risk.HasPartialProfit && !pos.PartialProfitTaken && profitPct.GreaterThanOrEqual(pos.Risk.PartialProfitPct) {
		return ledger.ExitPartialTakeProfit
	}

	return ledger.ExitNone
}

func allKnown(vals ...decimal.Decimal) bool {
	for _, v := range vals {
		if indicator.IsUnknown(v) {
			return false
		}
	}
	return true
}

// ceilDiv returns ⌈size · ratio⌉.
func ceilDiv(size int64, ratio decimal.Decimal) int64 {
	raw := decimal.NewFromInt(size).Mul(ratio)
	return raw.Ceil().IntPart()
}

func afterTimeStop(now time.Time, stop TimeOfDay) bool {
	return now.Hour() > stop.Hour || (now.Hour() == stop.Hour && now.Minute() >= stop.Minute)
}

func sessionOpenFor(ref time.Time, open TimeOfDay) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), open.Hour, open.Minute, 0, 0, ref.Location())
}
