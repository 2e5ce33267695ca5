// Command replay drives the live trading pipeline offline: it reads a JSONL
// recording of trade/book/halt events, feeds them through the aggregator,
// frame store, and strategy evaluator exactly as the engine would, simulates
// instant fills through the reconciler, and prints the resulting trades.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/orb-momentum-bot/pkg/aggregator"
	"github.com/orb-momentum-bot/pkg/config"
	"github.com/orb-momentum-bot/pkg/frame"
	"github.com/orb-momentum-bot/pkg/ledger"
	"github.com/orb-momentum-bot/pkg/reconcile"
	"github.com/orb-momentum-bot/pkg/strategyeval"
	"github.com/orb-momentum-bot/pkg/types"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// record is one line of the recording. Type defaults to "trade".
type record struct {
	Type   string  `json:"type"`
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Volume int64   `json:"volume"` // signed for trades: positive = buyer-initiated
	Time   string  `json:"time"`   // RFC3339

	BidVolume int64 `json:"bid_volume"`
	AskVolume int64 `json:"ask_volume"`
	Activated bool  `json:"activated"`
}

func main() {
	configPath := flag.String("config", "", "optional YAML config for strategy thresholds")
	ticksPath := flag.String("ticks", "", "JSONL event recording to replay")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		raw, err := os.ReadFile(*configPath)
		if err != nil {
			log.Fatalf("read config: %v", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			log.Fatalf("parse config: %v", err)
		}
	}
	if *ticksPath == "" {
		*ticksPath = cfg.Replay.TicksFile
	}
	if *ticksPath == "" {
		log.Fatal("no ticks file: pass -ticks or set replay.ticks_file")
	}

	f, err := os.Open(*ticksPath)
	if err != nil {
		log.Fatalf("open ticks: %v", err)
	}
	defer f.Close()

	sim := newSimulator(cfg.Strategy.Snapshot())
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			log.Printf("line %d: skipping undecodable record: %v", line, err)
			continue
		}
		sim.apply(rec)
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("read ticks: %v", err)
	}

	sim.finish()
	sim.report(os.Stdout)
}

// simulator owns the replayed pipeline: the same aggregator, frame store,
// ledger, evaluator, and reconciler the live engine runs, minus transport.
type simulator struct {
	cfg      strategyeval.Config
	agg      *aggregator.Aggregator
	counters *aggregator.TradeCounters
	halts    *aggregator.HaltTracker
	books    *aggregator.OrderBookTracker
	frames   *frame.Store
	book     *ledger.Ledger
	recon    *reconcile.Reconciler
	eval     *strategyeval.Evaluator
	orders   *simOrders
	trades   *tradeSink

	symbols map[string]bool
	lastAt  time.Time
}

func newSimulator(cfg strategyeval.Config) *simulator {
	s := &simulator{
		cfg:      cfg,
		agg:      aggregator.New(),
		counters: aggregator.NewTradeCounters(),
		halts:    aggregator.NewHaltTracker(),
		books:    aggregator.NewOrderBookTracker(),
		frames:   frame.New(0),
		book:     ledger.New(),
		orders:   &simOrders{},
		trades:   &tradeSink{},
		symbols:  make(map[string]bool),
	}
	s.recon = reconcile.New(s.book, s.trades, nil)
	s.eval = strategyeval.New(s.book, s.frames, s.halts, s, s.books, s.counters, s.orders, nil)
	return s
}

// IsCandidate treats every replayed symbol as a candidate.
func (s *simulator) IsCandidate(symbol string) bool { return s.symbols[symbol] }

func (s *simulator) apply(rec record) {
	symbol := types.NormalizeSymbol(rec.Symbol)
	s.symbols[symbol] = true

	switch rec.Type {
	case "book":
		s.books.OnBookUpdate(symbol, rec.BidVolume, rec.AskVolume)
	case "halt":
		if rec.Activated {
			s.halts.Activate(symbol)
		} else {
			s.halts.Release(symbol)
		}
	default:
		s.applyTrade(symbol, rec)
	}
	s.drainFills()
}

func (s *simulator) applyTrade(symbol string, rec record) {
	when, err := time.Parse(time.RFC3339, rec.Time)
	if err != nil {
		log.Printf("skipping trade with bad time %q: %v", rec.Time, err)
		return
	}
	s.lastAt = when

	price := decimal.NewFromFloat(rec.Price)
	volume := rec.Volume
	if volume < 0 {
		volume = -volume
	}
	if volume == 0 || !price.IsPositive() {
		return
	}
	s.counters.OnTick(symbol, rec.Volume, when)

	completed, ok := s.agg.OnTick(symbol, price, volume, when)
	if !ok {
		return
	}
	s.frames.AppendOrReplace(completed.Symbol, completed.Bar)
	s.eval.OnCompletedBar(context.Background(), completed.Symbol, s.cfg, when)
}

// drainFills applies the instant-fill simulation: every order the evaluator
// placed since the last event fills completely at its reference price.
func (s *simulator) drainFills() {
	for _, o := range s.orders.take() {
		price := decimal.Zero
		if bars := s.frames.Bars(o.symbol); len(bars) > 0 {
			price = bars[len(bars)-1].Close
		}
		s.recon.OnOrderUpdate(reconcile.OrderUpdate{
			OrderID:     o.id,
			Symbol:      o.symbol,
			Status:      reconcile.StatusFill,
			ExecQty:     o.quantity,
			ExecPrice:   price,
			UnfilledQty: 0,
			OriginalQty: o.quantity,
		})
	}
}

func (s *simulator) finish() {
	symbols := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		if bar, ok := s.agg.Flush(sym); ok {
			s.frames.AppendOrReplace(bar.Symbol, bar.Bar)
		}
	}
	s.drainFills()
}

func (s *simulator) report(out *os.File) {
	fmt.Fprintf(out, "replayed %d symbols, %d completed trades\n\n", len(s.symbols), len(s.trades.trades))

	table := tablewriter.NewWriter(out)
	table.Header("Symbol", "Entry", "Exit Value", "Qty", "Signal", "P&L")
	total := decimal.Zero
	for _, t := range s.trades.trades {
		pnl := t.ExitFillValue.Sub(t.EntryPrice.Mul(decimal.NewFromInt(t.ExitFillQuantity)))
		total = total.Add(pnl)
		table.Append(
			t.Symbol,
			t.EntryPrice.String(),
			t.ExitFillValue.String(),
			fmt.Sprintf("%d", t.ExitFillQuantity),
			string(t.ExitSignal),
			pnl.String(),
		)
	}
	table.Render()
	fmt.Fprintf(out, "\ntotal P&L: %s\n", total)

	open := 0
	for _, pos := range s.book.All() {
		if pos.State == ledger.StateInPosition || pos.State == ledger.StatePendingExit {
			open++
		}
	}
	if open > 0 {
		fmt.Fprintf(out, "%d positions still open at end of recording\n", open)
	}
}

// simOrders collects orders placed by the evaluator for later instant fill.
// It cannot apply fills inline: the evaluator calls it while holding the
// symbol's lock, which the reconciler would need too.
type simOrders struct {
	seq     int
	pending []simOrder
}

type simOrder struct {
	id       string
	symbol   string
	quantity int64
}

func (o *simOrders) place(symbol string, quantity int64) (string, string, error) {
	o.seq++
	id := fmt.Sprintf("SIM-%04d", o.seq)
	o.pending = append(o.pending, simOrder{id: id, symbol: symbol, quantity: quantity})
	return id, id, nil
}

func (o *simOrders) BuyMarket(_ context.Context, symbol string, quantity int64) (string, string, error) {
	return o.place(symbol, quantity)
}

func (o *simOrders) SellMarket(_ context.Context, symbol string, quantity int64) (string, string, error) {
	return o.place(symbol, quantity)
}

func (o *simOrders) take() []simOrder {
	out := o.pending
	o.pending = nil
	return out
}

// tradeSink records completed exits in memory.
type tradeSink struct {
	trades []reconcile.CompletedTrade
}

func (t *tradeSink) Append(trade reconcile.CompletedTrade) error {
	t.trades = append(t.trades, trade)
	return nil
}
