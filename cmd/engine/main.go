// Command engine runs the live intraday trading engine: it wires the broker
// client, websocket transport, aggregation pipeline, strategy evaluator, and
// reconciler together, serves the dashboard and metrics, and shuts down
// cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orb-momentum-bot/internal/telemetry"
	"github.com/orb-momentum-bot/pkg/aggregator"
	"github.com/orb-momentum-bot/pkg/brokerclient"
	"github.com/orb-momentum-bot/pkg/config"
	"github.com/orb-momentum-bot/pkg/dashboard"
	"github.com/orb-momentum-bot/pkg/frame"
	"github.com/orb-momentum-bot/pkg/gateway"
	"github.com/orb-momentum-bot/pkg/journal"
	"github.com/orb-momentum-bot/pkg/ledger"
	"github.com/orb-momentum-bot/pkg/metrics"
	"github.com/orb-momentum-bot/pkg/reconcile"
	"github.com/orb-momentum-bot/pkg/risk"
	"github.com/orb-momentum-bot/pkg/screener"
	"github.com/orb-momentum-bot/pkg/strategyeval"
	"github.com/orb-momentum-bot/pkg/subscription"
	"github.com/orb-momentum-bot/pkg/transport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := telemetry.New(cfg.Logging.KeepRecent)
	store := config.NewStore(cfg.Strategy)
	met := metrics.New()

	creds := cfg.Broker.Active()
	broker := brokerclient.New(creds.BaseURL, creds.AppKey, creds.AppSecret, cfg.Paths.TokenCache)
	ws := transport.NewClient(creds.WsURL, broker.AccessToken, logger)

	jrnl, err := journal.Open(cfg.Paths.JournalDB)
	if err != nil {
		log.Fatalf("open journal: %v", err)
	}
	defer jrnl.Close()

	book := ledger.New()
	frames := frame.New(0)
	agg := aggregator.New()
	counters := aggregator.NewTradeCounters()
	halts := aggregator.NewHaltTracker()
	books := aggregator.NewOrderBookTracker()

	cash := risk.NewCashGuard(decimal.Zero)
	limits := risk.NewDailyLimits(decimal.NewFromFloat(cfg.Strategy.DailyLossLimit))
	sink := &journalSink{journal: jrnl, limits: limits, metrics: met}

	subs := subscription.New(ws, broker, frames, book, logger, frames, agg, counters, halts, books)
	recon := reconcile.New(book, sink, subs)

	orders := &risk.GuardedPlacer{
		Orders:       gateway.New(broker),
		Guard:        cash,
		PerOrderCost: decimal.NewFromFloat(cfg.Strategy.InvestmentAmount),
	}
	eval := strategyeval.New(book, frames, halts, subs, books, counters, orders, logger)

	scr := screener.New(broker, cfg.Screening, logger)
	sup := screener.NewSupervisor(screener.Deps{
		Config:   cfg,
		Store:    store,
		WS:       ws,
		Balance:  broker,
		Screener: scr,
		Subs:     subs,
		Agg:      agg,
		Counters: counters,
		Halts:    halts,
		Books:    books,
		Frames:   frames,
		Book:     book,
		Recon:    recon,
		Eval:     eval,
		Orders:   orders,
		Cash:     cash,
		Limits:   limits,
		Metrics:  met,
		Log:      logger,
	})

	dash := dashboard.New(dashboard.Deps{
		Book:       book,
		Journal:    jrnl,
		Logs:       logger,
		Store:      store,
		State:      func() string { return string(sup.State()) },
		Candidates: subs.Candidates,
		Kill: func() {
			go sup.KillSwitch(context.Background())
		},
	})

	mux := http.NewServeMux()
	mux.Handle("/", dash.Handler())
	mux.Handle("/metrics", promhttp.HandlerFor(met.Registry, promhttp.HandlerOpts{}))
	httpSrv := &http.Server{Addr: cfg.DashboardAddr, Handler: mux}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("DASH", "http server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sup.Run(ctx); err != nil {
		logger.Errorf("ENGINE", "engine exited: %v", err)
		httpSrv.Close()
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

// journalSink fans each completed exit out to the SQLite journal, the daily
// loss limiter, and the metrics set.
type journalSink struct {
	journal *journal.Journal
	limits  *risk.DailyLimits
	metrics *metrics.Metrics
}

func (s *journalSink) Append(t reconcile.CompletedTrade) error {
	if err := s.journal.Append(t); err != nil {
		return err
	}
	pnl := t.ExitFillValue.Sub(t.EntryPrice.Mul(decimal.NewFromInt(t.ExitFillQuantity)))
	s.limits.OnRealized(pnl, t.ClosedAt)
	s.metrics.TradesRecorded.Inc()
	if total, err := s.journal.RealizedPnL(); err == nil {
		f, _ := total.Float64()
		s.metrics.RealizedPnL.Set(f)
	}
	return nil
}
