package screener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orb-momentum-bot/internal/telemetry"
	"github.com/orb-momentum-bot/pkg/aggregator"
	"github.com/orb-momentum-bot/pkg/brokerclient"
	"github.com/orb-momentum-bot/pkg/config"
	"github.com/orb-momentum-bot/pkg/frame"
	"github.com/orb-momentum-bot/pkg/ledger"
	"github.com/orb-momentum-bot/pkg/metrics"
	"github.com/orb-momentum-bot/pkg/reconcile"
	"github.com/orb-momentum-bot/pkg/risk"
	"github.com/orb-momentum-bot/pkg/strategyeval"
	"github.com/orb-momentum-bot/pkg/subscription"
	"github.com/orb-momentum-bot/pkg/transport"
	"github.com/shopspring/decimal"
)

// EngineState is the supervisor's lifecycle state.
type EngineState string

const (
	StateStarting            EngineState = "STARTING"
	StateRunning             EngineState = "RUNNING"
	StateStopping            EngineState = "STOPPING"
	StateStopped             EngineState = "STOPPED"
	StateError               EngineState = "ERROR"
	StateKillSwitchActivated EngineState = "KILL_SWITCH_ACTIVATED"
)

// startupTimeout bounds the login handshake and the account-feed
// registration wait during startup.
const startupTimeout = 10 * time.Second

// BalanceSource is the one-shot balance query used for the cold-start ledger
// seed; satisfied by *brokerclient.Client.
type BalanceSource interface {
	FetchBalanceSnapshot(ctx context.Context) (brokerclient.BalanceSnapshot, error)
}

// Deps collects everything the supervisor wires together.
type Deps struct {
	Config   *config.Config
	Store    *config.Store
	WS       *transport.Client
	Balance  BalanceSource
	Screener *Screener
	Subs     *subscription.Manager
	Agg      *aggregator.Aggregator
	Counters *aggregator.TradeCounters
	Halts    *aggregator.HaltTracker
	Books    *aggregator.OrderBookTracker
	Frames   *frame.Store
	Book     *ledger.Ledger
	Recon    *reconcile.Reconciler
	Eval     *strategyeval.Evaluator
	Orders   risk.OrderPlacer
	Cash     *risk.CashGuard    // optional
	Limits   *risk.DailyLimits  // optional
	Metrics  *metrics.Metrics   // optional
	Log      *telemetry.Logger
}

// Supervisor runs the engine: transport reader, event dispatch, the periodic
// screening loop, and the stop/kill-switch paths.
type Supervisor struct {
	Deps

	mu     sync.Mutex
	state  EngineState
	cancel context.CancelFunc
	killed bool
}

// NewSupervisor creates a stopped supervisor.
func NewSupervisor(deps Deps) *Supervisor {
	return &Supervisor{Deps: deps, state: StateStopped}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() EngineState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(st EngineState) {
	s.mu.Lock()
	// ERROR and KILL_SWITCH_ACTIVATED are terminal; the shutdown path must
	// not overwrite them with STOPPING/STOPPED.
	if s.state == StateError || s.state == StateKillSwitchActivated {
		s.mu.Unlock()
		return
	}
	s.state = st
	s.mu.Unlock()

	s.Log.Infof("ENGINE", "state -> %s", st)
	if s.Metrics != nil {
		if st == StateRunning {
			s.Metrics.EngineUp.Set(1)
		} else {
			s.Metrics.EngineUp.Set(0)
		}
	}
}

// Run starts the engine and blocks until ctx is cancelled or a fatal error
// occurs. Entering the running state requires a successful transport
// connect, account-feed registration, and initial screening pass; failing
// any of those transitions to ERROR.
func (s *Supervisor) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancel = cancel
	s.state = StateStarting
	s.mu.Unlock()
	s.Log.Infof("ENGINE", "state -> %s", StateStarting)

	if err := s.start(runCtx); err != nil {
		s.fail(err)
		s.WS.Close()
		return err
	}
	s.setState(StateRunning)

	s.screenLoop(runCtx)

	s.shutdown()
	return nil
}

// start performs the STARTING sequence.
func (s *Supervisor) start(ctx context.Context) error {
	if err := s.WS.Connect(ctx); err != nil {
		return err
	}
	go func() {
		if err := s.WS.Run(ctx); err != nil {
			s.Log.Errorf("WS", "reader exited: %v", err)
		}
		// Transport loss is a global error: trigger a graceful stop.
		s.Stop()
	}()
	go s.dispatch(ctx)

	loginCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	if err := s.WS.WaitLogin(loginCtx); err != nil {
		return err
	}

	if err := s.Subs.RegisterAccountFeeds(); err != nil {
		return err
	}
	readyCtx, cancelReady := context.WithTimeout(ctx, startupTimeout)
	defer cancelReady()
	if err := s.Subs.WaitReady(readyCtx); err != nil {
		return err
	}

	s.seedFromBalance(ctx)

	symbols, err := s.Screener.Screen(ctx)
	if err != nil {
		return fmt.Errorf("initial screening: %w", err)
	}
	s.publishCandidates(ctx, symbols)
	return nil
}

// seedFromBalance adopts remote holdings that predate this process and seeds
// the cash guard, so a restart mid-session picks its positions back up
// before the first balance push arrives.
func (s *Supervisor) seedFromBalance(ctx context.Context) {
	if s.Balance == nil {
		return
	}
	snap, err := s.Balance.FetchBalanceSnapshot(ctx)
	if err != nil {
		s.Log.Warnf("ENGINE", "cold-start balance fetch failed: %v", err)
		return
	}
	if s.Cash != nil {
		s.Cash.SetAvailable(snap.AvailableCash)
	}
	for _, h := range snap.Holdings {
		s.Recon.OnBalanceUpdate(reconcile.BalanceUpdate{
			Symbol:   h.Symbol,
			HeldSize: h.Size,
			AvgPrice: h.AvgPrice,
		})
		s.Log.Infof(h.Symbol, "adopted remote holding: %d @ %s", h.Size, h.AvgPrice)
	}
}

// screenLoop is the slow periodic loop: re-screen, publish, and watch the
// daily loss limit. Exits when ctx is cancelled.
func (s *Supervisor) screenLoop(ctx context.Context) {
	ticker := time.NewTicker(s.Config.ScreenInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.Limits != nil && s.Limits.Breached() {
				s.Log.Errorf("ENGINE", "daily loss limit breached (%s), activating kill switch", s.Limits.Realized())
				s.KillSwitch(context.Background())
				return
			}
			symbols, err := s.Screener.Screen(ctx)
			if err != nil {
				// Screening failures after startup are non-fatal; keep the
				// previous candidate set until the next cycle.
				s.Log.Warnf("SCREEN", "screening failed: %v", err)
				continue
			}
			s.publishCandidates(ctx, symbols)
		}
	}
}

func (s *Supervisor) publishCandidates(ctx context.Context, symbols []string) {
	s.Subs.SetCandidates(ctx, symbols)
	if s.Metrics != nil {
		s.Metrics.CandidateCount.Set(float64(len(symbols)))
		s.Metrics.SubscribedCount.Set(float64(len(s.Subs.Subscribed())))
	}
}

// dispatch is the bar-event dispatcher: it drains the transport's event
// stream and routes each variant. Completed-bar strategy evaluation runs in
// its own goroutine per event so an order RPC never blocks the dispatcher;
// the per-symbol lock inside the evaluator keeps same-symbol work serial.
func (s *Supervisor) dispatch(ctx context.Context) {
	for ev := range s.WS.Events() {
		switch {
		case ev.Trade != nil:
			s.onTrade(ctx, ev.Trade)
		case ev.Book != nil:
			s.Books.OnBookUpdate(ev.Book.Symbol, ev.Book.TotalBidVolume, ev.Book.TotalAskVolume)
		case ev.Halt != nil:
			if ev.Halt.Activated {
				s.Log.Warnf(ev.Halt.Symbol, "volatility halt activated (%s)", ev.Halt.HaltType)
				s.Halts.Activate(ev.Halt.Symbol)
			} else {
				s.Log.Infof(ev.Halt.Symbol, "volatility halt released")
				s.Halts.Release(ev.Halt.Symbol)
			}
		case ev.OrderUpdate != nil:
			s.onOrderUpdate(ev.OrderUpdate)
		case ev.Balance != nil:
			s.Recon.OnBalanceUpdate(reconcile.BalanceUpdate{
				Symbol:   ev.Balance.Symbol,
				HeldSize: ev.Balance.HeldSize,
				AvgPrice: ev.Balance.AvgPrice,
			})
			s.updateExposure()
		case ev.Registration != nil:
			s.Subs.OnRegistrationAck(*ev.Registration)
		}
	}
}

func (s *Supervisor) onTrade(ctx context.Context, t *transport.TradeEvent) {
	if s.Metrics != nil {
		s.Metrics.TicksTotal.Inc()
	}
	volume := t.SignedVol
	if volume < 0 {
		volume = -volume
	}
	if volume == 0 || !t.Price.IsPositive() {
		return
	}
	s.Counters.OnTick(t.Symbol, t.SignedVol, t.EventTime)

	completed, ok := s.Agg.OnTick(t.Symbol, t.Price, volume, t.EventTime)
	if !ok {
		return
	}
	if s.Metrics != nil {
		s.Metrics.BarsTotal.Inc()
	}
	s.Frames.AppendOrReplace(completed.Symbol, completed.Bar)

	cfg := s.Store.Current()
	go s.Eval.OnCompletedBar(ctx, completed.Symbol, cfg, time.Now())
}

func (s *Supervisor) onOrderUpdate(u *transport.OrderUpdateEvent) {
	status, ok := reconcile.StatusFromBroker(u.RawStatus, u.UnfilledQty)
	if !ok {
		s.Log.Warnf("EXEC", "unrecognized order status %q for %s", u.RawStatus, u.Symbol)
		return
	}
	if s.Metrics != nil {
		s.Metrics.OrderUpdates.WithLabelValues(string(status)).Inc()
	}
	s.Recon.OnOrderUpdate(reconcile.OrderUpdate{
		OrderID:     u.OrderID,
		Symbol:      u.Symbol,
		Status:      status,
		ExecQty:     u.ExecQuantity,
		ExecPrice:   u.ExecPrice,
		UnfilledQty: u.UnfilledQty,
		OriginalQty: u.OriginalQty,
	})
	s.updateExposure()
}

func (s *Supervisor) updateExposure() {
	if s.Metrics != nil {
		s.Metrics.OpenPositions.Set(float64(s.Book.CountInPosition()))
	}
}

// Stop requests a graceful shutdown: the screener loop exits at its next
// check, the dispatcher drains, and the transport is closed.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Supervisor) shutdown() {
	s.setState(StateStopping)
	for _, sym := range s.Subs.Subscribed() {
		if bar, ok := s.Agg.Flush(sym); ok {
			s.Frames.AppendOrReplace(bar.Symbol, bar.Bar)
		}
	}
	s.WS.Close()
	s.setState(StateStopped)
}

func (s *Supervisor) fail(err error) {
	s.mu.Lock()
	s.state = StateError
	s.mu.Unlock()
	s.Log.Errorf("ENGINE", "fatal: %v", err)
	if s.Metrics != nil {
		s.Metrics.EngineUp.Set(0)
	}
}

// KillSwitch liquidates immediately: one sell-market order per IN_POSITION
// symbol, skipping PENDING_EXIT symbols that already have an exit order in
// flight, then stops the engine without waiting for fills.
func (s *Supervisor) KillSwitch(ctx context.Context) {
	s.mu.Lock()
	if s.killed {
		s.mu.Unlock()
		return
	}
	s.killed = true
	s.state = StateKillSwitchActivated
	s.mu.Unlock()
	s.Log.Errorf("KILL", "kill switch activated, liquidating all holdings")

	for sym, snap := range s.Book.All() {
		if snap.State != ledger.StateInPosition {
			continue
		}
		s.Book.WithSymbol(sym, func(pos *ledger.Position) {
			if pos.State != ledger.StateInPosition || pos.Size <= 0 {
				return
			}
			orderID, _, err := s.Orders.SellMarket(ctx, sym, pos.Size)
			if err != nil {
				s.Log.Errorf("KILL", "liquidation order for %s failed: %v", sym, err)
				pos.State = ledger.StateErrorLiquidation
				return
			}
			pos.State = ledger.StatePendingExit
			pos.PendingOrderID = orderID
			pos.ExitSignal = ledger.ExitKillSwitch
			pos.OriginalSizeBeforeExit = pos.Size
			pos.SizeToSell = pos.Size
			pos.FilledQuantity = 0
			pos.FilledValue = decimal.Zero
			s.Log.Infof("KILL", "sell-market %d shares of %s (order %s)", pos.SizeToSell, sym, orderID)
		})
	}

	s.Stop()
}
