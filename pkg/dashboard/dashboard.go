// Package dashboard is the read-only operator view: engine state, positions
// with their locked risk parameters, the candidate set, recent log lines,
// and realized P&L from the trade journal. It reads snapshots only, never
// live references, and exposes one mutation each for the runtime-tunable
// strategy thresholds and the kill switch.
package dashboard

import (
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/orb-momentum-bot/internal/telemetry"
	"github.com/orb-momentum-bot/pkg/config"
	"github.com/orb-momentum-bot/pkg/journal"
	"github.com/orb-momentum-bot/pkg/ledger"
	"gopkg.in/yaml.v3"
)

// recentTrades bounds the journal tail shown on the dashboard.
const recentTrades = 20

// Deps are the read-only sources the dashboard renders from.
type Deps struct {
	Book       *ledger.Ledger
	Journal    *journal.Journal
	Logs       *telemetry.Logger
	Store      *config.Store
	State      func() string
	Candidates func() []string
	Kill       func()
}

// Dashboard renders the engine snapshot as text and serves it over HTTP.
type Dashboard struct {
	deps Deps
}

// New creates a Dashboard.
func New(deps Deps) *Dashboard {
	return &Dashboard{deps: deps}
}

// Render writes the full text dashboard to w.
func (d *Dashboard) Render(w io.Writer) error {
	fmt.Fprintf(w, "engine state: %s\n", d.deps.State())

	if d.deps.Candidates != nil {
		fmt.Fprintf(w, "candidates:   %v\n", d.deps.Candidates())
	}

	fmt.Fprintln(w, "\npositions:")
	d.renderPositions(w)

	if d.deps.Journal != nil {
		pnl, err := d.deps.Journal.RealizedPnL()
		if err == nil {
			fmt.Fprintf(w, "\nrealized P&L: %s\n", pnl)
		}
		fmt.Fprintln(w, "\nrecent trades:")
		d.renderTrades(w)
	}

	if d.deps.Logs != nil {
		fmt.Fprintln(w, "\nrecent activity:")
		for _, line := range d.deps.Logs.Recent() {
			fmt.Fprintln(w, "  "+line)
		}
	}
	return nil
}

func (d *Dashboard) renderPositions(w io.Writer) {
	positions := d.deps.Book.All()
	symbols := make([]string, 0, len(positions))
	for sym := range positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	table := tablewriter.NewWriter(w)
	table.Header("Symbol", "State", "Size", "Entry", "TP%", "SL%", "Partial", "Exit Signal")
	for _, sym := range symbols {
		p := positions[sym]
		if p.State == ledger.StateSearching || p.State == ledger.StateClosed {
			continue
		}
		table.Append(
			p.Symbol,
			string(p.State),
			fmt.Sprintf("%d", p.Size),
			p.EntryPrice.String(),
			p.Risk.TargetProfitPct.String(),
			p.Risk.StopLossPct.String(),
			fmt.Sprintf("%t", p.PartialProfitTaken),
			string(p.ExitSignal),
		)
	}
	table.Render()
}

func (d *Dashboard) renderTrades(w io.Writer) {
	trades, err := d.deps.Journal.Recent(recentTrades)
	if err != nil {
		fmt.Fprintf(w, "  journal unavailable: %v\n", err)
		return
	}
	table := tablewriter.NewWriter(w)
	table.Header("Symbol", "Entry", "Exit Value", "Qty", "Signal", "Closed")
	for _, t := range trades {
		table.Append(
			t.Symbol,
			t.EntryPrice.String(),
			t.ExitFillValue.String(),
			fmt.Sprintf("%d", t.ExitFillQuantity),
			string(t.ExitSignal),
			t.ClosedAt.Format("15:04:05"),
		)
	}
	table.Render()
}

// Handler returns the dashboard's HTTP mux:
//
//	GET  /         text dashboard
//	POST /config   YAML strategy section, swapped in atomically
//	POST /kill     kill switch
func (d *Dashboard) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_ = d.Render(w)
	})

	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var strat config.Strategy
		if err := yaml.Unmarshal(raw, &strat); err != nil {
			http.Error(w, fmt.Sprintf("bad strategy yaml: %v", err), http.StatusBadRequest)
			return
		}
		// Applies to positions opened after this point; in-flight positions
		// keep their locked copies.
		d.deps.Store.Replace(strat.Snapshot())
		fmt.Fprintln(w, "strategy updated")
	})

	mux.HandleFunc("/kill", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		if d.deps.Kill != nil {
			d.deps.Kill()
		}
		fmt.Fprintln(w, "kill switch activated")
	})

	return mux
}
