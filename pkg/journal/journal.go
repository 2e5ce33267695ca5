// Package journal persists completed exits to a local SQLite database: one
// row per completed exit (partial take-profit or full exit), append-only. The dashboard reads realized P&L and the
// trade list from here; nothing in the engine ever updates or deletes rows.
package journal

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/orb-momentum-bot/pkg/ledger"
	"github.com/orb-momentum-bot/pkg/reconcile"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol      TEXT    NOT NULL,
	entry_time  TEXT    NOT NULL,
	entry_price TEXT    NOT NULL,
	exit_value  TEXT    NOT NULL,
	exit_qty    INTEGER NOT NULL,
	orig_size   INTEGER NOT NULL,
	exit_signal TEXT    NOT NULL,
	closed_at   TEXT    NOT NULL
);
`

// Journal is an append-only trade history store backed by SQLite.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (and if necessary creates) the journal database at path. Use
// "file::memory:?cache=shared" for an in-memory journal in tests.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// modernc's driver is not safe for concurrent writers on one connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append writes one completed exit. Satisfies reconcile.Journal.
func (j *Journal) Append(t reconcile.CompletedTrade) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := j.db.Exec(
		`INSERT INTO trades (symbol, entry_time, entry_price, exit_value, exit_qty, orig_size, exit_signal, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Symbol,
		t.EntryTime.Format(time.RFC3339Nano),
		t.EntryPrice.String(),
		t.ExitFillValue.String(),
		t.ExitFillQuantity,
		t.OriginalSizeBeforeExit,
		string(t.ExitSignal),
		t.ClosedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append trade %s: %w", t.Symbol, err)
	}
	return nil
}

// Recent returns up to limit trades, newest first.
func (j *Journal) Recent(limit int) ([]reconcile.CompletedTrade, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rows, err := j.db.Query(
		`SELECT symbol, entry_time, entry_price, exit_value, exit_qty, orig_size, exit_signal, closed_at
		 FROM trades ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []reconcile.CompletedTrade
	for rows.Next() {
		var (
			t                     reconcile.CompletedTrade
			entryTime, closedAt   string
			entryPrice, exitValue string
			signal                string
		)
		if err := rows.Scan(&t.Symbol, &entryTime, &entryPrice, &exitValue, &t.ExitFillQuantity, &t.OriginalSizeBeforeExit, &signal, &closedAt); err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		t.EntryTime, _ = time.Parse(time.RFC3339Nano, entryTime)
		t.ClosedAt, _ = time.Parse(time.RFC3339Nano, closedAt)
		t.EntryPrice, _ = decimal.NewFromString(entryPrice)
		t.ExitFillValue, _ = decimal.NewFromString(exitValue)
		t.ExitSignal = ledger.ExitSignal(signal)
		out = append(out, t)
	}
	return out, rows.Err()
}

// RealizedPnL sums (exit_value - entry_price*exit_qty) across every recorded
// exit, i.e. the account's total realized profit in price units.
func (j *Journal) RealizedPnL() (decimal.Decimal, error) {
	trades, err := j.Recent(1 << 30)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, t := range trades {
		cost := t.EntryPrice.Mul(decimal.NewFromInt(t.ExitFillQuantity))
		total = total.Add(t.ExitFillValue.Sub(cost))
	}
	return total, nil
}
