package journal

import (
	"testing"
	"time"

	"github.com/orb-momentum-bot/pkg/ledger"
	"github.com/orb-momentum-bot/pkg/reconcile"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func trade(symbol string, entry, exitValue int64, qty int64) reconcile.CompletedTrade {
	return reconcile.CompletedTrade{
		Symbol:                 symbol,
		EntryTime:              time.Date(2026, 7, 31, 9, 22, 0, 0, time.UTC),
		EntryPrice:             decimal.NewFromInt(entry),
		ExitFillValue:          decimal.NewFromInt(exitValue),
		ExitFillQuantity:       qty,
		OriginalSizeBeforeExit: qty,
		ExitSignal:             ledger.ExitTakeProfit,
		ClosedAt:               time.Date(2026, 7, 31, 10, 5, 0, 0, time.UTC),
	}
}

func TestAppendAndRecent(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.Append(trade("005930", 10050, 412040, 40)))
	require.NoError(t, j.Append(trade("000660", 5000, 306000, 59)))

	trades, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	// Newest first.
	assert.Equal(t, "000660", trades[0].Symbol)
	assert.True(t, trades[0].EntryPrice.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, ledger.ExitTakeProfit, trades[0].ExitSignal)
	assert.Equal(t, 2026, trades[0].ClosedAt.Year())
}

func TestRealizedPnL(t *testing.T) {
	j := openTestJournal(t)

	// Bought 40 @ 10050 (= 402000), sold for 412040: +10040.
	require.NoError(t, j.Append(trade("005930", 10050, 412040, 40)))
	// Bought 10 @ 5000 (= 50000), sold for 49000: -1000.
	require.NoError(t, j.Append(trade("000660", 5000, 49000, 10)))

	pnl, err := j.RealizedPnL()
	require.NoError(t, err)
	assert.True(t, pnl.Equal(decimal.NewFromInt(9040)), "got %s", pnl)
}

func TestRecent_EmptyJournal(t *testing.T) {
	j := openTestJournal(t)
	trades, err := j.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, trades)
}
