package aggregator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hh, mm, ss int) time.Time {
	return time.Date(2026, 7, 31, hh, mm, ss, 0, time.UTC)
}

func d(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func TestOnTick_FoldsWithinMinute(t *testing.T) {
	a := New()

	_, done := a.OnTick("X", d(100), 10, at(9, 0, 1))
	assert.False(t, done)
	_, done = a.OnTick("X", d(105), 5, at(9, 0, 30))
	assert.False(t, done)
	_, done = a.OnTick("X", d(95), 5, at(9, 0, 59))
	assert.False(t, done)

	completed, done := a.OnTick("X", d(101), 1, at(9, 1, 0))
	require.True(t, done)
	assert.Equal(t, at(9, 0, 0), completed.Bar.Timestamp)
	assert.True(t, completed.Bar.Open.Equal(d(100)))
	assert.True(t, completed.Bar.High.Equal(d(105)))
	assert.True(t, completed.Bar.Low.Equal(d(95)))
	assert.True(t, completed.Bar.Close.Equal(d(95)))
	assert.EqualValues(t, 20, completed.Bar.Volume)
}

func TestOnTick_MultiMinuteGapEmitsWithoutFilling(t *testing.T) {
	a := New()
	a.OnTick("X", d(100), 10, at(9, 0, 10))

	completed, done := a.OnTick("X", d(110), 3, at(9, 5, 2))
	require.True(t, done)
	// The 09:00 bar comes out as-is; 09:01..09:04 are never synthesized.
	assert.Equal(t, at(9, 0, 0), completed.Bar.Timestamp)

	flushed, ok := a.Flush("X")
	require.True(t, ok)
	assert.Equal(t, at(9, 5, 0), flushed.Bar.Timestamp)
	assert.EqualValues(t, 3, flushed.Bar.Volume)
}

func TestOnTick_SymbolsAreIndependent(t *testing.T) {
	a := New()
	a.OnTick("X", d(100), 1, at(9, 0, 0))
	a.OnTick("Y", d(200), 1, at(9, 0, 0))

	completed, done := a.OnTick("X", d(101), 1, at(9, 1, 0))
	require.True(t, done)
	assert.Equal(t, "X", completed.Symbol)

	_, ok := a.Flush("Y")
	assert.True(t, ok)
}

func TestOnTick_SameStreamIsDeterministic(t *testing.T) {
	run := func() []CompletedBar {
		a := New()
		var out []CompletedBar
		ticks := []struct {
			p  int64
			v  int64
			at time.Time
		}{
			{100, 5, at(9, 0, 1)}, {102, 5, at(9, 0, 40)},
			{103, 2, at(9, 1, 5)}, {101, 2, at(9, 1, 50)},
			{99, 1, at(9, 2, 0)},
		}
		for _, tk := range ticks {
			if bar, ok := a.OnTick("X", d(tk.p), tk.v, tk.at); ok {
				out = append(out, bar)
			}
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestFlush_EmptySymbol(t *testing.T) {
	a := New()
	_, ok := a.Flush("NONE")
	assert.False(t, ok)
}

func TestDrop_DiscardsPartial(t *testing.T) {
	a := New()
	a.OnTick("X", d(100), 1, at(9, 0, 0))
	a.Drop("X")
	_, ok := a.Flush("X")
	assert.False(t, ok)
}

func TestTradeCounters_AccumulateAndReset(t *testing.T) {
	c := NewTradeCounters()
	c.OnTick("X", 100, at(9, 0, 0))
	c.OnTick("X", -40, at(9, 0, 30))
	buy, sell := c.Snapshot("X")
	assert.EqualValues(t, 100, buy)
	assert.EqualValues(t, 40, sell)

	// More than 60s after window start: counters reset before accumulating.
	c.OnTick("X", 10, at(9, 1, 1))
	buy, sell = c.Snapshot("X")
	assert.EqualValues(t, 10, buy)
	assert.EqualValues(t, 0, sell)
}

func TestHaltTracker_ActivateRelease(t *testing.T) {
	h := NewHaltTracker()
	assert.False(t, h.IsHalted("X"))
	h.Activate("X")
	assert.True(t, h.IsHalted("X"))
	h.Release("X")
	assert.False(t, h.IsHalted("X"))
}

func TestOrderBookTracker_LastValueWins(t *testing.T) {
	o := NewOrderBookTracker()
	o.OnBookUpdate("X", 100, 50)
	o.OnBookUpdate("X", 70, 90)
	bid, ask := o.Snapshot("X")
	assert.EqualValues(t, 70, bid)
	assert.EqualValues(t, 90, ask)
}
