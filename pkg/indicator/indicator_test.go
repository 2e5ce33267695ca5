package indicator

import (
	"testing"
	"time"

	"github.com/orb-momentum-bot/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bar(minute int, high, low, close, volume int64) types.Bar {
	return types.Bar{
		Timestamp: time.Date(2026, 7, 31, 9, minute, 0, 0, time.UTC),
		Open:      decimal.NewFromInt(close),
		High:      decimal.NewFromInt(high),
		Low:       decimal.NewFromInt(low),
		Close:     decimal.NewFromInt(close),
		Volume:    volume,
	}
}

func sessionOpen() time.Time {
	return time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
}

func TestORB_WindowBounds(t *testing.T) {
	bars := []types.Bar{
		bar(0, 10000, 9900, 9950, 100),
		bar(14, 10050, 9800, 10000, 100), // last bar inside a 15-minute window
		bar(15, 12000, 9000, 11000, 100), // first bar outside
	}
	levels := ORB(bars, sessionOpen(), 15*time.Minute)
	assert.True(t, levels.High.Equal(decimal.NewFromInt(10050)))
	assert.True(t, levels.Low.Equal(decimal.NewFromInt(9800)))
}

func TestORB_EmptyWindowIsUnknown(t *testing.T) {
	bars := []types.Bar{bar(30, 100, 90, 95, 10)}
	levels := ORB(bars, sessionOpen(), 15*time.Minute)
	assert.True(t, IsUnknown(levels.High))
	assert.True(t, IsUnknown(levels.Low))
}

func TestVWAP_TypicalPriceWeighting(t *testing.T) {
	bars := []types.Bar{
		bar(0, 110, 90, 100, 10), // typical = 100
		bar(1, 220, 180, 200, 30), // typical = 200
	}
	// (100*10 + 200*30) / 40 = 175
	assert.True(t, VWAP(bars).Equal(decimal.NewFromInt(175)))
}

func TestVWAP_ZeroVolumeIsUnknown(t *testing.T) {
	bars := []types.Bar{bar(0, 110, 90, 100, 0)}
	assert.True(t, IsUnknown(VWAP(bars)))
}

func TestEMA_RequiresEnoughBars(t *testing.T) {
	bars := []types.Bar{bar(0, 100, 100, 100, 10), bar(1, 100, 100, 100, 10)}
	assert.True(t, IsUnknown(EMA(bars, 3)))
	assert.False(t, IsUnknown(EMA(bars, 2)))
}

func TestEMA_ConstantSeries(t *testing.T) {
	var bars []types.Bar
	for i := 0; i < 10; i++ {
		bars = append(bars, bar(i, 500, 500, 500, 10))
	}
	ema := EMA(bars, 5)
	require.False(t, IsUnknown(ema))
	assert.True(t, ema.Equal(decimal.NewFromInt(500)))
}

func TestEMA_RecurrenceSpansFullHistory(t *testing.T) {
	// Closes 1..10 with period 3 (k = 1/2): the seed is avg(1,2,3) = 2 and
	// the recurrence runs over every later bar, landing on exactly 9. A
	// window-only variant that re-seeds from the trailing 3 bars would give
	// 9.375 instead.
	var bars []types.Bar
	for i := 1; i <= 10; i++ {
		bars = append(bars, bar(i, int64(i), int64(i), int64(i), 10))
	}
	ema := EMA(bars, 3)
	require.False(t, IsUnknown(ema))
	assert.True(t, ema.Equal(decimal.NewFromInt(9)), "got %s", ema)
}

func TestRVOL_Percentage(t *testing.T) {
	bars := []types.Bar{
		bar(0, 100, 100, 100, 100),
		bar(1, 100, 100, 100, 100),
		bar(2, 100, 100, 100, 100),
		bar(3, 100, 100, 100, 180), // 180 vs mean(100,100,100) -> 180%
	}
	rvol := RVOL(bars, 3)
	require.False(t, IsUnknown(rvol))
	assert.True(t, rvol.Equal(decimal.NewFromInt(180)))
}

func TestRVOL_Guards(t *testing.T) {
	short := []types.Bar{bar(0, 1, 1, 1, 10), bar(1, 1, 1, 1, 10)}
	assert.True(t, IsUnknown(RVOL(short, 3)))

	zeroVol := []types.Bar{
		bar(0, 1, 1, 1, 0), bar(1, 1, 1, 1, 0), bar(2, 1, 1, 1, 0),
		bar(3, 1, 1, 1, 50),
	}
	assert.True(t, IsUnknown(RVOL(zeroVol, 3)))
}

func TestOBI_Sentinels(t *testing.T) {
	assert.True(t, OBI(200, 100).Equal(decimal.NewFromInt(2)))
	assert.True(t, OBI(100, 0).Equal(Extreme))
	assert.True(t, IsUnknown(OBI(0, 0)))
}

func TestStrength_Sentinels(t *testing.T) {
	assert.True(t, Strength(150, 100).Equal(decimal.NewFromInt(150)))
	assert.True(t, Strength(10, 0).Equal(Extreme))
	assert.True(t, IsUnknown(Strength(0, 0)))
}
