package frame

import (
	"testing"
	"time"

	"github.com/orb-momentum-bot/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bar(minute int, close int64) types.Bar {
	return types.Bar{
		Timestamp: time.Date(2026, 7, 31, 9, minute, 0, 0, time.UTC),
		Open:      decimal.NewFromInt(close),
		High:      decimal.NewFromInt(close),
		Low:       decimal.NewFromInt(close),
		Close:     decimal.NewFromInt(close),
		Volume:    100,
	}
}

func TestAppendOrReplace_DuplicateMinuteOverwrites(t *testing.T) {
	s := New(0)
	s.AppendOrReplace("X", bar(0, 100))
	s.AppendOrReplace("X", bar(1, 110))
	s.AppendOrReplace("X", bar(1, 115)) // late rewrite of the same minute

	bars := s.Bars("X")
	require.Len(t, bars, 2)
	assert.True(t, bars[1].Close.Equal(decimal.NewFromInt(115)))
}

func TestLoadHistory_ThenLive_EqualsAllLive(t *testing.T) {
	all := []types.Bar{bar(0, 100), bar(1, 101), bar(2, 102), bar(3, 103)}

	split := New(0)
	split.LoadHistory("X", all[:2])
	for _, b := range all[2:] {
		split.AppendOrReplace("X", b)
	}

	live := New(0)
	for _, b := range all {
		live.AppendOrReplace("X", b)
	}

	assert.Equal(t, live.Bars("X"), split.Bars("X"))
}

func TestMaxBars_CapsRing(t *testing.T) {
	s := New(3)
	for i := 0; i < 5; i++ {
		s.AppendOrReplace("X", bar(i, int64(100+i)))
	}
	bars := s.Bars("X")
	require.Len(t, bars, 3)
	assert.Equal(t, time.Date(2026, 7, 31, 9, 2, 0, 0, time.UTC), bars[0].Timestamp)
}

func TestBars_ReturnsCopy(t *testing.T) {
	s := New(0)
	s.AppendOrReplace("X", bar(0, 100))
	got := s.Bars("X")
	got[0].Close = decimal.NewFromInt(999)
	assert.True(t, s.Bars("X")[0].Close.Equal(decimal.NewFromInt(100)))
}

func TestDrop_ClearsSymbol(t *testing.T) {
	s := New(0)
	s.AppendOrReplace("X", bar(0, 100))
	s.Drop("X")
	assert.Empty(t, s.Bars("X"))
}
