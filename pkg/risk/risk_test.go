package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orb-momentum-bot/pkg/xerrors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharesFor(t *testing.T) {
	assert.EqualValues(t, 99, SharesFor(decimal.NewFromInt(1_000_000), decimal.NewFromInt(10050)))
	assert.EqualValues(t, 0, SharesFor(decimal.NewFromInt(1000), decimal.NewFromInt(2000)))
	assert.EqualValues(t, 0, SharesFor(decimal.NewFromInt(1000), decimal.Zero))
}

func TestCashGuard_ReserveAndRelease(t *testing.T) {
	g := NewCashGuard(decimal.NewFromInt(100))
	assert.True(t, g.TryReserve(decimal.NewFromInt(60)))
	assert.False(t, g.TryReserve(decimal.NewFromInt(60)))
	g.Release(decimal.NewFromInt(60))
	assert.True(t, g.TryReserve(decimal.NewFromInt(100)))
	assert.True(t, g.Available().IsZero())
}

type stubPlacer struct {
	err   error
	buys  int
	sells int
}

func (s *stubPlacer) BuyMarket(context.Context, string, int64) (string, string, error) {
	s.buys++
	return "b1", "r1", s.err
}

func (s *stubPlacer) SellMarket(context.Context, string, int64) (string, string, error) {
	s.sells++
	return "s1", "r2", s.err
}

func TestGuardedPlacer_InsufficientFunds(t *testing.T) {
	inner := &stubPlacer{}
	p := &GuardedPlacer{
		Orders:       inner,
		Guard:        NewCashGuard(decimal.NewFromInt(50)),
		PerOrderCost: decimal.NewFromInt(100),
	}
	_, _, err := p.BuyMarket(context.Background(), "X", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.BrokerBusinessError))
	assert.Zero(t, inner.buys)
}

func TestGuardedPlacer_ReleasesOnPlacementFailure(t *testing.T) {
	inner := &stubPlacer{err: errors.New("boom")}
	guard := NewCashGuard(decimal.NewFromInt(100))
	p := &GuardedPlacer{Orders: inner, Guard: guard, PerOrderCost: decimal.NewFromInt(100)}

	_, _, err := p.BuyMarket(context.Background(), "X", 10)
	require.Error(t, err)
	assert.True(t, guard.Available().Equal(decimal.NewFromInt(100)))
}

func TestGuardedPlacer_SellReturnsCost(t *testing.T) {
	inner := &stubPlacer{}
	guard := NewCashGuard(decimal.NewFromInt(100))
	p := &GuardedPlacer{Orders: inner, Guard: guard, PerOrderCost: decimal.NewFromInt(100)}

	_, _, err := p.BuyMarket(context.Background(), "X", 10)
	require.NoError(t, err)
	assert.True(t, guard.Available().IsZero())

	_, _, err = p.SellMarket(context.Background(), "X", 10)
	require.NoError(t, err)
	assert.True(t, guard.Available().Equal(decimal.NewFromInt(100)))
}

func TestDailyLimits_BreachAndDayReset(t *testing.T) {
	d := NewDailyLimits(decimal.NewFromInt(500))
	day1 := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)

	d.OnRealized(decimal.NewFromInt(-300), day1)
	assert.False(t, d.Breached())
	d.OnRealized(decimal.NewFromInt(-250), day1.Add(time.Hour))
	assert.True(t, d.Breached())

	// A trade on the next day resets the accumulator and the breach flag.
	d.OnRealized(decimal.NewFromInt(-100), day1.Add(24*time.Hour))
	assert.False(t, d.Breached())
	assert.True(t, d.Realized().Equal(decimal.NewFromInt(-100)))
}

func TestDailyLimits_DisabledByZero(t *testing.T) {
	d := NewDailyLimits(decimal.Zero)
	d.OnRealized(decimal.NewFromInt(-1_000_000), time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC))
	assert.False(t, d.Breached())
}
