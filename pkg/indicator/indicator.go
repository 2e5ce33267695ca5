// Package indicator holds the stateless, pure indicator functions used by the
// strategy evaluator: ORB levels, VWAP, EMA, RVOL, order-book imbalance, and
// trade strength. Every function returns the Unknown sentinel instead of zero
// when its inputs are insufficient or degenerate — callers must never treat
// Unknown as zero.
package indicator

import (
	"time"

	"github.com/orb-momentum-bot/pkg/types"
	"github.com/shopspring/decimal"
)

// Unknown is the sentinel returned whenever an indicator is undefined. Every
// quantity this package computes (prices, volumes, ratios) is non-negative,
// so a negative sentinel is distinguishable from any real value, including
// zero itself.
var Unknown = decimal.NewFromInt(-1)

// IsUnknown reports whether v is the Unknown sentinel.
func IsUnknown(v decimal.Decimal) bool {
	return v.Equal(Unknown)
}

// Extreme is the large sentinel value used by OBI and Strength when the
// denominator side is non-positive and the numerator side is positive —
// interpreted as "extreme imbalance" rather than a division error.
var Extreme = decimal.NewFromInt(1_000_000)

// ORBLevels holds the opening-range high/low for a symbol-day. Either field
// may be Unknown if no bars fall within the opening-range window.
type ORBLevels struct {
	High decimal.Decimal
	Low  decimal.Decimal
}

// ORB scans bars whose timestamp lies in [sessionOpen, sessionOpen+orbWindow)
// and returns the max high / min low across them.
func ORB(bars []types.Bar, sessionOpen time.Time, orbWindow time.Duration) ORBLevels {
	windowEnd := sessionOpen.Add(orbWindow)
	var high, low decimal.Decimal
	found := false
	for _, b := range bars {
		if b.Timestamp.Before(sessionOpen) || !b.Timestamp.Before(windowEnd) {
			continue
		}
		if !found {
			high, low = b.High, b.Low
			found = true
			continue
		}
		if b.High.GreaterThan(high) {
			high = b.High
		}
		if b.Low.LessThan(low) {
			low = b.Low
		}
	}
	if !found {
		return ORBLevels{High: Unknown, Low: Unknown}
	}
	return ORBLevels{High: high, Low: low}
}

// VWAP computes the cumulative volume-weighted average price across bars,
// using the typical price (H+L+C)/3 as the per-bar price. Returns Unknown if
// the cumulative volume is zero.
func VWAP(bars []types.Bar) decimal.Decimal {
	var priceVolSum, volSum decimal.Decimal
	three := decimal.NewFromInt(3)
	for _, b := range bars {
		typical := b.High.Add(b.Low).Add(b.Close).Div(three)
		vol := decimal.NewFromInt(b.Volume)
		priceVolSum = priceVolSum.Add(typical.Mul(vol))
		volSum = volSum.Add(vol)
	}
	if volSum.IsZero() {
		return Unknown
	}
	return priceVolSum.Div(volSum)
}

// EMA computes the conventional exponential moving average with span period
// over the bars' closes: a simple average of the first `period` closes seeds
// the series, and the recurrence ema = close·k + ema·(1−k) then runs across
// every later bar, so weight decays over the whole history rather than a
// trailing window. Undefined (Unknown) until at least `period` bars exist.
func EMA(bars []types.Bar, period int) decimal.Decimal {
	if period <= 0 || len(bars) < period {
		return Unknown
	}
	k := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period + 1)))
	oneMinusK := decimal.NewFromInt(1).Sub(k)

	var sum decimal.Decimal
	for i := 0; i < period; i++ {
		sum = sum.Add(bars[i].Close)
	}
	ema := sum.Div(decimal.NewFromInt(int64(period)))

	for i := period; i < len(bars); i++ {
		ema = bars[i].Close.Mul(k).Add(ema.Mul(oneMinusK))
	}
	return ema
}

// RVOL returns the current (last) bar's volume divided by the mean volume of
// the preceding `window` bars (exclusive of the current bar), as a
// percentage. Undefined if fewer than window+1 bars exist or the denominator
// is not positive.
func RVOL(bars []types.Bar, window int) decimal.Decimal {
	if window <= 0 || len(bars) < window+1 {
		return Unknown
	}
	current := bars[len(bars)-1]
	precedingStart := len(bars) - 1 - window
	var sum int64
	for i := precedingStart; i < len(bars)-1; i++ {
		sum += bars[i].Volume
	}
	if sum <= 0 {
		return Unknown
	}
	mean := decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(window)))
	if !mean.IsPositive() {
		return Unknown
	}
	return decimal.NewFromInt(current.Volume).Div(mean).Mul(decimal.NewFromInt(100))
}

// OBI returns the order-book imbalance ratio bidVolume/askVolume. An ask side
// <= 0 with a positive bid side maps to Extreme. Both-zero (or non-positive
// bid with non-positive ask) maps to Unknown.
func OBI(totalBidVolume, totalAskVolume int64) decimal.Decimal {
	if totalBidVolume <= 0 && totalAskVolume <= 0 {
		return Unknown
	}
	if totalAskVolume <= 0 {
		if totalBidVolume > 0 {
			return Extreme
		}
		return Unknown
	}
	return decimal.NewFromInt(totalBidVolume).Div(decimal.NewFromInt(totalAskVolume))
}

// Strength returns 100 * cumBuy/cumSell. cumSell==0 with cumBuy>0 maps to
// Extreme; both zero maps to Unknown.
func Strength(cumBuy, cumSell int64) decimal.Decimal {
	if cumSell == 0 {
		if cumBuy > 0 {
			return Extreme
		}
		return Unknown
	}
	return decimal.NewFromInt(100).Mul(decimal.NewFromInt(cumBuy)).Div(decimal.NewFromInt(cumSell))
}
