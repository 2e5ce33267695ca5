// Package types defines the shared data model: symbols, bars, and the
// in-progress partial bar that the candle aggregator mutates tick by tick.
package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NormalizeSymbol strips a leading market prefix (e.g. "A005930" -> "005930")
// and any trailing venue suffix (e.g. "005930_NX" -> "005930") the way the
// brokerage's realtime frames encode item codes. It is idempotent: normalizing
// an already-normalized symbol returns it unchanged.
func NormalizeSymbol(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	if len(s) > 1 && s[0] == 'A' && isDigitString(s[1:2]) {
		s = s[1:]
	}
	if idx := strings.IndexByte(s, '_'); idx >= 0 {
		s = s[:idx]
	}
	return s
}

func isDigitString(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Bar is a single completed one-minute OHLCV candle. Timestamp is the bar's
// open minute, truncated to the minute.
type Bar struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    int64
}

// PartialBar is the mutable in-progress bar the aggregator builds up for the
// current minute. It freezes into a Bar on minute rollover or shutdown.
type PartialBar struct {
	Minute time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// Freeze converts the partial bar into a completed Bar.
func (p *PartialBar) Freeze() Bar {
	return Bar{
		Timestamp: p.Minute,
		Open:      p.Open,
		High:      p.High,
		Low:       p.Low,
		Close:     p.Close,
		Volume:    p.Volume,
	}
}

// TruncateToMinute truncates t to the start of its minute without relying on
// wall-clock drift; callers must pass the broker-reported event time, never
// time.Now().
func TruncateToMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}
