package strategyeval

import "github.com/shopspring/decimal"

// TimeOfDay is a session-local wall-clock time used for the time-stop gate.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// Config is the immutable strategy-threshold snapshot. It is replaced
// atomically in pkg/config; the evaluator reads one such snapshot per bar
// evaluation, and a position locks its own copy at entry time.
type Config struct {
	ORBMinutes         int
	BreakoutBufferPct  decimal.Decimal
	TargetProfitPct    decimal.Decimal
	StopLossPct        decimal.Decimal
	HasPartialProfit   bool
	PartialProfitPct   decimal.Decimal
	PartialProfitRatio decimal.Decimal
	TimeStop           TimeOfDay

	EMAShortPeriod int
	EMALongPeriod  int
	RVOLPeriod     int

	RVOLThreshold     decimal.Decimal
	OBIThreshold      decimal.Decimal
	StrengthThreshold decimal.Decimal

	MaxConcurrentPositions int
	InvestmentAmount       decimal.Decimal

	SessionOpen TimeOfDay
}
