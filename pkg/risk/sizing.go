// Package risk holds the account-level guards around order placement: share
// sizing from the configured investment amount, a buying-power reservation
// around entry orders, and the daily realized-loss limit that can trip the
// kill switch.
package risk

import "github.com/shopspring/decimal"

// SharesFor returns how many whole shares the investment amount buys at
// price, i.e. floor(investment/price). Returns 0 when price is not positive.
func SharesFor(investment, price decimal.Decimal) int64 {
	if !price.IsPositive() {
		return 0
	}
	return investment.Div(price).IntPart()
}
