package risk

import (
	"context"
	"fmt"
	"sync"

	"github.com/orb-momentum-bot/pkg/xerrors"
	"github.com/shopspring/decimal"
)

// CashGuard tracks the cash available for new entries. The balance query
// seeds it at startup; each entry order reserves its cost up front so a burst
// of simultaneous signals cannot commit more cash than the account holds.
type CashGuard struct {
	mu        sync.Mutex
	available decimal.Decimal
}

// NewCashGuard creates a guard with the given starting cash.
func NewCashGuard(available decimal.Decimal) *CashGuard {
	return &CashGuard{available: available}
}

// SetAvailable replaces the tracked cash, e.g. from a fresh balance query.
func (g *CashGuard) SetAvailable(cash decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.available = cash
}

// Available returns the currently unreserved cash.
func (g *CashGuard) Available() decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.available
}

// TryReserve deducts cost if enough cash remains, reporting whether the
// reservation succeeded.
func (g *CashGuard) TryReserve(cost decimal.Decimal) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.available.LessThan(cost) {
		return false
	}
	g.available = g.available.Sub(cost)
	return true
}

// Release returns cost to the pool (a failed or sold-out reservation).
func (g *CashGuard) Release(cost decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.available = g.available.Add(cost)
}

// OrderPlacer is the order surface GuardedPlacer wraps; satisfied by
// *gateway.Gateway.
type OrderPlacer interface {
	BuyMarket(ctx context.Context, symbol string, quantity int64) (orderID, clientRef string, err error)
	SellMarket(ctx context.Context, symbol string, quantity int64) (orderID, clientRef string, err error)
}

// GuardedPlacer wraps an OrderPlacer with the cash guard: each buy reserves
// PerOrderCost before the RPC and releases it if placement fails; each sell
// releases the same amount back once placed.
type GuardedPlacer struct {
	Orders       OrderPlacer
	Guard        *CashGuard
	PerOrderCost decimal.Decimal
}

// BuyMarket reserves cash then delegates.
func (p *GuardedPlacer) BuyMarket(ctx context.Context, symbol string, quantity int64) (string, string, error) {
	if !p.Guard.TryReserve(p.PerOrderCost) {
		return "", "", fmt.Errorf("buy %s x%d: insufficient buying power: %w", symbol, quantity, xerrors.BrokerBusinessError)
	}
	orderID, clientRef, err := p.Orders.BuyMarket(ctx, symbol, quantity)
	if err != nil {
		p.Guard.Release(p.PerOrderCost)
		return "", clientRef, err
	}
	return orderID, clientRef, nil
}

// SellMarket delegates, returning the per-order cost to the pool on success.
func (p *GuardedPlacer) SellMarket(ctx context.Context, symbol string, quantity int64) (string, string, error) {
	orderID, clientRef, err := p.Orders.SellMarket(ctx, symbol, quantity)
	if err == nil {
		p.Guard.Release(p.PerOrderCost)
	}
	return orderID, clientRef, err
}
