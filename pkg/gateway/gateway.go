// Package gateway is the order-placement facade: a narrow three-operation
// surface over the broker RPC client that normalizes typed responses into
// order ids or the xerrors sentinel kinds.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/orb-momentum-bot/pkg/xerrors"
)

// RPC is the subset of the broker client the gateway depends on. It is
// satisfied by pkg/brokerclient.Client; tests supply a fake.
type RPC interface {
	BuyMarket(ctx context.Context, symbol string, quantity int64, clientRef string) (orderID string, err error)
	SellMarket(ctx context.Context, symbol string, quantity int64, clientRef string) (orderID string, err error)
	CancelOrder(ctx context.Context, orderID, symbol string, quantity int64) error
}

// Gateway is the facade callers use to place and cancel orders. Callers
// treat a returned order id as provisional; the order-update stream
// (pkg/reconcile) is the source of truth for whether it ever fills.
type Gateway struct {
	rpc RPC
}

// New wraps rpc in the order-gateway facade.
func New(rpc RPC) *Gateway {
	return &Gateway{rpc: rpc}
}

// BuyMarket places a market buy for quantity shares of symbol. The returned
// clientRef is a correlation id attached to the request for log tracing; it
// is not guaranteed to appear in the broker's own order id.
func (g *Gateway) BuyMarket(ctx context.Context, symbol string, quantity int64) (orderID string, clientRef string, err error) {
	clientRef = uuid.NewString()
	orderID, err = g.rpc.BuyMarket(ctx, symbol, quantity, clientRef)
	if err != nil {
		return "", clientRef, fmt.Errorf("buy_market %s x%d: %w", symbol, quantity, err)
	}
	return orderID, clientRef, nil
}

// SellMarket places a market sell for quantity shares of symbol.
func (g *Gateway) SellMarket(ctx context.Context, symbol string, quantity int64) (orderID string, clientRef string, err error) {
	clientRef = uuid.NewString()
	orderID, err = g.rpc.SellMarket(ctx, symbol, quantity, clientRef)
	if err != nil {
		return "", clientRef, fmt.Errorf("sell_market %s x%d: %w", symbol, quantity, err)
	}
	return orderID, clientRef, nil
}

// Cancel requests cancellation of orderID. quantity=0 means "cancel the
// remaining unfilled amount", mirroring the broker RPC's own convention.
func (g *Gateway) Cancel(ctx context.Context, orderID, symbol string, quantity int64) error {
	if err := g.rpc.CancelOrder(ctx, orderID, symbol, quantity); err != nil {
		return fmt.Errorf("cancel %s (%s): %w", orderID, symbol, err)
	}
	return nil
}

// IsRetryable reports whether err (as returned by any Gateway method) wraps
// one of the transient kinds: xerrors.TransportError, RateLimitError, or
// RetryableRpcError (HTTP 5xx). It returns false for every other error. A
// 5xx response or a transport failure after the request was sent can follow
// a request the broker did receive, so true does not prove that no order
// was placed.
func IsRetryable(err error) bool {
	for _, sentinel := range []error{xerrors.TransportError, xerrors.RateLimitError, xerrors.RetryableRpcError} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
