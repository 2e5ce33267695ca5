package brokerclient

import (
	"context"
	"fmt"

	"github.com/orb-momentum-bot/pkg/xerrors"
)

// orderResponse is the common shape of the order endpoints' replies.
type orderResponse struct {
	ReturnCode any    `json:"return_code"`
	ReturnMsg  string `json:"return_msg"`
	OrderNo    string `json:"ord_no"`
}

// BuyMarket places a market buy. clientRef is sent in the request body as a
// correlation field; the broker assigns its own order id, which is what the
// order-update stream keys on.
func (c *Client) BuyMarket(ctx context.Context, symbol string, quantity int64, clientRef string) (string, error) {
	return c.placeOrder(ctx, "/api/dostk/ordr", "kt10000", symbol, quantity, clientRef)
}

// SellMarket places a market sell.
func (c *Client) SellMarket(ctx context.Context, symbol string, quantity int64, clientRef string) (string, error) {
	return c.placeOrder(ctx, "/api/dostk/ordr", "kt10001", symbol, quantity, clientRef)
}

func (c *Client) placeOrder(ctx context.Context, path, apiID, symbol string, quantity int64, clientRef string) (string, error) {
	if quantity <= 0 {
		return "", fmt.Errorf("order quantity %d for %s: %w", quantity, symbol, xerrors.BrokerBusinessError)
	}
	body := map[string]string{
		"dmst_stex_tp": "KRX",
		"stk_cd":       symbol,
		"ord_qty":      fmt.Sprintf("%d", quantity),
		"ord_uv":       "", // empty price = market order
		"trde_tp":      "3",
		"client_ref":   clientRef,
	}
	var resp orderResponse
	if err := c.post(ctx, path, apiID, body, &resp, true); err != nil {
		return "", err
	}
	if err := checkReturnCode(path, resp.ReturnCode, resp.ReturnMsg); err != nil {
		return "", err
	}
	if resp.OrderNo == "" {
		return "", fmt.Errorf("%s: accepted without order id: %w", path, xerrors.DataQualityError)
	}
	return resp.OrderNo, nil
}

// CancelOrder cancels orderID. quantity=0 means cancel the remaining unfilled
// amount.
func (c *Client) CancelOrder(ctx context.Context, orderID, symbol string, quantity int64) error {
	body := map[string]string{
		"dmst_stex_tp": "KRX",
		"orig_ord_no":  orderID,
		"stk_cd":       symbol,
		"cncl_qty":     fmt.Sprintf("%d", quantity),
	}
	var resp orderResponse
	if err := c.post(ctx, "/api/dostk/ordr", "kt10003", body, &resp, true); err != nil {
		return err
	}
	return checkReturnCode("/api/dostk/ordr", resp.ReturnCode, resp.ReturnMsg)
}
