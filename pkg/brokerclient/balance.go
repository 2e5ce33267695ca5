package brokerclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/orb-momentum-bot/pkg/types"
	"github.com/shopspring/decimal"
)

// Holding is one remote position row from the balance snapshot.
type Holding struct {
	Symbol   string
	Size     int64
	AvgPrice decimal.Decimal
}

// BalanceSnapshot is the account's cash plus held positions at query time.
// Used for the cold-start ledger seed and the investment-amount cash guard.
type BalanceSnapshot struct {
	AvailableCash decimal.Decimal
	Holdings      []Holding
}

// FetchBalanceSnapshot queries available cash and current holdings.
func (c *Client) FetchBalanceSnapshot(ctx context.Context) (BalanceSnapshot, error) {
	body := map[string]string{
		"qry_tp":  "1",
		"dmst_stex_tp": "KRX",
	}
	var resp struct {
		ReturnCode any    `json:"return_code"`
		ReturnMsg  string `json:"return_msg"`
		Cash       string `json:"entr"`
		Rows       []struct {
			Symbol   string `json:"stk_cd"`
			Size     string `json:"rmnd_qty"`
			AvgPrice string `json:"pur_pric"`
		} `json:"acnt_evlt_remn_indv_tot"`
	}
	if err := c.post(ctx, "/api/dostk/acnt", "kt00018", body, &resp, true); err != nil {
		return BalanceSnapshot{}, fmt.Errorf("balance snapshot: %w", err)
	}
	if err := checkReturnCode("/api/dostk/acnt", resp.ReturnCode, resp.ReturnMsg); err != nil {
		return BalanceSnapshot{}, err
	}

	snap := BalanceSnapshot{}
	if cash, err := decimal.NewFromString(strings.TrimSpace(resp.Cash)); err == nil {
		snap.AvailableCash = cash
	}
	for _, r := range resp.Rows {
		size, err1 := decimal.NewFromString(strings.TrimSpace(r.Size))
		avg, err2 := parseSignedPrice(r.AvgPrice)
		if err1 != nil || err2 != nil || size.IntPart() <= 0 {
			continue
		}
		snap.Holdings = append(snap.Holdings, Holding{
			Symbol:   types.NormalizeSymbol(r.Symbol),
			Size:     size.IntPart(),
			AvgPrice: avg,
		})
	}
	return snap, nil
}
