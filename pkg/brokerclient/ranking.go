package brokerclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/orb-momentum-bot/pkg/types"
	"github.com/shopspring/decimal"
)

// RankingRow is one entry of the volume-surge ranking, already normalized.
type RankingRow struct {
	Symbol    string
	Name      string
	Price     decimal.Decimal
	Volume    int64
	SurgeRate decimal.Decimal // percent vs the comparison window
}

// RankingFilter carries the server-side filters for the ranking RPC. The
// remote filter may be coarser than the screener's in-process refinement.
type RankingFilter struct {
	Market    string // "000" all, "001" KOSPI, "101" KOSDAQ
	Timeframe string // comparison window in minutes
	MinVolume int64
	MinPrice  decimal.Decimal
}

// VolumeSurgeRanking calls the volume-surge ranking RPC and parses the rows.
// Unparseable rows are dropped.
func (c *Client) VolumeSurgeRanking(ctx context.Context, f RankingFilter) ([]RankingRow, error) {
	body := map[string]string{
		"mrkt_tp":      f.Market,
		"sort_tp":      "1", // by surge rate
		"tm_tp":        f.Timeframe,
		"trde_qty_tp":  fmt.Sprintf("%d", f.MinVolume/1000),
		"stk_cnd":      "0",
		"pric_tp":      "0",
		"stex_tp":      "3",
	}
	var resp struct {
		ReturnCode any    `json:"return_code"`
		ReturnMsg  string `json:"return_msg"`
		Rows       []struct {
			Symbol    string `json:"stk_cd"`
			Name      string `json:"stk_nm"`
			Price     string `json:"cur_prc"`
			Volume    string `json:"now_trde_qty"`
			SurgeRate string `json:"sdnin_rt"`
		} `json:"trde_qty_sdnin"`
	}
	if err := c.post(ctx, "/api/dostk/rkinfo", "ka10023", body, &resp, true); err != nil {
		return nil, fmt.Errorf("volume surge ranking: %w", err)
	}
	if err := checkReturnCode("/api/dostk/rkinfo", resp.ReturnCode, resp.ReturnMsg); err != nil {
		return nil, err
	}

	rows := make([]RankingRow, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		price, err1 := parseSignedPrice(r.Price)
		surge, err2 := parseSignedPrice(r.SurgeRate)
		vol, err3 := decimal.NewFromString(strings.TrimSpace(r.Volume))
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		rows = append(rows, RankingRow{
			Symbol:    types.NormalizeSymbol(r.Symbol),
			Name:      strings.TrimSpace(r.Name),
			Price:     price,
			Volume:    vol.IntPart(),
			SurgeRate: surge,
		})
	}
	return rows, nil
}
