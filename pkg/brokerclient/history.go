package brokerclient

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/orb-momentum-bot/pkg/types"
	"github.com/orb-momentum-bot/pkg/xerrors"
	"github.com/shopspring/decimal"
)

// MinuteHistory fetches the one-shot minute chart used to seed a symbol's
// frame on subscription. The broker returns rows most-recent-first; the
// result is sorted ascending by timestamp and rows that fail to
// parse are skipped rather than failing the whole fetch.
func (c *Client) MinuteHistory(ctx context.Context, symbol string, count int) ([]types.Bar, error) {
	body := map[string]string{
		"stk_cd":       symbol,
		"tic_scope":    "1",
		"upd_stkpc_tp": "1",
	}
	var resp struct {
		ReturnCode any    `json:"return_code"`
		ReturnMsg  string `json:"return_msg"`
		Rows       []struct {
			Time   string `json:"cntr_tm"` // YYYYMMDDHHMMSS
			Open   string `json:"open_pric"`
			High   string `json:"high_pric"`
			Low    string `json:"low_pric"`
			Close  string `json:"cur_prc"`
			Volume string `json:"trde_qty"`
		} `json:"stk_min_pole_chart_qry"`
	}
	if err := c.post(ctx, "/api/dostk/chart", "ka10080", body, &resp, true); err != nil {
		return nil, fmt.Errorf("minute history %s: %w", symbol, err)
	}
	if err := checkReturnCode("/api/dostk/chart", resp.ReturnCode, resp.ReturnMsg); err != nil {
		return nil, err
	}

	bars := make([]types.Bar, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		bar, err := parseHistoryRow(row.Time, row.Open, row.High, row.Low, row.Close, row.Volume)
		if err != nil {
			continue
		}
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	if count > 0 && len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	return bars, nil
}

func parseHistoryRow(ts, open, high, low, cls, volume string) (types.Bar, error) {
	when, err := time.ParseInLocation("20060102150405", strings.TrimSpace(ts), time.Local)
	if err != nil {
		return types.Bar{}, fmt.Errorf("bad chart timestamp %q: %w", ts, xerrors.DataQualityError)
	}
	o, err1 := parseSignedPrice(open)
	h, err2 := parseSignedPrice(high)
	l, err3 := parseSignedPrice(low)
	cl, err4 := parseSignedPrice(cls)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return types.Bar{}, fmt.Errorf("bad chart price row: %w", xerrors.DataQualityError)
	}
	vol, err := decimal.NewFromString(strings.TrimSpace(volume))
	if err != nil {
		return types.Bar{}, fmt.Errorf("bad chart volume %q: %w", volume, xerrors.DataQualityError)
	}
	return types.Bar{
		Timestamp: types.TruncateToMinute(when),
		Open:      o,
		High:      h,
		Low:       l,
		Close:     cl,
		Volume:    vol.IntPart(),
	}, nil
}

// parseSignedPrice strips the broker's leading +/- direction marker before
// parsing the magnitude.
func parseSignedPrice(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimLeft(strings.TrimSpace(s), "+-"))
}
