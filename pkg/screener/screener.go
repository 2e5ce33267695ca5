// Package screener picks the engine's watchlist from the broker's
// volume-surge ranking and supervises the engine lifecycle around it:
// startup, the periodic screening loop, graceful stop, and the kill switch.
package screener

import (
	"context"
	"fmt"
	"sort"

	"github.com/orb-momentum-bot/internal/telemetry"
	"github.com/orb-momentum-bot/pkg/brokerclient"
	"github.com/orb-momentum-bot/pkg/config"
	"github.com/shopspring/decimal"
)

// Ranking is the one RPC the screener consumes; satisfied by
// *brokerclient.Client.
type Ranking interface {
	VolumeSurgeRanking(ctx context.Context, f brokerclient.RankingFilter) ([]brokerclient.RankingRow, error)
}

// Screener turns ranking rows into the candidate list: refine by surge rate
// and price in-process (the remote filter may be coarser), sort by surge
// descending, take the configured top N. Given identical ranking output the
// result is deterministic; ties break by symbol.
type Screener struct {
	ranking Ranking
	cfg     config.Screening
	log     *telemetry.Logger
}

// New creates a Screener.
func New(ranking Ranking, cfg config.Screening, log *telemetry.Logger) *Screener {
	return &Screener{ranking: ranking, cfg: cfg, log: log}
}

// Screen runs one screening pass and returns the selected symbols.
func (s *Screener) Screen(ctx context.Context) ([]string, error) {
	rows, err := s.ranking.VolumeSurgeRanking(ctx, brokerclient.RankingFilter{
		Market:    s.cfg.Market,
		Timeframe: s.cfg.Timeframe,
		MinVolume: s.cfg.MinVolume,
		MinPrice:  decimal.NewFromFloat(s.cfg.MinPrice),
	})
	if err != nil {
		return nil, fmt.Errorf("screening: %w", err)
	}
	picked := Select(rows, s.cfg)
	if s.log != nil {
		s.log.Infof("SCREEN", "%d ranked, %d selected: %v", len(rows), len(picked), picked)
	}
	return picked, nil
}

// Select applies the in-process refinement to already-fetched ranking rows.
// Split out so replay and tests can drive it without the RPC.
func Select(rows []brokerclient.RankingRow, cfg config.Screening) []string {
	minSurge := decimal.NewFromFloat(cfg.MinSurgeRate)
	minPrice := decimal.NewFromFloat(cfg.MinPrice)

	kept := make([]brokerclient.RankingRow, 0, len(rows))
	for _, r := range rows {
		if r.Symbol == "" {
			continue
		}
		if r.SurgeRate.LessThan(minSurge) || r.Price.LessThan(minPrice) {
			continue
		}
		if cfg.MinVolume > 0 && r.Volume < cfg.MinVolume {
			continue
		}
		kept = append(kept, r)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if !kept[i].SurgeRate.Equal(kept[j].SurgeRate) {
			return kept[i].SurgeRate.GreaterThan(kept[j].SurgeRate)
		}
		return kept[i].Symbol < kept[j].Symbol
	})

	if len(kept) > cfg.MaxTargetStocks {
		kept = kept[:cfg.MaxTargetStocks]
	}
	out := make([]string, len(kept))
	for i, r := range kept {
		out[i] = r.Symbol
	}
	return out
}
