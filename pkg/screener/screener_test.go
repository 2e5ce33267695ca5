package screener

import (
	"testing"

	"github.com/orb-momentum-bot/pkg/brokerclient"
	"github.com/orb-momentum-bot/pkg/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func row(symbol string, price float64, volume int64, surge float64) brokerclient.RankingRow {
	return brokerclient.RankingRow{
		Symbol:    symbol,
		Price:     decimal.NewFromFloat(price),
		Volume:    volume,
		SurgeRate: decimal.NewFromFloat(surge),
	}
}

func screeningCfg() config.Screening {
	return config.Screening{
		MinPrice:        1000,
		MinVolume:       10_000,
		MinSurgeRate:    150,
		MaxTargetStocks: 2,
	}
}

func TestSelect_FiltersSortsAndCaps(t *testing.T) {
	rows := []brokerclient.RankingRow{
		row("AAA", 5000, 50_000, 300),
		row("BBB", 500, 50_000, 400),   // below min price
		row("CCC", 5000, 5_000, 400),   // below min volume
		row("DDD", 5000, 50_000, 100),  // below min surge
		row("EEE", 5000, 50_000, 500),
		row("FFF", 5000, 50_000, 200),
	}
	got := Select(rows, screeningCfg())
	assert.Equal(t, []string{"EEE", "AAA"}, got)
}

func TestSelect_DeterministicWithTies(t *testing.T) {
	rows := []brokerclient.RankingRow{
		row("ZZZ", 5000, 50_000, 300),
		row("AAA", 5000, 50_000, 300),
		row("MMM", 5000, 50_000, 300),
	}
	first := Select(rows, screeningCfg())
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Select(rows, screeningCfg()))
	}
	// Equal surge rates order by symbol.
	assert.Equal(t, []string{"AAA", "MMM"}, first)
}

func TestSelect_EmptyInput(t *testing.T) {
	assert.Empty(t, Select(nil, screeningCfg()))
}
