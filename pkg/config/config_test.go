package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
broker:
  use_sandbox: true
  sandbox:
    app_key: key
    app_secret: secret
    base_url: https://sandbox.example.com
    ws_url: wss://sandbox.example.com/ws
strategy:
  orb_minutes: 30
  breakout_buffer_pct: 0.2
  target_profit_pct: 3.0
  stop_loss_pct: -1.5
  time_stop: "15:00"
  max_positions: 2
  investment_amount: 500000
screening:
  interval_minutes: 3
  max_target_stocks: 5
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ParsesAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Strategy.ORBMinutes)
	assert.Equal(t, 2, cfg.Strategy.MaxConcurrentPositions)
	assert.Equal(t, 3, cfg.Screening.IntervalMinutes)
	// Untouched fields keep their defaults.
	assert.Equal(t, 9, cfg.Strategy.EMAShortPeriod)
	assert.Equal(t, 20, cfg.Strategy.EMALongPeriod)
	assert.Equal(t, "key", cfg.Broker.Active().AppKey)
}

func TestValidate_RejectsBadTimeStop(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	cfg.Strategy.TimeStop = "25:99"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsInvertedEMAPeriods(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	cfg.Strategy.EMAShortPeriod = 20
	cfg.Strategy.EMALongPeriod = 9
	assert.Error(t, cfg.Validate())
}

func TestSnapshot_ConvertsThresholds(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	snap := cfg.Strategy.Snapshot()
	assert.True(t, snap.TargetProfitPct.Equal(decimal.NewFromFloat(3.0)))
	assert.Equal(t, 15, snap.TimeStop.Hour)
	assert.Equal(t, 0, snap.TimeStop.Minute)
	assert.True(t, snap.HasPartialProfit) // default partial_profit_pct is 1.5
}

func TestStore_ReplaceSwapsAtomically(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	store := NewStore(cfg.Strategy)
	before := store.Current()

	updated := cfg.Strategy
	updated.TargetProfitPct = 9.9
	store.Replace(updated.Snapshot())

	assert.True(t, before.TargetProfitPct.Equal(decimal.NewFromFloat(3.0)))
	assert.True(t, store.Current().TargetProfitPct.Equal(decimal.NewFromFloat(9.9)))
}
