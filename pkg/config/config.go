// Package config loads the engine's YAML configuration file (broker
// credentials, strategy thresholds, screening filters, logging, replay) and
// overlays secrets from a local .env. Strategy thresholds are exposed as
// immutable snapshots swapped atomically, so a dashboard edit never bleeds
// into an evaluation already in flight.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/orb-momentum-bot/pkg/strategyeval"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// BrokerCredentials is one environment's key pair and endpoints.
type BrokerCredentials struct {
	AppKey    string `yaml:"app_key"`
	AppSecret string `yaml:"app_secret"`
	BaseURL   string `yaml:"base_url"`
	WsURL     string `yaml:"ws_url"`
}

// Broker selects between the real and sandbox environments and carries the
// account number orders are booked against.
type Broker struct {
	Real       BrokerCredentials `yaml:"real"`
	Sandbox    BrokerCredentials `yaml:"sandbox"`
	UseSandbox bool              `yaml:"use_sandbox"`
	AccountNo  string            `yaml:"account_no"`
}

// Active returns the credentials for the selected environment.
func (b Broker) Active() BrokerCredentials {
	if b.UseSandbox {
		return b.Sandbox
	}
	return b.Real
}

// Strategy is the YAML shape of the runtime-mutable strategy thresholds.
type Strategy struct {
	ORBMinutes         int     `yaml:"orb_minutes"`
	BreakoutBufferPct  float64 `yaml:"breakout_buffer_pct"`
	TargetProfitPct    float64 `yaml:"target_profit_pct"`
	StopLossPct        float64 `yaml:"stop_loss_pct"`
	PartialProfitPct   float64 `yaml:"partial_profit_pct"`
	PartialProfitRatio float64 `yaml:"partial_profit_ratio"`
	TimeStop           string  `yaml:"time_stop"`
	SessionOpen        string  `yaml:"session_open"`

	EMAShortPeriod int `yaml:"ema_short_period"`
	EMALongPeriod  int `yaml:"ema_long_period"`
	RVOLPeriod     int `yaml:"rvol_period"`

	RVOLThreshold     float64 `yaml:"rvol_threshold"`
	OBIThreshold      float64 `yaml:"obi_threshold"`
	StrengthThreshold float64 `yaml:"strength_threshold"`

	MaxConcurrentPositions int     `yaml:"max_positions"`
	InvestmentAmount       float64 `yaml:"investment_amount"`

	// DailyLossLimit is the realized loss magnitude that trips the kill
	// switch; 0 disables the limit.
	DailyLossLimit float64 `yaml:"daily_loss_limit"`
}

// Screening configures the ranking call and the in-process refinement the
// screener applies on top of it.
type Screening struct {
	IntervalMinutes int     `yaml:"interval_minutes"`
	Market          string  `yaml:"market"`
	Timeframe       string  `yaml:"timeframe"`
	MinVolume       int64   `yaml:"min_volume"`
	MinPrice        float64 `yaml:"min_price"`
	MinSurgeRate    float64 `yaml:"min_surge_rate"`
	MaxTargetStocks int     `yaml:"max_target_stocks"`
}

// Logging configures the telemetry logger.
type Logging struct {
	KeepRecent int `yaml:"keep_recent"`
}

// Paths locates the engine's persisted state.
type Paths struct {
	JournalDB  string `yaml:"journal_db"`
	TokenCache string `yaml:"token_cache"`
}

// Replay configures the offline replay harness (cmd/replay).
type Replay struct {
	TicksFile string `yaml:"ticks_file"`
}

// Config is the full parsed configuration file.
type Config struct {
	Broker    Broker    `yaml:"broker"`
	Strategy  Strategy  `yaml:"strategy"`
	Screening Screening `yaml:"screening"`
	Logging   Logging   `yaml:"logging"`
	Paths     Paths     `yaml:"paths"`
	Replay    Replay    `yaml:"replay"`

	DashboardAddr string `yaml:"dashboard_addr"`
}

// Load reads the YAML file at path, overlays broker secrets from the
// environment (a local .env is loaded first if present), and validates the
// result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	overlayEnv(&cfg.Broker.Real, "BROKER_APP_KEY", "BROKER_APP_SECRET")
	overlayEnv(&cfg.Broker.Sandbox, "BROKER_SANDBOX_APP_KEY", "BROKER_SANDBOX_APP_SECRET")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration, used as the base every loaded
// file overrides and by the replay harness when no file is given.
func Default() *Config {
	return &Config{
		Strategy: Strategy{
			ORBMinutes:             15,
			BreakoutBufferPct:      0.15,
			TargetProfitPct:        2.5,
			StopLossPct:            -1.0,
			PartialProfitPct:       1.5,
			PartialProfitRatio:     0.4,
			TimeStop:               "14:50",
			SessionOpen:            "09:00",
			EMAShortPeriod:         9,
			EMALongPeriod:          20,
			RVOLPeriod:             10,
			RVOLThreshold:          130,
			OBIThreshold:           1.5,
			StrengthThreshold:      100,
			MaxConcurrentPositions: 3,
			InvestmentAmount:       1_000_000,
		},
		Screening: Screening{
			IntervalMinutes: 5,
			Timeframe:       "1",
			MinVolume:       100_000,
			MinPrice:        1_000,
			MinSurgeRate:    100,
			MaxTargetStocks: 10,
		},
		Logging: Logging{KeepRecent: 200},
		Paths: Paths{
			JournalDB:  "journal.db",
			TokenCache: "token.json",
		},
		DashboardAddr: ":8077",
	}
}

func overlayEnv(creds *BrokerCredentials, keyVar, secretVar string) {
	if v := os.Getenv(keyVar); v != "" {
		creds.AppKey = v
	}
	if v := os.Getenv(secretVar); v != "" {
		creds.AppSecret = v
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	active := c.Broker.Active()
	if active.BaseURL == "" || active.WsURL == "" {
		return fmt.Errorf("broker base_url and ws_url are required")
	}
	if active.AppKey == "" || active.AppSecret == "" {
		return fmt.Errorf("broker app key/secret missing (set them in the config file or .env)")
	}
	if c.Strategy.ORBMinutes <= 0 {
		return fmt.Errorf("strategy.orb_minutes must be > 0")
	}
	if c.Strategy.InvestmentAmount <= 0 {
		return fmt.Errorf("strategy.investment_amount must be > 0")
	}
	if c.Strategy.MaxConcurrentPositions <= 0 {
		return fmt.Errorf("strategy.max_positions must be > 0")
	}
	if c.Strategy.EMAShortPeriod >= c.Strategy.EMALongPeriod {
		return fmt.Errorf("strategy.ema_short_period must be below ema_long_period")
	}
	if _, err := parseTimeOfDay(c.Strategy.TimeStop); err != nil {
		return fmt.Errorf("strategy.time_stop: %w", err)
	}
	if _, err := parseTimeOfDay(c.Strategy.SessionOpen); err != nil {
		return fmt.Errorf("strategy.session_open: %w", err)
	}
	if c.Screening.IntervalMinutes <= 0 {
		return fmt.Errorf("screening.interval_minutes must be > 0")
	}
	if c.Screening.MaxTargetStocks <= 0 {
		return fmt.Errorf("screening.max_target_stocks must be > 0")
	}
	return nil
}

// Snapshot converts the strategy section into the immutable evaluator
// snapshot. Callers that need a live-updatable view hold a Store instead.
func (s Strategy) Snapshot() strategyeval.Config {
	timeStop, _ := parseTimeOfDay(s.TimeStop)
	sessionOpen, _ := parseTimeOfDay(s.SessionOpen)
	return strategyeval.Config{
		ORBMinutes:             s.ORBMinutes,
		BreakoutBufferPct:      decimal.NewFromFloat(s.BreakoutBufferPct),
		TargetProfitPct:        decimal.NewFromFloat(s.TargetProfitPct),
		StopLossPct:            decimal.NewFromFloat(s.StopLossPct),
		HasPartialProfit:       s.PartialProfitPct > 0,
		PartialProfitPct:       decimal.NewFromFloat(s.PartialProfitPct),
		PartialProfitRatio:     decimal.NewFromFloat(s.PartialProfitRatio),
		TimeStop:               timeStop,
		SessionOpen:            sessionOpen,
		EMAShortPeriod:         s.EMAShortPeriod,
		EMALongPeriod:          s.EMALongPeriod,
		RVOLPeriod:             s.RVOLPeriod,
		RVOLThreshold:          decimal.NewFromFloat(s.RVOLThreshold),
		OBIThreshold:           decimal.NewFromFloat(s.OBIThreshold),
		StrengthThreshold:      decimal.NewFromFloat(s.StrengthThreshold),
		MaxConcurrentPositions: s.MaxConcurrentPositions,
		InvestmentAmount:       decimal.NewFromFloat(s.InvestmentAmount),
	}
}

// Store holds the current strategy snapshot behind an atomic pointer. The
// dashboard replaces the whole snapshot; readers get a consistent copy per
// operation and positions lock their own copy at entry time.
type Store struct {
	current atomic.Pointer[strategyeval.Config]
}

// NewStore creates a Store seeded with the given strategy section.
func NewStore(s Strategy) *Store {
	st := &Store{}
	snap := s.Snapshot()
	st.current.Store(&snap)
	return st
}

// Current returns the active snapshot by value.
func (s *Store) Current() strategyeval.Config {
	return *s.current.Load()
}

// Replace atomically installs a new snapshot. Updated values apply only to
// evaluations and positions started after the swap.
func (s *Store) Replace(snap strategyeval.Config) {
	s.current.Store(&snap)
}

func parseTimeOfDay(s string) (strategyeval.TimeOfDay, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return strategyeval.TimeOfDay{}, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hh, err1 := strconv.Atoi(parts[0])
	mm, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return strategyeval.TimeOfDay{}, fmt.Errorf("invalid HH:MM %q", s)
	}
	return strategyeval.TimeOfDay{Hour: hh, Minute: mm}, nil
}

// ScreenInterval returns the screening loop period as a duration.
func (c *Config) ScreenInterval() time.Duration {
	return time.Duration(c.Screening.IntervalMinutes) * time.Minute
}
