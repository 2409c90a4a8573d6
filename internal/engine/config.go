package engine

import (
	"errors"
	"fmt"

	"meanrev/internal/indicators"
	"meanrev/internal/market"
	"meanrev/internal/risk"
)

// TradingHours gates new entries to a UTC window. Start == End means 24h.
// A window wrapping midnight (Start > End) is allowed.
type TradingHours struct {
	StartHourUTC int `yaml:"start_hour_utc"`
	EndHourUTC   int `yaml:"end_hour_utc"`
}

// Contains reports whether hour (0-23) falls inside the window.
func (h TradingHours) Contains(hour int) bool {
	switch {
	case h.StartHourUTC == h.EndHourUTC:
		return true
	case h.StartHourUTC < h.EndHourUTC:
		return hour >= h.StartHourUTC && hour < h.EndHourUTC
	default:
		return hour >= h.StartHourUTC || hour < h.EndHourUTC
	}
}

// Config is the immutable per-run parameter set. It is passed by value into
// New and never mutated afterwards; there is no ambient mutable configuration
// anywhere in the engine.
type Config struct {
	Symbol    string           `yaml:"symbol"`
	Timeframe market.Timeframe `yaml:"timeframe"`

	Indicators indicators.Config `yaml:"indicators"`

	RiskPerPositionPct float64 `yaml:"risk_per_position_pct"`
	StopLossATRMult    float64 `yaml:"stop_loss_atr_multiplier"`
	RiskReward         float64 `yaml:"risk_reward_ratio"`
	Leverage           float64 `yaml:"leverage"`

	RegimeMinScore int                 `yaml:"regime_min_score"`
	Trailing       risk.TrailingConfig `yaml:"trailing_stop"`

	// OrderLifetimeMinutes caps holding duration per timeframe; the entry
	// for Timeframe must be present.
	OrderLifetimeMinutes map[market.Timeframe]int `yaml:"order_lifetime_minutes"`

	TradingHours TradingHours `yaml:"trading_hours"`

	InitialCash float64 `yaml:"initial_account_cash"`
	// CommissionRate is a fraction of exit notional, e.g. 0.001 = 0.1%.
	CommissionRate float64 `yaml:"commission_rate"`
}

// DefaultConfig returns the reference parameter set for a 5m run.
func DefaultConfig(symbol string) Config {
	return Config{
		Symbol:    symbol,
		Timeframe: market.TF5m,
		Indicators: indicators.Config{
			BBWindow:    20,
			BBStd:       2.0,
			VWAPWindow:  20,
			VWAPStd:     2.0,
			ATRPeriod:   14,
			ADXPeriod:   14,
			VolLookback: 100,
		},
		RiskPerPositionPct: 1.0,
		StopLossATRMult:    1.2,
		RiskReward:         2.5,
		Leverage:           100,
		RegimeMinScore:     60,
		Trailing:           risk.DefaultTrailingConfig(),
		OrderLifetimeMinutes: map[market.Timeframe]int{
			market.TF1m:  120,
			market.TF5m:  360,
			market.TF15m: 720,
			market.TF30m: 1080,
			market.TF1h:  1440,
			market.TF4h:  2880,
			market.TF1d:  7200,
		},
		TradingHours:   TradingHours{StartHourUTC: 0, EndHourUTC: 0},
		InitialCash:    10000,
		CommissionRate: 0.001,
	}
}

// Validate catches configuration errors at engine construction; a run never
// starts with an invalid parameter set.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return errors.New("symbol is required")
	}
	if _, err := c.Timeframe.Minutes(); err != nil {
		return err
	}
	if c.Indicators.BBWindow < 2 || c.Indicators.VWAPWindow < 2 {
		return errors.New("band windows must be at least 2 bars")
	}
	if c.Indicators.BBStd <= 0 || c.Indicators.VWAPStd <= 0 {
		return errors.New("band widths must be positive")
	}
	if c.Indicators.ATRPeriod < 1 || c.Indicators.ADXPeriod < 1 {
		return errors.New("ATR/ADX periods must be at least 1")
	}
	if c.Indicators.VolLookback < 100 {
		return fmt.Errorf("volatility lookback %d below minimum 100", c.Indicators.VolLookback)
	}
	if c.RiskPerPositionPct <= 0 || c.RiskPerPositionPct > 100 {
		return fmt.Errorf("risk_per_position_pct %.2f outside (0, 100]", c.RiskPerPositionPct)
	}
	if c.StopLossATRMult <= 0 {
		return errors.New("stop_loss_atr_multiplier must be positive")
	}
	if c.RiskReward < 1.0 {
		return fmt.Errorf("risk_reward_ratio %.2f below 1.0", c.RiskReward)
	}
	if c.Leverage < 1 {
		return errors.New("leverage must be at least 1")
	}
	if c.RegimeMinScore < 0 || c.RegimeMinScore > 100 {
		return errors.New("regime_min_score outside [0, 100]")
	}
	if c.Trailing.Enabled {
		if c.Trailing.ActivationPct <= 0 || c.Trailing.ActivationPct > 100 {
			return errors.New("trailing activation_pct outside (0, 100]")
		}
		if c.Trailing.BreakevenPlusPct < 0 || c.Trailing.BreakevenPlusPct >= 100 {
			return errors.New("trailing breakeven_plus_pct outside [0, 100)")
		}
	}
	if m, ok := c.OrderLifetimeMinutes[c.Timeframe]; !ok || m <= 0 {
		return fmt.Errorf("no order lifetime configured for timeframe %s", c.Timeframe)
	}
	if c.TradingHours.StartHourUTC < 0 || c.TradingHours.StartHourUTC > 23 ||
		c.TradingHours.EndHourUTC < 0 || c.TradingHours.EndHourUTC > 23 {
		return errors.New("trading hours outside [0, 23]")
	}
	if c.InitialCash <= 0 {
		return errors.New("initial_account_cash must be positive")
	}
	if c.CommissionRate < 0 || c.CommissionRate >= 1 {
		return errors.New("commission_rate outside [0, 1)")
	}
	return nil
}
