package data

import (
	"math"
	"math/rand"
	"time"

	"meanrev/internal/market"
)

// MockConfig shapes the synthetic series produced by GenerateBars.
type MockConfig struct {
	Symbol     string
	Timeframe  market.Timeframe
	Bars       int
	Seed       int64
	StartPrice float64
	// MeanRevert pulls each close back toward StartPrice by this fraction of
	// the current deviation, making the series friendly to band strategies.
	MeanRevert float64
	// Volatility is the per-bar range as a fraction of price.
	Volatility float64
	Start      time.Time
}

// DefaultMockConfig returns a 5m series with mild mean reversion.
func DefaultMockConfig(symbol string) MockConfig {
	return MockConfig{
		Symbol:     symbol,
		Timeframe:  market.TF5m,
		Bars:       2000,
		Seed:       1,
		StartPrice: 100,
		MeanRevert: 0.03,
		Volatility: 0.01,
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// GenerateBars produces a deterministic random-walk series from the seed.
// The same config always yields the same bars, so demo runs and tests are
// reproducible.
func GenerateBars(cfg MockConfig) []market.Bar {
	rng := rand.New(rand.NewSource(cfg.Seed))
	step, err := cfg.Timeframe.Minutes()
	if err != nil {
		step = 5
	}

	bars := make([]market.Bar, 0, cfg.Bars)
	price := cfg.StartPrice
	ts := cfg.Start
	for i := 0; i < cfg.Bars; i++ {
		rangeSize := price * cfg.Volatility * (0.5 + rng.Float64())
		drift := (cfg.StartPrice - price) * cfg.MeanRevert
		open := price
		close := price + drift + (rng.Float64()-0.5)*rangeSize
		high := math.Max(open, close) + rng.Float64()*rangeSize/2
		low := math.Min(open, close) - rng.Float64()*rangeSize/2
		if low <= 0 {
			low = math.Min(open, close) * 0.99
		}

		bars = append(bars, market.Bar{
			Time:   ts,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: 500 + rng.Float64()*1000,
		})

		price = close
		ts = ts.Add(time.Duration(step) * time.Minute)
	}
	return bars
}
