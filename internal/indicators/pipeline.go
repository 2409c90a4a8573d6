package indicators

import (
	"math"

	"meanrev/internal/market"
)

// Config sizes the rolling windows of the pipeline.
type Config struct {
	BBWindow   int     `yaml:"bb_window"`
	BBStd      float64 `yaml:"bb_std"`
	VWAPWindow int     `yaml:"vwap_window"`
	VWAPStd    float64 `yaml:"vwap_std"`
	ATRPeriod  int     `yaml:"atr_period"`
	ADXPeriod  int     `yaml:"adx_period"`
	// VolLookback is the trailing window the current ATR%-of-price is ranked
	// against. 100 bars minimum for a meaningful percentile.
	VolLookback int `yaml:"volatility_lookback"`
}

// Snapshot holds per-bar derived values. Fields are NaN until their window is
// full; consumers must treat such bars as non-actionable.
type Snapshot struct {
	MA            float64
	BBUpper       float64
	BBLower       float64
	VWAP          float64
	VWAPUpper     float64
	VWAPLower     float64
	ATR           float64
	PlusDI        float64
	MinusDI       float64
	ADX           float64
	VolPercentile float64
}

// Ready reports whether every value needed for an entry decision is defined.
func (s Snapshot) Ready() bool {
	for _, v := range []float64{s.MA, s.BBUpper, s.BBLower, s.VWAPUpper, s.VWAPLower, s.ATR, s.ADX, s.VolPercentile} {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// Pipeline maintains the rolling windows and recomputes every indicator
// incrementally as bars arrive.
type Pipeline struct {
	cfg Config

	bars    []market.Bar
	closes  []float64
	atr     *atrTracker
	adx     *adxTracker
	volHist []float64

	retain int
}

// NewPipeline builds a pipeline for one symbol/timeframe.
func NewPipeline(cfg Config) *Pipeline {
	retain := cfg.BBWindow
	if cfg.VWAPWindow > retain {
		retain = cfg.VWAPWindow
	}
	return &Pipeline{
		cfg:    cfg,
		atr:    newATRTracker(cfg.ATRPeriod),
		adx:    newADXTracker(cfg.ADXPeriod),
		retain: retain,
	}
}

// Update ingests the next bar and returns the derived snapshot for it.
func (p *Pipeline) Update(b market.Bar) Snapshot {
	p.bars = append(p.bars, b)
	if len(p.bars) > p.retain {
		p.bars = p.bars[len(p.bars)-p.retain:]
	}
	p.closes = append(p.closes, b.Close)
	if len(p.closes) > p.retain {
		p.closes = p.closes[len(p.closes)-p.retain:]
	}

	var snap Snapshot
	snap.MA, snap.BBUpper, snap.BBLower = Bollinger(p.closes, p.cfg.BBWindow, p.cfg.BBStd)
	snap.VWAP, snap.VWAPUpper, snap.VWAPLower = VWAPBands(p.bars, p.cfg.VWAPWindow, p.cfg.VWAPStd)
	snap.ATR = p.atr.update(b)
	snap.PlusDI, snap.MinusDI, snap.ADX = p.adx.update(b)
	snap.VolPercentile = p.volPercentile(snap.ATR, b.Close)
	return snap
}

// volPercentile ranks ATR as a percent of price against the trailing
// lookback window, including the current value.
func (p *Pipeline) volPercentile(atr, close float64) float64 {
	if math.IsNaN(atr) || close <= 0 {
		return math.NaN()
	}
	atrPct := atr / close * 100

	p.volHist = append(p.volHist, atrPct)
	if len(p.volHist) > p.cfg.VolLookback {
		p.volHist = p.volHist[len(p.volHist)-p.cfg.VolLookback:]
	}
	if len(p.volHist) < p.cfg.VolLookback {
		return math.NaN()
	}
	return PercentileRank(p.volHist, atrPct)
}
