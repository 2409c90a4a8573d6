// Package regime scores how suitable the current market is for
// mean-reversion entries, from trend strength (ADX) and the volatility
// percentile produced by the indicator pipeline.
package regime

import (
	"fmt"
	"math"
)

// Classification buckets the market state.
type Classification int

const (
	MeanReverting Classification = iota
	Trending
	Choppy
	HighVolatility
)

func (c Classification) String() string {
	switch c {
	case MeanReverting:
		return "MEAN_REVERTING"
	case Trending:
		return "TRENDING"
	case Choppy:
		return "CHOPPY"
	case HighVolatility:
		return "HIGH_VOLATILITY"
	}
	return "UNKNOWN"
}

// Reading is the per-bar classifier output. Ephemeral: recomputed every bar.
type Reading struct {
	Score          int            `json:"score"` // 0-100 suitability
	Suitable       bool           `json:"suitable"`
	Classification Classification `json:"classification"`
	Reason         string         `json:"reason"`
	ADX            float64        `json:"adx"`
	VolPercentile  float64        `json:"vol_percentile"`
}

// Classifier applies fixed thresholds; zero-value thresholds are replaced by
// the defaults below.
type Classifier struct {
	// MinScore is the suitability floor (default 60).
	MinScore int

	// ADX buckets: >= StrongTrend means avoid, < WeakTrend means weak.
	StrongTrend float64 // default 25
	WeakTrend   float64 // default 20

	// Volatility percentile buckets.
	HighVol float64 // default 67, >= means avoid
	LowVol  float64 // default 33, <= means preferred
}

// NewClassifier returns a classifier with the default thresholds.
func NewClassifier(minScore int) *Classifier {
	if minScore <= 0 {
		minScore = 60
	}
	return &Classifier{
		MinScore:    minScore,
		StrongTrend: 25,
		WeakTrend:   20,
		HighVol:     67,
		LowVol:      33,
	}
}

// Classify produces a regime reading for the given ADX and volatility
// percentile. NaN inputs mean the indicators are still warming up; the
// conservative policy is to stay out of the market rather than guess.
func (c *Classifier) Classify(adx, volPct float64) Reading {
	if math.IsNaN(adx) || math.IsNaN(volPct) {
		return Reading{
			Score:          0,
			Suitable:       false,
			Classification: Choppy,
			Reason:         "insufficient data for regime classification",
			ADX:            adx,
			VolPercentile:  volPct,
		}
	}

	class := c.classify(adx, volPct)
	score := c.score(adx, volPct)

	// Suitability needs both the score floor and a regime that actually
	// favors reversion: mean-reverting outright, or a weak trend riding
	// medium volatility.
	weakTrend := adx < c.WeakTrend
	mediumVol := volPct > c.LowVol && volPct < c.HighVol
	suitable := score >= c.MinScore && (class == MeanReverting || (weakTrend && mediumVol))

	return Reading{
		Score:          score,
		Suitable:       suitable,
		Classification: class,
		Reason:         fmt.Sprintf("%s: adx=%.1f vol_pct=%.0f score=%d", class, adx, volPct, score),
		ADX:            adx,
		VolPercentile:  volPct,
	}
}

// classify applies the precedence: high volatility overrides everything,
// then strong trend, then weak trend with low volatility.
func (c *Classifier) classify(adx, volPct float64) Classification {
	switch {
	case volPct >= c.HighVol:
		return HighVolatility
	case adx >= c.StrongTrend:
		return Trending
	case adx < c.WeakTrend && volPct <= c.LowVol:
		return MeanReverting
	default:
		return Choppy
	}
}

// score starts at 50 and adjusts by fixed deltas for the ADX and volatility
// buckets, clamped to [0, 100].
func (c *Classifier) score(adx, volPct float64) int {
	score := 50

	switch {
	case adx <= 15:
		score += 30
	case adx <= 20:
		score += 20
	case adx <= 25:
		score += 5
	default:
		score -= 20
	}

	switch {
	case volPct <= 25:
		score += 20
	case volPct <= 50:
		score += 10
	case volPct <= 75:
		score -= 5
	default:
		score -= 25
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
