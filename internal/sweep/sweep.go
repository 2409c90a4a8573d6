// Package sweep runs many backtests over a parameter grid to find strong
// configurations. Each trial gets its own engine, so trials run on a worker
// pool without shared state.
package sweep

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"sync"

	"meanrev/internal/backtest"
	"meanrev/internal/engine"
	"meanrev/internal/market"
)

// Space lists the candidate values per tunable. Empty slices keep the base
// config's value.
type Space struct {
	StopLossATRMult []float64 `yaml:"stop_loss_atr_multiplier"`
	RiskReward      []float64 `yaml:"risk_reward_ratio"`
	BBStd           []float64 `yaml:"bb_std"`
	RegimeMinScore  []int     `yaml:"regime_min_score"`
}

// Trial is one evaluated configuration with its performance.
type Trial struct {
	Config  engine.Config    `json:"config"`
	Summary backtest.Summary `json:"summary"`
}

// Options controls how the search runs.
type Options struct {
	// Workers defaults to GOMAXPROCS.
	Workers int
	// MaxTrials > 0 samples that many random grid points (seeded, so the
	// selection is reproducible) instead of the full cross product.
	MaxTrials int
	Seed      int64
}

// Run evaluates the grid over the given bars and returns trials sorted by
// net P&L, best first. Trials whose configuration fails validation are
// skipped; an error from the bar series itself aborts the sweep.
func Run(ctx context.Context, base engine.Config, space Space, bars []market.Bar, opts Options) ([]Trial, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("sweep needs a bar series")
	}
	if err := market.ValidateSeries(bars); err != nil {
		return nil, fmt.Errorf("sweep series: %w", err)
	}

	configs := expand(base, space)
	if opts.MaxTrials > 0 && opts.MaxTrials < len(configs) {
		rng := rand.New(rand.NewSource(opts.Seed))
		rng.Shuffle(len(configs), func(i, j int) { configs[i], configs[j] = configs[j], configs[i] })
		configs = configs[:opts.MaxTrials]
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	jobs := make(chan engine.Config)
	results := make(chan Trial, len(configs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cfg := range jobs {
				eng, err := engine.New(cfg)
				if err != nil {
					continue // invalid grid point, skip
				}
				res, err := eng.Run(bars)
				if err != nil {
					continue
				}
				results <- Trial{Config: cfg, Summary: backtest.Compute(res)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, cfg := range configs {
			select {
			case <-ctx.Done():
				return
			case jobs <- cfg:
			}
		}
	}()

	wg.Wait()
	close(results)

	trials := make([]Trial, 0, len(configs))
	for tr := range results {
		trials = append(trials, tr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// P&L descending, drawdown ascending as tiebreak.
	sort.SliceStable(trials, func(i, j int) bool {
		if trials[i].Summary.NetPnL != trials[j].Summary.NetPnL {
			return trials[i].Summary.NetPnL > trials[j].Summary.NetPnL
		}
		return trials[i].Summary.MaxDrawdownPct < trials[j].Summary.MaxDrawdownPct
	})
	return trials, nil
}

// expand builds the full cross product of the space over the base config.
func expand(base engine.Config, space Space) []engine.Config {
	atrMults := space.StopLossATRMult
	if len(atrMults) == 0 {
		atrMults = []float64{base.StopLossATRMult}
	}
	rrs := space.RiskReward
	if len(rrs) == 0 {
		rrs = []float64{base.RiskReward}
	}
	stds := space.BBStd
	if len(stds) == 0 {
		stds = []float64{base.Indicators.BBStd}
	}
	scores := space.RegimeMinScore
	if len(scores) == 0 {
		scores = []int{base.RegimeMinScore}
	}

	var out []engine.Config
	for _, am := range atrMults {
		for _, rr := range rrs {
			for _, std := range stds {
				for _, sc := range scores {
					cfg := base
					cfg.StopLossATRMult = am
					cfg.RiskReward = rr
					cfg.Indicators.BBStd = std
					cfg.RegimeMinScore = sc
					out = append(out, cfg)
				}
			}
		}
	}
	return out
}
