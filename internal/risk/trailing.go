package risk

import "meanrev/internal/market"

// TrailingConfig controls the breakeven-plus lock.
type TrailingConfig struct {
	Enabled bool `yaml:"enabled"`
	// ActivationPct is the progress toward target (percent of target
	// distance) that arms the stop relocation. Default 50.
	ActivationPct float64 `yaml:"activation_pct"`
	// BreakevenPlusPct places the relocated stop this percent of the target
	// distance beyond entry, locking in partial profit. Default 20.
	BreakevenPlusPct float64 `yaml:"breakeven_plus_pct"`
}

// DefaultTrailingConfig returns the reference settings.
func DefaultTrailingConfig() TrailingConfig {
	return TrailingConfig{Enabled: true, ActivationPct: 50, BreakevenPlusPct: 20}
}

// TrailingStop is a one-shot breakeven lock, not a continuously trailing
// stop: once price has covered ActivationPct of the distance to target, the
// stop is relocated a single time to entry + BreakevenPlusPct of the target
// distance (mirrored for shorts) and then frozen. The freeze is intentional;
// it avoids getting thrashed out by volatile pullbacks after activation.
// One instance lives per open position and is discarded on close.
type TrailingStop struct {
	cfg        TrailingConfig
	side       market.Side
	entry      float64
	takeProfit float64

	currentStop float64
	activated   bool
	adjusted    bool
}

// NewTrailingStop arms a fresh automaton for a newly opened position.
func NewTrailingStop(cfg TrailingConfig, side market.Side, entry, initialStop, takeProfit float64) *TrailingStop {
	return &TrailingStop{
		cfg:         cfg,
		side:        side,
		entry:       entry,
		takeProfit:  takeProfit,
		currentStop: initialStop,
	}
}

// Stop returns the effective stop level.
func (t *TrailingStop) Stop() float64 { return t.currentStop }

// Activated reports whether the one-time relocation has fired.
func (t *TrailingStop) Activated() bool { return t.activated }

// Adjusted reports whether the relocation actually moved the stop.
func (t *TrailingStop) Adjusted() bool { return t.adjusted }

// Update checks the activation rule against the given price. Called once per
// bar while the position is open; after activation it is a no-op.
func (t *TrailingStop) Update(price float64) {
	if !t.cfg.Enabled || t.activated {
		return
	}

	var targetDist, favorable float64
	if t.side == market.Long {
		targetDist = t.takeProfit - t.entry
		favorable = price - t.entry
	} else {
		targetDist = t.entry - t.takeProfit
		favorable = t.entry - price
	}
	if targetDist <= 0 {
		return
	}

	progress := favorable / targetDist * 100
	if progress < t.cfg.ActivationPct {
		return
	}

	t.activated = true

	lock := targetDist * t.cfg.BreakevenPlusPct / 100
	var newStop float64
	if t.side == market.Long {
		newStop = t.entry + lock
		if newStop > t.currentStop {
			t.currentStop = newStop
			t.adjusted = true
		}
	} else {
		newStop = t.entry - lock
		if newStop < t.currentStop {
			t.currentStop = newStop
			t.adjusted = true
		}
	}
}

// ShouldExit reports whether price has crossed the current stop against the
// position.
func (t *TrailingStop) ShouldExit(price float64) bool {
	if t.side == market.Long {
		return price <= t.currentStop
	}
	return price >= t.currentStop
}
