// Package risk holds the pure position-risk calculators and the trailing
// stop automaton. Everything here is deterministic over explicit inputs; no
// hidden state, no I/O, which keeps the math trivially testable.
package risk

import (
	"errors"
	"fmt"
	"math"

	"meanrev/internal/market"
)

// marginBuffer keeps 5% of account value free when sizing and accepting
// positions, so a fill never consumes the entire margin headroom.
const marginBuffer = 0.95

var (
	ErrZeroRisk        = errors.New("risk amount is zero or negative")
	ErrBadRiskReward   = errors.New("risk-reward ratio below 1.0")
	ErrInsufficientMrg = errors.New("insufficient margin for position")
)

// StopLoss derives the protective stop from entry price and ATR:
// entry -/+ atr*multiplier for long/short.
func StopLoss(entry, atr, multiplier float64, side market.Side) float64 {
	if side == market.Long {
		return entry - atr*multiplier
	}
	return entry + atr*multiplier
}

// TakeProfit places the target at riskReward times the stop distance on the
// favorable side of entry.
func TakeProfit(entry, stop, riskReward float64, side market.Side) float64 {
	dist := math.Abs(entry-stop) * riskReward
	if side == market.Long {
		return entry + dist
	}
	return entry - dist
}

// PositionSize computes the whole-unit size for a trade risking riskPct
// percent of accountValue between entry and stop.
//
// Sizing is always done off real account value, never off leveraged buying
// power; leverage only caps the size so that size*entry/leverage stays within
// 95% of account value. A zero return signals an invalid trade.
func PositionSize(accountValue, riskPct, entry, stop, leverage float64) (size float64, riskAmount float64) {
	riskAmount = accountValue * riskPct / 100
	dist := math.Abs(entry - stop)
	if riskAmount <= 0 || dist <= 0 || entry <= 0 || leverage <= 0 {
		return 0, riskAmount
	}

	size = math.Floor(riskAmount / dist)

	maxNotional := accountValue * marginBuffer * leverage
	if maxSize := math.Floor(maxNotional / entry); size > maxSize {
		size = maxSize
	}
	if size < 1 {
		// Account too small for even one unit at the risk budget; return the
		// minimum tradable size and let the margin check reject it if needed.
		size = 1
	}
	return size, riskAmount
}

// ValidateTrade rejects setups whose realized risk-reward ratio falls below
// 1.0 or whose stop distance collapsed to zero.
func ValidateTrade(entry, stop, target float64, side market.Side) error {
	riskDist := math.Abs(entry - stop)
	if riskDist <= 0 {
		return ErrZeroRisk
	}

	var rewardDist float64
	if side == market.Long {
		rewardDist = target - entry
	} else {
		rewardDist = entry - target
	}
	if rr := rewardDist / riskDist; rr < 1.0 {
		return fmt.Errorf("%w: got %.2f", ErrBadRiskReward, rr)
	}
	return nil
}

// MarginRequirement is the cash needed to carry size units at entry under
// the given leverage.
func MarginRequirement(size, entry, leverage float64) float64 {
	if leverage <= 0 {
		return math.Inf(1)
	}
	return size * entry / leverage
}

// ValidateMargin fails when the margin requirement exceeds 95% of account
// value.
func ValidateMargin(accountValue, size, entry, leverage float64) error {
	req := MarginRequirement(size, entry, leverage)
	if req > accountValue*marginBuffer {
		return fmt.Errorf("%w: need %.2f, have %.2f usable", ErrInsufficientMrg, req, accountValue*marginBuffer)
	}
	return nil
}
