package indicators

import (
	"math"

	"meanrev/internal/market"
)

// atrTracker computes Average True Range with Wilder smoothing: the first
// value is a simple average of the first period true ranges, every later
// value is (prev*(period-1) + tr) / period.
type atrTracker struct {
	period    int
	prevClose float64
	seen      int
	sum       float64
	value     float64
}

func newATRTracker(period int) *atrTracker {
	return &atrTracker{period: period, value: math.NaN()}
}

// trueRange is max(high-low, |high-prevClose|, |low-prevClose|). The first
// bar has no previous close and uses the plain high-low range.
func trueRange(b market.Bar, prevClose float64, hasPrev bool) float64 {
	tr := b.High - b.Low
	if hasPrev {
		if d := math.Abs(b.High - prevClose); d > tr {
			tr = d
		}
		if d := math.Abs(b.Low - prevClose); d > tr {
			tr = d
		}
	}
	return tr
}

// update ingests one bar and returns the current ATR (NaN while warming up).
func (a *atrTracker) update(b market.Bar) float64 {
	tr := trueRange(b, a.prevClose, a.seen > 0)
	a.prevClose = b.Close
	a.seen++

	switch {
	case a.seen < a.period:
		a.sum += tr
	case a.seen == a.period:
		a.sum += tr
		a.value = a.sum / float64(a.period)
	default:
		a.value = (a.value*float64(a.period-1) + tr) / float64(a.period)
	}
	return a.value
}
