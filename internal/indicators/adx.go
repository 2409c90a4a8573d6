package indicators

import (
	"math"

	"meanrev/internal/market"
)

// adxTracker computes the Average Directional Index and both directional
// indicators using Wilder's smoothing throughout: +DM/-DM and TR are
// accumulated over the first period, then decayed as s = s - s/period + x.
// DX values are in turn averaged over one more period before ADX starts, so
// ADX needs roughly 2*period bars of warm-up.
type adxTracker struct {
	period int

	prevBar market.Bar
	seen    int

	smPlusDM  float64
	smMinusDM float64
	smTR      float64

	dxSeen int
	dxSum  float64

	plusDI  float64
	minusDI float64
	adx     float64
}

func newADXTracker(period int) *adxTracker {
	return &adxTracker{period: period, plusDI: math.NaN(), minusDI: math.NaN(), adx: math.NaN()}
}

// update ingests one bar and returns (+DI, -DI, ADX); all NaN during warm-up.
func (a *adxTracker) update(b market.Bar) (plusDI, minusDI, adx float64) {
	defer func() { a.prevBar = b; a.seen++ }()

	if a.seen == 0 {
		return math.NaN(), math.NaN(), math.NaN()
	}

	upMove := b.High - a.prevBar.High
	downMove := a.prevBar.Low - b.Low
	plusDM, minusDM := 0.0, 0.0
	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}
	if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}
	tr := trueRange(b, a.prevBar.Close, true)

	n := a.seen // number of directional moves so far, this one included
	switch {
	case n < a.period:
		a.smPlusDM += plusDM
		a.smMinusDM += minusDM
		a.smTR += tr
		return math.NaN(), math.NaN(), math.NaN()
	case n == a.period:
		a.smPlusDM += plusDM
		a.smMinusDM += minusDM
		a.smTR += tr
	default:
		a.smPlusDM = a.smPlusDM - a.smPlusDM/float64(a.period) + plusDM
		a.smMinusDM = a.smMinusDM - a.smMinusDM/float64(a.period) + minusDM
		a.smTR = a.smTR - a.smTR/float64(a.period) + tr
	}

	if a.smTR == 0 {
		a.plusDI, a.minusDI = 0, 0
	} else {
		a.plusDI = 100 * a.smPlusDM / a.smTR
		a.minusDI = 100 * a.smMinusDM / a.smTR
	}

	dx := 0.0
	if sum := a.plusDI + a.minusDI; sum > 0 {
		dx = 100 * math.Abs(a.plusDI-a.minusDI) / sum
	}

	a.dxSeen++
	switch {
	case a.dxSeen < a.period:
		a.dxSum += dx
		return a.plusDI, a.minusDI, math.NaN()
	case a.dxSeen == a.period:
		a.dxSum += dx
		a.adx = a.dxSum / float64(a.period)
	default:
		a.adx = (a.adx*float64(a.period-1) + dx) / float64(a.period)
	}
	return a.plusDI, a.minusDI, a.adx
}
