package indicators

import (
	"math"

	"meanrev/internal/market"
)

// SMA calculates the simple moving average of the last period values.
// Returns NaN when there is not enough data.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return math.NaN()
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}

// StdDev calculates the population standard deviation of the last period
// values around the given mean.
func StdDev(values []float64, period int, mean float64) float64 {
	if period <= 0 || len(values) < period {
		return math.NaN()
	}
	variance := 0.0
	for i := len(values) - period; i < len(values); i++ {
		d := values[i] - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(period))
}

// Bollinger returns middle/upper/lower bands over the trailing window of
// closes: SMA ± numStdDev standard deviations.
func Bollinger(closes []float64, period int, numStdDev float64) (mid, upper, lower float64) {
	mid = SMA(closes, period)
	if math.IsNaN(mid) {
		return math.NaN(), math.NaN(), math.NaN()
	}
	sd := StdDev(closes, period, mid)
	return mid, mid + numStdDev*sd, mid - numStdDev*sd
}

// VWAPBands returns a rolling volume-weighted average price over the trailing
// window of bars plus bands at numStdDev volume-weighted deviations of the
// typical price. Falls back to unweighted statistics when the window carries
// no volume.
func VWAPBands(bars []market.Bar, period int, numStdDev float64) (vwap, upper, lower float64) {
	if period <= 0 || len(bars) < period {
		return math.NaN(), math.NaN(), math.NaN()
	}
	window := bars[len(bars)-period:]

	var sumPV, sumV float64
	for _, b := range window {
		tp := (b.High + b.Low + b.Close) / 3
		sumPV += tp * b.Volume
		sumV += b.Volume
	}
	if sumV == 0 {
		closes := make([]float64, len(window))
		for i, b := range window {
			closes[i] = (b.High + b.Low + b.Close) / 3
		}
		return Bollinger(closes, period, numStdDev)
	}
	vwap = sumPV / sumV

	var variance float64
	for _, b := range window {
		tp := (b.High + b.Low + b.Close) / 3
		d := tp - vwap
		variance += b.Volume * d * d
	}
	sd := math.Sqrt(variance / sumV)
	return vwap, vwap + numStdDev*sd, vwap - numStdDev*sd
}
