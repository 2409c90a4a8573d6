package indicators

import "math"

// PercentileRank returns the percentage (0-100) of window values less than or
// equal to v. Returns NaN for an empty window.
func PercentileRank(window []float64, v float64) float64 {
	if len(window) == 0 || math.IsNaN(v) {
		return math.NaN()
	}
	count := 0
	for _, w := range window {
		if w <= v {
			count++
		}
	}
	return 100 * float64(count) / float64(len(window))
}
