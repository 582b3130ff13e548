package indicator

import "math"

// bollinger computes Bollinger Bands over the trailing window of closes:
// middle = SMA(window), upper/lower = middle ± numStd·stddev.
// Uses population standard deviation of the same window as the SMA.
// Caller guarantees len(closes) >= window.
func bollinger(closes []float64, window int, numStd float64) (upper, middle, lower float64) {
	w := closes[len(closes)-window:]

	var sum float64
	for _, c := range w {
		sum += c
	}
	mean := sum / float64(window)

	var variance float64
	for _, c := range w {
		d := c - mean
		variance += d * d
	}
	variance /= float64(window)
	std := math.Sqrt(variance)

	return mean + numStd*std, mean, mean - numStd*std
}
