package indicator

import "signal-botv1/internal/model"

// rpp computes the Relative Price Position: where the latest close sits
// within the low/high range of the trailing lookback bars, on a 0–100 scale.
// Uses daily lows for the range floor and daily highs for the ceiling.
// ok=false when the range is flat; RPP is undefined there and the caller
// must treat the bar series as producing no signal.
func rpp(bars []model.PricePoint, lookback int) (score float64, ok bool) {
	if len(bars) > lookback {
		bars = bars[len(bars)-lookback:]
	}

	min := bars[0].Low
	max := bars[0].High
	for _, b := range bars {
		if b.Low < min {
			min = b.Low
		}
		if b.High > max {
			max = b.High
		}
	}

	if max == min {
		return 0, false
	}

	current := bars[len(bars)-1].Close
	return (current - min) / (max - min) * 100, true
}
