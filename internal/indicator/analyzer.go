// Package indicator computes Bollinger Bands and the Relative Price Position
// (RPP) over a daily bar series and classifies the result into a signal.
//
// STRONG BUY:  price below the lower band AND RPP under the buy threshold.
// STRONG SELL: price above the upper band AND RPP over the sell threshold.
// Anything else is NONE.
package indicator

import (
	"errors"
	"fmt"

	"signal-botv1/internal/model"
)

// ErrInsufficientData means the bar series is too short to compute the
// indicators. Callers skip the ticker for this cycle and move on.
var ErrInsufficientData = errors.New("insufficient price history")

// Params configures the indicator computation and classification thresholds.
type Params struct {
	BollingerWindow int     // SMA/stddev window, default 20
	BollingerStdDev float64 // band width in standard deviations, default 2
	RPPLookbackDays int     // trailing bars for the RPP range, default 180
	BuyThreshold    float64 // STRONG BUY requires RPP below this, default 10
	SellThreshold   float64 // STRONG SELL requires RPP above this, default 90
}

// DefaultParams returns the standard configuration.
func DefaultParams() Params {
	return Params{
		BollingerWindow: 20,
		BollingerStdDev: 2,
		RPPLookbackDays: 180,
		BuyThreshold:    10,
		SellThreshold:   90,
	}
}

// Analyze computes the indicators for one ticker's bar series and classifies
// the latest close. Bars must be ordered oldest to newest. Returns
// ErrInsufficientData when the series is shorter than the Bollinger window
// (or has fewer than 2 bars).
func Analyze(ticker string, bars []model.PricePoint, p Params) (model.IndicatorResult, error) {
	need := p.BollingerWindow
	if need < 2 {
		need = 2
	}
	if len(bars) < need {
		return model.IndicatorResult{}, fmt.Errorf("%w: %s has %d bars, need %d",
			ErrInsufficientData, ticker, len(bars), need)
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	current := closes[len(closes)-1]

	upper, middle, lower := bollinger(closes, p.BollingerWindow, p.BollingerStdDev)

	res := model.IndicatorResult{
		Ticker:       ticker,
		CurrentPrice: current,
		UpperBand:    upper,
		MiddleBand:   middle,
		LowerBand:    lower,
		Signal:       model.SignalNone,
	}

	score, ok := rpp(bars, p.RPPLookbackDays)
	if !ok {
		// Flat range; RPP undefined, never a signal.
		return res, nil
	}
	res.RPP = score

	switch {
	case current < lower && score < p.BuyThreshold:
		res.Signal = model.SignalStrongBuy
		res.Triggers = []string{
			fmt.Sprintf("Price below Lower Bollinger Band ($%.2f)", lower),
			fmt.Sprintf("RPP Score (%.2f%%) < %.0f%%", score, p.BuyThreshold),
		}
	case current > upper && score > p.SellThreshold:
		res.Signal = model.SignalStrongSell
		res.Triggers = []string{
			fmt.Sprintf("Price above Upper Bollinger Band ($%.2f)", upper),
			fmt.Sprintf("RPP Score (%.2f%%) > %.0f%%", score, p.SellThreshold),
		}
	}

	return res, nil
}
