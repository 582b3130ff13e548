package model

import "time"

// SignalType classifies an indicator result.
type SignalType string

const (
	SignalStrongBuy  SignalType = "STRONG BUY"
	SignalStrongSell SignalType = "STRONG SELL"
	SignalNone       SignalType = "NONE"
)

// IndicatorResult is the per-cycle output of the indicator engine for one
// ticker. Ephemeral; recomputed every check, never persisted directly.
type IndicatorResult struct {
	Ticker       string     `json:"ticker"`
	CurrentPrice float64    `json:"current_price"`
	UpperBand    float64    `json:"upper_band"`
	MiddleBand   float64    `json:"middle_band"`
	LowerBand    float64    `json:"lower_band"`
	RPP          float64    `json:"rpp"` // 0–100 position within the lookback range
	Signal       SignalType `json:"signal"`

	// Triggers are human-readable descriptions of the threshold crossings
	// that produced the signal. Empty for SignalNone.
	Triggers []string `json:"triggers,omitempty"`
}

// SignalRecord is one delivered signal. History is append-only: suppressed
// candidates are never recorded, so the latest record per ticker is always
// the last signal the user actually received.
type SignalRecord struct {
	Ticker    string     `json:"ticker"`
	Signal    SignalType `json:"signal"`
	Price     float64    `json:"price"`
	RPPScore  float64    `json:"rpp_score"`
	CreatedAt time.Time  `json:"created_at"`
}

// DedupConfig is the process-wide dedup policy. It is read fresh from the
// config store before every pass and passed explicitly into each decision.
type DedupConfig struct {
	CooldownHours  float64 `json:"cooldown_hours"`   // >= 0; 0 disables time-based repetition
	PriceChangePct float64 `json:"price_change_pct"` // > 0; re-alert threshold vs last delivered price
}

// DefaultDedupConfig returns the seed dedup policy: 24h cooldown, 5% price
// change re-alert.
func DefaultDedupConfig() DedupConfig {
	return DedupConfig{CooldownHours: 24, PriceChangePct: 5.0}
}
