// Package model defines the data types shared between the market data layer,
// the indicator engine, and the dedup engine.
package model

import "time"

// PricePoint is one daily OHLCV bar for a ticker. Immutable once fetched.
type PricePoint struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// WatchItem is one watchlist entry. Name is an optional display name
// ("NVDA" / "Nvidia").
type WatchItem struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name,omitempty"`
}
