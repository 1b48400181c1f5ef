// Package model defines core data types for the tick streaming service.
//
// This package contains the canonical trade event that flows from the exchange
// feed into the tick store, and the derived aggregates produced on demand for
// analytics consumers.
//
// Prices and sizes are float64: every consumer of these values (aggregation,
// log-price regression, rolling statistics) works in floating point, and exact
// decimal parsing happens once at the feed boundary.
package model

import (
	"time"
)

// Tick represents one normalized trade event.
//
// Ticks are immutable once constructed. Symbol is always lowercase and
// non-empty when produced by the feed; Timestamp carries the exchange trade
// time with millisecond resolution.
type Tick struct {
	Symbol    string    // Lowercase trading symbol (e.g., "btcusdt")
	Price     float64   // Trade execution price
	Size      float64   // Trade quantity
	Timestamp time.Time // Exchange timestamp of the trade
}

// Bucket represents an OHLCV aggregate over the half-open interval
// [Start, Start+timeframe).
//
// Fields:
//   - Start: Beginning of the bucket's time window (inclusive)
//   - Open: Price of the first tick in the window
//   - High: Highest price in the window
//   - Low: Lowest price in the window
//   - Close: Price of the last tick in the window
//   - Volume: Sum of tick sizes in the window
//   - Count: Number of ticks in the window
type Bucket struct {
	Start  time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Count  int
}

// AlignedRow pairs the close prices of two symbols at the same bucket start.
type AlignedRow struct {
	T     time.Time
	Left  float64 // base symbol close
	Right float64 // quote symbol close, carried forward when absent at T
}
