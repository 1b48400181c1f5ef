package model

import (
	"fmt"
	"math"
	"time"

	json "github.com/goccy/go-json"
)

// TimestampLayout renders times as ISO-8601 UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Number maps a non-finite float to nil so it encodes as JSON null.
func Number(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// FormatTime renders t in TimestampLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

type tickJSON struct {
	Symbol string   `json:"symbol"`
	Price  *float64 `json:"price"`
	Size   *float64 `json:"size"`
	TS     string   `json:"ts"`
}

// MarshalJSON encodes the tick as {"symbol","price","size","ts"}.
func (t Tick) MarshalJSON() ([]byte, error) {
	return json.Marshal(tickJSON{
		Symbol: t.Symbol,
		Price:  Number(t.Price),
		Size:   Number(t.Size),
		TS:     FormatTime(t.Timestamp),
	})
}

// UnmarshalJSON decodes the MarshalJSON form. A null number decodes as NaN.
func (t *Tick) UnmarshalJSON(data []byte) error {
	var v tickJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	ts, err := time.Parse(time.RFC3339Nano, v.TS)
	if err != nil {
		return fmt.Errorf("tick ts: %w", err)
	}

	*t = Tick{
		Symbol:    v.Symbol,
		Price:     fromNumber(v.Price),
		Size:      fromNumber(v.Size),
		Timestamp: ts.UTC(),
	}
	return nil
}

func fromNumber(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

type bucketJSON struct {
	T     string   `json:"t"`
	Open  *float64 `json:"o"`
	High  *float64 `json:"h"`
	Low   *float64 `json:"l"`
	Close *float64 `json:"c"`
	Vol   *float64 `json:"v"`
	Count int      `json:"count"`
}

// MarshalJSON encodes the bucket as {"t","o","h","l","c","v","count"}.
func (b Bucket) MarshalJSON() ([]byte, error) {
	return json.Marshal(bucketJSON{
		T:     FormatTime(b.Start),
		Open:  Number(b.Open),
		High:  Number(b.High),
		Low:   Number(b.Low),
		Close: Number(b.Close),
		Vol:   Number(b.Volume),
		Count: b.Count,
	})
}
