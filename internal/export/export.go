// Package export renders stored ticks as CSV.
package export

import (
	"errors"
	"fmt"
	"io"

	"tickstream/internal/model"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

// ErrNoData is returned when there are no ticks to export.
var ErrNoData = errors.New("no data to export")

// record is one CSV row. Column order follows field order.
type record struct {
	Timestamp string `csv:"timestamp"`
	Symbol    string `csv:"symbol"`
	Price     string `csv:"price"`
	Size      string `csv:"size"`
}

func toRecords(ticks []model.Tick) []*record {
	out := make([]*record, 0, len(ticks))
	for _, t := range ticks {
		out = append(out, &record{
			Timestamp: model.FormatTime(t.Timestamp),
			Symbol:    t.Symbol,
			Price:     formatNumber(t.Price),
			Size:      formatNumber(t.Size),
		})
	}
	return out
}

// formatNumber renders f in its shortest decimal form (no exponent).
func formatNumber(f float64) string {
	return decimal.NewFromFloat(f).String()
}

// WriteTicks writes ticks, in the given order, to w as CSV with a
// timestamp,symbol,price,size header. Nothing is written for an empty set.
func WriteTicks(w io.Writer, ticks []model.Tick) error {
	if len(ticks) == 0 {
		return ErrNoData
	}

	if err := gocsv.Marshal(toRecords(ticks), w); err != nil {
		return fmt.Errorf("write ticks: %w", err)
	}
	return nil
}

// Filename returns the attachment name for an export of symbol, or of every
// symbol when symbol is empty.
func Filename(symbol string) string {
	if symbol == "" {
		return "ticks.csv"
	}
	return symbol + ".csv"
}
