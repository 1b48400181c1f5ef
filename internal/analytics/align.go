package analytics

import "tickstream/internal/model"

// Align pairs the closes of two bucket series on the left series' time axis.
//
// Each left bucket takes the close of the right bucket with the identical
// start time when one exists, otherwise the most recent right close seen so
// far (last observation carried forward). Left buckets before the first exact
// match have no right value and are dropped. Both inputs must be ascending by
// start time; so is the result.
func Align(left, right []model.Bucket) []model.AlignedRow {
	closes := make(map[int64]float64, len(right))
	for _, b := range right {
		closes[b.Start.UnixMilli()] = b.Close
	}

	rows := make([]model.AlignedRow, 0, len(left))
	var (
		carried float64
		seen    bool
	)
	for _, l := range left {
		if c, ok := closes[l.Start.UnixMilli()]; ok {
			carried = c
			seen = true
		}
		if !seen {
			continue
		}
		rows = append(rows, model.AlignedRow{T: l.Start, Left: l.Close, Right: carried})
	}
	return rows
}
