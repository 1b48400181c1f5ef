// Package candles provides OHLCV bucketing of tick sequences for a fixed set of
// timeframes.
//
// Buckets are never stored: every call derives them from the ticks it is given,
// so two calls over the same ticks always produce the same buckets.
package candles

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"tickstream/internal/model"
	"tickstream/internal/utils"
)

// ErrUnsupportedTimeframe is returned for any timeframe outside the registry.
var ErrUnsupportedTimeframe = fmt.Errorf("%w: unsupported timeframe (allowed: 1s, 1m, 5m)", utils.ErrInvalidArgument)

// Timeframe represents a bucket width.
type Timeframe struct {
	Name     string
	Duration time.Duration
}

// Supported timeframes
var (
	Timeframe1s = Timeframe{Name: "1s", Duration: time.Second}
	Timeframe1m = Timeframe{Name: "1m", Duration: time.Minute}
	Timeframe5m = Timeframe{Name: "5m", Duration: 5 * time.Minute}
)

var timeframeRegistry = map[string]Timeframe{
	Timeframe1s.Name: Timeframe1s,
	Timeframe1m.Name: Timeframe1m,
	Timeframe5m.Name: Timeframe5m,
}

// ParseTimeframe looks up a timeframe by name, case-insensitively.
func ParseTimeframe(name string) (Timeframe, error) {
	tf, ok := timeframeRegistry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Timeframe{}, fmt.Errorf("%w: %q", ErrUnsupportedTimeframe, name)
	}
	return tf, nil
}

// Millis returns the bucket width in milliseconds.
func (tf Timeframe) Millis() int64 {
	return tf.Duration.Milliseconds()
}

// BucketStart returns floor(ts / width) * width on the Unix millisecond axis.
func (tf Timeframe) BucketStart(ts time.Time) time.Time {
	width := tf.Millis()
	ms := ts.UnixMilli()
	start := ms / width * width
	// integer division truncates toward zero; floor pre-epoch instants
	if ms%width != 0 && ms < 0 {
		start -= width
	}
	return time.UnixMilli(start).UTC()
}

// Bucketize aggregates ticks into OHLCV buckets of the given timeframe.
//
// Ticks are visited in the order given, which callers must supply ascending by
// timestamp: the first tick of a bucket sets open/high/low/close, later ticks
// widen high and low and replace close. Buckets are returned ascending by start
// time; when limit > 0 only the trailing limit buckets are kept.
func Bucketize(ticks []model.Tick, tf Timeframe, limit int) []model.Bucket {
	if len(ticks) == 0 {
		return []model.Bucket{}
	}

	index := make(map[int64]int, 64)
	buckets := make([]model.Bucket, 0, 64)

	for _, tick := range ticks {
		start := tf.BucketStart(tick.Timestamp)
		key := start.UnixMilli()

		i, found := index[key]
		if !found {
			index[key] = len(buckets)
			buckets = append(buckets, model.Bucket{
				Start: start,
				Open:  tick.Price,
				High:  tick.Price,
				Low:   tick.Price,
				Close: tick.Price,
			})
			i = len(buckets) - 1
		} else {
			updateBucket(&buckets[i], tick)
		}

		buckets[i].Volume += tick.Size
		buckets[i].Count++
	}

	sort.SliceStable(buckets, func(a, b int) bool {
		return buckets[a].Start.Before(buckets[b].Start)
	})

	if limit > 0 && len(buckets) > limit {
		buckets = buckets[len(buckets)-limit:]
	}
	return buckets
}

// updateBucket folds one more tick into an open bucket.
func updateBucket(b *model.Bucket, tick model.Tick) {
	// NaN prices never replace high or low
	if tick.Price > b.High {
		b.High = tick.Price
	}
	if tick.Price < b.Low {
		b.Low = tick.Price
	}
	b.Close = tick.Price
}
