package analytics

import (
	"errors"
	"math"
	"testing"
	"time"

	"tickstream/internal/candles"
	"tickstream/internal/model"
	"tickstream/internal/store"
	"tickstream/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bucketAt(sec int64, close float64) model.Bucket {
	return model.Bucket{Start: time.Unix(sec, 0).UTC(), Close: close}
}

// newSeededEngine records one tick per second for each symbol, using price(i)
// for the i-th second.
func newSeededEngine(t *testing.T, n int, series map[string]func(i int) float64) *Engine {
	t.Helper()
	s, err := store.New(store.DefaultCapacity, nil)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		for sym, price := range series {
			s.Record(model.Tick{
				Symbol:    sym,
				Price:     price(i),
				Size:      1,
				Timestamp: time.UnixMilli(int64(i)*1000 + 250).UTC(),
			})
		}
	}
	return NewEngine(s)
}

// Test_Align tests last-observation-carried-forward alignment
func Test_Align(t *testing.T) {
	tests := []struct {
		name        string
		left        []model.Bucket
		right       []model.Bucket
		expected    []model.AlignedRow
		description string
	}{
		{
			name:  "Carry forward",
			left:  []model.Bucket{bucketAt(0, 10), bucketAt(1, 11), bucketAt(2, 12), bucketAt(3, 13)},
			right: []model.Bucket{bucketAt(1, 101), bucketAt(3, 103)},
			expected: []model.AlignedRow{
				{T: time.Unix(1, 0).UTC(), Left: 11, Right: 101},
				{T: time.Unix(2, 0).UTC(), Left: 12, Right: 101},
				{T: time.Unix(3, 0).UTC(), Left: 13, Right: 103},
			},
			description: "Rows before the first right match are dropped; gaps reuse the last right close",
		},
		{
			name:        "No right data",
			left:        []model.Bucket{bucketAt(0, 10)},
			right:       nil,
			expected:    []model.AlignedRow{},
			description: "Nothing aligns without a right series",
		},
		{
			name:        "Right only beyond left",
			left:        []model.Bucket{bucketAt(0, 10), bucketAt(1, 11)},
			right:       []model.Bucket{bucketAt(5, 100)},
			expected:    []model.AlignedRow{},
			description: "Right buckets never matched exactly produce no rows",
		},
		{
			name:  "Identical axes",
			left:  []model.Bucket{bucketAt(0, 1), bucketAt(1, 2)},
			right: []model.Bucket{bucketAt(0, 3), bucketAt(1, 4)},
			expected: []model.AlignedRow{
				{T: time.Unix(0, 0).UTC(), Left: 1, Right: 3},
				{T: time.Unix(1, 0).UTC(), Left: 2, Right: 4},
			},
			description: "Exact matches pair one to one",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Align(tt.left, tt.right), tt.description)
		})
	}
}

// Test_InsufficientDataError tests the error classification helpers
func Test_InsufficientDataError(t *testing.T) {
	err := requirePoints(30, 12)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))

	var ide *InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, 30, ide.Required)
	assert.Equal(t, 12, ide.Available)
	assert.Contains(t, err.Error(), "30 points required, 12 available")

	assert.NoError(t, requirePoints(30, 30))
}

// Test_HedgeRatio tests the OLS fit on log prices
func Test_HedgeRatio(t *testing.T) {
	engine := newSeededEngine(t, 40, map[string]func(int) float64{
		"quote": func(i int) float64 { return 10 + float64(i) },
		"base":  func(i int) float64 { q := 10 + float64(i); return math.E * q * q },
	})

	t.Run("Noiseless log-linear pair", func(t *testing.T) {
		res, err := engine.HedgeRatio(PairRequest{Base: "BASE", Quote: "quote", Timeframe: "1s"})
		require.NoError(t, err)

		assert.Equal(t, "base", res.Base)
		assert.Equal(t, HedgeMethod, res.Method)
		assert.Equal(t, 40, res.N)
		assert.InDelta(t, 2.0, res.Beta, 1e-9, "ln(base) = 1 + 2 ln(quote)")
		assert.InDelta(t, 1.0, res.Alpha, 1e-9)
		assert.InDelta(t, 1.0, res.R2, 1e-9)
	})

	t.Run("Too few aligned rows", func(t *testing.T) {
		short := newSeededEngine(t, 12, map[string]func(int) float64{
			"quote": func(i int) float64 { return 1 },
			"base":  func(i int) float64 { return 2 },
		})
		_, err := short.HedgeRatio(PairRequest{Base: "base", Quote: "quote", Timeframe: "1s"})

		var ide *InsufficientDataError
		require.True(t, errors.As(err, &ide))
		assert.Equal(t, MinPairPoints, ide.Required)
		assert.Equal(t, 12, ide.Available)
	})

	t.Run("Invalid requests", func(t *testing.T) {
		_, err := engine.HedgeRatio(PairRequest{Base: "", Quote: "quote", Timeframe: "1s"})
		assert.True(t, errors.Is(err, utils.ErrInvalidSymbol))

		_, err = engine.HedgeRatio(PairRequest{Base: "base", Quote: "quote", Timeframe: "2h"})
		assert.True(t, errors.Is(err, candles.ErrUnsupportedTimeframe))
	})
}

// Test_Spread tests the hedged spread series
func Test_Spread(t *testing.T) {
	engine := newSeededEngine(t, 40, map[string]func(int) float64{
		"quote": func(i int) float64 { return 10 + float64(i) },
		"base":  func(i int) float64 { q := 10 + float64(i); return math.E * q * q },
	})

	t.Run("Supplied hedge ratio", func(t *testing.T) {
		hedge := 2.0
		res, err := engine.Spread(SpreadRequest{
			PairRequest: PairRequest{Base: "base", Quote: "quote", Timeframe: "1s"},
			HedgeRatio:  &hedge,
			Limit:       5,
		})
		require.NoError(t, err)

		assert.Equal(t, 2.0, res.HedgeRatio)
		require.Len(t, res.Series, 5, "Series is tail-truncated to the limit")
		assert.Equal(t, int64(39), res.Series[4].T.Unix(), "Tail keeps the latest points")
		for _, p := range res.Series {
			assert.InDelta(t, 1.0, p.Spread, 1e-9, "ln(e*q^2) - 2 ln(q) = 1")
		}
	})

	t.Run("Estimated hedge ratio", func(t *testing.T) {
		res, err := engine.Spread(SpreadRequest{
			PairRequest: PairRequest{Base: "base", Quote: "quote", Timeframe: "1s"},
		})
		require.NoError(t, err)
		assert.InDelta(t, 2.0, res.HedgeRatio, 1e-9)
		assert.Len(t, res.Series, 40, "Zero limit keeps every point")
	})

	t.Run("Latest z against the whole series", func(t *testing.T) {
		trend := newSeededEngine(t, 30, map[string]func(int) float64{
			"quote": func(i int) float64 { return 1 },
			"base":  func(i int) float64 { return math.Exp(float64(i)) },
		})
		hedge := 0.0
		res, err := trend.Spread(SpreadRequest{
			PairRequest: PairRequest{Base: "base", Quote: "quote", Timeframe: "1s"},
			HedgeRatio:  &hedge,
			Limit:       1,
		})
		require.NoError(t, err)

		spreads := make([]float64, 30)
		for i := range spreads {
			spreads[i] = float64(i)
		}
		mean := 14.5
		var ss float64
		for _, v := range spreads {
			ss += (v - mean) * (v - mean)
		}
		expected := (29 - mean) / math.Sqrt(ss/30)
		assert.InDelta(t, expected, res.ZLatest, 1e-9, "Truncation does not change zLatest")
	})
}

// Test_ZScore tests the rolling z-score of the unit-hedged spread
func Test_ZScore(t *testing.T) {
	engine := newSeededEngine(t, 10, map[string]func(int) float64{
		"quote": func(i int) float64 { return 1 },
		"base":  func(i int) float64 { return math.Exp(float64(i % 3)) },
	})

	t.Run("Rolling window", func(t *testing.T) {
		res, err := engine.ZScore(ZScoreRequest{
			PairRequest: PairRequest{Base: "base", Quote: "quote", Timeframe: "1s"},
			Window:      3,
		})
		require.NoError(t, err)
		require.Len(t, res.Series, 10)
		assert.Equal(t, 3, res.Window)

		assert.InDelta(t, 0.0, res.Series[0].Z, 1e-12, "Single-point window has zero deviation")
		// window {0,1,2}: mean 1, sd sqrt(2/3)
		assert.InDelta(t, 1/math.Sqrt(2.0/3.0), res.Series[2].Z, 1e-9)
		assert.Equal(t, res.Series[9].Z, res.ZLatest)
	})

	t.Run("Window larger than data", func(t *testing.T) {
		_, err := engine.ZScore(ZScoreRequest{
			PairRequest: PairRequest{Base: "base", Quote: "quote", Timeframe: "1s"},
			Window:      60,
		})
		var ide *InsufficientDataError
		require.True(t, errors.As(err, &ide))
		assert.Equal(t, 60, ide.Required)
		assert.Equal(t, 10, ide.Available)
	})

	t.Run("Non-positive window", func(t *testing.T) {
		_, err := engine.ZScore(ZScoreRequest{
			PairRequest: PairRequest{Base: "base", Quote: "quote", Timeframe: "1s"},
		})
		assert.True(t, errors.Is(err, utils.ErrInvalidArgument))
	})
}

// Test_Correlation tests the rolling correlation of two symbols
func Test_Correlation(t *testing.T) {
	engine := newSeededEngine(t, 20, map[string]func(int) float64{
		"btcusdt": func(i int) float64 { return float64(i + 1) },
		"ethusdt": func(i int) float64 { return 2 * float64(i+1) },
	})

	t.Run("Perfectly correlated", func(t *testing.T) {
		res, err := engine.Correlation(CorrelationRequest{
			Symbols:   []string{"BTCUSDT", "ethusdt"},
			Timeframe: "1s",
			Window:    5,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"btcusdt", "ethusdt"}, res.Symbols)
		require.Len(t, res.Series, 20)
		assert.Equal(t, 0.0, res.Series[0].Corr, "Single-point window has no variance")
		for _, p := range res.Series[1:] {
			assert.InDelta(t, 1.0, p.Corr, 1e-9)
		}
	})

	t.Run("Wrong symbol count", func(t *testing.T) {
		_, err := engine.Correlation(CorrelationRequest{Symbols: []string{"btcusdt"}, Timeframe: "1s", Window: 5})
		assert.True(t, errors.Is(err, utils.ErrInvalidPair))
	})

	t.Run("No data", func(t *testing.T) {
		res, err := engine.Correlation(CorrelationRequest{Symbols: []string{"a", "b"}, Timeframe: "1m", Window: 5})
		require.NoError(t, err)
		assert.Empty(t, res.Series)
	})
}

// Test_Summary tests descriptive statistics over ticks and buckets
func Test_Summary(t *testing.T) {
	engine := newSeededEngine(t, 3, map[string]func(int) float64{
		"btcusdt": func(i int) float64 { return float64(i + 1) },
	})

	t.Run("Raw ticks", func(t *testing.T) {
		sum, err := engine.Summary("BTCUSDT", "")
		require.NoError(t, err)
		assert.Equal(t, TicksTimeframe, sum.Timeframe)
		assert.Equal(t, 3, sum.Count)
		assert.Equal(t, 2.0, sum.Mean)
		assert.Equal(t, 2.0, sum.Median)
		assert.Equal(t, 1.0, sum.Min)
		assert.Equal(t, 3.0, sum.Max)
		assert.Equal(t, 3.0, sum.TotalVolume)
	})

	t.Run("Bucket closes", func(t *testing.T) {
		sum, err := engine.Summary("btcusdt", "1m")
		require.NoError(t, err)
		assert.Equal(t, "1m", sum.Timeframe)
		assert.Equal(t, 1, sum.Count, "All ticks fall in one minute")
		assert.Equal(t, 3.0, sum.Mean, "Mean of the single close")
		assert.Equal(t, 3.0, sum.TotalVolume)
	})

	t.Run("Unknown symbol", func(t *testing.T) {
		sum, err := engine.Summary("solusdt", "")
		require.NoError(t, err)
		assert.Equal(t, 0, sum.Count)
		assert.Equal(t, 0.0, sum.Mean)
	})

	t.Run("Validation", func(t *testing.T) {
		_, err := engine.Summary(" ", "")
		assert.True(t, errors.Is(err, utils.ErrInvalidSymbol))

		_, err = engine.Summary("btcusdt", "3s")
		assert.True(t, errors.Is(err, candles.ErrUnsupportedTimeframe))
	})
}
