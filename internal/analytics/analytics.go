// Package analytics derives cross-symbol time-series analytics from the tick
// store: descriptive statistics, log-price spreads, rolling z-scores, OLS hedge
// ratios and rolling correlations.
//
// Every request re-samples the store; nothing is cached. Pair analytics align
// the quote series onto the base series with Align before any statistic runs.
package analytics

import (
	"fmt"
	"math"
	"time"

	"tickstream/internal/candles"
	"tickstream/internal/model"
	"tickstream/internal/stats"
	"tickstream/internal/store"
	"tickstream/internal/utils"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// MinPairPoints is the aligned-row floor for spread and hedge-ratio fits.
	MinPairPoints = 30

	// DefaultWindow is the rolling window for z-score and correlation.
	DefaultWindow = 60

	// HedgeMethod names the hedge-ratio estimator.
	HedgeMethod = "ols-log"

	// TicksTimeframe labels a summary computed over raw ticks.
	TicksTimeframe = "ticks"

	summaryLimit = 10_000
	pairLimit    = 100_000
)

// Source is the read side of the tick store.
type Source interface {
	Query(opts store.QueryOptions) []model.Tick
	Sample(opts store.SampleOptions) ([]model.Bucket, error)
}

// Range bounds the ticks an analytic reads. Zero values leave a bound open.
type Range struct {
	Since time.Time
	Until time.Time
}

// PairRequest names a base/quote pair sampled at one timeframe.
type PairRequest struct {
	Base      string
	Quote     string
	Timeframe string
	Range
}

// SpreadRequest parameterizes Spread. A nil HedgeRatio is estimated by OLS.
type SpreadRequest struct {
	PairRequest
	HedgeRatio *float64
	Limit      int
}

// ZScoreRequest parameterizes ZScore.
type ZScoreRequest struct {
	PairRequest
	Window int
	Limit  int
}

// CorrelationRequest parameterizes Correlation. Symbols must hold exactly two entries.
type CorrelationRequest struct {
	Symbols   []string
	Timeframe string
	Window    int
	Range
}

// Summary is a descriptive statistics block over prices and volumes.
type Summary struct {
	Symbol      string
	Timeframe   string
	Count       int
	Mean        float64
	Median      float64
	Std         float64
	Min         float64
	Max         float64
	TotalVolume float64
}

// SpreadPoint is one value of the log-price spread series.
type SpreadPoint struct {
	T      time.Time
	Spread float64
}

// SpreadResult is the hedged spread series and its latest z-score.
type SpreadResult struct {
	Base       string
	Quote      string
	HedgeRatio float64
	Series     []SpreadPoint
	ZLatest    float64
}

// ZPoint is one value of a rolling z-score series.
type ZPoint struct {
	T time.Time
	Z float64
}

// ZScoreResult is the rolling z-score of the unit-hedged spread.
type ZScoreResult struct {
	Base    string
	Quote   string
	Window  int
	Series  []ZPoint
	ZLatest float64
}

// HedgeRatioResult is an OLS fit of ln(base) on ln(quote).
type HedgeRatioResult struct {
	Base   string
	Quote  string
	Method string
	Beta   float64
	Alpha  float64
	R2     float64
	N      int
}

// CorrPoint is one value of a rolling correlation series.
type CorrPoint struct {
	T    time.Time
	Corr float64
}

// CorrelationResult is the rolling correlation of two symbols' closes.
type CorrelationResult struct {
	Symbols []string
	Window  int
	Series  []CorrPoint
}

// Engine computes analytics over a Source.
type Engine struct {
	source Source
	logger zerolog.Logger
}

// NewEngine creates an analytics engine reading from source.
func NewEngine(source Source) *Engine {
	return &Engine{
		source: source,
		logger: log.With().Str("component", "analytics").Logger(),
	}
}

// Summary computes statistics over bucket closes and volumes when timeframe
// is set, otherwise over raw tick prices and sizes. At most 10,000 buckets or
// ticks are read.
func (e *Engine) Summary(symbol, timeframe string) (Summary, error) {
	sym, err := utils.NormalizeSymbol(symbol)
	if err != nil {
		return Summary{}, err
	}

	var prices, volumes []float64
	label := TicksTimeframe

	if timeframe != "" {
		tf, err := candles.ParseTimeframe(timeframe)
		if err != nil {
			return Summary{}, err
		}
		label = tf.Name

		buckets, err := e.source.Sample(store.SampleOptions{Symbol: sym, Timeframe: tf.Name, Limit: summaryLimit})
		if err != nil {
			return Summary{}, fmt.Errorf("sample %s: %w", sym, err)
		}
		prices = make([]float64, len(buckets))
		volumes = make([]float64, len(buckets))
		for i, b := range buckets {
			prices[i] = b.Close
			volumes[i] = b.Volume
		}
	} else {
		ticks := e.source.Query(store.QueryOptions{Symbol: sym, Limit: summaryLimit})
		prices = make([]float64, len(ticks))
		volumes = make([]float64, len(ticks))
		for i, t := range ticks {
			prices[i] = t.Price
			volumes[i] = t.Size
		}
	}

	return Summary{
		Symbol:      sym,
		Timeframe:   label,
		Count:       len(prices),
		Mean:        stats.Mean(prices),
		Median:      stats.Median(prices),
		Std:         stats.StdDev(prices),
		Min:         stats.Min(prices),
		Max:         stats.Max(prices),
		TotalVolume: stats.Sum(volumes),
	}, nil
}

// Spread computes ln(base) - h*ln(quote) over the aligned series.
//
// h is the supplied hedge ratio or, when nil, the OLS beta of ln(base) on
// ln(quote). At least MinPairPoints aligned rows are required. ZLatest
// standardizes the last spread against the whole series before the series is
// truncated to its trailing Limit points.
func (e *Engine) Spread(req SpreadRequest) (SpreadResult, error) {
	base, quote, rows, err := e.alignPair(req.PairRequest)
	if err != nil {
		return SpreadResult{}, err
	}
	if err := requirePoints(MinPairPoints, len(rows)); err != nil {
		return SpreadResult{}, err
	}

	lnBase, lnQuote := logCloses(rows)

	var hedge float64
	if req.HedgeRatio != nil {
		hedge = *req.HedgeRatio
	} else {
		hedge = stats.OLS(lnQuote, lnBase).Beta
	}

	series := make([]SpreadPoint, len(rows))
	spreads := make([]float64, len(rows))
	for i, r := range rows {
		spreads[i] = lnBase[i] - hedge*lnQuote[i]
		series[i] = SpreadPoint{T: r.T, Spread: spreads[i]}
	}

	e.logger.Debug().
		Str("base", base).
		Str("quote", quote).
		Float64("hedge", hedge).
		Int("points", len(series)).
		Msg("Computed spread")

	return SpreadResult{
		Base:       base,
		Quote:      quote,
		HedgeRatio: hedge,
		Series:     tail(series, req.Limit),
		ZLatest:    stats.ZScore(spreads[len(spreads)-1], spreads),
	}, nil
}

// ZScore computes the rolling z-score of ln(base) - ln(quote) over trailing
// windows of Window points. At least Window aligned rows are required.
func (e *Engine) ZScore(req ZScoreRequest) (ZScoreResult, error) {
	if req.Window < 1 {
		return ZScoreResult{}, fmt.Errorf("%w: window must be positive, got %d", utils.ErrInvalidArgument, req.Window)
	}

	base, quote, rows, err := e.alignPair(req.PairRequest)
	if err != nil {
		return ZScoreResult{}, err
	}
	if err := requirePoints(req.Window, len(rows)); err != nil {
		return ZScoreResult{}, err
	}

	lnBase, lnQuote := logCloses(rows)
	spreads := make([]float64, len(rows))
	for i := range rows {
		spreads[i] = lnBase[i] - lnQuote[i]
	}

	series := make([]ZPoint, len(rows))
	for i, r := range rows {
		start := max(0, i-req.Window+1)
		series[i] = ZPoint{T: r.T, Z: stats.ZScore(spreads[i], spreads[start:i+1])}
	}

	return ZScoreResult{
		Base:    base,
		Quote:   quote,
		Window:  req.Window,
		Series:  tail(series, req.Limit),
		ZLatest: series[len(series)-1].Z,
	}, nil
}

// HedgeRatio fits ln(base) = alpha + beta*ln(quote) by OLS over the aligned
// series. At least MinPairPoints aligned rows are required.
func (e *Engine) HedgeRatio(req PairRequest) (HedgeRatioResult, error) {
	base, quote, rows, err := e.alignPair(req)
	if err != nil {
		return HedgeRatioResult{}, err
	}
	if err := requirePoints(MinPairPoints, len(rows)); err != nil {
		return HedgeRatioResult{}, err
	}

	lnBase, lnQuote := logCloses(rows)
	reg := stats.OLS(lnQuote, lnBase)

	return HedgeRatioResult{
		Base:   base,
		Quote:  quote,
		Method: HedgeMethod,
		Beta:   reg.Beta,
		Alpha:  reg.Alpha,
		R2:     reg.R2,
		N:      len(rows),
	}, nil
}

// Correlation computes the rolling correlation of two symbols' closes over
// trailing windows of Window points.
func (e *Engine) Correlation(req CorrelationRequest) (CorrelationResult, error) {
	if len(req.Symbols) != 2 {
		return CorrelationResult{}, fmt.Errorf("%w: got %d symbols", utils.ErrInvalidPair, len(req.Symbols))
	}
	if req.Window < 1 {
		return CorrelationResult{}, fmt.Errorf("%w: window must be positive, got %d", utils.ErrInvalidArgument, req.Window)
	}

	a, b, rows, err := e.alignPair(PairRequest{
		Base:      req.Symbols[0],
		Quote:     req.Symbols[1],
		Timeframe: req.Timeframe,
		Range:     req.Range,
	})
	if err != nil {
		return CorrelationResult{}, err
	}

	left := make([]float64, len(rows))
	right := make([]float64, len(rows))
	for i, r := range rows {
		left[i] = r.Left
		right[i] = r.Right
	}

	corr := stats.RollingPair(left, right, req.Window, stats.Correlation)
	series := make([]CorrPoint, len(rows))
	for i, r := range rows {
		series[i] = CorrPoint{T: r.T, Corr: corr[i]}
	}

	return CorrelationResult{
		Symbols: []string{a, b},
		Window:  req.Window,
		Series:  series,
	}, nil
}

// alignPair validates the request, samples both symbols and aligns them.
func (e *Engine) alignPair(req PairRequest) (string, string, []model.AlignedRow, error) {
	base, quote, err := utils.ValidatePair(req.Base, req.Quote)
	if err != nil {
		return "", "", nil, err
	}
	tf, err := candles.ParseTimeframe(req.Timeframe)
	if err != nil {
		return "", "", nil, err
	}

	left, err := e.source.Sample(e.pairSample(base, tf, req.Range))
	if err != nil {
		return "", "", nil, fmt.Errorf("sample %s: %w", base, err)
	}
	right, err := e.source.Sample(e.pairSample(quote, tf, req.Range))
	if err != nil {
		return "", "", nil, fmt.Errorf("sample %s: %w", quote, err)
	}

	return base, quote, Align(left, right), nil
}

func (e *Engine) pairSample(symbol string, tf candles.Timeframe, r Range) store.SampleOptions {
	return store.SampleOptions{
		Symbol:    symbol,
		Timeframe: tf.Name,
		Since:     r.Since,
		Until:     r.Until,
		Limit:     pairLimit,
	}
}

func logCloses(rows []model.AlignedRow) ([]float64, []float64) {
	left := make([]float64, len(rows))
	right := make([]float64, len(rows))
	for i, r := range rows {
		left[i] = math.Log(r.Left)
		right[i] = math.Log(r.Right)
	}
	return left, right
}

// tail returns the last limit elements of s, or all of s when limit <= 0.
func tail[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[len(s)-limit:]
	}
	return s
}
