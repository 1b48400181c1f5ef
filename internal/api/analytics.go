package api

import (
	"net/http"

	"tickstream/internal/analytics"
	"tickstream/internal/candles"
	"tickstream/internal/model"
	"tickstream/internal/store"
	"tickstream/internal/utils"
)

// Defaults for analytics query parameters.
const (
	defaultSampleTimeframe = "1s"
	defaultFitTimeframe    = "1m"
	defaultOHLCLimit       = 500
	defaultSeriesLimit     = 1000
)

type ohlcResponse struct {
	Symbol    string         `json:"symbol"`
	Timeframe string         `json:"timeframe"`
	Data      []model.Bucket `json:"data"`
}

type statsResponse struct {
	Symbol      string   `json:"symbol"`
	Timeframe   string   `json:"timeframe"`
	Count       int      `json:"count"`
	Mean        *float64 `json:"mean"`
	Median      *float64 `json:"median"`
	Std         *float64 `json:"std"`
	Min         *float64 `json:"min"`
	Max         *float64 `json:"max"`
	TotalVolume *float64 `json:"totalVolume"`
}

type spreadPoint struct {
	T      string   `json:"t"`
	Spread *float64 `json:"spread"`
}

type spreadResponse struct {
	Base       string        `json:"base"`
	Quote      string        `json:"quote"`
	HedgeRatio *float64      `json:"hedgeRatio"`
	Data       []spreadPoint `json:"data"`
	ZLatest    *float64      `json:"zLatest"`
}

type zPoint struct {
	T string   `json:"t"`
	Z *float64 `json:"z"`
}

type zscoreResponse struct {
	Base    string   `json:"base"`
	Quote   string   `json:"quote"`
	Window  int      `json:"window"`
	Data    []zPoint `json:"data"`
	ZLatest *float64 `json:"zLatest"`
}

type hedgeRatioResponse struct {
	Base   string   `json:"base"`
	Quote  string   `json:"quote"`
	Method string   `json:"method"`
	Beta   *float64 `json:"beta"`
	Alpha  *float64 `json:"alpha"`
	R2     *float64 `json:"r2"`
	N      int      `json:"n"`
}

type corrPoint struct {
	T    string   `json:"t"`
	Corr *float64 `json:"corr"`
}

type correlationResponse struct {
	Symbols []string    `json:"symbols"`
	Window  int         `json:"window"`
	Data    []corrPoint `json:"data"`
}

func (s *Server) handleOHLC(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r.URL.Query())
	symbol := q.required("symbol")
	timeframe := q.strDefault("timeframe", defaultSampleTimeframe)
	rng := q.timeRange()
	limit := q.intDefault("limit", defaultOHLCLimit)
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}

	buckets, err := s.sample(sampleOptions(symbol, timeframe, rng, limit))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ohlcResponse{Symbol: symbol, Timeframe: timeframe, Data: buckets})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r.URL.Query())
	symbol := q.required("symbol")
	timeframe := q.str("timeframe")
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}

	sum, err := s.analytics.Summary(symbol, timeframe)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Symbol:      sum.Symbol,
		Timeframe:   sum.Timeframe,
		Count:       sum.Count,
		Mean:        model.Number(sum.Mean),
		Median:      model.Number(sum.Median),
		Std:         model.Number(sum.Std),
		Min:         model.Number(sum.Min),
		Max:         model.Number(sum.Max),
		TotalVolume: model.Number(sum.TotalVolume),
	})
}

func (s *Server) handleSpread(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r.URL.Query())
	req := analytics.SpreadRequest{
		PairRequest: pairRequest(q, defaultSampleTimeframe),
		HedgeRatio:  q.optionalFloat("hedgeRatio"),
		Limit:       q.intDefault("limit", defaultSeriesLimit),
	}
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}

	res, err := s.analytics.Spread(req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	data := make([]spreadPoint, len(res.Series))
	for i, p := range res.Series {
		data[i] = spreadPoint{T: model.FormatTime(p.T), Spread: model.Number(p.Spread)}
	}
	writeJSON(w, http.StatusOK, spreadResponse{
		Base:       res.Base,
		Quote:      res.Quote,
		HedgeRatio: model.Number(res.HedgeRatio),
		Data:       data,
		ZLatest:    model.Number(res.ZLatest),
	})
}

func (s *Server) handleZScore(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r.URL.Query())
	req := analytics.ZScoreRequest{
		PairRequest: pairRequest(q, defaultSampleTimeframe),
		Window:      q.intDefault("window", analytics.DefaultWindow),
		Limit:       q.intDefault("limit", defaultSeriesLimit),
	}
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}

	res, err := s.analytics.ZScore(req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	data := make([]zPoint, len(res.Series))
	for i, p := range res.Series {
		data[i] = zPoint{T: model.FormatTime(p.T), Z: model.Number(p.Z)}
	}
	writeJSON(w, http.StatusOK, zscoreResponse{
		Base:    res.Base,
		Quote:   res.Quote,
		Window:  res.Window,
		Data:    data,
		ZLatest: model.Number(res.ZLatest),
	})
}

func (s *Server) handleHedgeRatio(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r.URL.Query())
	req := pairRequest(q, defaultFitTimeframe)
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}

	res, err := s.analytics.HedgeRatio(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hedgeRatioResponse{
		Base:   res.Base,
		Quote:  res.Quote,
		Method: res.Method,
		Beta:   model.Number(res.Beta),
		Alpha:  model.Number(res.Alpha),
		R2:     model.Number(res.R2),
		N:      res.N,
	})
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r.URL.Query())
	req := analytics.CorrelationRequest{
		Symbols:   utils.SplitSymbols(q.required("symbols")),
		Timeframe: q.strDefault("timeframe", defaultFitTimeframe),
		Window:    q.intDefault("window", analytics.DefaultWindow),
		Range:     q.timeRange(),
	}
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}

	res, err := s.analytics.Correlation(req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	data := make([]corrPoint, len(res.Series))
	for i, p := range res.Series {
		data[i] = corrPoint{T: model.FormatTime(p.T), Corr: model.Number(p.Corr)}
	}
	writeJSON(w, http.StatusOK, correlationResponse{Symbols: res.Symbols, Window: res.Window, Data: data})
}

// pairRequest reads base, quote, timeframe, since and until.
func pairRequest(q *query, defaultTimeframe string) analytics.PairRequest {
	return analytics.PairRequest{
		Base:      q.required("base"),
		Quote:     q.required("quote"),
		Timeframe: q.strDefault("timeframe", defaultTimeframe),
		Range:     q.timeRange(),
	}
}

// sample returns the trailing opts.Limit buckets. A non-positive limit keeps none,
// after the timeframe is validated.
func (s *Server) sample(opts store.SampleOptions) ([]model.Bucket, error) {
	if opts.Limit > 0 {
		return s.ticks.Sample(opts)
	}
	if _, err := candles.ParseTimeframe(opts.Timeframe); err != nil {
		return nil, err
	}
	return []model.Bucket{}, nil
}

func sampleOptions(symbol, timeframe string, rng analytics.Range, limit int) store.SampleOptions {
	return store.SampleOptions{
		Symbol:    symbol,
		Timeframe: timeframe,
		Since:     rng.Since,
		Until:     rng.Until,
		Limit:     limit,
	}
}
