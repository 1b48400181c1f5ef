package api

import (
	"net/http"

	"tickstream/internal/export"
	"tickstream/internal/model"
	"tickstream/internal/store"
	"tickstream/internal/utils"

	"github.com/rs/zerolog/hlog"
)

// exportLimit caps the ticks written by one CSV export.
const exportLimit = 100_000

type historyMeta struct {
	Count int `json:"count"`
}

type historyResponse struct {
	Meta historyMeta  `json:"meta"`
	Data []model.Tick `json:"data"`
}

type sampleMeta struct {
	Timeframe string  `json:"timeframe"`
	Symbol    *string `json:"symbol"`
	Buckets   int     `json:"buckets"`
}

type sampleResponse struct {
	Meta sampleMeta     `json:"meta"`
	Data []model.Bucket `json:"data"`
}

func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	tick, ok := s.ticks.Latest()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, tick)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r.URL.Query())
	opts := store.DefaultQueryOptions()
	opts.Symbol = q.str("symbol")
	opts.Since = q.timestamp("since")
	opts.Until = q.timestamp("until")
	opts.Limit = q.intDefault("limit", opts.Limit)
	opts.Reverse = q.boolDefault("reverse", opts.Reverse)
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}

	ticks := s.ticks.Query(opts)
	writeJSON(w, http.StatusOK, historyResponse{
		Meta: historyMeta{Count: len(ticks)},
		Data: ticks,
	})
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r.URL.Query())
	opts := store.DefaultSampleOptions()
	opts.Symbol = q.str("symbol")
	opts.Timeframe = q.strDefault("timeframe", opts.Timeframe)
	opts.Since = q.timestamp("since")
	opts.Until = q.timestamp("until")
	opts.Limit = q.intDefault("limit", opts.Limit)
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}

	buckets, err := s.sample(opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var symbol *string
	if opts.Symbol != "" {
		symbol = &opts.Symbol
	}
	writeJSON(w, http.StatusOK, sampleResponse{
		Meta: sampleMeta{Timeframe: opts.Timeframe, Symbol: symbol, Buckets: len(buckets)},
		Data: buckets,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r.URL.Query())
	symbol := utils.NormalizeFilter(q.str("symbol"))
	opts := store.QueryOptions{
		Symbol: symbol,
		Since:  q.timestamp("since"),
		Until:  q.timestamp("until"),
		Limit:  exportLimit,
	}
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}

	ticks := s.ticks.Query(opts)
	if len(ticks) == 0 {
		writeError(w, r, export.ErrNoData)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+export.Filename(symbol))
	w.WriteHeader(http.StatusOK)
	if err := export.WriteTicks(w, ticks); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Int("ticks", len(ticks)).Msg("csv export interrupted")
	}
}
