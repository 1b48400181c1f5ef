// Package api serves the HTTP interface: tick history and sampling, live tick streams
// over SSE and WebSocket, pair analytics, CSV export and symbol control.
package api

import (
	"context"
	"net/http"
	"time"

	"tickstream/internal/analytics"
	"tickstream/internal/metrics"
	"tickstream/internal/model"
	"tickstream/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// Banner is the body of GET /.
const Banner = "tickstream is running"

// TickReader is the read side of the tick store.
type TickReader interface {
	Latest() (model.Tick, bool)
	Query(opts store.QueryOptions) []model.Tick
	Sample(opts store.SampleOptions) ([]model.Bucket, error)
}

// Analytics computes derived series.
type Analytics interface {
	Summary(symbol, timeframe string) (analytics.Summary, error)
	Spread(req analytics.SpreadRequest) (analytics.SpreadResult, error)
	ZScore(req analytics.ZScoreRequest) (analytics.ZScoreResult, error)
	HedgeRatio(req analytics.PairRequest) (analytics.HedgeRatioResult, error)
	Correlation(req analytics.CorrelationRequest) (analytics.CorrelationResult, error)
}

// TickStreamer controls feed symbols and streams live ticks.
type TickStreamer interface {
	AddSymbol(symbol string) (string, error)
	RemoveSymbol(symbol string) (string, error)
	Symbols() []string
	Stream(ctx context.Context, symbol string, onConnected func() error, send func(model.Tick) error) error
}

// Config holds configuration parameters for the Server.
type Config struct {
	CORSOrigins  []string      // Allowed browser origins
	WriteTimeout time.Duration // Deadline for one WebSocket frame write
}

// Server routes HTTP requests to the store, analytics engine and tick service.
type Server struct {
	cfg       Config
	ticks     TickReader
	analytics Analytics
	streamer  TickStreamer
	validate  *validator.Validate
	upgrader  websocket.Upgrader
	logger    zerolog.Logger
}

// NewServer creates a Server.
func NewServer(cfg Config, ticks TickReader, engine Analytics, streamer TickStreamer) *Server {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Server{
		cfg:       cfg,
		ticks:     ticks,
		analytics: engine,
		streamer:  streamer,
		validate:  validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: log.With().Str("component", "api").Logger(),
	}
}

// Handler returns the routed handler wrapped in access logging and CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /tick/latest", s.handleLatest)
	mux.HandleFunc("GET /tick/history", s.handleHistory)
	mux.HandleFunc("GET /tick/sample", s.handleSample)
	mux.HandleFunc("GET /tick/stream", s.handleSSE)
	mux.HandleFunc("GET /tick/ws", s.handleWebsocket)

	mux.HandleFunc("GET /analytics/ohlc", s.handleOHLC)
	mux.HandleFunc("GET /analytics/stats", s.handleStats)
	mux.HandleFunc("GET /analytics/spread", s.handleSpread)
	mux.HandleFunc("GET /analytics/zscore", s.handleZScore)
	mux.HandleFunc("GET /analytics/hedge-ratio", s.handleHedgeRatio)
	mux.HandleFunc("GET /analytics/correlation", s.handleCorrelation)

	mux.HandleFunc("GET /exports/ticks", s.handleExport)

	mux.HandleFunc("POST /symbols/subscribe", s.handleSubscribe)
	mux.HandleFunc("POST /symbols/unsubscribe", s.handleUnsubscribe)
	mux.HandleFunc("GET /symbols", s.handleSymbols)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowCredentials: true,
	})

	var h http.Handler = mux
	h = c.Handler(h)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	})(h)
	h = hlog.NewHandler(s.logger)(h)
	return h
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, Banner)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "OK")
}
