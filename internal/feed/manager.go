// Package feed manages one live exchange connection per subscribed symbol.
//
// The Manager owns the set of active symbols. Every tick a connection parses is handed
// to the Recorder, which is the only write path into the tick store. A connection that
// ends without being stopped is reconnected after a fixed delay; a stopped connection
// never is.
//
// Connection lifecycle:
//
//	connecting --dial ok--> active --unexpected close--> removed, retry scheduled
//	connecting --dial err--> removed, retry scheduled
//	connecting|active --Stop--> stopping --> terminated, removed, no retry
//	retry pending --Stop--> retry cancelled
//	retry pending --Start--> retry cancelled, connecting
package feed

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"tickstream/internal/metrics"
	"tickstream/internal/model"
	"tickstream/internal/utils"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultReconnectDelay is the pause between an unexpected disconnect and the redial.
const DefaultReconnectDelay = 3 * time.Second

// ErrManagerClosed is returned by Start after Close.
var ErrManagerClosed = errors.New("feed manager closed")

// Connection is one live exchange stream.
type Connection interface {
	// Done is closed when the connection ends for any reason.
	Done() <-chan struct{}

	// Terminate drops the connection immediately without a closing handshake.
	Terminate()
}

// Connector opens exchange streams.
type Connector interface {
	// Connect dials the trade stream for symbol. onTick is called for every parsed tick
	// until the connection ends.
	Connect(ctx context.Context, symbol string, onTick func(model.Tick)) (Connection, error)
}

// Recorder receives every parsed tick.
type Recorder interface {
	Record(tick model.Tick)
}

// Config holds configuration parameters for the Manager.
type Config struct {
	ReconnectDelay time.Duration // Delay before redialing after an unexpected close
}

type state int

const (
	stateConnecting state = iota
	stateActive
	stateStopping
)

func (s state) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateActive:
		return "active"
	case stateStopping:
		return "stopping"
	}
	return "unknown"
}

type entry struct {
	symbol string
	state  state
	conn   Connection
}

// retry is a pending reconnect. Its identity is compared under the manager lock so a
// timer that fires after being cancelled or replaced does nothing.
type retry struct {
	timer *time.Timer
}

// Manager opens, tracks and reconnects per-symbol feed connections.
type Manager struct {
	cfg       Config
	connector Connector
	recorder  Recorder

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]*entry
	retries map[string]*retry
	closed  bool

	wg     sync.WaitGroup
	logger zerolog.Logger
}

// NewManager creates a Manager that dials through connector and records into recorder.
func NewManager(cfg Config, connector Connector, recorder Recorder) *Manager {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:       cfg,
		connector: connector,
		recorder:  recorder,
		ctx:       ctx,
		cancel:    cancel,
		entries:   make(map[string]*entry),
		retries:   make(map[string]*retry),
		logger:    log.With().Str("component", "feed").Logger(),
	}
}

// Start opens a connection for symbol.
//
// The symbol is trimmed and lowercased; a blank symbol is rejected with
// utils.ErrInvalidSymbol. Starting a symbol that is already connecting or active does
// nothing. Starting a symbol with a pending reconnect cancels the timer and dials now.
func (m *Manager) Start(symbol string) error {
	sym, err := utils.NormalizeSymbol(symbol)
	if err != nil {
		m.logger.Warn().Str("symbol", symbol).Msg("ignoring start for blank symbol")
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	m.cancelRetryLocked(sym)
	if _, ok := m.entries[sym]; ok {
		m.logger.Debug().Str("symbol", sym).Msg("already connected")
		return nil
	}

	m.startLocked(sym)
	return nil
}

// Stop closes the connection for symbol and cancels any pending reconnect. The
// connection is terminated without a closing handshake and is never reconnected.
func (m *Manager) Stop(symbol string) {
	sym, err := utils.NormalizeSymbol(symbol)
	if err != nil {
		m.logger.Warn().Str("symbol", symbol).Msg("ignoring stop for blank symbol")
		return
	}

	m.mu.Lock()
	m.cancelRetryLocked(sym)
	e, ok := m.entries[sym]
	var (
		conn Connection
		prev state
	)
	if ok {
		prev = e.state
		e.state = stateStopping
		conn = e.conn
		delete(m.entries, sym)
	}
	m.mu.Unlock()

	if conn != nil {
		conn.Terminate()
	}
	if ok {
		m.logger.Info().Str("symbol", sym).Stringer("from", prev).Msg("feed stopped")
	}
}

// Active returns the symbols with a connecting or open connection, sorted.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.entries))
	for sym := range m.entries {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Close stops every connection and pending reconnect and waits for the connection
// goroutines to exit. Start fails afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true

	for sym := range m.retries {
		m.cancelRetryLocked(sym)
	}
	conns := make([]Connection, 0, len(m.entries))
	for sym, e := range m.entries {
		e.state = stateStopping
		if e.conn != nil {
			conns = append(conns, e.conn)
		}
		delete(m.entries, sym)
	}
	m.mu.Unlock()

	m.cancel()
	for _, c := range conns {
		c.Terminate()
	}
	m.wg.Wait()

	m.logger.Info().Msg("feed manager closed")
}

// startLocked registers a connecting entry and dials in the background.
func (m *Manager) startLocked(sym string) {
	e := &entry{symbol: sym, state: stateConnecting}
	m.entries[sym] = e

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(e)
	}()
}

// run dials the connection for e and watches it until it ends.
func (m *Manager) run(e *entry) {
	logger := m.logger.With().Str("symbol", e.symbol).Logger()

	conn, err := m.connector.Connect(m.ctx, e.symbol, m.record)

	m.mu.Lock()
	if e.state == stateStopping {
		m.mu.Unlock()
		if conn != nil {
			conn.Terminate()
		}
		return
	}
	if err != nil {
		logger.Error().Err(err).Dur("retryIn", m.cfg.ReconnectDelay).Msg("feed connect failed")
		delete(m.entries, e.symbol)
		m.scheduleRetryLocked(e.symbol)
		m.mu.Unlock()
		return
	}
	e.conn = conn
	e.state = stateActive
	m.mu.Unlock()

	metrics.FeedActiveConnections.Inc()
	logger.Info().Msg("feed connected")

	<-conn.Done()
	metrics.FeedActiveConnections.Dec()

	m.mu.Lock()
	defer m.mu.Unlock()

	if e.state == stateStopping {
		return
	}
	logger.Warn().Dur("retryIn", m.cfg.ReconnectDelay).Msg("feed disconnected unexpectedly")
	if m.entries[e.symbol] == e {
		delete(m.entries, e.symbol)
	}
	m.scheduleRetryLocked(e.symbol)
}

func (m *Manager) record(tick model.Tick) {
	metrics.TicksTotal.WithLabelValues(tick.Symbol).Inc()
	m.recorder.Record(tick)
}

func (m *Manager) scheduleRetryLocked(sym string) {
	if m.closed {
		return
	}
	m.cancelRetryLocked(sym)
	metrics.FeedReconnectsTotal.WithLabelValues(sym).Inc()

	r := &retry{}
	m.retries[sym] = r
	r.timer = time.AfterFunc(m.cfg.ReconnectDelay, func() {
		m.fireRetry(sym, r)
	})
}

func (m *Manager) cancelRetryLocked(sym string) {
	if r, ok := m.retries[sym]; ok {
		r.timer.Stop()
		delete(m.retries, sym)
	}
}

func (m *Manager) fireRetry(sym string, r *retry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.retries[sym] != r {
		return
	}
	delete(m.retries, sym)
	if _, ok := m.entries[sym]; ok {
		return
	}

	m.logger.Info().Str("symbol", sym).Msg("reconnecting feed")
	m.startLocked(sym)
}
