// Package service provides core business logic components for the tick streaming service.
//
// The dispatcher component implements a fan-out message distribution system that delivers
// every newly recorded tick to live subscribers while handling slow clients gracefully.
package service

import (
	"errors"
	"sync"

	"tickstream/internal/metrics"
	"tickstream/internal/model"
	"tickstream/internal/utils"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 256

// ErrDispatcherClosed is returned by Subscribe after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Subscriber represents a live tick subscription.
//
// Each subscriber owns a bounded channel that the dispatcher writes to and an optional
// symbol filter. The channel is closed when the subscriber is removed.
type Subscriber struct {
	id     uuid.UUID       // Unique identifier for the subscriber
	symbol string          // Lowercase symbol filter; empty receives every tick
	ch     chan model.Tick // Buffered channel for tick delivery
}

// ID returns the subscriber's unique identifier.
func (s *Subscriber) ID() string {
	return s.id.String()
}

// Symbol returns the subscriber's symbol filter, or "" for all symbols.
func (s *Subscriber) Symbol() string {
	return s.symbol
}

// C returns the channel ticks are delivered on. It is closed on unsubscribe.
func (s *Subscriber) C() <-chan model.Tick {
	return s.ch
}

func (s *Subscriber) wants(symbol string) bool {
	return s.symbol == "" || s.symbol == symbol
}

// DispatcherConfig holds configuration parameters for the Dispatcher.
type DispatcherConfig struct {
	BufferSize int // Per-subscriber channel capacity
}

// Dispatcher implements a fan-out message distribution system for ticks.
//
// The subscriber registry is guarded by a read/write lock: Publish holds the read lock
// and never blocks, while Subscribe, Unsubscribe and Close take the write lock. Closing
// a subscriber channel under the write lock guarantees no send races with the close.
type Dispatcher struct {
	cfg         DispatcherConfig
	mu          sync.RWMutex
	subscribers map[uuid.UUID]*Subscriber
	closed      bool
}

// NewDispatcher creates a new Dispatcher instance with the provided configuration.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	return &Dispatcher{
		cfg:         cfg,
		subscribers: make(map[uuid.UUID]*Subscriber),
	}
}

// Subscribe registers a new subscriber for symbol, or for every symbol when symbol is blank.
//
// Only ticks published after Subscribe returns are delivered.
func (d *Dispatcher) Subscribe(symbol string) (*Subscriber, error) {
	sub := &Subscriber{
		id:     uuid.Must(uuid.NewV4()),
		symbol: utils.NormalizeFilter(symbol),
		ch:     make(chan model.Tick, d.cfg.BufferSize),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDispatcherClosed
	}
	d.subscribers[sub.id] = sub
	metrics.FanoutSubscribers.Set(float64(len(d.subscribers)))

	log.Debug().Str("subscriber", sub.ID()).Str("symbol", sub.symbol).Msg("subscriber added")
	return sub, nil
}

// Unsubscribe removes a subscriber and closes its channel. Removing an unknown or already
// removed subscriber is a no-op.
func (d *Dispatcher) Unsubscribe(sub *Subscriber) error {
	if sub == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.subscribers[sub.id]; ok {
		delete(d.subscribers, sub.id)
		close(sub.ch)
		metrics.FanoutSubscribers.Set(float64(len(d.subscribers)))
		log.Debug().Str("subscriber", sub.ID()).Msg("subscriber removed")
	}
	return nil
}

// Publish delivers tick to every interested subscriber.
//
// Behavior for slow clients:
//   - If a subscriber channel is full, the new tick is dropped for that subscriber only
//   - Other subscribers and the caller are never blocked
func (d *Dispatcher) Publish(tick model.Tick) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, sub := range d.subscribers {
		if !sub.wants(tick.Symbol) {
			continue
		}
		select {
		case sub.ch <- tick:
		default:
			metrics.FanoutDroppedTotal.Inc()
			log.Debug().Str("subscriber", sub.ID()).Str("symbol", tick.Symbol).Msg("subscriber is too slow, dropping tick")
		}
	}
}

// Len returns the number of live subscribers.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

// Close removes every subscriber, closing their channels, and rejects new subscriptions.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	for id, sub := range d.subscribers {
		close(sub.ch)
		delete(d.subscribers, id)
	}
	metrics.FanoutSubscribers.Set(0)
	log.Info().Msg("dispatcher stopped")
}
