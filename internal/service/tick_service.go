// Package service provides core business logic components for the tick streaming service.
//
// The TickService acts as the orchestrator between the feed connection manager, which
// owns the set of live exchange subscriptions, and the dispatcher, which pushes recorded
// ticks to streaming clients. Transports (SSE, websocket) call Stream and supply their
// own framing.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"tickstream/internal/model"
	"tickstream/internal/utils"

	"github.com/rs/zerolog/log"
)

// ErrNotStarted is returned by operations that need a running service.
var ErrNotStarted = errors.New("tick service not started")

// FeedController manages the exchange connections that feed the tick store.
type FeedController interface {
	// Start opens a feed connection for symbol. Starting an active symbol is a no-op.
	Start(symbol string) error

	// Stop closes the feed connection for symbol without reconnecting.
	Stop(symbol string)

	// Active lists the symbols with an open connection.
	Active() []string

	// Close stops every connection and pending reconnect.
	Close()
}

// SubscriptionManager defines the interface for managing client subscriptions
// and distributing ticks to multiple subscribers.
type SubscriptionManager interface {
	// Subscribe creates a new subscription for symbol, or every symbol when blank.
	Subscribe(symbol string) (*Subscriber, error)

	// Unsubscribe removes a subscriber and cleans up associated resources.
	Unsubscribe(sub *Subscriber) error
}

// TickService coordinates the feed and the live fan-out.
//
// The service coordinates between:
//   - FeedController: Opens and closes per-symbol exchange connections
//   - SubscriptionManager: Manages client subscriptions and distribution
//   - Streaming transports: Receive ticks through Stream
type TickService struct {
	subscriptionManager SubscriptionManager // Handles client subscription lifecycle
	feed                FeedController      // Owns exchange connections
	started             atomic.Bool         // Atomic flag tracking service state
}

// NewTickService creates a new TickService instance with the provided dependencies.
//
// The service is created in a stopped state and must be started with the Start method
// before it can accept streaming clients.
func NewTickService(manager SubscriptionManager, feed FeedController) *TickService {
	return &TickService{
		subscriptionManager: manager,
		feed:                feed,
	}
}

// Start opens a feed connection for each of symbols and marks the service running.
//
// A symbol that fails to start is logged and reported in the returned error; the
// others still start. The service stops itself when ctx is cancelled.
func (ts *TickService) Start(ctx context.Context, symbols []string) error {
	if !ts.started.CompareAndSwap(false, true) {
		return errors.New("tick service has already started")
	}

	var errs []error
	for _, symbol := range symbols {
		if err := ts.feed.Start(symbol); err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("failed to start feed")
			errs = append(errs, fmt.Errorf("start %q: %w", symbol, err))
		}
	}

	go func() {
		<-ctx.Done()
		_ = ts.Stop()
	}()

	log.Info().Strs("symbols", ts.feed.Active()).Msg("TickService started")
	return errors.Join(errs...)
}

// Stop closes every feed connection.
func (ts *TickService) Stop() error {
	if !ts.started.CompareAndSwap(true, false) {
		return errors.New("service not started")
	}

	ts.feed.Close()

	log.Info().Msg("TickService stopped")
	return nil
}

// AddSymbol opens a feed connection for symbol and returns the normalized symbol.
func (ts *TickService) AddSymbol(symbol string) (string, error) {
	sym, err := utils.NormalizeSymbol(symbol)
	if err != nil {
		return "", err
	}
	if err := ts.feed.Start(sym); err != nil {
		return "", fmt.Errorf("start feed %s: %w", sym, err)
	}
	return sym, nil
}

// RemoveSymbol closes the feed connection for symbol and returns the normalized symbol.
func (ts *TickService) RemoveSymbol(symbol string) (string, error) {
	sym, err := utils.NormalizeSymbol(symbol)
	if err != nil {
		return "", err
	}
	ts.feed.Stop(sym)
	return sym, nil
}

// Symbols lists the symbols with an open feed connection.
func (ts *TickService) Symbols() []string {
	return ts.feed.Active()
}

// Stream delivers live ticks for symbol (every symbol when blank) to send until ctx is
// cancelled, the subscription is closed, or send fails.
//
// onConnected runs once the subscription is registered, before any tick is sent, so a
// transport can emit its handshake. The subscription is always removed on return.
func (ts *TickService) Stream(ctx context.Context, symbol string, onConnected func() error, send func(model.Tick) error) error {
	if !ts.started.Load() {
		return ErrNotStarted
	}

	sub, err := ts.subscriptionManager.Subscribe(symbol)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	// Ensure cleanup on method exit
	defer func() {
		if err := ts.subscriptionManager.Unsubscribe(sub); err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("failed to unsubscribe")
		}
	}()

	log.Info().Str("subscriber", sub.ID()).Str("symbol", sub.Symbol()).Msg("new stream client")

	if onConnected != nil {
		if err := onConnected(); err != nil {
			return fmt.Errorf("failed to send handshake: %w", err)
		}
	}

	// Stream ticks until client disconnects or error occurs
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("subscriber", sub.ID()).Msg("stream client disconnected")
			return nil
		case tick, ok := <-sub.C():
			if !ok {
				log.Info().Str("subscriber", sub.ID()).Msg("subscription channel closed")
				return nil
			}

			if err := send(tick); err != nil {
				log.Error().Err(err).Str("subscriber", sub.ID()).Msg("failed to send tick to client")
				return fmt.Errorf("failed to send tick: %w", err)
			}
		}
	}
}
