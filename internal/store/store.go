// Package store holds the bounded, in-memory history of recent ticks.
//
// A Store is the single source of truth for "recent history": the feed
// ingestion path writes to it through Record and every query, sample and
// analytics request reads a consistent snapshot of it.
//
// Thread Safety:
//   - Record serializes writers under an exclusive lock; the ring write, the
//     latest-tick update and the fan-out publish form one atomic step
//   - Readers copy a chronological snapshot under a shared lock and do all
//     filtering and aggregation outside it
package store

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"tickstream/internal/candles"
	"tickstream/internal/model"
)

const (
	// DefaultCapacity is the number of ticks retained across all symbols.
	DefaultCapacity = 100_000

	// DefaultQueryLimit is the number of ticks a history query returns by default.
	DefaultQueryLimit = 1000

	// DefaultSampleLimit is the number of buckets a sample returns by default.
	DefaultSampleLimit = 500

	// sampleCeiling bounds the ticks fed to the aggregation engine per sample.
	sampleCeiling = 100_000
)

// ErrInvalidCapacity is returned by New for a non-positive capacity.
var ErrInvalidCapacity = errors.New("store capacity must be positive")

// Publisher receives every recorded tick. It is called while the store's
// write lock is held and must not block.
type Publisher interface {
	Publish(tick model.Tick)
}

// QueryOptions filters and orders a history query.
//
// A zero Since or Until leaves that bound open. Limit <= 0 returns every
// matching tick.
type QueryOptions struct {
	Symbol  string
	Since   time.Time
	Until   time.Time
	Limit   int
	Reverse bool
}

// DefaultQueryOptions returns the newest-first query with the default limit.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{Limit: DefaultQueryLimit, Reverse: true}
}

// SampleOptions selects the ticks and timeframe for OHLCV sampling.
type SampleOptions struct {
	Symbol    string
	Timeframe string
	Since     time.Time
	Until     time.Time
	Limit     int
}

// DefaultSampleOptions returns 1s buckets with the default bucket limit.
func DefaultSampleOptions() SampleOptions {
	return SampleOptions{Timeframe: candles.Timeframe1s.Name, Limit: DefaultSampleLimit}
}

// Store is a fixed-capacity ring of ticks shared by all symbols.
type Store struct {
	mu        sync.RWMutex
	ring      *ring
	latest    model.Tick
	hasLatest bool
	publisher Publisher
}

// New creates a store retaining up to capacity ticks. publisher may be nil.
func New(capacity int, publisher Publisher) (*Store, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Store{
		ring:      newRing(capacity),
		publisher: publisher,
	}, nil
}

// Record stores tick as the newest entry and publishes it.
//
// The symbol is lowercased. Price and size are stored as given, including
// non-finite values; readers filter those where it matters.
func (s *Store) Record(tick model.Tick) {
	tick.Symbol = strings.ToLower(tick.Symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = tick
	s.hasLatest = true
	s.ring.push(tick)

	if s.publisher != nil {
		s.publisher.Publish(tick)
	}
}

// Latest returns the most recently recorded tick.
func (s *Store) Latest() (model.Tick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.hasLatest
}

// Len returns the number of ticks currently retained.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.len()
}

// Capacity returns the maximum number of retained ticks.
func (s *Store) Capacity() int {
	return len(s.ring.buf)
}

// Query returns the retained ticks matching opts.
//
// Matching ticks are sorted ascending by timestamp (stable, so equal
// timestamps keep arrival order), reversed when opts.Reverse is set, then
// truncated to the first opts.Limit entries.
func (s *Store) Query(opts QueryOptions) []model.Tick {
	s.mu.RLock()
	snapshot := s.ring.snapshot()
	s.mu.RUnlock()

	symbol := strings.ToLower(strings.TrimSpace(opts.Symbol))
	out := snapshot[:0]
	for _, t := range snapshot {
		if symbol != "" && t.Symbol != symbol {
			continue
		}
		if !opts.Since.IsZero() && t.Timestamp.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && t.Timestamp.After(opts.Until) {
			continue
		}
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	if opts.Reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// Sample aggregates the matching ticks into OHLCV buckets and returns the
// most recent opts.Limit of them, ascending.
//
// The timeframe is validated before any tick is read.
func (s *Store) Sample(opts SampleOptions) ([]model.Bucket, error) {
	tf, err := candles.ParseTimeframe(opts.Timeframe)
	if err != nil {
		return nil, err
	}

	ticks := s.Query(QueryOptions{
		Symbol: opts.Symbol,
		Since:  opts.Since,
		Until:  opts.Until,
		Limit:  sampleCeiling,
	})

	return candles.Bucketize(ticks, tf, opts.Limit), nil
}
