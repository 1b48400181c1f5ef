// Package mirror copies every live tick onto a Kafka topic.
//
// The Mirror is one more dispatcher subscriber: it drains its channel in small batches
// and writes each tick as JSON keyed by symbol. Delivery is best effort; write errors
// are logged and the batch is dropped.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tickstream/internal/model"
	"tickstream/internal/service"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const (
	// DefaultBatchSize bounds how many ticks go into one WriteMessages call.
	DefaultBatchSize = 100

	// DefaultWriteTimeout bounds one WriteMessages call.
	DefaultWriteTimeout = 5 * time.Second
)

// ErrNoBrokers is returned by NewKafkaWriter when no broker is configured.
var ErrNoBrokers = errors.New("no kafka brokers configured")

// MessageWriter is the subset of *kafka.Writer the mirror uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds configuration parameters for the Mirror.
type Config struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	WriteTimeout time.Duration
}

// NewKafkaWriter creates a writer that hashes on the message key so every tick of a
// symbol lands on the same partition.
func NewKafkaWriter(cfg Config) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}, nil
}

// Mirror forwards dispatcher ticks to a MessageWriter.
type Mirror struct {
	cfg    Config
	subs   service.SubscriptionManager
	writer MessageWriter
	logger zerolog.Logger
}

// New creates a Mirror that subscribes through subs and writes through writer.
func New(cfg Config, subs service.SubscriptionManager, writer MessageWriter) *Mirror {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	return &Mirror{
		cfg:    cfg,
		subs:   subs,
		writer: writer,
		logger: log.With().Str("component", "mirror").Str("topic", cfg.Topic).Logger(),
	}
}

// Run mirrors ticks until ctx is done or the dispatcher closes, then closes the writer.
func (m *Mirror) Run(ctx context.Context) error {
	sub, err := m.subs.Subscribe("")
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer func() {
		if err := m.subs.Unsubscribe(sub); err != nil {
			m.logger.Warn().Err(err).Msg("failed to unsubscribe")
		}
		if err := m.writer.Close(); err != nil {
			m.logger.Warn().Err(err).Msg("failed to close writer")
		}
	}()

	m.logger.Info().Str("subscriberID", sub.ID()).Msg("mirror started")

	batch := make([]kafka.Message, 0, m.cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("mirror stopped")
			return nil
		case tick, ok := <-sub.C():
			if !ok {
				m.logger.Info().Msg("dispatcher closed, mirror stopped")
				return nil
			}

			batch = m.appendTick(batch[:0], tick)
		drain:
			for len(batch) < m.cfg.BatchSize {
				select {
				case next, ok := <-sub.C():
					if !ok {
						break drain
					}
					batch = m.appendTick(batch, next)
				default:
					break drain
				}
			}

			m.write(ctx, batch)
		}
	}
}

func (m *Mirror) appendTick(batch []kafka.Message, tick model.Tick) []kafka.Message {
	msg, err := encode(tick)
	if err != nil {
		m.logger.Warn().Err(err).Str("symbol", tick.Symbol).Msg("failed to encode tick")
		return batch
	}
	return append(batch, msg)
}

func (m *Mirror) write(ctx context.Context, batch []kafka.Message) {
	if len(batch) == 0 {
		return
	}

	wctx, cancel := context.WithTimeout(ctx, m.cfg.WriteTimeout)
	defer cancel()

	if err := m.writer.WriteMessages(wctx, batch...); err != nil {
		m.logger.Error().Err(err).Int("messages", len(batch)).Msg("failed to publish ticks")
	}
}

func encode(tick model.Tick) (kafka.Message, error) {
	value, err := json.Marshal(tick)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(tick.Symbol),
		Value: value,
		Time:  tick.Timestamp,
	}, nil
}
