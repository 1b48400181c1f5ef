// Package exchange provides the exchange connector that feeds the tick store.
//
// The Binance connector opens one futures trade stream per symbol
// (<base>/ws/<symbol>@trade), decodes each frame with go-json, validates it with
// struct tags and parses price and quantity as exact decimals before handing a
// model.Tick to the caller. Frames that fail any step are dropped and counted.
package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tickstream/internal/feed"
	"tickstream/internal/metrics"
	"tickstream/internal/model"
	"tickstream/internal/utils"
	"tickstream/internal/websocket"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	// defaultBinanceConfig points at the Binance USD-M futures stream host.
	defaultBinanceConfig = ExchangeConfig{
		BaseURL:    "wss://fstream.binance.com",
		PingPeriod: 15 * time.Second,
	}
)

// BinanceConnector dials Binance trade streams. It implements feed.Connector.
type BinanceConnector struct {
	config   ExchangeConfig      // Configuration parameters for the connector
	validate *validator.Validate // Validator instance for message validation
	logger   zerolog.Logger
}

var _ feed.Connector = (*BinanceConnector)(nil)

// trade is the Binance trade event.
//
// Example:
//
//	{"e":"trade","E":1672515782136,"T":1672515782134,"s":"BTCUSDT","t":12345,"p":"16500.10","q":"0.003"}
//
// Keys are matched case-insensitively when no exact tag exists, so "E" and "t" need
// their own fields to stay out of Event and Time.
type trade struct {
	Event     string `json:"e" validate:"omitempty,eq=trade"` // Event type
	EventTime int64  `json:"E"`                               // Event time in Unix milliseconds
	Symbol    string `json:"s" validate:"required"`           // Trading symbol (e.g., "BTCUSDT")
	TradeID   int64  `json:"t"`                               // Trade ID
	Price     string `json:"p" validate:"required,numeric"`   // Trade price as string
	Quantity  string `json:"q" validate:"required,numeric"`   // Trade quantity as string
	Time      int64  `json:"T" validate:"required,gt=0"`      // Trade time in Unix milliseconds
}

// NewBinanceConnector creates a connector. A nil cfg uses the defaults.
func NewBinanceConnector(cfg *ExchangeConfig) (*BinanceConnector, error) {
	c := defaultBinanceConfig
	if cfg != nil {
		c = *cfg
	}

	if err := validateConfig(&c, &defaultBinanceConfig); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &BinanceConnector{
		config:   c,
		validate: validator.New(),
		logger:   log.With().Str("component", "binance").Logger(),
	}, nil
}

// Connect dials the trade stream for symbol and calls onTick for every parsed trade
// until the returned connection ends.
func (bc *BinanceConnector) Connect(ctx context.Context, symbol string, onTick func(model.Tick)) (feed.Connection, error) {
	sym, err := utils.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if onTick == nil {
		return nil, fmt.Errorf("%w: nil tick callback", utils.ErrInvalidArgument)
	}

	client, err := websocket.NewWebsocketClient(ctx, websocket.Config{
		Endpoint:        bc.buildStreamURL(sym),
		TLSInsecureSkip: bc.config.TLSInsecureSkip,
		PingPeriod:      bc.config.PingPeriod,
		Handler: func(raw []byte) error {
			tick, err := bc.parseTrade(raw)
			if err != nil {
				metrics.FeedDroppedMessagesTotal.WithLabelValues(sym).Inc()
				return err
			}
			onTick(tick)
			return nil
		},
	})
	if err != nil {
		bc.logger.Error().Err(err).Str("symbol", sym).Msg("failed to create Binance WebSocket client")
		return nil, err
	}

	return client, nil
}

// buildStreamURL returns the single-stream URL for an already normalized symbol.
func (bc *BinanceConnector) buildStreamURL(symbol string) string {
	return fmt.Sprintf("%s/ws/%s@trade", strings.TrimRight(bc.config.BaseURL, "/"), symbol)
}

// parseTrade converts one raw frame into a tick.
func (bc *BinanceConnector) parseTrade(raw []byte) (model.Tick, error) {
	var t trade
	if err := json.Unmarshal(raw, &t); err != nil {
		return model.Tick{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	if err := bc.validate.Struct(&t); err != nil {
		return model.Tick{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	price, err := decimal.NewFromString(t.Price)
	if err != nil {
		return model.Tick{}, fmt.Errorf("%w: price: %v", ErrInvalidMessage, err)
	}

	quantity, err := decimal.NewFromString(t.Quantity)
	if err != nil {
		return model.Tick{}, fmt.Errorf("%w: quantity: %v", ErrInvalidMessage, err)
	}

	return model.Tick{
		Symbol:    strings.ToLower(t.Symbol),
		Price:     price.InexactFloat64(),
		Size:      quantity.InexactFloat64(),
		Timestamp: time.UnixMilli(t.Time).UTC(),
	}, nil
}
