package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tickstream/internal/model"
	"tickstream/internal/utils"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createValidConfig creates a valid test configuration
func createValidConfig() *ExchangeConfig {
	return &ExchangeConfig{
		BaseURL:    "wss://fstream.binance.com",
		PingPeriod: time.Second,
	}
}

// createTestTradeMessage creates a realistic Binance trade message for testing
func createTestTradeMessage(symbol, price, quantity string, timestamp int64) []byte {
	return []byte(fmt.Sprintf(
		`{"e":"trade","E":%d,"T":%d,"s":%q,"t":12345,"p":%q,"q":%q}`,
		timestamp+2, timestamp, symbol, price, quantity,
	))
}

// createTestTradeMessageWithMissingField creates a test message with a specific field missing
func createTestTradeMessageWithMissingField(missingField string) []byte {
	fields := map[string]string{
		"e": `"e":"trade"`,
		"s": `"s":"BTCUSDT"`,
		"p": `"p":"50000"`,
		"q": `"q":"0.001"`,
		"T": `"T":1640995200000`,
	}
	delete(fields, missingField)

	parts := make([]string, 0, len(fields))
	for _, k := range []string{"e", "s", "p", "q", "T"} {
		if f, ok := fields[k]; ok {
			parts = append(parts, f)
		}
	}
	return []byte("{" + strings.Join(parts, ",") + "}")
}

// Test_NewBinanceConnector tests the connector constructor with various configurations
func Test_NewBinanceConnector(t *testing.T) {
	tests := []struct {
		name        string
		config      *ExchangeConfig
		expectError bool
		expectedURL string
		description string
	}{
		{
			name:        "Valid configuration",
			config:      createValidConfig(),
			expectedURL: "wss://fstream.binance.com",
			description: "Should create connector with valid configuration",
		},
		{
			name:        "Nil configuration uses defaults",
			config:      nil,
			expectedURL: defaultBinanceConfig.BaseURL,
			description: "Should use default configuration when nil is provided",
		},
		{
			name:        "Empty BaseURL",
			config:      &ExchangeConfig{},
			expectedURL: defaultBinanceConfig.BaseURL,
			description: "Should use default BaseURL",
		},
		{
			name:        "Plain ws scheme",
			config:      &ExchangeConfig{BaseURL: "ws://127.0.0.1:9000"},
			expectedURL: "ws://127.0.0.1:9000",
			description: "Should accept an unencrypted test endpoint",
		},
		{
			name:        "HTTP scheme",
			config:      &ExchangeConfig{BaseURL: "https://fapi.binance.com"},
			expectError: true,
			description: "Should reject a non-websocket scheme",
		},
		{
			name:        "Missing host",
			config:      &ExchangeConfig{BaseURL: "wss://"},
			expectError: true,
			description: "Should reject a URL without a host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connector, err := NewBinanceConnector(tt.config)

			if tt.expectError {
				require.Error(t, err, tt.description)
				assert.True(t, errors.Is(err, ErrInvalidConfig), "Should wrap ErrInvalidConfig")
				assert.Nil(t, connector, "Should not return connector on error")
				return
			}

			require.NoError(t, err, tt.description)
			require.NotNil(t, connector)
			assert.NotNil(t, connector.validate, "Should have validator")
			assert.Equal(t, tt.expectedURL, connector.config.BaseURL)
			assert.Positive(t, connector.config.PingPeriod, "Should always have a ping period")
		})
	}
}

// Test_buildStreamURL tests per-symbol stream URL construction
func Test_buildStreamURL(t *testing.T) {
	tests := []struct {
		name        string
		baseURL     string
		symbol      string
		expectedURL string
	}{
		{
			name:        "Futures host",
			baseURL:     "wss://fstream.binance.com",
			symbol:      "btcusdt",
			expectedURL: "wss://fstream.binance.com/ws/btcusdt@trade",
		},
		{
			name:        "Trailing slash",
			baseURL:     "wss://fstream.binance.com/",
			symbol:      "ethusdt",
			expectedURL: "wss://fstream.binance.com/ws/ethusdt@trade",
		},
		{
			name:        "Local test server",
			baseURL:     "ws://127.0.0.1:8080",
			symbol:      "solusdt",
			expectedURL: "ws://127.0.0.1:8080/ws/solusdt@trade",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connector, err := NewBinanceConnector(&ExchangeConfig{BaseURL: tt.baseURL})
			require.NoError(t, err)
			assert.Equal(t, tt.expectedURL, connector.buildStreamURL(tt.symbol))
		})
	}
}

// TestBinance_parseTrade tests trade message parsing and validation
func TestBinance_parseTrade(t *testing.T) {
	connector, err := NewBinanceConnector(createValidConfig())
	require.NoError(t, err)

	tests := []struct {
		name         string
		message      []byte
		expectError  bool
		expectedTick model.Tick
		description  string
	}{
		{
			name:    "Valid trade message",
			message: createTestTradeMessage("BTCUSDT", "50000.12", "0.001", 1640995200000),
			expectedTick: model.Tick{
				Symbol:    "btcusdt",
				Price:     50000.12,
				Size:      0.001,
				Timestamp: time.UnixMilli(1640995200000).UTC(),
			},
			description: "Should parse valid trade message correctly",
		},
		{
			name:    "Large values",
			message: createTestTradeMessage("ETHUSDT", "100000.00", "1000.5", 1640995400000),
			expectedTick: model.Tick{
				Symbol:    "ethusdt",
				Price:     100000,
				Size:      1000.5,
				Timestamp: time.UnixMilli(1640995400000).UTC(),
			},
			description: "Should handle large price and quantity values",
		},
		{
			name:    "Full futures frame",
			message: []byte(`{"e":"trade","E":1672515782136,"T":1672515782134,"s":"BTCUSDT","t":12345,"p":"16500.10","q":"0.003","X":"MARKET","m":true}`),
			expectedTick: model.Tick{
				Symbol:    "btcusdt",
				Price:     16500.1,
				Size:      0.003,
				Timestamp: time.UnixMilli(1672515782134).UTC(),
			},
			description: "Should take the trade time from T, not the event time E or the trade ID t",
		},
		{
			name:    "Trade ID before trade time",
			message: []byte(`{"e":"trade","E":1672515782136,"s":"BTCUSDT","t":12345,"p":"16500.10","q":"0.003","T":1672515782134}`),
			expectedTick: model.Tick{
				Symbol:    "btcusdt",
				Price:     16500.1,
				Size:      0.003,
				Timestamp: time.UnixMilli(1672515782134).UTC(),
			},
			description: "Should not depend on key order",
		},
		{
			name:    "Event type omitted",
			message: createTestTradeMessageWithMissingField("e"),
			expectedTick: model.Tick{
				Symbol:    "btcusdt",
				Price:     50000,
				Size:      0.001,
				Timestamp: time.UnixMilli(1640995200000).UTC(),
			},
			description: "Should accept a frame without the event type",
		},
		{
			name:        "Wrong event type",
			message:     []byte(`{"e":"aggTrade","s":"BTCUSDT","p":"1","q":"1","T":1}`),
			expectError: true,
			description: "Should reject non-trade events",
		},
		{
			name:        "Invalid JSON",
			message:     []byte(`{"invalid": json}`),
			expectError: true,
			description: "Should reject invalid JSON",
		},
		{
			name:        "Missing symbol",
			message:     createTestTradeMessageWithMissingField("s"),
			expectError: true,
			description: "Should reject message without symbol",
		},
		{
			name:        "Missing price",
			message:     createTestTradeMessageWithMissingField("p"),
			expectError: true,
			description: "Should reject message without price",
		},
		{
			name:        "Missing quantity",
			message:     createTestTradeMessageWithMissingField("q"),
			expectError: true,
			description: "Should reject message without quantity",
		},
		{
			name:        "Missing timestamp",
			message:     createTestTradeMessageWithMissingField("T"),
			expectError: true,
			description: "Should reject message without timestamp",
		},
		{
			name:        "Invalid price format",
			message:     createTestTradeMessage("BTCUSDT", "invalid", "0.001", 1640995200000),
			expectError: true,
			description: "Should reject invalid price format",
		},
		{
			name:        "Invalid quantity format",
			message:     createTestTradeMessage("BTCUSDT", "50000", "invalid", 1640995200000),
			expectError: true,
			description: "Should reject invalid quantity format",
		},
		{
			name:        "Zero timestamp",
			message:     createTestTradeMessage("BTCUSDT", "50000", "0.001", 0),
			expectError: true,
			description: "Should reject zero timestamp",
		},
		{
			name:        "Negative timestamp",
			message:     createTestTradeMessage("BTCUSDT", "50000", "0.001", -1),
			expectError: true,
			description: "Should reject negative timestamp",
		},
		{
			name:        "Array instead of object",
			message:     []byte(`[]`),
			expectError: true,
			description: "Should reject array JSON",
		},
		{
			name:        "Empty message",
			message:     []byte(``),
			expectError: true,
			description: "Should reject an empty frame",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tick, err := connector.parseTrade(tt.message)

			if tt.expectError {
				require.Error(t, err, tt.description)
				assert.True(t, errors.Is(err, ErrInvalidMessage), "Should wrap ErrInvalidMessage")
				return
			}

			require.NoError(t, err, tt.description)
			assert.Equal(t, tt.expectedTick.Symbol, tick.Symbol)
			assert.InDelta(t, tt.expectedTick.Price, tick.Price, 1e-9)
			assert.InDelta(t, tt.expectedTick.Size, tick.Size, 1e-12)
			assert.True(t, tt.expectedTick.Timestamp.Equal(tick.Timestamp), "Should have correct timestamp")
			assert.Equal(t, time.UTC, tick.Timestamp.Location())
		})
	}
}

// tradeServer serves canned frames on /ws/<symbol>@trade
func tradeServer(t *testing.T, frames [][]byte) (*httptest.Server, <-chan string) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	paths := make(chan string, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, f); err != nil {
				return
			}
		}
		// hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, paths
}

// TestBinance_Connect tests the end-to-end stream against a local server
func TestBinance_Connect(t *testing.T) {
	t.Run("Delivers parsed ticks and skips bad frames", func(t *testing.T) {
		srv, paths := tradeServer(t, [][]byte{
			createTestTradeMessage("BTCUSDT", "100.5", "2", 1000),
			[]byte(`not json`),
			createTestTradeMessage("BTCUSDT", "101", "1", 2000),
		})

		connector, err := NewBinanceConnector(&ExchangeConfig{BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http")})
		require.NoError(t, err)

		var (
			mu    sync.Mutex
			ticks []model.Tick
		)
		conn, err := connector.Connect(context.Background(), " BTCUSDT ", func(tick model.Tick) {
			mu.Lock()
			ticks = append(ticks, tick)
			mu.Unlock()
		})
		require.NoError(t, err)
		defer conn.Terminate()

		assert.Equal(t, "/ws/btcusdt@trade", <-paths)
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(ticks) == 2
		}, time.Second, 5*time.Millisecond, "Bad frame should be dropped without ending the stream")

		mu.Lock()
		assert.Equal(t, 100.5, ticks[0].Price)
		assert.Equal(t, 101.0, ticks[1].Price)
		mu.Unlock()

		conn.Terminate()
		select {
		case <-conn.Done():
		case <-time.After(time.Second):
			t.Fatal("connection should end after Terminate")
		}
	})

	t.Run("Rejects blank symbol", func(t *testing.T) {
		connector, err := NewBinanceConnector(createValidConfig())
		require.NoError(t, err)

		_, err = connector.Connect(context.Background(), "  ", func(model.Tick) {})
		assert.True(t, errors.Is(err, utils.ErrInvalidSymbol))
	})

	t.Run("Rejects nil callback", func(t *testing.T) {
		connector, err := NewBinanceConnector(createValidConfig())
		require.NoError(t, err)

		_, err = connector.Connect(context.Background(), "btcusdt", nil)
		assert.True(t, errors.Is(err, utils.ErrInvalidArgument))
	})

	t.Run("Dial failure", func(t *testing.T) {
		connector, err := NewBinanceConnector(&ExchangeConfig{BaseURL: "ws://127.0.0.1:1"})
		require.NoError(t, err)

		conn, err := connector.Connect(context.Background(), "btcusdt", func(model.Tick) {})
		assert.Error(t, err)
		assert.Nil(t, conn)
	})
}

// Benchmark_Binance_parseTrade benchmarks message handling performance
func Benchmark_Binance_parseTrade(b *testing.B) {
	connector, err := NewBinanceConnector(createValidConfig())
	require.NoError(b, err)

	message := createTestTradeMessage("BTCUSDT", "50000.12345678", "0.001", 1640995200000)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := connector.parseTrade(message); err != nil {
			b.Fatal(err)
		}
	}
}
