package exchange

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateConfig(t *testing.T) {
	defaultCfg := &ExchangeConfig{
		BaseURL:    "wss://default.com",
		PingPeriod: 15 * time.Second,
	}

	tests := []struct {
		name       string
		config     *ExchangeConfig
		wantError  bool
		wantURL    string
		wantPeriod time.Duration
	}{
		{
			name:       "valid config",
			config:     &ExchangeConfig{BaseURL: "wss://test.com", PingPeriod: time.Second},
			wantURL:    "wss://test.com",
			wantPeriod: time.Second,
		},
		{
			name:       "empty BaseURL uses default",
			config:     &ExchangeConfig{PingPeriod: time.Second},
			wantURL:    "wss://default.com",
			wantPeriod: time.Second,
		},
		{
			name:       "zero PingPeriod uses default",
			config:     &ExchangeConfig{BaseURL: "ws://localhost:9000"},
			wantURL:    "ws://localhost:9000",
			wantPeriod: 15 * time.Second,
		},
		{
			name:       "negative PingPeriod uses default",
			config:     &ExchangeConfig{BaseURL: "wss://test.com", PingPeriod: -1},
			wantURL:    "wss://test.com",
			wantPeriod: 15 * time.Second,
		},
		{
			name:      "http scheme",
			config:    &ExchangeConfig{BaseURL: "http://test.com"},
			wantError: true,
		},
		{
			name:      "no scheme",
			config:    &ExchangeConfig{BaseURL: "test.com"},
			wantError: true,
		},
		{
			name:      "unparseable",
			config:    &ExchangeConfig{BaseURL: "wss://bad host\x7f"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(tt.config, defaultCfg)

			if tt.wantError {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.wantURL, tt.config.BaseURL)
			assert.Equal(t, tt.wantPeriod, tt.config.PingPeriod)
		})
	}
}

func TestErrorConstants(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "ErrInvalidConfig message",
			err:      ErrInvalidConfig,
			expected: "invalid configuration",
		},
		{
			name:     "ErrInvalidMessage message",
			err:      ErrInvalidMessage,
			expected: "invalid trade message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	wrappedErr := errors.New("wrapped: invalid configuration")
	assert.False(t, errors.Is(wrappedErr, ErrInvalidConfig))

	properWrapped := fmt.Errorf("%w: additional context", ErrInvalidConfig)
	assert.True(t, errors.Is(properWrapped, ErrInvalidConfig))
}
