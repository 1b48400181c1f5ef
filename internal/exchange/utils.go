package exchange

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

var (
	// ErrInvalidConfig indicates that the provided ExchangeConfig contains invalid values.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidMessage indicates an inbound frame that could not be turned into a tick.
	ErrInvalidMessage = errors.New("invalid trade message")
)

// ExchangeConfig provides the connection parameters for an exchange connector.
type ExchangeConfig struct {
	// BaseURL is the WebSocket endpoint root, without the stream path.
	BaseURL string

	// PingPeriod is the keepalive interval handed to each websocket client.
	PingPeriod time.Duration

	// TLSInsecureSkip disables certificate verification. Test servers only.
	TLSInsecureSkip bool
}

// validateConfig applies defaults for empty fields and rejects a BaseURL that is not a
// ws or wss URL.
func validateConfig(cfg *ExchangeConfig, defaultCfg *ExchangeConfig) error {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultCfg.BaseURL
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = defaultCfg.PingPeriod
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("base url scheme %q: want ws or wss", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("base url has no host")
	}

	return nil
}
