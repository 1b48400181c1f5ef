// Package websocket provides the WebSocket client used for exchange trade streams.
//
// A Client owns one connection: it dials, hands every inbound frame to a handler, keeps
// the connection alive with pings and read deadlines, and reports when the connection
// ends. Clients are single-use; reconnecting means creating a new Client.
package websocket

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// defaultPingPeriod defines the default interval for sending WebSocket ping messages.
	defaultPingPeriod = 15 * time.Second

	// defaultSendTimeout defines the default timeout for WebSocket write operations.
	defaultSendTimeout = 5 * time.Second

	// defaultReadLimit defines the maximum size of incoming WebSocket messages.
	defaultReadLimit = 1 << 20 // 1MB

	// defaultHandshakeTimeout defines the maximum time allowed for WebSocket handshake.
	defaultHandshakeTimeout = 10 * time.Second

	// shutdownTimeout bounds how long Close and Terminate wait for the goroutines.
	shutdownTimeout = 5 * time.Second
)

// Common errors returned by the WebSocket client
var (
	// ErrClientShuttingDown indicates that the client is in the process of shutting down.
	ErrClientShuttingDown = errors.New("client is shutting down")
)

// Config defines settings for the WebSocket client.
type Config struct {
	// Endpoint is the WebSocket URL to connect to.
	// Required: This field must be provided and non-empty.
	Endpoint string

	// Handler is the function called for each incoming WebSocket message.
	// Required: This field must be provided and non-nil.
	Handler func([]byte) error

	// TLSInsecureSkip disables TLS certificate verification.
	TLSInsecureSkip bool

	// PingPeriod is the interval between WebSocket ping messages. The read deadline
	// is twice this period and is extended by every inbound message or pong.
	PingPeriod time.Duration

	// SendTimeout is the maximum time allowed for WebSocket write operations.
	SendTimeout time.Duration

	// SubscriptionMessages contains messages to send immediately after connection.
	SubscriptionMessages [][]byte
}

// Client wraps a websocket.Conn with lifecycle and message handling logic.
type Client struct {
	// conn stores the active WebSocket connection using atomic operations.
	conn atomic.Value // stores *websocket.Conn

	// done is closed when the read loop exits for any reason.
	done chan struct{}

	// errChan reports the error that ended the read loop.
	errChan chan error

	cfg    *Config
	ctx    context.Context
	cancel context.CancelFunc

	// once ensures only one of Close or Terminate runs.
	once sync.Once

	// wg coordinates goroutine shutdown.
	wg sync.WaitGroup

	logger zerolog.Logger
}

// NewWebsocketClient dials cfg.Endpoint, sends the subscription messages and starts
// the read and ping loops.
//
// The client shuts down when ctx is cancelled.
func NewWebsocketClient(ctx context.Context, cfg Config) (*Client, error) {
	// Validate required configuration fields
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint URL is required")
	}
	if cfg.Handler == nil {
		return nil, errors.New("message handler is required")
	}

	// Apply defaults for optional fields
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = defaultPingPeriod
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}

	ctx, cancel := context.WithCancel(ctx)

	client := &Client{
		cfg:     &cfg,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		errChan: make(chan error, 1),
		logger:  log.With().Str("endpoint", cfg.Endpoint).Logger(),
	}

	if err := client.run(cfg.SubscriptionMessages); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start client: %w", err)
	}

	return client, nil
}

// run establishes the WebSocket connection and starts the background goroutines.
func (c *Client) run(subMsgs [][]byte) (err error) {
	logger := c.logger.With().Str("component", "run").Logger()

	conn, err := c.dial(c.ctx)
	if err != nil {
		return fmt.Errorf("initial dial failed: %w", err)
	}

	// Ensure connection is cleaned up if initialization fails
	defer func() {
		if err != nil {
			if closeErr := conn.Close(); closeErr != nil {
				logger.Warn().Err(closeErr).Msg("error closing connection during cleanup")
			}
		}
	}()

	c.conn.Store(conn)

	conn.SetReadLimit(defaultReadLimit)
	if err = c.extendReadDeadline(conn); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		if err := c.extendReadDeadline(conn); err != nil {
			logger.Warn().Err(err).Msg("failed to set read deadline in pong handler")
		}
		return nil
	})

	for _, msg := range subMsgs {
		if err = conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Error().Err(err).Msg("subscription error")
			return err
		}
	}

	c.wg.Add(3)
	go func() {
		defer c.wg.Done()
		c.readLoop()
	}()
	go func() {
		defer c.wg.Done()
		c.pingLoop()
	}()
	go func() {
		defer c.wg.Done()
		c.shutdownListener()
	}()

	return nil
}

func (c *Client) extendReadDeadline(conn *websocket.Conn) error {
	return conn.SetReadDeadline(time.Now().Add(c.cfg.PingPeriod * 2))
}

// readLoop reads frames until the connection fails or the client shuts down.
//
// Handler errors and panics are logged and the loop continues; only transport errors
// end it.
func (c *Client) readLoop() {
	conn := c.conn.Load().(*websocket.Conn)
	logger := c.logger.With().Str("component", "readLoop").Logger()

	logger.Debug().Msg("starting read loop")
	defer func() {
		logger.Debug().Msg("read loop exiting")
		close(c.done)

		select {
		case c.errChan <- ErrClientShuttingDown:
		default:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			switch {
			case c.ctx.Err() != nil:
				logger.Debug().Msg("connection closed by client")
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				logger.Info().Err(err).Msg("websocket closed normally")
			case websocket.IsUnexpectedCloseError(err):
				logger.Warn().Err(err).Msg("unexpected websocket closure")
			default:
				logger.Error().Err(err).Msg("read error")
			}

			select {
			case c.errChan <- err:
			default:
			}
			return
		}

		if err := c.extendReadDeadline(conn); err != nil {
			logger.Warn().Err(err).Msg("failed to extend read deadline")
		}

		c.handle(logger, data)
	}
}

func (c *Client) handle(logger zerolog.Logger, data []byte) {
	// Recover from handler panics to prevent client crash
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Any("recover", r).Msg("panic in message handler")
		}
	}()

	if err := c.cfg.Handler(data); err != nil {
		logger.Warn().Err(err).Int("bytes", len(data)).Msg("dropping message")
	}
}

// pingLoop sends periodic ping messages to keep the connection alive.
func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()

	logger := c.logger.With().Str("component", "pingLoop").Logger()

	for {
		select {
		case <-ticker.C:
			conn, ok := c.conn.Load().(*websocket.Conn)
			if !ok {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.SendTimeout)); err != nil {
				logger.Warn().Err(err).Msg("ping error")
			}
		case <-c.ctx.Done():
			return
		case <-c.done:
			return
		}
	}
}

// shutdownListener closes the connection once the context is cancelled so a blocked
// read returns.
func (c *Client) shutdownListener() {
	select {
	case <-c.ctx.Done():
		c.closeConn()
	case <-c.done:
	}
}

func (c *Client) closeConn() {
	if conn, ok := c.conn.Load().(*websocket.Conn); ok {
		_ = conn.Close()
	}
}

// Close shuts the client down gracefully, sending a normal-closure frame before closing
// the connection. It is safe to call more than once and after Terminate.
func (c *Client) Close() {
	c.shutdown(true)
}

// Terminate shuts the client down without a closing handshake. It is safe to call more
// than once and after Close.
func (c *Client) Terminate() {
	c.shutdown(false)
}

func (c *Client) shutdown(graceful bool) {
	c.once.Do(func() {
		logger := c.logger.With().Str("component", "close").Bool("graceful", graceful).Logger()

		if conn, ok := c.conn.Load().(*websocket.Conn); ok && graceful {
			if err := conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			); err != nil {
				logger.Debug().Err(err).Msg("failed to send close frame")
			}
		}

		c.cancel()
		c.closeConn()

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(shutdownTimeout):
			logger.Warn().Msg("timeout waiting for goroutines to complete")
		}

		logger.Debug().Msg("shutdown complete")
	})
}

// dial establishes a WebSocket connection.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	logger := c.logger.With().
		Bool("tlsInsecureSkip", c.cfg.TLSInsecureSkip).
		Dur("handshakeTimeout", defaultHandshakeTimeout).
		Logger()

	logger.Info().Msg("attempting websocket connection")

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: c.cfg.TLSInsecureSkip},
		HandshakeTimeout: defaultHandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, c.cfg.Endpoint, make(http.Header))
	if err != nil {
		if resp != nil {
			logger.Error().
				Err(err).
				Int("statusCode", resp.StatusCode).
				Str("status", resp.Status).
				Msg("connection failed")
		} else {
			logger.Error().Err(err).Msg("connection failed")
		}
		return nil, err
	}

	logger.Info().Msg("websocket connection established")
	return conn, nil
}

// Done returns a channel that is closed when the connection ends, whether by a remote
// close, a transport error, Close or Terminate.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ErrChan returns a channel that emits the error that ended the read loop.
func (c *Client) ErrChan() <-chan error {
	return c.errChan
}
