/*
Package main implements a command-line client for the tick streaming server.

The client first probes the server's gRPC health service, then tails live ticks from the
WebSocket endpoint and logs each one until interrupted or the server closes the stream.

Usage:

	go run ./cmd/client -grpc=localhost:50051 -http=localhost:3000 -symbol=btcusdt
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tickstream/internal/model"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Command-line flags for configuring the client
var (
	// grpcAddr is the gRPC health endpoint
	grpcAddr = flag.String("grpc", "localhost:50051", "The gRPC server address in the format host:port")
	// httpAddr is the HTTP API host
	httpAddr = flag.String("http", "localhost:3000", "The HTTP server address in the format host:port")
	// symbol optionally filters the tail to one symbol
	symbol = flag.String("symbol", "", "Only show ticks for this symbol")
)

type message struct {
	Type string      `json:"type"`
	Data *model.Tick `json:"data"`
}

func main() {
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		Level(zerolog.InfoLevel).With().Timestamp().Logger()

	if err := validateConfig(); err != nil {
		log.Fatal().Err(err).Msg("Configuration error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	status, err := probe(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("health probe failed")
	}
	log.Info().Str("status", status.String()).Msg("server health")
	if status != grpc_health_v1.HealthCheckResponse_SERVING {
		os.Exit(1)
	}

	if err := tail(ctx, log); err != nil {
		log.Fatal().Err(err).Msg("stream failed")
	}
}

// probe asks the gRPC health service for the overall serving status.
func probe(ctx context.Context) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(*grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, fmt.Errorf("did not connect: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// tail logs every tick pushed on /tick/ws until ctx is done or the server closes.
func tail(ctx context.Context, log zerolog.Logger) error {
	u := url.URL{Scheme: "ws", Host: *httpAddr, Path: "/tick/ws"}
	if *symbol != "" {
		u.RawQuery = url.Values{"symbol": {*symbol}}.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.String(), err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info().Msg("stream has closed")
				return nil
			}
			return err
		}

		var msg message
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Error().Err(err).Msg("failed to decode message")
			continue
		}

		switch msg.Type {
		case "connected":
			log.Info().Str("url", u.String()).Msg("subscribed")
		case "tick":
			if msg.Data == nil {
				continue
			}
			log.Info().
				Str("symbol", msg.Data.Symbol).
				Float64("price", msg.Data.Price).
				Float64("size", msg.Data.Size).
				Str("ts", model.FormatTime(msg.Data.Timestamp)).
				Msg("received tick")
		}
	}
}

// validateConfig checks the flags before any connection is made.
func validateConfig() error {
	if *grpcAddr == "" {
		return errors.New("gRPC address cannot be empty")
	}
	if *httpAddr == "" {
		return errors.New("HTTP address cannot be empty")
	}
	return nil
}
