/*
Package main runs the tick streaming server.

The server opens one Binance futures trade stream per configured symbol, records every
trade into a bounded in-memory tick store and serves history, OHLCV sampling, pair
analytics, CSV export and live streams over HTTP. A gRPC health service runs beside the
HTTP API, and every live tick is optionally mirrored to Kafka.

Usage:

	go run ./cmd/server -config=config.yaml

Configuration comes from the environment (APP_*, STORE_*, FEED_*, FANOUT_*, KAFKA_*),
an optional .env file, and the optional YAML file given by -config.
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tickstream/internal/analytics"
	"tickstream/internal/api"
	"tickstream/internal/config"
	"tickstream/internal/exchange"
	"tickstream/internal/feed"
	"tickstream/internal/mirror"
	"tickstream/internal/service"
	"tickstream/internal/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

// configPath names the optional YAML overlay
var configPath = flag.String("config", "", "Path to an optional YAML config file")

const shutdownTimeout = 10 * time.Second

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogger(cfg.App)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("server stopped")
}

// setupLogger configures the global zerolog logger.
func setupLogger(app config.AppConfig) {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(app.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if app.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("app", app.Name).Logger()
}

func run(ctx context.Context, cfg *config.Config) error {
	// Fan-out, store and feed
	dispatcher := service.NewDispatcher(service.DispatcherConfig{BufferSize: cfg.Fanout.BufferSize})
	defer dispatcher.Close()

	tickStore, err := store.New(cfg.Store.Capacity, dispatcher)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}

	connector, err := exchange.NewBinanceConnector(&exchange.ExchangeConfig{
		BaseURL:         cfg.Feed.BaseURL,
		PingPeriod:      cfg.Feed.PingPeriod,
		TLSInsecureSkip: cfg.Feed.TLSInsecureSkip,
	})
	if err != nil {
		return fmt.Errorf("create connector: %w", err)
	}

	feedManager := feed.NewManager(feed.Config{ReconnectDelay: cfg.Feed.ReconnectDelay}, connector, tickStore)
	tickService := service.NewTickService(dispatcher, feedManager)

	if err := tickService.Start(ctx, cfg.Feed.Symbols); err != nil {
		log.Warn().Err(err).Msg("some symbols failed to start")
	}
	defer func() {
		if err := tickService.Stop(); err != nil {
			log.Debug().Err(err).Msg("tick service already stopped")
		}
	}()

	// Optional Kafka mirror
	if cfg.Kafka.Enabled() {
		mcfg := mirror.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}
		writer, err := mirror.NewKafkaWriter(mcfg)
		if err != nil {
			return fmt.Errorf("create kafka writer: %w", err)
		}
		go func() {
			if err := mirror.New(mcfg, dispatcher, writer).Run(ctx); err != nil {
				log.Error().Err(err).Msg("kafka mirror stopped")
			}
		}()
	}

	// gRPC health server
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.App.GRPCPort))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	grpcServer := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 5 * time.Minute,  // Close idle connections after 5 minutes
			MaxConnectionAge:  30 * time.Minute, // Force reconnection after 30 minutes
			Time:              20 * time.Second, // Send keepalive pings every 20 seconds
			Timeout:           10 * time.Second, // Wait 10 seconds for ping response
		}),
	)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	// HTTP API
	apiServer := api.NewServer(
		api.Config{CORSOrigins: cfg.App.CORSOrigins},
		tickStore,
		analytics.NewEngine(tickStore),
		tickService,
	)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve: %w", err)
		}
	}()

	log.Info().
		Int("httpPort", cfg.App.Port).
		Int("grpcPort", cfg.App.GRPCPort).
		Strs("symbols", cfg.Feed.Symbols).
		Int("capacity", cfg.Store.Capacity).
		Bool("kafkaMirror", cfg.Kafka.Enabled()).
		Msg("server starting")

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("initiating graceful shutdown")
	case serveErr = <-errCh:
	}

	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Streams only end when the dispatcher closes, so close it before waiting on them.
	dispatcher.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	grpcServer.GracefulStop()

	return serveErr
}
