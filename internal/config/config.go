// Package config loads the service configuration.
//
// Values come from struct defaults and the environment (a .env file in the working
// directory is loaded first when present). An optional YAML file is then decoded over
// the result, so a key set in the file wins over the environment. The merged result
// is validated before it is returned.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the application configuration.
type Config struct {
	App    AppConfig    `envPrefix:"APP_" yaml:"app"`
	Store  StoreConfig  `envPrefix:"STORE_" yaml:"store"`
	Feed   FeedConfig   `envPrefix:"FEED_" yaml:"feed"`
	Fanout FanoutConfig `envPrefix:"FANOUT_" yaml:"fanout"`
	Kafka  KafkaConfig  `envPrefix:"KAFKA_" yaml:"kafka"`
}

// AppConfig holds process-wide settings.
type AppConfig struct {
	Name        string   `env:"NAME" envDefault:"tickstream" yaml:"name" validate:"required"`
	Environment string   `env:"ENVIRONMENT" envDefault:"development" yaml:"environment" validate:"required"`
	Port        int      `env:"PORT" envDefault:"3000" yaml:"port" validate:"min=1,max=65535"`
	GRPCPort    int      `env:"GRPC_PORT" envDefault:"50051" yaml:"grpc_port" validate:"min=1,max=65535,nefield=Port"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info" yaml:"log_level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:8080,http://localhost:5173" yaml:"cors_origins"`
}

// IsDevelopment reports whether human-readable console logging should be used.
func (a AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// StoreConfig sizes the tick ring.
type StoreConfig struct {
	Capacity int `env:"CAPACITY" envDefault:"100000" yaml:"capacity" validate:"gt=0"`
}

// FeedConfig configures the exchange feed.
type FeedConfig struct {
	BaseURL         string        `env:"BASE_URL" envDefault:"wss://fstream.binance.com" yaml:"base_url" validate:"required,url"`
	Symbols         []string      `env:"SYMBOLS" envSeparator:"," envDefault:"btcusdt,ethusdt" yaml:"symbols"`
	ReconnectDelay  time.Duration `env:"RECONNECT_DELAY" envDefault:"3s" yaml:"reconnect_delay" validate:"gt=0"`
	PingPeriod      time.Duration `env:"PING_PERIOD" envDefault:"15s" yaml:"ping_period" validate:"gt=0"`
	TLSInsecureSkip bool          `env:"TLS_INSECURE_SKIP" yaml:"tls_insecure_skip"`
}

// FanoutConfig sizes live subscriber buffers.
type FanoutConfig struct {
	BufferSize int `env:"BUFFER_SIZE" envDefault:"256" yaml:"buffer_size" validate:"gt=0"`
}

// KafkaConfig configures the optional tick mirror. No brokers disables it.
type KafkaConfig struct {
	Brokers      []string      `env:"BROKERS" envSeparator:"," yaml:"brokers"`
	Topic        string        `env:"TOPIC" envDefault:"ticks" yaml:"topic" validate:"required_with=Brokers"`
	BatchSize    int           `env:"BATCH_SIZE" envDefault:"100" yaml:"batch_size" validate:"gt=0"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"5s" yaml:"write_timeout" validate:"gt=0"`
}

// Enabled reports whether the mirror should run.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// Load builds the configuration. path names an optional YAML overlay; "" skips it.
func Load(path string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if path != "" {
		if err := overlay(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return cfg, nil
}

func overlay(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}
