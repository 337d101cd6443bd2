package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	WebConfig
	DatabaseConfig
	WorkerConfig
	EventsConfig
	LoggerConfig
}

type WebConfig struct {
	Host string `envconfig:"APP_HOST" default:"0.0.0.0"`
	Port string `envconfig:"APP_PORT" default:"8080"`
}

type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" required:"true"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" required:"true"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

type WorkerConfig struct {
	PollIntervalSeconds  int    `envconfig:"WORKER_POLL_INTERVAL_SECONDS" default:"5"`    // How often each worker looks for a claimable job
	BatchSize            int    `envconfig:"WORKER_BATCH_SIZE" default:"50"`              // Pending recipients fetched per batch; also the pause latency bound
	MessagesPerSecond    int    `envconfig:"WORKER_MESSAGES_PER_SECOND" default:"10"`     // Provider rate limit, enforced as a fixed inter-send delay
	StaleLockSeconds     int    `envconfig:"WORKER_STALE_LOCK_SECONDS" default:"300"`     // Lock older than this is reclaimable by another worker
	DefaultPhoneRegion   string `envconfig:"WORKER_DEFAULT_PHONE_REGION" default:"KE"`    // Region assumed for phones without a country code
	EstimateCacheSeconds int    `envconfig:"WORKER_ESTIMATE_CACHE_SECONDS" default:"120"` // TTL of cached segment count estimates
}

type EventsConfig struct {
	AmqpURL      string `envconfig:"AMQP_URL" default:""` // Empty disables event publishing
	AmqpExchange string `envconfig:"AMQP_EXCHANGE" default:"campaign_events"`
}

type LoggerConfig struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// New loads .env if present and reads the rest from the environment.
func New() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	return &cfg, nil
}

// DSN builds the Postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}
