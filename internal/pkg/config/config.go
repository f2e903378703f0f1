package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Storage backends selectable with STORAGE.
const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	Storage   string `env:"STORAGE,   default=mongo"`

	Mongo        MongoConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Billing      BillingConfig
	Coordination CoordinationConfig
}

// MongoConfig selects the document store. Transactions must stay enabled:
// batch movements rely on multi-document transactions, which need a replica set.
type MongoConfig struct {
	URI          string `env:"MONGO_URI,          default=mongodb://localhost:27017"`
	Database     string `env:"MONGO_DB,           default=freight"`
	Transactions bool   `env:"MONGO_TRANSACTIONS, default=true"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// KafkaConfig enables the domain event publisher when Brokers is set.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS"`
	Topic   string   `env:"KAFKA_TOPIC, default=freight.events"`
}

type BillingConfig struct {
	DueDays  int    `env:"BILLING_DUE_DAYS, default=30"`
	Timezone string `env:"BILLING_TIMEZONE, default=Asia/Jakarta"`
}

type CoordinationConfig struct {
	LockTTL          time.Duration `env:"LOCK_TTL,           default=10s"`
	LockRetries      int           `env:"LOCK_RETRIES,       default=5"`
	LockRetryDelay   time.Duration `env:"LOCK_RETRY_DELAY,   default=20ms"`
	DedupTTL         time.Duration `env:"DEDUP_TTL,          default=24h"`
	ResourceClaimTTL time.Duration `env:"RESOURCE_CLAIM_TTL, default=12h"`
	EventWorkers     int           `env:"EVENT_WORKERS,      default=8"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case StorageMongo, StorageMemory:
	default:
		return fmt.Errorf("config: STORAGE must be %q or %q, got %q", StorageMongo, StorageMemory, c.Storage)
	}
	if c.Storage == StorageMongo && !c.Mongo.Transactions {
		return fmt.Errorf("config: MONGO_TRANSACTIONS=false cannot keep batch movements atomic; use a replica set")
	}
	if c.Billing.DueDays <= 0 {
		return fmt.Errorf("config: BILLING_DUE_DAYS must be positive")
	}
	if _, err := c.BillingLocation(); err != nil {
		return err
	}
	if c.Coordination.EventWorkers <= 0 {
		return fmt.Errorf("config: EVENT_WORKERS must be positive")
	}
	return nil
}

// Development reports whether the service runs outside production.
func (c *Config) Development() bool {
	return strings.EqualFold(c.Env, "development")
}

// BillingLocation resolves the calendar used for payment dates and invoice months.
func (c *Config) BillingLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Billing.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: BILLING_TIMEZONE %q: %w", c.Billing.Timezone, err)
	}
	return loc, nil
}

// DueHorizon is the time between invoice creation and its due date.
func (c *Config) DueHorizon() time.Duration {
	return time.Duration(c.Billing.DueDays) * 24 * time.Hour
}
