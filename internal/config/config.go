package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage and locking drivers.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	LockingLocal    = "local"
	LockingRedis    = "redis"
)

// ClickHouseConfig holds the reporting database parameters.
type ClickHouseConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// RateLimitConfig bounds requests per client IP in a fixed window.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Limit   int           `yaml:"limit"`
	Window  time.Duration `yaml:"window"`
}

// LockingConfig selects how payments on the same loan are serialized. The
// redis driver requires the postgres storage driver: its lock expires after
// TTL, and only the row lock taken inside the store transaction keeps an
// expired holder from overpaying.
type LockingConfig struct {
	Driver       string        `yaml:"driver"`
	TTL          time.Duration `yaml:"ttl"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type Config struct {
	App struct {
		Env  string `yaml:"env"`
		Name string `yaml:"name"`
	} `yaml:"app"`
	Server struct {
		Port            string        `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Storage struct {
		Driver string `yaml:"driver"`
	} `yaml:"storage"`
	Postgres struct {
		DSN           string `yaml:"dsn"`
		MaxConns      int32  `yaml:"max_conns"`
		TxMaxAttempts uint   `yaml:"tx_max_attempts"`
	} `yaml:"postgres"`
	Kafka struct {
		BootstrapServers string `yaml:"bootstrap_servers"`
		Topic            string `yaml:"topic"`
		DLQTopic         string `yaml:"dlq_topic"`
		ConsumerGroup    string `yaml:"consumer_group"`
	} `yaml:"kafka"`
	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Jaeger     struct {
		PortGrpc string `yaml:"port_grpc"`
	} `yaml:"jaeger"`
	JWT struct {
		Secret string `yaml:"jwt_secret"`
	} `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Locking   LockingConfig   `yaml:"locking"`
}

func Load(configPath string) (*Config, error) {
	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return Parse(file)
}

// Parse expands environment variables in raw YAML, decodes it, applies
// defaults and validates the result.
func Parse(raw []byte) (*Config, error) {
	config := &Config{}

	expanded := os.ExpandEnv(string(raw))
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Brokers splits the comma separated bootstrap server list.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.Kafka.BootstrapServers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "development"
	}
	if c.App.Name == "" {
		c.App.Name = "loan-service"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageMemory
	}
	if c.Postgres.TxMaxAttempts == 0 {
		c.Postgres.TxMaxAttempts = 3
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "loan-events"
	}
	if c.Kafka.DLQTopic == "" {
		c.Kafka.DLQTopic = c.Kafka.Topic + "-dlq"
	}
	if c.Kafka.ConsumerGroup == "" {
		c.Kafka.ConsumerGroup = "payment-audit-sink"
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "default"
	}
	if c.RateLimit.Limit == 0 {
		c.RateLimit.Limit = 100
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.Locking.Driver == "" {
		c.Locking.Driver = LockingLocal
	}
	if c.Locking.TTL == 0 {
		c.Locking.TTL = 10 * time.Second
	}
	if c.Locking.PollInterval == 0 {
		c.Locking.PollInterval = 25 * time.Millisecond
	}
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required when storage.driver is %q", StoragePostgres)
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	switch c.Locking.Driver {
	case LockingLocal:
	case LockingRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when locking.driver is %q", LockingRedis)
		}
		if c.Storage.Driver != StoragePostgres {
			return fmt.Errorf("locking.driver %q requires storage.driver %q", LockingRedis, StoragePostgres)
		}
	default:
		return fmt.Errorf("unknown locking.driver %q", c.Locking.Driver)
	}

	if c.RateLimit.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when rate_limit is enabled")
	}
	if c.RateLimit.Limit < 0 {
		return fmt.Errorf("rate_limit.limit must not be negative")
	}
	return nil
}
