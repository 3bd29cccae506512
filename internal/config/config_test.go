package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("app:\n  env: production\n"))
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, LockingLocal, cfg.Locking.Driver)
	assert.Equal(t, uint(3), cfg.Postgres.TxMaxAttempts)
	assert.Equal(t, "loan-events", cfg.Kafka.Topic)
	assert.Equal(t, "loan-events-dlq", cfg.Kafka.DLQTopic)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 10*time.Second, cfg.Locking.TTL)
}

func TestParse_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_PG_DSN", "postgres://loans@db:5432/loans")

	cfg, err := Parse([]byte(`
storage:
  driver: postgres
postgres:
  dsn: ${TEST_PG_DSN}
locking:
  ttl: 3s
`))
	require.NoError(t, err)

	assert.Equal(t, "postgres://loans@db:5432/loans", cfg.Postgres.DSN)
	assert.Equal(t, 3*time.Second, cfg.Locking.TTL)
}

func TestParse_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown storage", "storage:\n  driver: sqlite\n", "unknown storage.driver"},
		{"postgres without dsn", "storage:\n  driver: postgres\n", "postgres.dsn is required"},
		{"unknown locking", "locking:\n  driver: etcd\n", "unknown locking.driver"},
		{"redis lock without addr", "locking:\n  driver: redis\n", "redis.addr is required"},
		{"redis lock with memory storage", "locking:\n  driver: redis\nredis:\n  addr: localhost:6379\n", `requires storage.driver "postgres"`},
		{"rate limit without redis", "rate_limit:\n  enabled: true\n", "redis.addr is required"},
		{"malformed yaml", "server: [", "error parsing config file"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParse_RedisLockingWithPostgres(t *testing.T) {
	cfg, err := Parse([]byte(`
storage:
  driver: postgres
postgres:
  dsn: postgres://loans@db:5432/loans
redis:
  addr: localhost:6379
locking:
  driver: redis
`))
	require.NoError(t, err)
	assert.Equal(t, LockingRedis, cfg.Locking.Driver)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "error reading config file")
}

func TestBrokers(t *testing.T) {
	cfg := &Config{}
	cfg.Kafka.BootstrapServers = "kafka-1:9092, kafka-2:9092,,"

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers())
}
