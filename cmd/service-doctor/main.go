package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"

	"loan-payment-service/internal/adapters/analytics/clickhouse"
	"loan-payment-service/internal/config"
	"loan-payment-service/internal/observability"
)

// Check describes one diagnostic check
type Check struct {
	Name     string
	Func     func(ctx context.Context) error
	Skipped  bool
	Error    error
	Duration time.Duration
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the config file")
	serviceURL := flag.String("service", "http://localhost:8080", "loan service base URL")
	flag.Parse()

	logger := observability.SetupLogger("development")
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	checks := []Check{
		{Name: "Loan Service", Func: func(ctx context.Context) error {
			return checkHTTPHealth(ctx, *serviceURL+"/health", logger)
		}},
		{Name: "PostgreSQL", Skipped: cfg.Postgres.DSN == "", Func: func(ctx context.Context) error {
			return checkPostgres(ctx, cfg.Postgres.DSN, logger)
		}},
		{Name: "Redis", Skipped: cfg.Redis.Addr == "", Func: func(ctx context.Context) error {
			return checkRedis(ctx, cfg.Redis.Addr, logger)
		}},
		{Name: "Kafka Cluster", Skipped: len(cfg.Brokers()) == 0, Func: func(ctx context.Context) error {
			return checkKafka(ctx, cfg.Brokers())
		}},
		{Name: "ClickHouse", Skipped: cfg.ClickHouse.Addr == "", Func: func(ctx context.Context) error {
			return checkClickHouse(ctx, cfg.ClickHouse, logger)
		}},
	}

	var wg sync.WaitGroup
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	fmt.Println("🩺 Running dependency diagnostics...")

	for i := range checks {
		if checks[i].Skipped {
			continue
		}
		wg.Add(1)
		go func(c *Check) {
			defer wg.Done()
			start := time.Now()
			c.Error = c.Func(ctx)
			c.Duration = time.Since(start)
		}(&checks[i])
	}

	wg.Wait()

	ok := color.New(color.FgGreen).SprintFunc()
	failed := color.New(color.FgRed, color.Bold).SprintFunc()
	skipped := color.New(color.FgYellow).SprintFunc()

	fmt.Println("\n--- Diagnostics report ---")
	hasErrors := false
	for _, c := range checks {
		switch {
		case c.Skipped:
			fmt.Printf("[%s] %-20s (not configured)\n", skipped("SKIP"), c.Name)
		case c.Error == nil:
			fmt.Printf("[%s] %-20s (took %v)\n", ok(" OK "), c.Name, c.Duration.Round(time.Millisecond))
		default:
			hasErrors = true
			fmt.Printf("[%s] %-20s (took %v) - error: %v\n", failed("FAIL"), c.Name, c.Duration.Round(time.Millisecond), c.Error)
		}
	}

	if hasErrors {
		fmt.Println(failed("\nDiagnostics found problems."))
		os.Exit(1)
	}
	fmt.Println(ok("\nAll systems healthy!"))
}

// --- Functions for checks ---

func checkHTTPHealth(ctx context.Context, url string, logger *slog.Logger) error {
	if !strings.HasPrefix(url, "http") {
		url = "http://" + url
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close HTTP response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return nil
}

func checkPostgres(ctx context.Context, dsn string, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(ctx); err != nil {
			logger.Error("failed to close Postgres connection", "error", err)
		}
	}()

	var tables int
	if err := conn.QueryRow(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE table_name IN ('loans', 'payments')`).Scan(&tables); err != nil {
		return err
	}
	if tables != 2 {
		return fmt.Errorf("schema is not migrated: found %d of 2 tables", tables)
	}
	return nil
}

func checkRedis(ctx context.Context, addr string, logger *slog.Logger) error {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("failed to close Redis client", "error", err)
		}
	}()
	return rdb.Ping(ctx).Err()
}

func checkKafka(ctx context.Context, brokers []string) error {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DialTimeout(5*time.Second),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	return client.Ping(ctx)
}

func checkClickHouse(ctx context.Context, cfg config.ClickHouseConfig, logger *slog.Logger) error {
	sink, err := clickhouse.Open(ctx, clickhouse.Config(cfg))
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Error("failed to close ClickHouse connection", "error", err)
		}
	}()
	return sink.Ping(ctx)
}
