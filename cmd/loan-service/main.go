package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	httphandler "loan-payment-service/internal/adapters/http"
	"loan-payment-service/internal/adapters/messaging/kafka"
	"loan-payment-service/internal/adapters/messaging/mock"
	"loan-payment-service/internal/adapters/storage/memory"
	"loan-payment-service/internal/adapters/storage/postgres"
	redisstore "loan-payment-service/internal/adapters/storage/redis"
	"loan-payment-service/internal/app"
	"loan-payment-service/internal/config"
	"loan-payment-service/internal/core/ports"
	"loan-payment-service/internal/idgen"
	"loan-payment-service/internal/observability"
	"loan-payment-service/internal/syncutil"
)

// storage bundles the ports a storage driver provides.
type storage struct {
	loans    ports.LoanRepository
	payments ports.PaymentRepository
	tx       ports.Transactor
	ping     func(ctx context.Context) error
	close    func()
}

func main() {
	// --- 1. Configuration and Logging ---
	fallbackLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fallbackLogger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.App.Env)
	logger.Info("Application starting", "env", cfg.App.Env, "port", cfg.Server.Port,
		"storage", cfg.Storage.Driver, "locking", cfg.Locking.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- 2. Observability ---
	shutdownTracer, err := observability.InitTracer(ctx, cfg.Jaeger.PortGrpc, cfg.App.Name)
	if err != nil {
		logger.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("Failed to shutdown tracer", "error", err)
		}
	}()

	// --- 3. Dependencies ---
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer store.close()

	var rdb *goredis.Client
	if cfg.Locking.Driver == config.LockingRedis || cfg.RateLimit.Enabled {
		rdb, err = redisstore.NewClient(ctx, cfg.Redis.Addr)
		if err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("Failed to close Redis client", "error", err)
			}
		}()
		logger.Info("Connected to Redis")
	}

	var locker ports.LoanLocker = syncutil.NewLoanLocker()
	if cfg.Locking.Driver == config.LockingRedis {
		locker = redisstore.NewLoanLocker(rdb, cfg.Locking.TTL, cfg.Locking.PollInterval, logger)
	}

	var events ports.EventPublisher
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		broker, err := kafka.NewBroker(ctx, brokers, cfg.Kafka.Topic, logger, observability.RecordPublishFailure)
		if err != nil {
			logger.Error("Failed to create Kafka broker", "error", err)
			os.Exit(1)
		}
		defer broker.Close()
		events = broker
		logger.Info("Kafka broker created", "topic", cfg.Kafka.Topic)
	} else {
		logger.Warn("Kafka is not configured, events are only logged")
		events = mock.NewBroker(logger)
	}

	// --- 4. Service Layer ---
	ids := idgen.New()
	loanService := app.NewLoanService(store.loans, store.payments, ids, logger)
	paymentService := app.NewPaymentService(store.loans, store.payments, store.tx, locker, ids, events, logger)

	var rateLimiter *httphandler.RateLimiterMiddleware
	if cfg.RateLimit.Enabled {
		rateLimiter = httphandler.NewRateLimiterMiddleware(
			redisstore.NewRateLimiterAdapter(rdb), cfg.RateLimit.Limit, cfg.RateLimit.Window, logger)
	}
	if cfg.JWT.Secret == "" {
		logger.Warn("JWT secret is not set, /api/v1 is unauthenticated")
	}

	// --- 5. HTTP Router ---
	router := httphandler.NewRouter(httphandler.RouterConfig{
		ServiceName: cfg.App.Name,
		Logger:      logger,
		Loans:       loanService,
		Payments:    paymentService,
		JWTSecret:   cfg.JWT.Secret,
		RateLimiter: rateLimiter,
		Health:      store.ping,
	})

	// --- 6. HTTP Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.Error("HTTP server failed", "error", err)
	}
	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
		return
	}

	logger.Info("Server exited properly")
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		logger.Warn("Using in-memory storage, data is lost on restart")
		s := memory.NewStore()
		return &storage{
			loans:    s.Loans(),
			payments: s.Payments(),
			tx:       s,
			ping:     func(context.Context) error { return nil },
			close:    func() {},
		}, nil
	}

	s, err := postgres.NewStore(ctx, cfg.Postgres.DSN, postgres.Options{
		MaxConns:      cfg.Postgres.MaxConns,
		TxMaxAttempts: cfg.Postgres.TxMaxAttempts,
	})
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	logger.Info("Connected to PostgreSQL")

	return &storage{
		loans:    s.Loans(),
		payments: s.Payments(),
		tx:       s,
		ping:     s.Ping,
		close:    s.Close,
	}, nil
}
