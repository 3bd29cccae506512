package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kgo"

	"loan-payment-service/internal/adapters/analytics/clickhouse"
	"loan-payment-service/internal/audit"
	"loan-payment-service/internal/config"
	"loan-payment-service/internal/observability"
)

func main() {
	var configPath string
	var cfg *config.Config
	var logger *slog.Logger

	rootCmd := &cobra.Command{
		Use:          "payment-audit-sink",
		Short:        "Copies loan events from Kafka into ClickHouse",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if len(cfg.Brokers()) == 0 {
				return fmt.Errorf("kafka.bootstrap_servers is not configured")
			}
			logger = observability.SetupLogger(cfg.App.Env)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to the config file")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Consume loan events and store them in ClickHouse",
		RunE: func(cmd *cobra.Command, _ []string) error {
			maxTries, _ := cmd.Flags().GetUint("max-tries")
			return run(cfg, maxTries, logger)
		},
	}
	runCmd.Flags().Uint("max-tries", 5, "attempts per ClickHouse write before the sink stops")

	dlqCmd := &cobra.Command{Use: "dlq", Short: "Inspect and replay dead-lettered events"}

	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "Show messages in the DLQ",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return viewDLQ(cmd.Context(), cfg, limit, logger)
		},
	}
	viewCmd.Flags().Int("limit", 10, "number of messages to show")

	retryCmd := &cobra.Command{
		Use:   "retry [partition:offset]",
		Short: "Re-publish one DLQ message to the event topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			partition, offset, err := audit.ParsePartitionOffset(args[0])
			if err != nil {
				return err
			}
			return retryDLQ(cmd.Context(), cfg, partition, offset, logger)
		},
	}

	dlqCmd.AddCommand(viewCmd, retryCmd)
	rootCmd.AddCommand(runCmd, dlqCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, maxTries uint, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, err := clickhouse.Open(ctx, clickhouse.Config(cfg.ClickHouse))
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Error("failed to close ClickHouse connection", "error", err)
		}
	}()
	if err := sink.EnsureSchema(ctx); err != nil {
		return err
	}

	consumer, err := audit.NewConsumer(cfg.Brokers(), cfg.Kafka.ConsumerGroup, cfg.Kafka.Topic, cfg.Kafka.DLQTopic,
		audit.NewProcessor(sink, maxTries, logger), logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	logger.Info("payment audit sink started", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.ConsumerGroup)
	if err := consumer.Run(ctx); err != nil {
		logger.Error("payment audit sink stopped", "error", err)
		return err
	}
	logger.Info("payment audit sink stopping")
	return nil
}

func viewDLQ(ctx context.Context, cfg *config.Config, limit int, logger *slog.Logger) error {
	logger.Info("viewing latest messages", "topic", cfg.Kafka.DLQTopic, "limit", limit)

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers()...),
		kgo.ConsumeTopics(cfg.Kafka.DLQTopic),
		kgo.FetchMaxWait(5*time.Second),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	defer client.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARTITION:OFFSET\tKEY\tERROR_TYPE\tERROR_STRING")
	fmt.Fprintln(w, "----------------\t---\t----------\t------------")

	pollCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	count := 0
	for count < limit {
		fetches := client.PollFetches(pollCtx)
		if fetches.IsClientClosed() || pollCtx.Err() != nil || len(fetches.Records()) == 0 {
			break
		}
		fetches.EachRecord(func(record *kgo.Record) {
			if count >= limit {
				return
			}
			errorType, errorString := audit.ErrorHeaders(record.Headers)
			fmt.Fprintf(w, "%d:%d\t%s\t%s\t%s\n", record.Partition, record.Offset, string(record.Key), errorType, errorString)
			count++
		})
	}
	return w.Flush()
}

func retryDLQ(ctx context.Context, cfg *config.Config, partition int32, offset int64, logger *slog.Logger) error {
	logger.Info("re-publishing message", "from_topic", cfg.Kafka.DLQTopic, "partition", partition, "offset", offset, "to_topic", cfg.Kafka.Topic)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers()...),
		kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{
			cfg.Kafka.DLQTopic: {partition: kgo.NewOffset().At(offset)},
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	defer consumer.Close()

	pollCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	fetches := consumer.PollRecords(pollCtx, 1)
	if err := fetches.Err(); err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}
	records := fetches.Records()
	if len(records) == 0 || records[0].Offset != offset {
		return fmt.Errorf("no message at %d:%d", partition, offset)
	}

	producer, err := kgo.NewClient(kgo.SeedBrokers(cfg.Brokers()...))
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	defer producer.Close()

	if err := producer.ProduceSync(ctx, audit.RetryRecord(records[0], cfg.Kafka.Topic)).FirstErr(); err != nil {
		return fmt.Errorf("failed to re-publish message: %w", err)
	}

	logger.Info("message re-published for processing")
	return nil
}
