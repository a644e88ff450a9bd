// Command indexer runs the geo index writer.
//
// It consumes document events from Kafka, applies them to the Redis index,
// records each outcome in PostgreSQL (when configured) and publishes an
// index-complete notification. An admin HTTP API on cfg.Server.Port offers
// synchronous index, deindex and lookup.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/handler"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/spatial"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/status"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if err := run(cfg); err != nil {
		slog.Error("indexer service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("indexer service stopped")
}

func run(cfg *config.Config) error {
	slog.Info("starting indexer service",
		"redis", cfg.Redis.Addr,
		"geohash_precision", cfg.Indexer.GeohashPrecision,
		"min_edge_ngram", cfg.Indexer.MinEdgeNgram,
	)
	m := metrics.New()
	shutdownMetrics := metrics.StartServer(cfg.Metrics)

	client, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		return err
	}
	defer client.Close()

	opts := indexer.OptionsFromConfig(cfg.Indexer)
	opts.Metrics = m
	engine := indexer.NewEngine(
		indexer.NewRedisStore(client),
		tokenizer.New(cfg.Indexer.MinEdgeNgram),
		spatial.NewEncoder(cfg.Indexer.GeohashPrecision),
		opts,
	)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return err
	}
	checker := health.NewChecker()
	checker.Register("redis", health.PingCheck(client))
	if db != nil {
		defer db.Close()
		checker.Register("postgres", health.PingCheck(db))
	} else {
		slog.Info("postgres not configured, document status tracking disabled")
	}
	tracker := status.NewTracker(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := tracker.EnsureSchema(ctx); err != nil {
		return err
	}

	procOpts := consumer.Options{
		Tracker:          tracker,
		Metrics:          m,
		OperationTimeout: cfg.Indexer.OperationTimeout,
		RetryAttempts:    cfg.Indexer.RetryAttempts,
	}
	if topic := cfg.Kafka.Topics.IndexComplete; topic != "" {
		notifier := kafka.NewProducer[ingestion.IndexCompleteEvent](cfg.Kafka, topic)
		defer notifier.Close()
		procOpts.Notifier = notifier
	}
	proc := consumer.NewProcessor(engine, procOpts)
	checker.Register("index-breaker", health.BreakerCheck(proc.Breaker()))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.NewRouter(handler.New(engine, tracker, cfg.Indexer.BulkConcurrency), checker, m, cfg.Indexer.OperationTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("admin API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	})
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topics.DocumentEvents != "" {
		events := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentEvents, proc.Handle)
		g.Go(func() error {
			slog.Info("consuming document events",
				"topic", cfg.Kafka.Topics.DocumentEvents,
				"group", cfg.Kafka.ConsumerGroup,
			)
			return events.Start(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
