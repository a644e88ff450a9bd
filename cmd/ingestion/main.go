// Command ingestion starts the asynchronous document API.
//
// Index and deindex requests are validated and published to the document
// events topic, keyed by document id, for cmd/indexer to apply.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/middleware"
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
	slog.Info("starting ingestion service", "port", cfg.Server.Port)

	m := metrics.New()
	shutdownMetrics := metrics.StartServer(cfg.Metrics)

	producer := kafka.NewProducer[ingestion.DocumentEvent](cfg.Kafka, cfg.Kafka.Topics.DocumentEvents)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.DocumentEvents)

	mux := http.NewServeMux()
	handler.New(publisher.New(producer)).Routes(mux)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, middleware.RequestID, middleware.Metrics(m)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}()
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}
