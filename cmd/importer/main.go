// Command importer loads JSON-lines documents into the index.
//
// In direct mode documents are written straight to Redis with bounded
// concurrency; in publish mode they are sent to the document events topic
// for cmd/indexer. With -deindex the lines' ids are removed instead.
//
// Large imports run faster with indexer.updateNgrams off; -rebuild-ngrams
// then fills the edge n-gram index in one pass once every line is written.
//
// Usage:
//
//	go run ./cmd/importer -file docs.jsonl [-mode direct|publish] [-deindex] [-batch 500] [-rebuild-ngrams]
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/spatial"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/logger"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/redis"
)

// sink receives one batch of documents.
type sink func(ctx context.Context, docs []*indexer.Document) (failed int, err error)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	file := flag.String("file", "-", "JSON-lines input, - for stdin")
	mode := flag.String("mode", "direct", "direct (write to Redis) or publish (send to Kafka)")
	deindex := flag.Bool("deindex", false, "remove the documents instead of indexing them")
	batchSize := flag.Int("batch", 500, "documents per batch")
	rebuildNgrams := flag.Bool("rebuild-ngrams", false, "rebuild the edge n-gram index after a direct import")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in := os.Stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			slog.Error("failed to open input", "file", *file, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	if *rebuildNgrams && *mode != "direct" {
		fmt.Fprintln(os.Stderr, "-rebuild-ngrams needs -mode direct")
		os.Exit(2)
	}

	var (
		send   sink
		engine *indexer.Engine
	)
	switch *mode {
	case "direct":
		client, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		engine = indexer.NewEngine(
			indexer.NewRedisStore(client),
			tokenizer.New(cfg.Indexer.MinEdgeNgram),
			spatial.NewEncoder(cfg.Indexer.GeohashPrecision),
			indexer.OptionsFromConfig(cfg.Indexer),
		)
		send = directSink(engine, cfg.Indexer.BulkConcurrency, *deindex)
	case "publish":
		producer := kafka.NewProducer[ingestion.DocumentEvent](cfg.Kafka, cfg.Kafka.Topics.DocumentEvents)
		defer producer.Close()
		send = publishSink(publisher.New(producer), *deindex)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(2)
	}

	start := time.Now()
	total, failed, err := importLines(ctx, in, *batchSize, send)
	slog.Info("import finished",
		"mode", *mode,
		"deindex", *deindex,
		"documents", total,
		"failed", failed,
		"duration", time.Since(start),
	)
	if err != nil {
		slog.Error("import aborted", "error", err)
		os.Exit(1)
	}

	if *rebuildNgrams {
		tokens, err := engine.RebuildNgrams(ctx)
		if err != nil {
			slog.Error("edge ngram rebuild failed", "tokens", tokens, "error", err)
			os.Exit(1)
		}
	}
}

// importLines decodes r line by line and hands full batches to send.
// Undecodable lines are counted as failures and skipped.
func importLines(ctx context.Context, r io.Reader, batchSize int, send sink) (total, failed int, err error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)

	batch := make([]*indexer.Document, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := send(ctx, batch)
		total += len(batch)
		failed += n
		batch = batch[:0]
		return err
	}

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var doc indexer.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			slog.Warn("skipping undecodable line", "line", line, "error", err)
			total++
			failed++
			continue
		}
		batch = append(batch, &doc)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return total, failed, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return total, failed, fmt.Errorf("reading input: %w", err)
	}
	return total, failed, flush()
}

func directSink(engine *indexer.Engine, concurrency int, deindex bool) sink {
	return func(ctx context.Context, docs []*indexer.Document) (int, error) {
		var (
			report indexer.BulkReport
			err    error
		)
		if deindex {
			ids := make([]string, len(docs))
			for i, d := range docs {
				ids[i] = d.ID
			}
			report, err = engine.DeindexAll(ctx, ids, concurrency)
		} else {
			report, err = engine.IndexAll(ctx, docs, concurrency)
		}
		for _, f := range report.Failures {
			slog.Warn("document failed", "doc_id", f.ID, "error", f.Err)
		}
		return len(report.Failures), err
	}
}

func publishSink(pub *publisher.Publisher, deindex bool) sink {
	return func(ctx context.Context, docs []*indexer.Document) (int, error) {
		if !deindex {
			return 0, pub.PublishIndexBatch(ctx, docs)
		}
		for _, d := range docs {
			if err := pub.PublishDeindex(ctx, d.ID); err != nil {
				return 0, err
			}
		}
		return 0, nil
	}
}
