// Command loadtest drives the indexer admin API with synthetic documents.
// Each worker indexes a document and, with -churn, deindexes it again, so
// the run measures both write paths of the engine.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8090] [-concurrency 10] [-duration 30s] [-churn]
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Churn       bool
}

// opStats accumulates results for one operation ("index" or "deindex").
type opStats struct {
	total       atomic.Int64
	errors      atomic.Int64
	latencies   []time.Duration
	latenciesMu sync.Mutex
	codes       map[int]*atomic.Int64
	codesMu     sync.Mutex
}

func newOpStats() *opStats {
	return &opStats{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]*atomic.Int64),
	}
}

func (s *opStats) record(duration time.Duration, statusCode int, err error) {
	s.total.Add(1)
	if err != nil || statusCode < 200 || statusCode >= 300 {
		s.errors.Add(1)
	}
	if err != nil {
		return
	}
	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.codesMu.Lock()
	if _, ok := s.codes[statusCode]; !ok {
		s.codes[statusCode] = &atomic.Int64{}
	}
	s.codes[statusCode].Add(1)
	s.codesMu.Unlock()
}

var (
	streets = []string{"Rue de la Paix", "Avenue Foch", "Boulevard Haussmann", "Quai de Valmy", "Place d'Italie"}
	cities  = []string{"Paris", "Lyon", "Marseille", "Lille", "Nantes"}
)

func main() {
	baseURL := flag.String("url", "http://localhost:8090", "base URL of the indexer admin API")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	churn := flag.Bool("churn", true, "deindex every document after indexing it")
	flag.Parse()

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		Churn:       *churn,
	}

	fmt.Println("=== Geo Index Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Churn:       %v\n", cfg.Churn)
	fmt.Println()

	index, deindex := runLoadTest(cfg)
	ok := printReport("index", index, cfg.Duration)
	if cfg.Churn {
		ok = printReport("deindex", deindex, cfg.Duration) && ok
	}
	if !ok {
		fmt.Println("WARNING: No requests completed. Is the indexer running?")
		os.Exit(1)
	}
}

func syntheticDocument(worker, seq int) indexer.Document {
	n := worker*1_000_003 + seq
	lat := 43.0 + float64(n%5000)*1e-3
	lon := -1.0 + float64(n%7000)*1e-3
	return indexer.Document{
		ID:       uuid.NewString(),
		Name:     streets[n%len(streets)],
		City:     cities[n%len(cities)],
		Postcode: fmt.Sprintf("%05d", 1000+n%94000),
		Lat:      &lat,
		Lon:      &lon,
		Housenumbers: map[string]indexer.Point{
			fmt.Sprint(1 + n%200): {Lat: lat, Lon: lon},
		},
	}
}

func runLoadTest(cfg Config) (index, deindex *opStats) {
	index, deindex = newOpStats(), newOpStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for seq := 0; ctx.Err() == nil; seq++ {
				doc := syntheticDocument(workerID, seq)
				body, _ := json.Marshal(doc)
				do(ctx, client, index, http.MethodPost, cfg.BaseURL+"/api/v1/documents", body)
				if cfg.Churn {
					do(ctx, client, deindex, http.MethodDelete, cfg.BaseURL+"/api/v1/documents/"+doc.ID, nil)
				}
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return index, deindex
}

func do(ctx context.Context, client *http.Client, stats *opStats, method, url string, body []byte) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		panic(fmt.Sprintf("creating request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			stats.record(duration, 0, err)
		}
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	stats.record(duration, resp.StatusCode, nil)
}

func printReport(op string, stats *opStats, duration time.Duration) bool {
	total := stats.total.Load()
	errors := stats.errors.Load()

	fmt.Printf("=== %s ===\n", op)
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Errors:          %d\n", errors)
	if total == 0 {
		fmt.Println()
		return false
	}
	fmt.Printf("Error Rate:      %.2f%%\n", float64(errors)/float64(total)*100)
	fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())

	stats.latenciesMu.Lock()
	latencies := append([]time.Duration(nil), stats.latencies...)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Printf("Latency min/avg: %s / %s\n", latencies[0], sum/time.Duration(len(latencies)))
		fmt.Printf("P50/P95/P99:     %s / %s / %s\n",
			percentile(latencies, 50), percentile(latencies, 95), percentile(latencies, 99))
		fmt.Printf("Max:             %s\n", latencies[len(latencies)-1])
	}

	stats.codesMu.Lock()
	codes := make([]int, 0, len(stats.codes))
	for code := range stats.codes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.codes[code].Load())
	}
	stats.codesMu.Unlock()
	fmt.Println()
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
