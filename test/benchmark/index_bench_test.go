// Package benchmark contains Go benchmarks for the tokenizer, the spatial
// encoder and the Redis-backed index engine.
package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/spatial"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/config"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/redis"
)

func newEngine(b *testing.B) *indexer.Engine {
	b.Helper()
	mr := miniredis.RunT(b)
	client, err := pkgredis.NewClient(config.RedisConfig{Addr: mr.Addr(), PoolSize: 8})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { client.Close() })
	return indexer.NewEngine(indexer.NewRedisStore(client), tokenizer.New(3), spatial.NewEncoder(8),
		indexer.Options{UpdateNgrams: true, MunicipalType: "commune", PurgeHousenumberBuckets: true})
}

func benchDoc(i int) *indexer.Document {
	lat, lon := 48.80+float64(i%1000)*1e-4, 2.30+float64(i%700)*1e-4
	return &indexer.Document{
		ID:       fmt.Sprintf("doc-%d", i),
		Name:     fmt.Sprintf("Rue Numéro %d", i%50),
		City:     "Paris",
		Postcode: "75011",
		Context:  "75, Paris, Île-de-France",
		Lat:      &lat,
		Lon:      &lon,
		Housenumbers: map[string]indexer.Point{
			"1":   {Lat: lat, Lon: lon},
			"3 b": {Lat: lat + 1e-5, Lon: lon},
		},
	}
}

// BenchmarkIndex measures one pipelined index call per document.
func BenchmarkIndex(b *testing.B) {
	engine := newEngine(b)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := engine.Index(ctx, benchDoc(i)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkIndexDeindex measures a full write and removal cycle.
func BenchmarkIndexDeindex(b *testing.B) {
	engine := newEngine(b)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		doc := benchDoc(i)
		if err := engine.Index(ctx, doc); err != nil {
			b.Fatal(err)
		}
		if err := engine.Deindex(ctx, doc.ID); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkIndexAll measures bulk throughput at several concurrency levels.
func BenchmarkIndexAll(b *testing.B) {
	docs := make([]*indexer.Document, 200)
	for i := range docs {
		docs[i] = benchDoc(i)
	}
	for _, c := range []int{1, 4, 16} {
		b.Run(fmt.Sprintf("concurrency_%d", c), func(b *testing.B) {
			engine := newEngine(b)
			ctx := context.Background()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := engine.IndexAll(ctx, docs, c); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
