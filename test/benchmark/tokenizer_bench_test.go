package benchmark

import (
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/spatial"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/tokenizer"
)

var sampleTexts = map[string]string{
	"short":  "Rue de l'Église",
	"medium": "Boulevard du Général Leclerc 92200 Neuilly-sur-Seine Hauts-de-Seine Île-de-France",
	"long":   strings.Repeat("Chemin des Écoliers Saint-Étienne-de-Saint-Geoirs Isère Auvergne-Rhône-Alpes ", 20),
}

func BenchmarkTokenize(b *testing.B) {
	tok := tokenizer.New(3)
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = tok.Tokenize(text)
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	tok := tokenizer.New(3)
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = tok.Tokenize(text)
		}
	})
}

func BenchmarkEdgeNgrams(b *testing.B) {
	tok := tokenizer.New(3)
	words := []string{"rue", "boulevard", "neuilly", "saint", "etienne", "auvergne"}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = tok.EdgeNgrams(words[i%len(words)])
	}
}

func BenchmarkGeohashEncode(b *testing.B) {
	enc := spatial.NewEncoder(8)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = enc.Encode(48.8566+float64(i%100)*1e-4, 2.3522)
	}
}
