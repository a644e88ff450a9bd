// Package tokenizer turns document text into index tokens. It strips
// accents, lower-cases input and splits on non-alphanumeric boundaries. It
// also derives the edge n-grams used for autocomplete expansion.
package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMinEdgeNgram is the shortest prefix stored for a token.
const DefaultMinEdgeNgram = 3

// Tokenizer is safe for concurrent use.
type Tokenizer struct {
	minEdgeNgram int
}

// New returns a Tokenizer producing edge n-grams of at least minEdgeNgram
// runes. Non-positive values fall back to DefaultMinEdgeNgram.
func New(minEdgeNgram int) *Tokenizer {
	if minEdgeNgram <= 0 {
		minEdgeNgram = DefaultMinEdgeNgram
	}
	return &Tokenizer{minEdgeNgram: minEdgeNgram}
}

// Tokenize returns the normalised tokens of text in order. Repeated words
// are kept.
func (t *Tokenizer) Tokenize(text string) []string {
	text = strings.ToLower(unaccent(text))
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return nil
	}
	return words
}

// EdgeNgrams returns the proper prefixes of token with at least
// minEdgeNgram runes. The token itself is not included.
func (t *Tokenizer) EdgeNgrams(token string) []string {
	r := []rune(token)
	if len(r) <= t.minEdgeNgram {
		return nil
	}
	ngrams := make([]string, 0, len(r)-t.minEdgeNgram)
	for i := t.minEdgeNgram; i < len(r); i++ {
		ngrams = append(ngrams, string(r[:i]))
	}
	return ngrams
}

// unaccent decomposes text and drops combining marks, so "Évry" becomes
// "Evry".
func unaccent(text string) string {
	chain := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(chain, text)
	if err != nil {
		return text
	}
	return out
}
