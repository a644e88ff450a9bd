// Package keys maps index entities to Redis keys. Every entity kind lives in
// its own prefix namespace.
package keys

import "strings"

const (
	tokenPrefix       = "w|"
	ngramPrefix       = "n|"
	pairPrefix        = "p|"
	geohashPrefix     = "g|"
	documentPrefix    = "d|"
	housenumberPrefix = "h|"
	scratchPrefix     = "didx|"
)

// Glob patterns matching every key of one namespace.
const (
	TokenPattern     = tokenPrefix + "*"
	EdgeNgramPattern = ngramPrefix + "*"
)

func Token(token string) string { return tokenPrefix + token }

// TokenOf returns the token a posting key was built from.
func TokenOf(key string) (string, bool) {
	return strings.CutPrefix(key, tokenPrefix)
}

func EdgeNgram(ngram string) string { return ngramPrefix + ngram }

func Pair(token string) string { return pairPrefix + token }

func Geohash(bucket string) string { return geohashPrefix + bucket }

func Document(id string) string { return documentPrefix + id }

// HousenumberField is the record field name holding a packed house number.
func HousenumberField(token string) string { return housenumberPrefix + token }

// IsHousenumberField reports whether a record field was written by
// HousenumberField.
func IsHousenumberField(field string) bool {
	return strings.HasPrefix(field, housenumberPrefix)
}

// PairScratch names the throwaway key used to intersect the postings of a
// and b.
func PairScratch(a, b string) string {
	return scratchPrefix + a + "|" + b
}
