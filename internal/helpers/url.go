package helpers

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// NormalizeURL strips the query string and fragment from a URL so the same
// page reached through different tracking parameters dedupes to one key.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

// SourcesHash fingerprints a set of source URLs independent of order. URLs
// are normalized, sorted and hashed so the same evidence set always maps to
// the same analysis cache key.
func SourcesHash(urls []string) string {
	normalized := make([]string, 0, len(urls))
	for _, u := range urls {
		normalized = append(normalized, NormalizeURL(u))
	}
	sort.Strings(normalized)
	sum := sha256.Sum256([]byte(strings.Join(normalized, "\n")))
	return hex.EncodeToString(sum[:])
}
