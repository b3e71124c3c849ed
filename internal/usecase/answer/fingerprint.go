package answer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// fingerprintPrefix namespaces response-cache keys in the shared keyspace.
const fingerprintPrefix = "query:"

// Fingerprint derives a deterministic cache key from the resolved request
// parameters. The canonical form is JSON with keys in a fixed order, so two
// requests asking the same question the same way always share a key.
func Fingerprint(query string, topK int, useHybrid, useRerank bool) string {
	blob, _ := json.Marshal(struct {
		Query     string `json:"query"`
		TopK      int    `json:"top_k"`
		UseHybrid bool   `json:"use_hybrid"`
		UseRerank bool   `json:"use_rerank"`
	}{query, topK, useHybrid, useRerank})

	sum := sha256.Sum256(blob)
	return fingerprintPrefix + hex.EncodeToString(sum[:])
}
