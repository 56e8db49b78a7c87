package util

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// MaxKeyLen is the longest key handed to a provider verbatim.
// Memcached-style stores reject longer keys; Redis does not care.
const MaxKeyLen = 250

// ShortKey returns key unchanged when it fits in MaxKeyLen, otherwise
// prefix + ":#" + hex(sha256(key)). The result is deterministic.
func ShortKey(prefix, key string) string {
	if len(key) <= MaxKeyLen {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	return prefix + ":#" + hex.EncodeToString(sum[:])
}

// UniqSorted returns a sorted copy of in with duplicates and empty strings removed.
func UniqSorted(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	w := 0
	for i, s := range out {
		if i > 0 && s == out[w-1] {
			continue
		}
		out[w] = s
		w++
	}
	return out[:w]
}
