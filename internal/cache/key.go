package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// MakeKey builds a cache key in the
// "cache:{level}:{provider}:{identifier}[_{param_hash}]" schema. The
// param hash is a truncated SHA-256 of the sorted-key JSON encoding of
// params, so the same parameters always produce the same key across
// restarts. Credentials must never appear in params.
func MakeKey(level Level, provider, identifier string, params map[string]string) string {
	key := fmt.Sprintf("cache:%s:%s:%s", level, provider, identifier)
	if len(params) == 0 {
		return key
	}
	return key + "_" + paramHash(params)
}

func paramHash(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([][2]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]string{k, params[k]})
	}

	encoded, err := json.Marshal(pairs)
	if err != nil {
		// Marshaling a map[string]string can't fail; this only guards
		// against a future change to the parameter type.
		encoded = []byte(fmt.Sprintf("%v", pairs))
	}

	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])[:8]
}
