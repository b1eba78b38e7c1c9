package utils

import (
	"hash/fnv"
	"strconv"
)

// ShortHash returns a compact, stable, non-cryptographic fingerprint of s,
// suitable for cache validators such as ETags.
func ShortHash(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return strconv.FormatUint(h.Sum64(), 36)
}
