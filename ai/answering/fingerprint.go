package answering

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns the answer-cache key of a question: a 64-bit xxhash of
// its lower-cased, trimmed text, hex encoded. Not collision resistant.
func Fingerprint(question string) string {
	normalized := strings.TrimSpace(strings.ToLower(question))
	return strconv.FormatUint(xxhash.Sum64String(normalized), 16)
}
