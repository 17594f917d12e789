package fingerprint

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tinytelemetry/slowdigest/internal/model"
)

// maxCachedLen keeps very large bodies (bulk inserts) out of the cache.
const maxCachedLen = 8 * 1024

// Normalizer memoizes Normalize for repeated SQL bodies. It is safe for
// concurrent use.
type Normalizer struct {
	cache *lru.Cache[string, string]
}

// NewNormalizer creates a Normalizer holding up to size fingerprints.
// A non-positive size uses model.DefaultCacheSize.
func NewNormalizer(size int) (*Normalizer, error) {
	if size <= 0 {
		size = model.DefaultCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("creating fingerprint cache: %w", err)
	}
	return &Normalizer{cache: cache}, nil
}

// Normalize returns the fingerprint of sql.
func (n *Normalizer) Normalize(sql string) string {
	if len(sql) > maxCachedLen {
		return Normalize(sql)
	}
	if fp, ok := n.cache.Get(sql); ok {
		return fp
	}
	fp := Normalize(sql)
	n.cache.Add(sql, fp)
	return fp
}

// Len returns the number of cached fingerprints.
func (n *Normalizer) Len() int { return n.cache.Len() }
