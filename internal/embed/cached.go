package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/contextmemory/workmem/internal/fingerprint"
)

// DefaultFingerprintCacheSize is the default number of content fingerprints
// to cache. A full 13-slot fingerprint is larger than one embedding vector,
// so the default is lower than a single-vector cache would use.
const DefaultFingerprintCacheSize = 500

// CachedProvider wraps a Provider with LRU caching keyed by content hash,
// avoiding redundant work when the same content is captured or queried
// more than once in a session.
type CachedProvider struct {
	inner Provider
	cache *lru.Cache[string, EmbedderOutput]
}

var _ Provider = (*CachedProvider)(nil)

// NewCachedProvider wraps inner with an LRU cache of the given size. A
// non-positive size falls back to DefaultFingerprintCacheSize.
func NewCachedProvider(inner Provider, cacheSize int) *CachedProvider {
	if cacheSize <= 0 {
		cacheSize = DefaultFingerprintCacheSize
	}
	cache, _ := lru.New[string, EmbedderOutput](cacheSize)
	return &CachedProvider{inner: inner, cache: cache}
}

func (c *CachedProvider) cacheKey(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// EmbedAll returns a cached fingerprint if content was seen before,
// otherwise computes and caches it.
func (c *CachedProvider) EmbedAll(ctx context.Context, content string) (EmbedderOutput, error) {
	key := c.cacheKey(content)
	if out, ok := c.cache.Get(key); ok {
		return out, nil
	}

	out, err := c.inner.EmbedAll(ctx, content)
	if err != nil {
		return EmbedderOutput{}, err
	}
	c.cache.Add(key, out)
	return out, nil
}

// EmbedBatchAll embeds a batch of content strings, serving cached entries
// and delegating only the misses to the inner provider.
func (c *CachedProvider) EmbedBatchAll(ctx context.Context, contents []string) ([]EmbedderOutput, error) {
	if len(contents) == 0 {
		return []EmbedderOutput{}, nil
	}

	results := make([]EmbedderOutput, len(contents))
	missIdx := make([]int, 0, len(contents))
	missContent := make([]string, 0, len(contents))

	for i, content := range contents {
		if out, ok := c.cache.Get(c.cacheKey(content)); ok {
			results[i] = out
			continue
		}
		missIdx = append(missIdx, i)
		missContent = append(missContent, content)
	}

	if len(missContent) == 0 {
		return results, nil
	}

	computed, err := c.inner.EmbedBatchAll(ctx, missContent)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		results[idx] = computed[j]
		c.cache.Add(c.cacheKey(contents[idx]), computed[j])
	}

	return results, nil
}

// ModelIDs passes through to the inner provider.
func (c *CachedProvider) ModelIDs() [fingerprint.NumSlots]string {
	return c.inner.ModelIDs()
}

// IsReady passes through to the inner provider.
func (c *CachedProvider) IsReady() bool {
	return c.inner.IsReady()
}

// HealthStatus passes through to the inner provider.
func (c *CachedProvider) HealthStatus() [fingerprint.NumSlots]bool {
	return c.inner.HealthStatus()
}
