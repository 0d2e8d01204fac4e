package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

var _ port.Embedder = (*CachedEmbedder)(nil)

// EmbeddingCache is an LRU of text embeddings with a TTL.
type EmbeddingCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	vector    []float32
	timestamp time.Time
}

func NewEmbeddingCache(maxSize int, ttl time.Duration) *EmbeddingCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &EmbeddingCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(model, text string) string {
	hash := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(hash[:16])
}

func (c *EmbeddingCache) Get(model, text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(model, text)
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.timestamp) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}
	c.moveToEnd(key)
	return entry.vector, true
}

func (c *EmbeddingCache) Put(model, text string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(model, text)
	if _, ok := c.entries[key]; ok {
		c.entries[key] = &cacheEntry{vector: vector, timestamp: c.now()}
		c.moveToEnd(key)
		return
	}
	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = &cacheEntry{vector: vector, timestamp: c.now()}
	c.order = append(c.order, key)
}

func (c *EmbeddingCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *EmbeddingCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *EmbeddingCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *EmbeddingCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// CachedEmbedder serves repeated texts from an EmbeddingCache. Misses in a
// batch are sent to the wrapped embedder as one batch.
type CachedEmbedder struct {
	embedder port.Embedder
	cache    *EmbeddingCache
}

func NewCachedEmbedder(embedder port.Embedder, cache *EmbeddingCache) *CachedEmbedder {
	return &CachedEmbedder{embedder: embedder, cache: cache}
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	model := e.embedder.ModelName()
	if v, ok := e.cache.Get(model, text); ok {
		return v, nil
	}
	v, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Put(model, text, v)
	return v, nil
}

func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	model := e.embedder.ModelName()
	out := make([][]float32, len(texts))

	var missing []string
	var missingIdx []int
	for i, t := range texts {
		if v, ok := e.cache.Get(model, t); ok {
			out[i] = v
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := e.embedder.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, domain.Transient("embed", fmt.Errorf("got %d vectors for %d texts", len(vectors), len(missing)))
	}
	for j, v := range vectors {
		out[missingIdx[j]] = v
		e.cache.Put(model, missing[j], v)
	}
	return out, nil
}

func (e *CachedEmbedder) Dimension() int {
	return e.embedder.Dimension()
}

func (e *CachedEmbedder) ModelName() string {
	return e.embedder.ModelName()
}
