package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// Cache 进程内嵌入向量缓存，并发安全。
// 缓存键由凭证标识、模型名和文本哈希共同构成，
// 不同租户的凭证互不命中，同一文本换模型后也不会命中旧向量。
type Cache struct {
	mu         sync.RWMutex
	entries    map[string][]float64
	maxEntries int
	hits       int64
	misses     int64
}

// NewCache 创建嵌入缓存，maxEntries<=0时使用默认容量
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 8192
	}
	return &Cache{
		entries:    make(map[string][]float64),
		maxEntries: maxEntries,
	}
}

// cacheKey 组合凭证标识、模型名和文本哈希
func cacheKey(credIdentity, model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s|%s|%s", credIdentity, model, hex.EncodeToString(sum[:]))
}

// Get 查询缓存，未命中返回nil,false
func (c *Cache) Get(credIdentity, model, text string) ([]float64, bool) {
	key := cacheKey(credIdentity, model, text)
	c.mu.RLock()
	vec, ok := c.entries[key]
	c.mu.RUnlock()

	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
	return vec, ok
}

// Put 写入缓存，容量满时淘汰任意一条
func (c *Cache) Put(credIdentity, model, text string, vector []float64) {
	key := cacheKey(credIdentity, model, text)
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	c.entries[key] = vector
}

// Len 返回当前缓存条目数
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats 返回命中和未命中计数
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// CachedEmbedder 带缓存的Embedder装饰器。
// credIdentity绑定构造时使用的凭证，保证缓存键与凭证一致。
type CachedEmbedder struct {
	inner        Embedder
	cache        *Cache
	credIdentity string
}

// NewCachedEmbedder 用共享缓存包装一个Embedder
func NewCachedEmbedder(inner Embedder, cache *Cache, credIdentity string) *CachedEmbedder {
	return &CachedEmbedder{
		inner:        inner,
		cache:        cache,
		credIdentity: credIdentity,
	}
}

// EmbedStrings 先查缓存，只对未命中的文本调用底层服务
func (ce *CachedEmbedder) EmbedStrings(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float64, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if vec, ok := ce.cache.Get(ce.credIdentity, ce.inner.Model(), text); ok {
			results[i] = vec
		} else {
			missing = append(missing, text)
			missingIdx = append(missingIdx, i)
		}
	}

	if len(missing) > 0 {
		vectors, err := ce.inner.EmbedStrings(ctx, missing)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(missing) {
			return nil, fmt.Errorf("嵌入结果数量不匹配: 期望 %d, 实际 %d", len(missing), len(vectors))
		}
		for j, vec := range vectors {
			results[missingIdx[j]] = vec
			ce.cache.Put(ce.credIdentity, ce.inner.Model(), missing[j], vec)
		}
	}

	return results, nil
}

// GetDimensions 返回底层Embedder的维度
func (ce *CachedEmbedder) GetDimensions() int {
	return ce.inner.GetDimensions()
}

// Model 返回底层Embedder的模型名
func (ce *CachedEmbedder) Model() string {
	return ce.inner.Model()
}

var _ Embedder = (*CachedEmbedder)(nil)
