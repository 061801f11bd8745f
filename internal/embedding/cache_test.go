package embedding

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 确定性的假Embedder，向量首元素为文本长度
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	model string
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string) ([][]float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = []float64{float64(len(t)), 0.5}
	}
	return out, nil
}

func (f *fakeEmbedder) GetDimensions() int { return 2 }
func (f *fakeEmbedder) Model() string      { return f.model }

func TestCachedEmbedderHitsSkipBackend(t *testing.T) {
	inner := &fakeEmbedder{model: "text-embedding-3-small"}
	cache := NewCache(100)
	ce := NewCachedEmbedder(inner, cache, "cred-a")

	ctx := context.Background()

	first, err := ce.EmbedStrings(ctx, []string{"golang", "mysql"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 1, inner.calls)

	// 第二次全部命中缓存，不再调用后端
	second, err := ce.EmbedStrings(ctx, []string{"golang", "mysql"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	hits, misses := cache.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(2), misses)
}

func TestCachedEmbedderPartialMiss(t *testing.T) {
	inner := &fakeEmbedder{model: "text-embedding-3-small"}
	ce := NewCachedEmbedder(inner, NewCache(100), "cred-a")

	ctx := context.Background()
	_, err := ce.EmbedStrings(ctx, []string{"golang"})
	require.NoError(t, err)

	// 混合命中与未命中时，结果顺序仍与输入一致
	out, err := ce.EmbedStrings(ctx, []string{"redis", "golang", "qdrant"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, float64(len("redis")), out[0][0])
	assert.Equal(t, float64(len("golang")), out[1][0])
	assert.Equal(t, float64(len("qdrant")), out[2][0])
	assert.Equal(t, 2, inner.calls)
}

func TestCacheIsolatesCredentialAndModel(t *testing.T) {
	cache := NewCache(100)

	innerA := &fakeEmbedder{model: "model-x"}
	innerB := &fakeEmbedder{model: "model-x"}
	ceA := NewCachedEmbedder(innerA, cache, "cred-a")
	ceB := NewCachedEmbedder(innerB, cache, "cred-b")

	ctx := context.Background()
	_, err := ceA.EmbedStrings(ctx, []string{"same text"})
	require.NoError(t, err)

	// 不同凭证不应命中对方的缓存条目
	_, err = ceB.EmbedStrings(ctx, []string{"same text"})
	require.NoError(t, err)
	assert.Equal(t, 1, innerA.calls)
	assert.Equal(t, 1, innerB.calls)

	// 同凭证换模型也不命中
	innerC := &fakeEmbedder{model: "model-y"}
	ceC := NewCachedEmbedder(innerC, cache, "cred-a")
	_, err = ceC.EmbedStrings(ctx, []string{"same text"})
	require.NoError(t, err)
	assert.Equal(t, 1, innerC.calls)
}

func TestCacheEviction(t *testing.T) {
	cache := NewCache(2)
	cache.Put("c", "m", "a", []float64{1})
	cache.Put("c", "m", "b", []float64{2})
	cache.Put("c", "m", "d", []float64{3})
	assert.LessOrEqual(t, cache.Len(), 2)
}

func TestCacheConcurrentAccess(t *testing.T) {
	cache := NewCache(1000)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.Put("c", "m", string(rune('a'+n)), []float64{float64(j)})
				cache.Get("c", "m", string(rune('a'+n)))
			}
		}(i)
	}
	wg.Wait()
}
