package embedding

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedProvider memoizes embeddings by model and text.
type CachedProvider struct {
	inner Provider
	cache *expirable.LRU[string, []float32]
}

func NewCachedProvider(inner Provider, size int, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		inner: inner,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

func (c *CachedProvider) key(text string) string {
	return c.inner.Model() + "\x00" + text
}

func (c *CachedProvider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(c.key(text)); ok {
		return v, nil
	}
	v, err := c.inner.EmbedOne(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(c.key(text), v)
	return v, nil
}

func (c *CachedProvider) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if v, ok := c.cache.Get(c.key(t)); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.inner.EmbedMany(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vectors[j]
		c.cache.Add(c.key(missTexts[j]), vectors[j])
	}
	return out, nil
}

func (c *CachedProvider) Dimensions() int { return c.inner.Dimensions() }
func (c *CachedProvider) Model() string   { return c.inner.Model() }
func (c *CachedProvider) Len() int        { return c.cache.Len() }
