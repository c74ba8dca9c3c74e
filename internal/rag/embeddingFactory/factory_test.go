package embeddingFactory

import (
	"context"
	"testing"
	"time"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/internal/rag/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderTags(t *testing.T) {
	f := NewFactory(config.ProviderSettings{}, config.EmbeddingSettings{}, nil)

	tests := []struct {
		tag  string
		code string
	}{
		{embedding.OpenAI, ragErrors.MissingAPIKey},
		{embedding.Google, ragErrors.MissingAPIKey},
		{embedding.Cohere, ragErrors.NotImplemented},
		{embedding.HuggingFace, ragErrors.NotImplemented},
		{"voyage", ragErrors.UnsupportedProvider},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			_, err := f.Provider(context.Background(), tt.tag, "", 0)
			assert.Equal(t, tt.code, ragErrors.CodeOf(err))
		})
	}
}

func TestLocalProviderIsReused(t *testing.T) {
	f := NewFactory(config.ProviderSettings{}, config.EmbeddingSettings{}, nil)

	p1, err := f.Provider(context.Background(), "Local", "", 128)
	require.NoError(t, err)
	p2, err := f.Provider(context.Background(), embedding.Local, "", 128)
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	assert.Equal(t, 128, p1.Dimensions())

	p3, err := f.Provider(context.Background(), embedding.Local, "", 64)
	require.NoError(t, err)
	assert.NotSame(t, p1, p3)
}

func TestCacheWrap(t *testing.T) {
	f := NewFactory(config.ProviderSettings{}, config.EmbeddingSettings{CacheEnabled: true, CacheSize: 10, CacheTTL: time.Minute}, nil)

	p, err := f.Provider(context.Background(), embedding.Local, "", 16)
	require.NoError(t, err)
	cached, ok := p.(*embedding.CachedProvider)
	require.True(t, ok)

	_, err = p.EmbedOne(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, 1, cached.Len())
}
