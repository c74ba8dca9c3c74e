package embeddingFactory

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/internal/rag/embedding"
	"github.com/akolanti/GoIngest/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/GoIngest/internal/rag/embedding/localEmbedding"
	"github.com/akolanti/GoIngest/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/GoIngest/pkg/logger_i"
)

var logger = logger_i.NewLogger("embedding_factory")

// Factory builds providers from collection settings and reuses one per provider, model and dimension.
type Factory struct {
	creds      config.ProviderSettings
	settings   config.EmbeddingSettings
	httpClient *http.Client

	mu        sync.Mutex
	providers map[string]embedding.Provider
}

func NewFactory(creds config.ProviderSettings, settings config.EmbeddingSettings, httpClient *http.Client) *Factory {
	return &Factory{
		creds:      creds,
		settings:   settings,
		httpClient: httpClient,
		providers:  make(map[string]embedding.Provider),
	}
}

func (f *Factory) Provider(ctx context.Context, tag, model string, dims int) (embedding.Provider, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		tag = embedding.OpenAI
	}
	key := fmt.Sprintf("%s|%s|%d", tag, model, dims)

	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.providers[key]; ok {
		return p, nil
	}

	p, err := f.build(ctx, tag, model, dims)
	if err != nil {
		return nil, err
	}
	if f.settings.CacheEnabled {
		p = embedding.NewCachedProvider(p, f.settings.CacheSize, f.settings.CacheTTL)
	}
	f.providers[key] = p
	logger.Info("embedding provider ready", "provider", tag, "model", p.Model(), "dimensions", p.Dimensions())
	return p, nil
}

func (f *Factory) build(ctx context.Context, tag, model string, dims int) (embedding.Provider, error) {
	switch tag {
	case embedding.OpenAI:
		return openaiEmbedding.New(openaiEmbedding.Options{
			APIKey:            f.creds.OpenAIAPIKey,
			BaseURL:           f.creds.OpenAIBaseURL,
			Model:             model,
			Dimensions:        dims,
			RequestsPerSecond: f.settings.RequestsPerSecond,
			HTTPClient:        f.httpClient,
		})
	case embedding.Google:
		return googleEmbedding.New(ctx, googleEmbedding.Options{
			APIKey:            f.creds.GoogleAPIKey,
			Model:             model,
			Dimensions:        dims,
			RequestsPerSecond: f.settings.RequestsPerSecond,
		})
	case embedding.Local:
		return localEmbedding.New(model, dims), nil
	case embedding.Cohere, embedding.HuggingFace:
		return nil, embedding.NotImplemented(tag)
	default:
		return nil, ragErrors.NewEmbeddingError(ragErrors.UnsupportedProvider, fmt.Sprintf("unsupported embedding provider %q", tag), nil)
	}
}
