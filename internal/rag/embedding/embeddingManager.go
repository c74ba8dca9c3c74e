package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"golang.org/x/time/rate"
)

// Provider turns text into vectors of a fixed dimension.
type Provider interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	// EmbedMany preserves input order.
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}

const (
	OpenAI      = "openai"
	Google      = "google"
	Local       = "local"
	Cohere      = "cohere"
	HuggingFace = "huggingface"
)

var knownDimensions = map[string]int{
	"text-embedding-3-small":  1536,
	"text-embedding-3-large":  3072,
	"text-embedding-ada-002":  1536,
	"text-embedding-004":      768,
	"embed-english-v3.0":      1024,
	"embed-multilingual-v3.0": 1024,
	"all-MiniLM-L6-v2":        384,
}

// ResolveDimensions prefers the model table, then the override, then the default.
func ResolveDimensions(model string, override int) int {
	if d, ok := knownDimensions[model]; ok {
		return d
	}
	if override > 0 {
		return override
	}
	return config.DefaultEmbeddingDimensions
}

func KnownDimensions(model string) (int, bool) {
	d, ok := knownDimensions[model]
	return d, ok
}

// CheckVectors verifies count and dimension of a provider response.
func CheckVectors(vectors [][]float32, want int, dims int) error {
	if len(vectors) != want {
		return ragErrors.NewEmbeddingError(ragErrors.GenerationFailed, fmt.Sprintf("expected %d embeddings, got %d", want, len(vectors)), nil)
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return ragErrors.NewEmbeddingError(ragErrors.GenerationFailed, fmt.Sprintf("embedding %d is empty", i), nil)
		}
		if len(v) != dims {
			return ragErrors.NewEmbeddingError(ragErrors.GenerationFailed, fmt.Sprintf("embedding %d has %d dimensions, expected %d", i, len(v), dims), nil)
		}
	}
	return nil
}

// BatchFunc embeds one batch; it must return one vector per input.
type BatchFunc func(ctx context.Context, batch []string) ([][]float32, error)

// EmbedInBatches splits texts into batches of size, waits on limiter before each
// remote call and checks every batch against dims.
func EmbedInBatches(ctx context.Context, texts []string, size int, dims int, limiter *rate.Limiter, fn BatchFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ragErrors.NewEmbeddingError(ragErrors.GenerationFailed, "no input texts", nil)
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, ragErrors.NewEmbeddingError(ragErrors.GenerationFailed, fmt.Sprintf("input %d is empty", i), nil)
		}
	}
	if size <= 0 {
		size = config.EmbeddingBatchSize
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, ragErrors.NewEmbeddingError(ragErrors.GenerationFailed, "rate limiter wait aborted", err)
			}
		}
		vectors, err := fn(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if err := CheckVectors(vectors, end-start, dims); err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), config.EmbeddingRateBurst)
}

func NotImplemented(provider string) error {
	return ragErrors.NewEmbeddingError(ragErrors.NotImplemented, fmt.Sprintf("embedding provider %q is not implemented", provider), nil)
}

func MissingAPIKey(provider string) error {
	return ragErrors.NewEmbeddingError(ragErrors.MissingAPIKey, fmt.Sprintf("%s api key is not configured", provider), nil)
}

// EmbedOne is the single text form of EmbedMany shared by the providers.
func EmbedOne(ctx context.Context, p Provider, text string) ([]float32, error) {
	vectors, err := p.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
