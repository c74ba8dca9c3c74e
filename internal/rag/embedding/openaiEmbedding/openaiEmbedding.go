package openaiEmbedding

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/internal/rag/embedding"
	"github.com/akolanti/GoIngest/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

var logger = logger_i.NewLogger("openai_embedding")

type Options struct {
	APIKey            string
	BaseURL           string
	Model             string
	Dimensions        int
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

type client struct {
	api     openai.Client
	model   string
	dims    int
	limiter *rate.Limiter
}

func New(opts Options) (embedding.Provider, error) {
	if opts.APIKey == "" {
		return nil, embedding.MissingAPIKey(embedding.OpenAI)
	}
	model := opts.Model
	if model == "" {
		model = config.OpenAIEmbeddingModel
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey), option.WithMaxRetries(2)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	logger.Info("OpenAI embedding client created", "model", model)
	return &client{
		api:     openai.NewClient(reqOpts...),
		model:   model,
		dims:    embedding.ResolveDimensions(model, opts.Dimensions),
		limiter: embedding.NewLimiter(opts.RequestsPerSecond),
	}, nil
}

func (c *client) Dimensions() int { return c.dims }
func (c *client) Model() string   { return c.model }

func (c *client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return embedding.EmbedOne(ctx, c, text)
}

func (c *client) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	return embedding.EmbedInBatches(ctx, texts, config.EmbeddingBatchSize, c.dims, c.limiter, c.doCall)
}

func (c *client) doCall(ctx context.Context, batch []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
		Model: c.model,
	}
	// only the v3 models accept a dimensions parameter
	if strings.HasPrefix(c.model, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(c.dims))
	}

	resp, err := c.api.Embeddings.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			logger.Error("openai embedding api error", "status", apiErr.StatusCode)
			return nil, ragErrors.NewEmbeddingAPIError(apiErr.StatusCode, apiErr.RawJSON())
		}
		return nil, ragErrors.NewEmbeddingError(ragErrors.GenerationFailed, "openai embedding request failed", err)
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		v := make([]float32, len(d.Embedding))
		for j, x := range d.Embedding {
			v[j] = float32(x)
		}
		out[i] = v
	}
	return out, nil
}
