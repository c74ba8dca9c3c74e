package googleEmbedding

import (
	"context"
	"errors"
	"time"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/internal/rag/embedding"
	"github.com/akolanti/GoIngest/pkg/logger_i"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

var logger = logger_i.NewLogger("google_embedding")

// retryDelay is a var so tests can shorten it.
var retryDelay = 5 * time.Second

type Options struct {
	APIKey            string
	Model             string
	Dimensions        int
	RequestsPerSecond float64
	TaskType          string
}

type client struct {
	genAi     *genai.Client
	model     string
	dimension int32
	taskType  string
	limiter   *rate.Limiter
}

func New(ctx context.Context, opts Options) (embedding.Provider, error) {
	if opts.APIKey == "" {
		return nil, embedding.MissingAPIKey(embedding.Google)
	}
	model := opts.Model
	if model == "" {
		model = config.GoogleEmbeddingModel
	}
	taskType := opts.TaskType
	if taskType == "" {
		taskType = "RETRIEVAL_DOCUMENT"
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: opts.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		logger.Error("Error creating Google Embedding client", "error", err)
		return nil, ragErrors.NewEmbeddingError(ragErrors.GenerationFailed, "failed to create google embedding client", err)
	}
	logger.Info("Google Embedding client created", "model", model)

	return &client{
		genAi:     c,
		model:     model,
		dimension: int32(embedding.ResolveDimensions(model, opts.Dimensions)),
		taskType:  taskType,
		limiter:   embedding.NewLimiter(opts.RequestsPerSecond),
	}, nil
}

func (c *client) Dimensions() int { return int(c.dimension) }
func (c *client) Model() string   { return c.model }

func (c *client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return embedding.EmbedOne(ctx, c, text)
}

func (c *client) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	return embedding.EmbedInBatches(ctx, texts, config.EmbeddingBatchSize, int(c.dimension), c.limiter, c.embedBatch)
}

func (c *client) embedBatch(ctx context.Context, chunks []string) ([][]float32, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	res, err := c.doCall(ctx, getContent(chunks))
	if err != nil && doRetry(err, log) {
		log.Debug("Retrying after rate limit", "delay", retryDelay)
		select {
		case <-ctx.Done():
			return nil, ragErrors.NewEmbeddingError(ragErrors.GenerationFailed, "context done while waiting to retry", ctx.Err())
		case <-time.After(retryDelay):
		}
		res, err = c.doCall(ctx, getContent(chunks))
	}
	if err != nil {
		log.Error("Error getting Embeddings from Google", "error", err)
		return nil, toEmbeddingError(err)
	}
	if res == nil {
		return nil, ragErrors.NewEmbeddingError(ragErrors.GenerationFailed, "google returned no embeddings", nil)
	}

	out := make([][]float32, 0, len(res.Embeddings))
	for _, r := range res.Embeddings {
		if r == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, r.Values)
	}
	return out, nil
}

func (c *client) doCall(ctx context.Context, content []*genai.Content) (*genai.EmbedContentResponse, error) {
	return c.genAi.Models.EmbedContent(ctx, c.model, content, &genai.EmbedContentConfig{
		OutputDimensionality: &c.dimension,
		TaskType:             c.taskType,
	})
}

func toEmbeddingError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return ragErrors.NewEmbeddingAPIError(apiErr.Code, apiErr.Message)
	}
	return ragErrors.NewEmbeddingError(ragErrors.GenerationFailed, "google embedding request failed", err)
}
