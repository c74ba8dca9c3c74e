package gemini

import (
	"cmp"
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/rag/llm"
	"github.com/akolanti/GoIngest/pkg/logger_i"
	"google.golang.org/genai"
)

var logger = logger_i.NewLogger("llm_gemini")

type Client struct {
	client    *genai.Client
	modelName string
}

// NewGeminiClient returns a provider whose Ready reports ErrMissingAPIKey when apiKey is empty.
func NewGeminiClient(ctx context.Context, apiKey string, modelName string) (*Client, error) {
	if modelName == "" {
		modelName = config.GeminiModelName
	}
	if apiKey == "" {
		logger.Warn("no api key, gemini client disabled")
		return &Client{modelName: modelName}, nil
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		logger.Error("Error creating Gemini client", "error", err)
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	logger.Info("Gemini client created", "model", modelName)
	return &Client{client: c, modelName: modelName}, nil
}

func (c *Client) Ready() error {
	if c.client == nil {
		return llm.ErrMissingAPIKey
	}
	return nil
}

func (c *Client) Model() string { return c.modelName }

func (c *Client) Complete(ctx context.Context, model string, systemPrompt string, userPrompt string) (string, error) {
	if err := c.Ready(); err != nil {
		return "", err
	}
	model = cmp.Or(model, c.modelName)
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	temperature := config.ModelTemperature
	contentConfig := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		},
		Temperature:     &temperature,
		MaxOutputTokens: config.LLMMaxTokens,
	}

	result, err := c.client.Models.GenerateContent(ctx, model, genai.Text(userPrompt), contentConfig)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			log.Error("gemini api error", "model", model, "code", apiErr.Code, "status", apiErr.Status)
		}
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := result.Text()
	if text == "" {
		return "", errors.New("gemini returned an empty response")
	}
	return text, nil
}
