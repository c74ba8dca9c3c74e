package openaiChat

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/rag/llm"
	"github.com/akolanti/GoIngest/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var logger = logger_i.NewLogger("llm_openai")

type Client struct {
	client    *openai.Client
	modelName string
}

type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

func New(opts Options) *Client {
	model := opts.Model
	if model == "" {
		model = config.OpenAIChatModel
	}
	if opts.APIKey == "" {
		logger.Warn("no api key, openai chat client disabled")
		return &Client{modelName: model}
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey), option.WithMaxRetries(2)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	c := openai.NewClient(reqOpts...)
	return &Client{client: &c, modelName: model}
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

	res, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(float64(config.ModelTemperature)),
		MaxTokens:   openai.Int(config.LLMMaxTokens),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			logger.Error("openai chat api error", "model", model, "status", apiErr.StatusCode)
		}
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(res.Choices) == 0 || res.Choices[0].Message.Content == "" {
		return "", errors.New("openai returned an empty response")
	}
	return res.Choices[0].Message.Content, nil
}
