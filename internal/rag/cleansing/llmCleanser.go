package cleansing

import (
	"context"
	"errors"
	"strings"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/internal/rag/llm"
	"golang.org/x/sync/errgroup"
)

const cleansingPrompt = `You are a text cleaning assistant. Clean the text you are given:
- preserve the original meaning and all factual content
- fix grammar and obvious typos
- remove boilerplate, navigation text, headers, footers and document metadata
- keep technical terms, names, numbers and code exactly as written
Return only the cleaned text, with no commentary.`

// LLMCleanser runs Basic first and then, when the config names a model, asks an LLM
// to polish the result. LLM failures fall back to the basic output.
type LLMCleanser struct {
	basic    *Basic
	provider llm.Provider
	limit    int
}

func NewLLMCleanser(basic *Basic, provider llm.Provider) *LLMCleanser {
	if basic == nil {
		basic = NewBasic()
	}
	return &LLMCleanser{basic: basic, provider: provider, limit: config.LLMCleansingBatchSize}
}

func (c *LLMCleanser) ready() error {
	if c.provider == nil {
		return ragErrors.NewCleansingError(ragErrors.MissingAPIKey, "no llm provider configured", nil)
	}
	if err := c.provider.Ready(); err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) {
			return ragErrors.NewCleansingError(ragErrors.MissingAPIKey, "llm api key is not configured", err)
		}
		return ragErrors.NewCleansingError(ragErrors.LLMCleansingFailed, "llm provider is not ready", err)
	}
	return nil
}

func (c *LLMCleanser) Cleanse(ctx context.Context, text string, cfg docModel.CleansingConfig) (string, error) {
	cleaned, err := c.basic.Cleanse(ctx, text, cfg)
	if err != nil {
		return "", err
	}
	if cfg.LLMModelId == "" || strings.TrimSpace(cleaned) == "" {
		return cleaned, nil
	}
	if err := c.ready(); err != nil {
		return "", err
	}
	return c.polish(ctx, cleaned, cfg.LLMModelId), nil
}

func (c *LLMCleanser) CleanseChunks(ctx context.Context, texts []string, cfg docModel.CleansingConfig) ([]string, error) {
	cleaned, err := c.basic.CleanseChunks(ctx, texts, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.LLMModelId == "" {
		return cleaned, nil
	}
	if err := c.ready(); err != nil {
		return nil, err
	}

	out := make([]string, len(cleaned))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)
	for i, t := range cleaned {
		if strings.TrimSpace(t) == "" {
			out[i] = t
			continue
		}
		g.Go(func() error {
			out[i] = c.polish(gctx, t, cfg.LLMModelId)
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// polish never fails; the basic text is returned on any llm error.
func (c *LLMCleanser) polish(ctx context.Context, text string, modelId string) string {
	res, err := c.provider.Complete(ctx, modelId, cleansingPrompt, text)
	if err != nil {
		logger.Warn("llm cleansing failed, keeping basic output", "model", modelId, "error", err)
		return text
	}
	res = strings.TrimSpace(res)
	if res == "" {
		return text
	}
	return res
}
