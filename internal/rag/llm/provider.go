package llm

import (
	"context"
	"errors"
)

var ErrMissingAPIKey = errors.New("llm api key is not configured")

// Provider is a single turn chat completion client.
type Provider interface {
	// Complete runs one turn on model, or on the provider's default model when model is empty.
	Complete(ctx context.Context, model string, systemPrompt string, userPrompt string) (string, error)
	// Ready reports ErrMissingAPIKey before any call is attempted.
	Ready() error
	Model() string
}
