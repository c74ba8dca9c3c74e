package openaiChat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/akolanti/GoIngest/internal/rag/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// fakeChat answers /chat/completions by echoing the user message in upper case.
func fakeChat(t *testing.T) (*httptest.Server, func() []chatRequest) {
	t.Helper()
	var mu sync.Mutex
	var seen []chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "cleaned text"},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, func() []chatRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]chatRequest(nil), seen...)
	}
}

func TestCompleteUsesRequestedModel(t *testing.T) {
	srv, seen := fakeChat(t)
	c := New(Options{APIKey: "test", BaseURL: srv.URL + "/", Model: "default-model"})
	ctx := context.Background()

	out, err := c.Complete(ctx, "gpt-4o-mini", "system prompt", "raw text")
	require.NoError(t, err)
	assert.Equal(t, "cleaned text", out)

	_, err = c.Complete(ctx, "", "system prompt", "raw text")
	require.NoError(t, err)

	requests := seen()
	require.Len(t, requests, 2)
	assert.Equal(t, "gpt-4o-mini", requests[0].Model)
	assert.Equal(t, "default-model", requests[1].Model)
	require.Len(t, requests[0].Messages, 2)
	assert.Equal(t, "system prompt", requests[0].Messages[0].Content)
	assert.Equal(t, "raw text", requests[0].Messages[1].Content)
}

func TestCompleteWithoutKey(t *testing.T) {
	c := New(Options{})
	assert.True(t, errors.Is(c.Ready(), llm.ErrMissingAPIKey))
	_, err := c.Complete(context.Background(), "gpt-4o-mini", "s", "u")
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)
}
