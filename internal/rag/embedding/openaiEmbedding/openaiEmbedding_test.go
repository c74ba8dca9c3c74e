package openaiEmbedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

// fakeOpenAI answers /embeddings with vectors whose first element is the input index,
// returned in reverse order to check the client sorts by index.
func fakeOpenAI(t *testing.T, dims int, seen *[]embeddingRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		*seen = append(*seen, req)

		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float64, dims)
			vec[0] = float64(i)
			data = append(data, map[string]any{"object": "embedding", "index": i, "embedding": vec})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMissingAPIKey(t *testing.T) {
	_, err := New(Options{})
	assert.True(t, ragErrors.HasCode(err, ragErrors.MissingAPIKey))
}

func TestEmbedManyPreservesOrder(t *testing.T) {
	var seen []embeddingRequest
	srv := fakeOpenAI(t, 8, &seen)

	p, err := New(Options{APIKey: "test", BaseURL: srv.URL + "/", Model: "my-model", Dimensions: 8})
	require.NoError(t, err)
	assert.Equal(t, 8, p.Dimensions())

	vectors, err := p.EmbedMany(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i, v := range vectors {
		assert.Len(t, v, 8)
		assert.Equal(t, float32(i), v[0])
	}

	require.Len(t, seen, 1)
	assert.Equal(t, "my-model", seen[0].Model)
	assert.Zero(t, seen[0].Dimensions, "non v3 models do not send dimensions")
}

func TestDimensionsParamForV3(t *testing.T) {
	var seen []embeddingRequest
	srv := fakeOpenAI(t, 1536, &seen)

	p, err := New(Options{APIKey: "test", BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", p.Model())

	v, err := p.EmbedOne(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, v, 1536)
	require.Len(t, seen, 1)
	assert.Equal(t, 1536, seen[0].Dimensions)
}

func TestDimensionMismatch(t *testing.T) {
	var seen []embeddingRequest
	srv := fakeOpenAI(t, 4, &seen)

	p, err := New(Options{APIKey: "test", BaseURL: srv.URL + "/", Model: "my-model", Dimensions: 8})
	require.NoError(t, err)

	_, err = p.EmbedOne(context.Background(), "hello")
	assert.True(t, ragErrors.HasCode(err, ragErrors.GenerationFailed))
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	p, err := New(Options{APIKey: "bad", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	_, err = p.EmbedMany(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.Equal(t, ragErrors.APIError, ragErrors.CodeOf(err))

	var embErr *ragErrors.EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, http.StatusUnauthorized, embErr.StatusCode)
	assert.Contains(t, embErr.Body, "invalid api key")
}
