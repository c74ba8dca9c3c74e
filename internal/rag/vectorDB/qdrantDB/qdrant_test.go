package qdrantDB

import (
	"context"
	"os"
	"testing"

	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointId(t *testing.T) {
	u := uuid.NewString()
	assert.Equal(t, u, pointId(u).GetUuid())

	a := pointId("doc-1_chunk_0").GetUuid()
	b := pointId("doc-1_chunk_0").GetUuid()
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, pointId("doc-1_chunk_1").GetUuid())
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestPayloadRoundTrip(t *testing.T) {
	payload, err := buildPayload(vectorDB.Record{
		Id:      "c1",
		Content: "hello",
		Metadata: map[string]any{
			"document_id": "d1",
			"chunk_index": 3,
			"score":       0.5,
			"tags":        []string{"a", "b"},
			"ocr":         false,
		},
	})
	require.NoError(t, err)

	id, content, meta := recordFromPayload(payload)
	assert.Equal(t, "c1", id)
	assert.Equal(t, "hello", content)
	assert.Equal(t, "d1", meta["document_id"])
	assert.Equal(t, int64(3), meta["chunk_index"])
	assert.Equal(t, 0.5, meta["score"])
	assert.Equal(t, []any{"a", "b"}, meta["tags"])
	assert.Equal(t, false, meta["ocr"])
}

func TestBuildFilter(t *testing.T) {
	f, rest := buildFilter(nil)
	assert.Nil(t, f)
	assert.Nil(t, rest)

	f, rest = buildFilter(vectorDB.Filter{"document_id": "d1", "chunk_index": 2, "page": 1.0, "ratio": 0.25})
	require.NotNil(t, f)
	assert.Len(t, f.Must, 3)
	assert.Equal(t, vectorDB.Filter{"ratio": 0.25}, rest)

	f, rest = buildFilter(vectorDB.Filter{"tags": []string{"x"}})
	assert.Nil(t, f)
	assert.Equal(t, vectorDB.Filter{"tags": []string{"x"}}, rest)
}

func TestFromConfig(t *testing.T) {
	s, err := FromConfig(docModel.VectorStoreConfig{Id: "q", Type: docModel.Qdrant, ConnectionString: "qdrant.local:7000", APIKey: "k"})
	require.NoError(t, err)
	qs := s.(*Store)
	assert.Equal(t, "qdrant.local", qs.opts.Host)
	assert.Equal(t, 7000, qs.opts.Port)
	assert.Equal(t, "k", qs.opts.APIKey)

	s, err = FromConfig(docModel.VectorStoreConfig{Id: "q", Type: docModel.Qdrant, ConnectionString: "qdrant.local"})
	require.NoError(t, err)
	assert.Equal(t, 6334, s.(*Store).opts.Port)

	_, err = FromConfig(docModel.VectorStoreConfig{Id: "q", Type: docModel.Qdrant, ConnectionString: "qdrant.local:abc"})
	assert.True(t, ragErrors.HasCode(err, ragErrors.ConnectionFailed))
}

func TestNotConnected(t *testing.T) {
	s := New(Options{})
	assert.False(t, s.IsConnected())
	_, err := s.Search(context.Background(), "docs", []float32{1}, 1, nil)
	assert.True(t, ragErrors.HasCode(err, ragErrors.ConnectionFailed))
}

// Runs against a live qdrant when QDRANT_TEST_ADDR (host:grpcport) is set.
func TestLiveStore(t *testing.T) {
	addr := os.Getenv("QDRANT_TEST_ADDR")
	if addr == "" {
		t.Skip("QDRANT_TEST_ADDR not set")
	}
	ctx := context.Background()
	store, err := FromConfig(docModel.VectorStoreConfig{Id: "q", Type: docModel.Qdrant, ConnectionString: addr})
	require.NoError(t, err)
	require.NoError(t, store.Connect(ctx))
	defer store.Close()

	const name = "goingest_test"
	_ = store.DeleteCollection(ctx, name)
	require.NoError(t, store.CreateCollection(ctx, name, 3, vectorDB.CollectionOptions{}))
	defer store.DeleteCollection(ctx, name)

	require.NoError(t, store.AddDocuments(ctx, name, []vectorDB.Record{
		{Id: "a", Content: "alpha", Embedding: []float32{1, 0, 0}, Metadata: map[string]any{"document_id": "d1"}},
		{Id: "b", Content: "beta", Embedding: []float32{0, 1, 0}, Metadata: map[string]any{"document_id": "d2"}},
	}))

	matches, err := store.Search(ctx, name, []float32{1, 0, 0}, 5, vectorDB.Filter{"document_id": "d2"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].Id)

	content := "alpha v2"
	require.NoError(t, store.UpdateDocument(ctx, name, vectorDB.Update{Id: "a", Content: &content, Metadata: map[string]any{"page": 1}}))
	rec, err := store.GetDocument(ctx, name, "a")
	require.NoError(t, err)
	assert.Equal(t, "alpha v2", rec.Content)
	assert.Equal(t, "d1", rec.Metadata["document_id"])

	require.NoError(t, store.DeleteDocuments(ctx, name, []string{"a"}))
	stats, err := store.Stats(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, 3, stats.Dimensions)
}
