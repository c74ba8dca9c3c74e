package app

import (
	"context"
	"testing"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/rag/embedding"
	"github.com/akolanti/GoIngest/internal/rag/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localSettings(t *testing.T) *config.Settings {
	t.Helper()
	return &config.Settings{
		Log:  config.LogSettings{Level: "error"},
		Blob: config.BlobSettings{Backend: "memory"},
		LLM:  config.LLMSettings{Provider: "google"},
		VectorStores: []docModel.VectorStoreConfig{
			{Id: "local", Name: "local", Type: docModel.Faiss, ConnectionString: t.TempDir()},
		},
		ChunkingStrategies: []docModel.ChunkingStrategyConfig{
			{Id: "tiny", Name: "tiny", Type: docModel.FixedSize, ChunkSize: 200, ChunkOverlap: 20},
		},
		Collections: []docModel.Collection{{
			Id:                        "handbook",
			VectorStoreId:             "local",
			EmbeddingProvider:         embedding.Local,
			EmbeddingModel:            "local-hash",
			EmbeddingDimensions:       64,
			DefaultChunkingStrategyId: "tiny",
		}},
	}
}

func TestNewWiresConfiguredCollections(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, localSettings(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	coll, err := a.Orchestrator.Collection(ctx, "handbook")
	require.NoError(t, err)
	assert.True(t, coll.IsActive)

	text := "Expense reports are due on the fifth working day of each month. " +
		"Travel must be booked through the internal portal. " +
		"Laptops are replaced every three years."
	doc, err := a.Orchestrator.Ingest(ctx, ingest.IngestRequest{
		CollectionId: "handbook",
		Filename:     "handbook.txt",
		ContentType:  "text/plain",
		Data:         []byte(text),
	})
	require.NoError(t, err)
	assert.Equal(t, docModel.StatusCompleted, doc.ProcessingStatus)
	assert.NotEmpty(t, doc.BlobKey)

	stored, err := a.Blobs.Get(ctx, doc.BlobKey)
	require.NoError(t, err)
	assert.Equal(t, text, string(stored))

	results, err := a.Orchestrator.Search(ctx, ingest.SearchRequest{CollectionId: "handbook", Query: "When are expense reports due?", TopK: 2})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, doc.Id, results[0].DocumentId)
}

func TestNewRejectsUnknownLLMProvider(t *testing.T) {
	s := localSettings(t)
	s.LLM.Provider = "mystery"
	_, err := New(context.Background(), s)
	assert.Error(t, err)
}
