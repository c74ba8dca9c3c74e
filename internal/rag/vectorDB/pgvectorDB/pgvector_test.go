package pgvectorDB

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertStatement(t *testing.T) {
	batch := []vectorDB.Record{
		{Id: "a", Content: "alpha", Embedding: []float32{1, 0}, Metadata: map[string]any{"page": 1}},
		{Id: "b", Content: "beta", Embedding: []float32{0, 1}},
	}
	query, args, err := upsertStatement("docs", batch)
	require.NoError(t, err)

	assert.Contains(t, query, "($1, $2, $3, $4::jsonb, $5::vector), ($6, $7, $8, $9::jsonb, $10::vector)")
	assert.Contains(t, query, "ON CONFLICT (collection, id) DO UPDATE")
	require.Len(t, args, 10)
	assert.Equal(t, "docs", args[0])
	assert.Equal(t, `{"page":1}`, args[3])
	assert.Equal(t, "{}", args[8])
}

func TestIndexStatement(t *testing.T) {
	stmt, err := indexStatement("docs", 1536, vectorDB.IndexOptions{Type: "HNSW"})
	require.NoError(t, err)
	assert.Equal(t, `CREATE INDEX IF NOT EXISTS "vector_documents_docs_idx" ON vector_documents USING hnsw ((embedding::vector(1536)) vector_cosine_ops) WITH (m = 16, ef_construction = 64) WHERE collection = 'docs'`, stmt)

	stmt, err = indexStatement("my-docs", 3, vectorDB.IndexOptions{Type: vectorDB.IndexIVFFlat, Lists: 10})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stmt, `CREATE INDEX IF NOT EXISTS "vector_documents_my-docs_idx" ON vector_documents USING ivfflat`))
	assert.Contains(t, stmt, "WITH (lists = 10)")

	_, err = indexStatement("docs", 3, vectorDB.IndexOptions{Type: "annoy"})
	assert.True(t, ragErrors.HasCode(err, ragErrors.InvalidIndexOptions))
}

func TestIndexNameFitsIdentifierLimit(t *testing.T) {
	assert.Equal(t, "vector_documents_docs_idx", indexName("docs"))

	long := strings.Repeat("a", 60)
	name := indexName(long + "-1")
	other := indexName(long + "-2")
	assert.LessOrEqual(t, len(name), maxIdentLength)
	assert.LessOrEqual(t, len(other), maxIdentLength)
	assert.NotEqual(t, name, other)
	assert.True(t, strings.HasPrefix(name, "vector_documents_aaaa"))
	assert.True(t, strings.HasSuffix(name, "_idx"))
	assert.Equal(t, name, indexName(long+"-1"))

	stmt, err := indexStatement(long+"-1", 3, vectorDB.IndexOptions{Type: vectorDB.IndexHNSW})
	require.NoError(t, err)
	assert.Contains(t, stmt, `"`+name+`"`)
}

func TestMetadataCodec(t *testing.T) {
	raw, err := encodeMetadata(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", raw)

	m, err := decodeMetadata([]byte(`{"document_id":"d1","chunk_index":2}`))
	require.NoError(t, err)
	assert.Equal(t, "d1", m["document_id"])
	assert.Equal(t, float64(2), m["chunk_index"])
}

func TestNotConnected(t *testing.T) {
	s := New("postgres://unused")
	assert.False(t, s.IsConnected())
	_, err := s.ListCollections(context.Background())
	assert.True(t, ragErrors.HasCode(err, ragErrors.ConnectionFailed))

	_, err = FromConfig(docModel.VectorStoreConfig{Id: "pg", Type: docModel.PgVector})
	assert.True(t, ragErrors.HasCode(err, ragErrors.ConnectionFailed))
}

// Runs against a live pgvector database when PGVECTOR_TEST_DSN is set.
func TestLiveStore(t *testing.T) {
	dsn := os.Getenv("PGVECTOR_TEST_DSN")
	if dsn == "" {
		t.Skip("PGVECTOR_TEST_DSN not set")
	}
	ctx := context.Background()
	s := New(dsn)
	require.NoError(t, s.Connect(ctx))
	defer s.Close()

	const name = "goingest_test"
	_ = s.DeleteCollection(ctx, name)
	require.NoError(t, s.CreateCollection(ctx, name, 3, vectorDB.CollectionOptions{Description: "test"}))
	defer s.DeleteCollection(ctx, name)

	err := s.CreateCollection(ctx, name, 3, vectorDB.CollectionOptions{})
	assert.True(t, ragErrors.HasCode(err, ragErrors.CollectionExists))

	require.NoError(t, s.AddDocuments(ctx, name, []vectorDB.Record{
		{Id: "a", Content: "alpha", Embedding: []float32{1, 0, 0}, Metadata: map[string]any{"document_id": "d1"}},
		{Id: "b", Content: "beta", Embedding: []float32{0, 1, 0}, Metadata: map[string]any{"document_id": "d2"}},
	}))

	matches, err := s.Search(ctx, name, []float32{1, 0.1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].Id)

	matches, err = s.Search(ctx, name, []float32{1, 0, 0}, 5, vectorDB.Filter{"document_id": "d2"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].Id)

	content := "beta v2"
	require.NoError(t, s.UpdateDocument(ctx, name, vectorDB.Update{Id: "b", Content: &content, Metadata: map[string]any{"page": 2}}))
	rec, err := s.GetDocument(ctx, name, "b")
	require.NoError(t, err)
	assert.Equal(t, "beta v2", rec.Content)
	assert.Equal(t, "d2", rec.Metadata["document_id"])

	err = s.UpdateDocument(ctx, name, vectorDB.Update{Id: "missing", Content: &content})
	assert.True(t, ragErrors.HasCode(err, ragErrors.DocumentNotFound))

	require.NoError(t, s.CreateIndex(ctx, name, vectorDB.IndexOptions{Type: vectorDB.IndexHNSW}))
	stats, err := s.Stats(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, "HNSW", stats.IndexType)

	require.NoError(t, s.DeleteDocuments(ctx, name, []string{"a"}))
	_, err = s.GetDocument(ctx, name, "a")
	assert.True(t, ragErrors.HasCode(err, ragErrors.DocumentNotFound))
}
