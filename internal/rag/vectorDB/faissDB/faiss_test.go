package faissDB

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type warnings struct {
	mu   sync.Mutex
	msgs []string
}

func (w *warnings) handler(msg string, _ ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msg)
}

func (w *warnings) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.msgs)
}

func newStore(t *testing.T, dir string) (*Store, *warnings) {
	t.Helper()
	w := &warnings{}
	s := New(dir, WithWarningHandler(w.handler))
	require.NoError(t, s.Connect(context.Background()))
	return s, w
}

func records() []vectorDB.Record {
	return []vectorDB.Record{
		{Id: "a", Content: "alpha", Embedding: []float32{1, 0, 0}, Metadata: map[string]any{"document_id": "d1", "chunk_index": 0}},
		{Id: "b", Content: "beta", Embedding: []float32{0, 1, 0}, Metadata: map[string]any{"document_id": "d1", "chunk_index": 1}},
		{Id: "c", Content: "gamma", Embedding: []float32{0, 0, 1}, Metadata: map[string]any{"document_id": "d2", "chunk_index": 0}},
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, t.TempDir())

	require.NoError(t, s.CreateCollection(ctx, "docs", 3, vectorDB.CollectionOptions{}))
	require.NoError(t, s.AddDocuments(ctx, "docs", records()))

	rec, err := s.GetDocument(ctx, "docs", "b")
	require.NoError(t, err)
	assert.Equal(t, "beta", rec.Content)
	assert.Equal(t, []float32{0, 1, 0}, rec.Embedding)

	matches, err := s.Search(ctx, "docs", []float32{0.9, 0.1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].Id)
	assert.Equal(t, "b", matches[1].Id)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
	assert.InDelta(t, 1/(1+0.02), matches[0].Score, 1e-5)

	stats, err := s.Stats(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, vectorDB.Stats{Collection: "docs", Count: 3, Dimensions: 3, IndexType: "Flat"}, stats)
}

func TestSearchFilter(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, t.TempDir())
	require.NoError(t, s.CreateCollection(ctx, "docs", 3, vectorDB.CollectionOptions{}))
	require.NoError(t, s.AddDocuments(ctx, "docs", records()))

	matches, err := s.Search(ctx, "docs", []float32{1, 0, 0}, 10, vectorDB.Filter{"document_id": "d2"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "c", matches[0].Id)

	matches, err = s.Search(ctx, "docs", []float32{1, 0, 0}, 10, vectorDB.Filter{"chunk_index": 1.0})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].Id)
}

func TestMetadataIsCopied(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, t.TempDir())
	require.NoError(t, s.CreateCollection(ctx, "docs", 3, vectorDB.CollectionOptions{}))

	recs := records()
	require.NoError(t, s.AddDocuments(ctx, "docs", recs))
	recs[0].Metadata["document_id"] = "changed by caller"

	matches, err := s.Search(ctx, "docs", []float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "d1", matches[0].Metadata["document_id"])
	matches[0].Metadata["document_id"] = "changed by reader"

	matches, err = s.Search(ctx, "docs", []float32{1, 0, 0}, 1, vectorDB.Filter{"document_id": "d1"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].Id)
	assert.Equal(t, "d1", matches[0].Metadata["document_id"])
}

func TestDeleteTombstonesAndWarns(t *testing.T) {
	ctx := context.Background()
	s, w := newStore(t, t.TempDir())
	require.NoError(t, s.CreateCollection(ctx, "docs", 3, vectorDB.CollectionOptions{}))
	require.NoError(t, s.AddDocuments(ctx, "docs", records()))

	require.NoError(t, s.DeleteDocuments(ctx, "docs", []string{"a", "missing"}))
	assert.Equal(t, 1, w.count())

	_, err := s.GetDocument(ctx, "docs", "a")
	assert.Equal(t, ragErrors.DocumentNotFound, ragErrors.CodeOf(err))

	matches, err := s.Search(ctx, "docs", []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	for _, m := range matches {
		assert.NotEqual(t, "a", m.Id)
	}

	stats, err := s.Stats(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 1, stats.Tombstones)

	removed, err := s.Compact(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	stats, err = s.Stats(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Zero(t, stats.Tombstones)

	rec, err := s.GetDocument(ctx, "docs", "c")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 1}, rec.Embedding)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s, w := newStore(t, t.TempDir())
	require.NoError(t, s.CreateCollection(ctx, "docs", 3, vectorDB.CollectionOptions{}))
	require.NoError(t, s.AddDocuments(ctx, "docs", records()))

	content := "alpha v2"
	require.NoError(t, s.UpdateDocument(ctx, "docs", vectorDB.Update{Id: "a", Content: &content, Metadata: map[string]any{"tag": "x"}}))
	assert.Zero(t, w.count())

	rec, err := s.GetDocument(ctx, "docs", "a")
	require.NoError(t, err)
	assert.Equal(t, "alpha v2", rec.Content)
	assert.Equal(t, "x", rec.Metadata["tag"])
	assert.Equal(t, "d1", rec.Metadata["document_id"])

	require.NoError(t, s.UpdateDocument(ctx, "docs", vectorDB.Update{Id: "a", Embedding: []float32{0, 1, 1}}))
	assert.Equal(t, 1, w.count())

	stats, err := s.Stats(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 1, stats.Tombstones)

	matches, err := s.Search(ctx, "docs", []float32{0, 1, 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].Id)

	err = s.UpdateDocument(ctx, "docs", vectorDB.Update{Id: "nope", Content: &content})
	assert.Equal(t, ragErrors.DocumentNotFound, ragErrors.CodeOf(err))

	err = s.UpdateDocument(ctx, "docs", vectorDB.Update{Id: "a", Embedding: []float32{1}})
	assert.Equal(t, ragErrors.DimensionMismatch, ragErrors.CodeOf(err))
}

func TestPersistAndReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, _ := newStore(t, dir)
	require.NoError(t, s.CreateCollection(ctx, "docs", 3, vectorDB.CollectionOptions{Description: "test"}))
	require.NoError(t, s.AddDocuments(ctx, "docs", records()))
	require.NoError(t, s.DeleteDocuments(ctx, "docs", []string{"b"}))
	require.NoError(t, s.Close())
	assert.False(t, s.IsConnected())

	reloaded, _ := newStore(t, dir)
	names, err := reloaded.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs"}, names)

	stats, err := reloaded.Stats(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 1, stats.Tombstones)

	matches, err := reloaded.Search(ctx, "docs", []float32{0, 0, 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "c", matches[0].Id)
	assert.Equal(t, "gamma", matches[0].Content)
}

func TestValidation(t *testing.T) {
	ctx := context.Background()

	disconnected := New(t.TempDir())
	err := disconnected.AddDocuments(ctx, "docs", records())
	assert.Equal(t, ragErrors.ConnectionFailed, ragErrors.CodeOf(err))

	s, _ := newStore(t, t.TempDir())
	assert.Equal(t, ragErrors.InvalidCollectionName, ragErrors.CodeOf(s.CreateCollection(ctx, "bad name!", 3, vectorDB.CollectionOptions{})))
	require.NoError(t, s.CreateCollection(ctx, "docs", 3, vectorDB.CollectionOptions{}))
	assert.Equal(t, ragErrors.CollectionExists, ragErrors.CodeOf(s.CreateCollection(ctx, "docs", 3, vectorDB.CollectionOptions{})))

	err = s.AddDocuments(ctx, "docs", []vectorDB.Record{{Id: "x", Content: "x", Embedding: []float32{1, 2}}})
	assert.Equal(t, ragErrors.DimensionMismatch, ragErrors.CodeOf(err))

	err = s.AddDocuments(ctx, "docs", []vectorDB.Record{{Id: "", Content: "x", Embedding: []float32{1, 2, 3}}})
	assert.Equal(t, ragErrors.InvalidDocument, ragErrors.CodeOf(err))

	err = s.AddDocuments(ctx, "other", records())
	assert.Equal(t, ragErrors.CollectionNotFound, ragErrors.CodeOf(err))

	_, err = s.SearchByText(ctx, "docs", "hello", 3, nil)
	assert.Equal(t, ragErrors.NotImplemented, ragErrors.CodeOf(err))

	require.NoError(t, s.DeleteCollection(ctx, "docs"))
	exists, err := s.CollectionExists(ctx, "docs")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLargeBatch(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, t.TempDir())
	require.NoError(t, s.CreateCollection(ctx, "big", 2, vectorDB.CollectionOptions{}))

	recs := make([]vectorDB.Record, 250)
	for i := range recs {
		recs[i] = vectorDB.Record{Id: fmt.Sprintf("r%d", i), Content: "c", Embedding: []float32{float32(i), 1}}
	}
	require.NoError(t, s.AddDocuments(ctx, "big", recs))

	matches, err := s.Search(ctx, "big", []float32{249, 1}, 5, nil)
	require.NoError(t, err)
	require.Len(t, matches, 5)
	assert.Equal(t, "r249", matches[0].Id)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
}
