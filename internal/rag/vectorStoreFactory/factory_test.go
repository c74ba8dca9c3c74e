package vectorStoreFactory

import (
	"context"
	"errors"
	"testing"

	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type configSource struct {
	configs map[string]docModel.VectorStoreConfig
	err     error
}

func (c configSource) VectorStoreConfig(_ context.Context, id string) (docModel.VectorStoreConfig, bool, error) {
	if c.err != nil {
		return docModel.VectorStoreConfig{}, false, c.err
	}
	cfg, ok := c.configs[id]
	return cfg, ok, nil
}

func TestRegistryBackends(t *testing.T) {
	r := DefaultRegistry()
	for _, backend := range []docModel.BackendType{docModel.ChromaDB, docModel.PgVector, docModel.Faiss, docModel.Qdrant} {
		s, err := r.New(docModel.VectorStoreConfig{Id: "x", Type: backend, ConnectionString: "localhost:1234"})
		require.NoError(t, err, backend)
		assert.Equal(t, backend, s.Backend())
		assert.False(t, s.IsConnected())
	}

	_, err := r.New(docModel.VectorStoreConfig{Id: "x", Type: "milvus"})
	assert.True(t, ragErrors.HasCode(err, ragErrors.UnsupportedBackend))
}

func TestManagerReusesStore(t *testing.T) {
	ctx := context.Background()
	m := NewManager(configSource{configs: map[string]docModel.VectorStoreConfig{
		"local": {Id: "local", Type: docModel.Faiss, ConnectionString: t.TempDir()},
	}})

	first, err := m.Get(ctx, "local")
	require.NoError(t, err)
	assert.True(t, first.IsConnected())
	second, err := m.Get(ctx, "local")
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.NoError(t, first.CreateCollection(ctx, "docs", 2, vectorDB.CollectionOptions{}))

	seen := 0
	m.Each(func(id string, s vectorDB.Store) {
		seen++
		assert.Equal(t, "local", id)
	})
	assert.Equal(t, 1, seen)

	require.NoError(t, m.Close())
	assert.False(t, first.IsConnected())
}

func TestManagerMissingConfig(t *testing.T) {
	ctx := context.Background()
	m := NewManager(configSource{configs: map[string]docModel.VectorStoreConfig{}})
	_, err := m.Get(ctx, "nope")
	assert.True(t, ragErrors.HasCode(err, ragErrors.ConnectionFailed))

	m = NewManager(configSource{err: errors.New("boom")})
	_, err = m.Get(ctx, "any")
	assert.True(t, ragErrors.HasCode(err, ragErrors.ConnectionFailed))

	m = NewManager(configSource{configs: map[string]docModel.VectorStoreConfig{"m": {Id: "m", Type: "milvus"}}})
	_, err = m.Get(ctx, "m")
	assert.True(t, ragErrors.HasCode(err, ragErrors.UnsupportedBackend))
}
