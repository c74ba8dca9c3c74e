package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  listen_addr: ":8080"
embedding:
  cache_ttl: 30m
vector_stores:
  - id: local
    type: faiss
    settings:
      directory: /tmp/faiss
      dims: 384
chunking_strategies:
  - id: small
    type: fixed_size
    chunk_size: 200
    chunk_overlap: 20
collections:
  - id: docs
    name: docs
    vector_store_id: local
    embedding_provider: local
    embedding_model: all-MiniLM-L6-v2
    is_active: true
`

func TestLoad(t *testing.T) {
	t.Run("missing file gives defaults", func(t *testing.T) {
		s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, ServerListenAddr, s.Server.ListenAddr)
		assert.Equal(t, EmbeddingCacheTTL, s.Embedding.CacheTTL)
		assert.False(t, s.Embedding.CacheEnabled)
		assert.Equal(t, "fs", s.Blob.Backend)
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

		s, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, ":8080", s.Server.ListenAddr)
		assert.Equal(t, 30*time.Minute, s.Embedding.CacheTTL)
		require.Len(t, s.VectorStores, 1)
		assert.Equal(t, docModel.Faiss, s.VectorStores[0].Type)
		assert.Equal(t, "/tmp/faiss", s.VectorStores[0].Setting("directory", ""))
		assert.Equal(t, 384, s.VectorStores[0].IntSetting("dims", 0))
		require.Len(t, s.ChunkingStrategies, 1)
		assert.Equal(t, docModel.FixedSize, s.ChunkingStrategies[0].Type)
		require.Len(t, s.Collections, 1)
		assert.True(t, s.Collections[0].IsActive)
		assert.False(t, s.Collections[0].CreatedAt.IsZero())
	})

	t.Run("env overrides file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))
		t.Setenv("LISTEN_ADDR", ":9999")
		t.Setenv("EMBEDDING_CACHE_ENABLED", "true")

		s, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, ":9999", s.Server.ListenAddr)
		assert.True(t, s.Embedding.CacheEnabled)
	})

	t.Run("broken yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})
}
