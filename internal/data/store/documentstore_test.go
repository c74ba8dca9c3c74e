package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/data/store"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repositories(t *testing.T) map[string]docModel.DocumentRepository {
	_, rs := newRedis(t)
	return map[string]docModel.DocumentRepository{
		"memory": store.InitInMemoryDocumentStore(),
		"redis":  store.NewRedisDocumentStore(rs),
	}
}

func document(id, collection, hash string) docModel.Document {
	now := time.Now().UTC()
	return docModel.Document{
		Id:               id,
		CollectionId:     collection,
		Title:            id,
		ContentHash:      hash,
		ProcessingStatus: docModel.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestDocumentRepository(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Save(ctx, document("d1", "c1", "h1")))
			require.NoError(t, repo.Save(ctx, document("d2", "c1", "h2")))
			require.NoError(t, repo.Save(ctx, document("d3", "c2", "h1")))

			doc, ok, err := repo.Get(ctx, "d1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "c1", doc.CollectionId)

			found, ok, err := repo.FindByHash(ctx, "c2", "h1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "d3", found.Id)

			_, ok, err = repo.FindByHash(ctx, "c2", "h2")
			require.NoError(t, err)
			assert.False(t, ok)

			docs, err := repo.ListByCollection(ctx, "c1")
			require.NoError(t, err)
			assert.Len(t, docs, 2)

			chunks := []docModel.ChunkRecord{
				{Id: "d1_0", ChunkIndex: 0, Content: "first"},
				{Id: "d1_1", ChunkIndex: 1, Content: "second"},
			}
			require.NoError(t, repo.SaveChunks(ctx, "d1", chunks))
			got, err := repo.GetChunks(ctx, "d1")
			require.NoError(t, err)
			assert.Equal(t, chunks, got)

			require.NoError(t, repo.SaveChunks(ctx, "d1", chunks[:1]))
			got, err = repo.GetChunks(ctx, "d1")
			require.NoError(t, err)
			assert.Len(t, got, 1)

			require.NoError(t, repo.Delete(ctx, "d1"))
			_, ok, err = repo.Get(ctx, "d1")
			require.NoError(t, err)
			assert.False(t, ok)
			_, ok, err = repo.FindByHash(ctx, "c1", "h1")
			require.NoError(t, err)
			assert.False(t, ok)
			got, err = repo.GetChunks(ctx, "d1")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestTransitionStatus(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Save(ctx, document("d1", "c1", "h1")))

			from := []docModel.Status{docModel.StatusPending, docModel.StatusFailed}
			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := repo.TransitionStatus(ctx, "d1", from, docModel.StatusProcessing)
					if err == nil && ok {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins.Load())

			doc, _, err := repo.Get(ctx, "d1")
			require.NoError(t, err)
			assert.Equal(t, docModel.StatusProcessing, doc.ProcessingStatus)

			ok, err := repo.TransitionStatus(ctx, "missing", from, docModel.StatusProcessing)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestLockers(t *testing.T) {
	_, rs := newRedis(t)
	lockers := map[string]docModel.Locker{
		"memory": store.NewInMemoryLocker(),
		"redis":  store.NewRedisLocker(rs),
	}
	for name, l := range lockers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			release, err := l.Acquire(ctx, "doc:d1", time.Minute)
			require.NoError(t, err)

			_, err = l.Acquire(ctx, "doc:d1", time.Minute)
			assert.True(t, errors.Is(err, docModel.ErrLockHeld))

			other, err := l.Acquire(ctx, "doc:d2", time.Minute)
			require.NoError(t, err)
			other(ctx)

			release(ctx)
			again, err := l.Acquire(ctx, "doc:d1", time.Minute)
			require.NoError(t, err)
			again(ctx)
		})
	}
}

func TestRedisLockReleaseKeepsForeignToken(t *testing.T) {
	mr, rs := newRedis(t)
	l := store.NewRedisLocker(rs)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "doc:d1", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	next, err := l.Acquire(ctx, "doc:d1", time.Minute)
	require.NoError(t, err)

	release(ctx)
	assert.True(t, mr.Exists("lock:doc:d1"))
	next(ctx)
	assert.False(t, mr.Exists("lock:doc:d1"))
}

func TestOpenFallsBackToMemory(t *testing.T) {
	b, err := store.Open(context.Background(), config.RedisSettings{Enabled: true, Addr: "127.0.0.1:1"})
	require.NoError(t, err)
	assert.False(t, b.Redis)
	_, ok := b.Documents.(*store.InMemoryDocumentStore)
	assert.True(t, ok)
	assert.NoError(t, b.Close())
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := store.Open(context.Background(), config.RedisSettings{Enabled: true, Addr: mr.Addr()})
	require.NoError(t, err)
	defer b.Close()
	assert.True(t, b.Redis)

	ctx := context.Background()
	require.NoError(t, b.Documents.Save(ctx, document("d1", "c1", "h1")))
	mr.Select(config.RedisDocumentStore)
	assert.True(t, mr.Exists("doc:d1"))
}

func TestCatalogFromSettings(t *testing.T) {
	ctx := context.Background()
	c := store.CatalogFromSettings(&config.Settings{
		VectorStores: []docModel.VectorStoreConfig{{Id: "local", Type: docModel.Faiss}},
		Collections:  []docModel.Collection{{Id: "b"}, {Id: "a"}},
	})

	cfg, ok, err := c.VectorStoreConfig(ctx, "local")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, docModel.Faiss, cfg.Type)

	cols, err := c.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "a", cols[0].Id)

	require.NoError(t, c.SaveChunkingStrategy(ctx, docModel.ChunkingStrategyConfig{Id: "s", Type: docModel.Sentence}))
	s, ok, _ := c.ChunkingStrategy(ctx, "s")
	assert.True(t, ok)
	assert.Equal(t, docModel.Sentence, s.Type)

	require.NoError(t, c.DeleteCollection(ctx, "a"))
	_, ok, _ = c.Collection(ctx, "a")
	assert.False(t, ok)
}
