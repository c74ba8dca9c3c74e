package docModel

import (
	"context"
	"errors"
	"time"
)

var ErrLockHeld = errors.New("lock is held by another owner")

type DocumentRepository interface {
	Save(ctx context.Context, doc Document) error
	Get(ctx context.Context, id string) (Document, bool, error)
	FindByHash(ctx context.Context, collectionId string, hash string) (Document, bool, error)
	ListByCollection(ctx context.Context, collectionId string) ([]Document, error)
	// TransitionStatus moves the document to `to` only when its current status is one of `from`.
	TransitionStatus(ctx context.Context, id string, from []Status, to Status) (bool, error)
	Delete(ctx context.Context, id string) error

	SaveChunks(ctx context.Context, documentId string, chunks []ChunkRecord) error
	GetChunks(ctx context.Context, documentId string) ([]ChunkRecord, error)
	DeleteChunks(ctx context.Context, documentId string) error
}

type Catalog interface {
	Collection(ctx context.Context, id string) (Collection, bool, error)
	ListCollections(ctx context.Context) ([]Collection, error)
	SaveCollection(ctx context.Context, c Collection) error
	DeleteCollection(ctx context.Context, id string) error

	ChunkingStrategy(ctx context.Context, id string) (ChunkingStrategyConfig, bool, error)
	SaveChunkingStrategy(ctx context.Context, c ChunkingStrategyConfig) error
	CleansingConfig(ctx context.Context, id string) (CleansingConfig, bool, error)
	SaveCleansingConfig(ctx context.Context, c CleansingConfig) error
	VectorStoreConfig(ctx context.Context, id string) (VectorStoreConfig, bool, error)
	SaveVectorStoreConfig(ctx context.Context, c VectorStoreConfig) error
}

type Locker interface {
	// Acquire returns ErrLockHeld when someone else owns the key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context), err error)
}

type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

var ErrBlobNotFound = errors.New("blob not found")
