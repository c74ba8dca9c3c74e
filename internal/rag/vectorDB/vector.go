package vectorDB

import (
	"context"

	"github.com/akolanti/GoIngest/internal/domain/docModel"
)

// Record is one stored chunk. Embedding may be nil for backends that embed on their own.
type Record struct {
	Id        string         `json:"id"`
	Content   string         `json:"content"`
	Embedding []float32      `json:"embedding,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Update carries the mutable parts of a record; nil fields are left alone.
// Metadata keys are merged into the existing metadata.
type Update struct {
	Id        string
	Content   *string
	Embedding []float32
	Metadata  map[string]any
}

type Match struct {
	Id       string         `json:"id"`
	Content  string         `json:"content"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Filter is an equality match on metadata keys, all of which must hold.
type Filter map[string]any

type CollectionOptions struct {
	Description string
	Metadata    map[string]any
}

type Stats struct {
	Collection string `json:"collection"`
	Count      int    `json:"count"`
	Dimensions int    `json:"dimensions"`
	IndexType  string `json:"index_type"`
	Tombstones int    `json:"tombstones,omitempty"`
}

type Store interface {
	Connect(ctx context.Context) error
	Close() error
	IsConnected() bool
	Backend() docModel.BackendType

	CreateCollection(ctx context.Context, name string, dims int, opts CollectionOptions) error
	DeleteCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	ListCollections(ctx context.Context) ([]string, error)

	AddDocuments(ctx context.Context, collection string, records []Record) error
	UpdateDocument(ctx context.Context, collection string, update Update) error
	DeleteDocuments(ctx context.Context, collection string, ids []string) error
	GetDocument(ctx context.Context, collection, id string) (Record, error)

	Search(ctx context.Context, collection string, vector []float32, k int, filter Filter) ([]Match, error)
	// SearchByText always fails with NOT_IMPLEMENTED; callers embed the query first.
	SearchByText(ctx context.Context, collection, text string, k int, filter Filter) ([]Match, error)
	Stats(ctx context.Context, collection string) (Stats, error)
}

type IndexOptions struct {
	Type           string `json:"type"`
	M              int    `json:"m,omitempty"`
	EfConstruction int    `json:"ef_construction,omitempty"`
	Lists          int    `json:"lists,omitempty"`
}

const (
	IndexHNSW    = "hnsw"
	IndexIVFFlat = "ivfflat"
	IndexFlat    = "Flat"
)

// IndexManager is implemented by backends with tunable ANN indexes.
type IndexManager interface {
	CreateIndex(ctx context.Context, collection string, opts IndexOptions) error
	DropIndex(ctx context.Context, collection string) error
}

// Compactor is implemented by backends that keep deleted vectors until a rebuild.
type Compactor interface {
	Compact(ctx context.Context, collection string) (int, error)
}

type Persister interface {
	Persist(ctx context.Context) error
}
