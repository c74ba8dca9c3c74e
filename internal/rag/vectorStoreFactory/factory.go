package vectorStoreFactory

import (
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB/chromaDB"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB/faissDB"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB/pgvectorDB"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB/qdrantDB"
)

// DefaultRegistry knows every built-in backend.
func DefaultRegistry() *vectorDB.Registry {
	r := vectorDB.NewRegistry()
	r.Register(docModel.ChromaDB, chromaDB.FromConfig)
	r.Register(docModel.PgVector, pgvectorDB.FromConfig)
	r.Register(docModel.Faiss, faissDB.FromConfig)
	r.Register(docModel.Qdrant, qdrantDB.FromConfig)
	return r
}

// NewManager wires the default registry to a config source.
func NewManager(configs vectorDB.ConfigSource) *vectorDB.Manager {
	return vectorDB.NewManager(DefaultRegistry(), configs)
}
