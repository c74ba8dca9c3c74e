package handlers

import (
	"context"

	"github.com/akolanti/GoIngest/internal/domain/commonModels"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/rag/ingest"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
	"github.com/akolanti/GoIngest/pkg/logger_i"
)

// DocumentService is the synchronous part of the orchestrator exposed over HTTP.
type DocumentService interface {
	Collection(ctx context.Context, id string) (docModel.Collection, error)
	Document(ctx context.Context, id string) (docModel.Document, error)
	Chunks(ctx context.Context, documentId string) ([]docModel.ChunkRecord, error)
	DeleteDocument(ctx context.Context, id string) error
	Search(ctx context.Context, req ingest.SearchRequest) ([]commonModels.SearchResult, error)
	CollectionStats(ctx context.Context, id string) (vectorDB.Stats, error)
}

var (
	documents docHandler
	logDH     = logger_i.NewLogger("DocumentHandler")
)

type docHandler struct {
	service DocumentService
	blobs   docModel.BlobStore
}

// InitDocumentHandler wires the orchestrator and the blob store uploads are written to.
func InitDocumentHandler(service DocumentService, blobs docModel.BlobStore) {
	documents = docHandler{service: service, blobs: blobs}
	logDH.Info("Starting document handler")
}
