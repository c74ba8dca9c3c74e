package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/internal/metrics"
	"github.com/akolanti/GoIngest/internal/rag/embedding"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
)

func (o *Orchestrator) Document(ctx context.Context, id string) (docModel.Document, error) {
	doc, found, err := o.deps.Documents.Get(ctx, id)
	if err != nil {
		return docModel.Document{}, err
	}
	if !found {
		return docModel.Document{}, ragErrors.NewProcessingError(ragErrors.DocumentNotFound, fmt.Sprintf("document %q not found", id), nil)
	}
	return doc, nil
}

func (o *Orchestrator) Chunks(ctx context.Context, documentId string) ([]docModel.ChunkRecord, error) {
	if _, err := o.Document(ctx, documentId); err != nil {
		return nil, err
	}
	return o.deps.Documents.GetChunks(ctx, documentId)
}

func (o *Orchestrator) Documents(ctx context.Context, collectionId string) ([]docModel.Document, error) {
	if _, err := o.collection(ctx, collectionId); err != nil {
		return nil, err
	}
	return o.deps.Documents.ListByCollection(ctx, collectionId)
}

// DeleteDocument removes the chunks, the document row and the raw bytes.
func (o *Orchestrator) DeleteDocument(ctx context.Context, id string) error {
	doc, err := o.Document(ctx, id)
	if err != nil {
		return err
	}

	release, err := o.deps.Locker.Acquire(ctx, lockKey(id), o.opts.LockTTL)
	if err != nil {
		return o.lockError(id, err)
	}
	defer release(context.WithoutCancel(ctx))

	coll, err := o.collection(ctx, doc.CollectionId)
	if err == nil {
		err = o.dropChunks(ctx, coll, id)
	} else if ragErrors.HasCode(err, ragErrors.CollectionNotFound) {
		err = o.deps.Documents.DeleteChunks(ctx, id)
	}
	if err != nil {
		return err
	}

	if err := o.deps.Documents.Delete(ctx, id); err != nil {
		return err
	}
	if doc.BlobKey != "" && o.deps.Blobs != nil {
		if err := o.deps.Blobs.Delete(ctx, doc.BlobKey); err != nil && !errors.Is(err, docModel.ErrBlobNotFound) {
			o.traceLogger(ctx).Warn("Could not delete raw bytes", "documentId", id, "key", doc.BlobKey, "error", err)
		}
	}
	o.traceLogger(ctx).Info("Document deleted", "documentId", id)
	return nil
}

func (o *Orchestrator) Collection(ctx context.Context, id string) (docModel.Collection, error) {
	return o.collection(ctx, id)
}

func (o *Orchestrator) Collections(ctx context.Context) ([]docModel.Collection, error) {
	return o.deps.Catalog.ListCollections(ctx)
}

// CreateCollection registers the collection and creates it in its vector store.
func (o *Orchestrator) CreateCollection(ctx context.Context, coll docModel.Collection) (docModel.Collection, error) {
	if coll.Id == "" {
		coll.Id = coll.Name
	}
	if coll.Name == "" {
		coll.Name = coll.Id
	}
	if err := vectorDB.ValidateName(coll.Name); err != nil {
		return coll, err
	}
	if _, found, err := o.deps.Catalog.Collection(ctx, coll.Id); err != nil {
		return coll, err
	} else if found {
		return coll, ragErrors.NewVectorStoreError(ragErrors.CollectionExists, fmt.Sprintf("collection %q already exists", coll.Id), nil)
	}
	if coll.EmbeddingDimensions <= 0 {
		coll.EmbeddingDimensions = embedding.ResolveDimensions(coll.EmbeddingModel, 0)
	}
	if coll.CreatedAt.IsZero() {
		coll.CreatedAt = time.Now().UTC()
	}
	if err := o.ensureCollection(ctx, coll); err != nil {
		return coll, err
	}
	coll.IsActive = true
	o.traceLogger(ctx).Info("Collection created", "collection", coll.Id, "vectorStore", coll.VectorStoreId, "dims", coll.EmbeddingDimensions)
	return coll, nil
}

// DeleteCollection deletes every document of the collection and then the collection itself.
func (o *Orchestrator) DeleteCollection(ctx context.Context, id string) error {
	coll, err := o.collection(ctx, id)
	if err != nil {
		return err
	}
	docs, err := o.deps.Documents.ListByCollection(ctx, id)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := o.deps.Documents.DeleteChunks(ctx, doc.Id); err != nil {
			return err
		}
		if err := o.deps.Documents.Delete(ctx, doc.Id); err != nil {
			return err
		}
		if doc.BlobKey != "" && o.deps.Blobs != nil {
			_ = o.deps.Blobs.Delete(ctx, doc.BlobKey)
		}
	}

	store, err := o.deps.Stores.Get(ctx, coll.VectorStoreId)
	if err != nil {
		return err
	}
	if err := store.DeleteCollection(ctx, coll.Name); err != nil && !ragErrors.HasCode(err, ragErrors.CollectionNotFound) {
		return err
	}
	if err := o.deps.Catalog.DeleteCollection(ctx, id); err != nil {
		return err
	}
	o.traceLogger(ctx).Info("Collection deleted", "collection", id, "documents", len(docs))
	return nil
}

func (o *Orchestrator) CollectionStats(ctx context.Context, id string) (vectorDB.Stats, error) {
	coll, store, err := o.collectionStore(ctx, id)
	if err != nil {
		return vectorDB.Stats{}, err
	}
	return store.Stats(ctx, coll.Name)
}

func (o *Orchestrator) CreateIndex(ctx context.Context, id string, opts vectorDB.IndexOptions) error {
	coll, store, err := o.collectionStore(ctx, id)
	if err != nil {
		return err
	}
	im, ok := store.(vectorDB.IndexManager)
	if !ok {
		return unsupported(store, "index management")
	}
	return im.CreateIndex(ctx, coll.Name, opts)
}

func (o *Orchestrator) DropIndex(ctx context.Context, id string) error {
	coll, store, err := o.collectionStore(ctx, id)
	if err != nil {
		return err
	}
	im, ok := store.(vectorDB.IndexManager)
	if !ok {
		return unsupported(store, "index management")
	}
	return im.DropIndex(ctx, coll.Name)
}

// Compact rebuilds the collection without its deleted vectors and returns how many were removed.
func (o *Orchestrator) Compact(ctx context.Context, id string) (int, error) {
	coll, store, err := o.collectionStore(ctx, id)
	if err != nil {
		return 0, err
	}
	c, ok := store.(vectorDB.Compactor)
	if !ok {
		return 0, unsupported(store, "compaction")
	}
	removed, err := c.Compact(ctx, coll.Name)
	if err != nil {
		return 0, err
	}
	metrics.CaptureCompaction(coll.Id, removed)
	return removed, nil
}

func (o *Orchestrator) collectionStore(ctx context.Context, id string) (docModel.Collection, vectorDB.Store, error) {
	coll, err := o.collection(ctx, id)
	if err != nil {
		return coll, nil, err
	}
	store, err := o.deps.Stores.Get(ctx, coll.VectorStoreId)
	return coll, store, err
}

func unsupported(store vectorDB.Store, feature string) error {
	return ragErrors.NewVectorStoreError(ragErrors.NotImplemented, fmt.Sprintf("%s is not supported by the %s backend", feature, store.Backend()), nil)
}

// EnsureCollections creates every catalog collection that is missing from its vector store.
func (o *Orchestrator) EnsureCollections(ctx context.Context) error {
	colls, err := o.deps.Catalog.ListCollections(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, coll := range colls {
		if err := o.ensureCollection(ctx, coll); err != nil {
			o.traceLogger(ctx).Error("Could not prepare collection", "collection", coll.Id, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) ensureCollection(ctx context.Context, coll docModel.Collection) error {
	if coll.Name == "" {
		coll.Name = coll.Id
	}
	if err := vectorDB.ValidateName(coll.Name); err != nil {
		return err
	}
	if coll.EmbeddingDimensions <= 0 {
		coll.EmbeddingDimensions = embedding.ResolveDimensions(coll.EmbeddingModel, 0)
	}
	store, err := o.deps.Stores.Get(ctx, coll.VectorStoreId)
	if err != nil {
		return err
	}
	exists, err := store.CollectionExists(ctx, coll.Name)
	if err != nil {
		return err
	}
	if !exists {
		opts := vectorDB.CollectionOptions{Description: coll.Description, Metadata: coll.Metadata}
		if err := store.CreateCollection(ctx, coll.Name, coll.EmbeddingDimensions, opts); err != nil {
			return err
		}
	}
	coll.IsActive = true
	return o.deps.Catalog.SaveCollection(ctx, coll)
}
