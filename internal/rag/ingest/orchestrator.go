package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/internal/metrics"
	"github.com/akolanti/GoIngest/internal/rag/cleansing"
	"github.com/akolanti/GoIngest/internal/rag/embedding"
	"github.com/akolanti/GoIngest/internal/rag/extract"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
	"github.com/akolanti/GoIngest/pkg/logger_i"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var logger = logger_i.NewLogger("Document Ingestion")

// StoreProvider hands out connected vector stores by vector store config id.
type StoreProvider interface {
	Get(ctx context.Context, id string) (vectorDB.Store, error)
}

// EmbedderProvider resolves the embedding provider a collection is configured with.
type EmbedderProvider interface {
	Provider(ctx context.Context, tag, model string, dims int) (embedding.Provider, error)
}

type TextExtractor interface {
	Extract(ctx context.Context, buf []byte, mediaType string) (extract.Result, error)
}

type Dependencies struct {
	Catalog   docModel.Catalog
	Documents docModel.DocumentRepository
	Locker    docModel.Locker
	// Blobs keeps the raw upload for reprocessing; optional.
	Blobs     docModel.BlobStore
	Stores    StoreProvider
	Embedders EmbedderProvider
	Extractor TextExtractor
	Cleanser  cleansing.Cleanser
}

type Options struct {
	BatchConcurrency int
	LockTTL          time.Duration
	DocumentTimeout  time.Duration
}

type Orchestrator struct {
	deps  Dependencies
	opts  Options
	basic *cleansing.Basic
}

func New(deps Dependencies, opts Options) *Orchestrator {
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = config.BatchIngestConcurrency
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = config.DocumentLockTTL
	}
	if opts.DocumentTimeout <= 0 {
		opts.DocumentTimeout = config.DocumentTimeout
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.New()
	}
	basic := cleansing.NewBasic()
	if deps.Cleanser == nil {
		deps.Cleanser = basic
	}
	return &Orchestrator{deps: deps, opts: opts, basic: basic}
}

type IngestRequest struct {
	// DocumentId is generated when empty.
	DocumentId         string         `json:"document_id,omitempty"`
	CollectionId       string         `json:"collection_id"`
	Filename           string         `json:"filename"`
	Title              string         `json:"title,omitempty"`
	ContentType        string         `json:"content_type"`
	Data               []byte         `json:"-"`
	// BlobKey names bytes already in the blob store; Data is then read from there when empty.
	BlobKey            string         `json:"blob_key,omitempty"`
	ChunkingStrategyId string         `json:"chunking_strategy_id,omitempty"`
	CleansingConfigId  string         `json:"cleansing_config_id,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

type ReprocessRequest struct {
	CollectionId       string `json:"collection_id,omitempty"`
	ChunkingStrategyId string `json:"chunking_strategy_id,omitempty"`
	CleansingConfigId  string `json:"cleansing_config_id,omitempty"`
}

type BatchResult struct {
	Document docModel.Document
	Err      error
}

func lockKey(documentId string) string {
	return "doc:" + documentId
}

func (o *Orchestrator) traceLogger(ctx context.Context) *logger_i.Logger {
	if traceId, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok {
		return logger.With("traceId", traceId)
	}
	return logger
}

// Ingest stores a new document and runs it through the pipeline.
// A document with the same content already in the collection is returned as is, unless it failed.
func (o *Orchestrator) Ingest(ctx context.Context, req IngestRequest) (docModel.Document, error) {
	log := o.traceLogger(ctx).With("collection", req.CollectionId, "filename", req.Filename)

	coll, err := o.collection(ctx, req.CollectionId)
	if err != nil {
		return docModel.Document{}, err
	}

	data := req.Data
	if len(data) == 0 && req.BlobKey != "" && o.deps.Blobs != nil {
		data, err = o.readBlob(ctx, req.BlobKey)
		if err != nil {
			return docModel.Document{}, err
		}
	}
	if len(data) == 0 {
		return docModel.Document{}, ragErrors.NewProcessingError(ragErrors.ProcessingFailed, "document is empty", nil)
	}

	hash := extract.ContentHash(data)
	doc, duplicate, err := o.claim(ctx, log, req, coll, hash, data)
	if err != nil || duplicate {
		return doc, err
	}
	return o.run(ctx, doc, coll, data, []docModel.Status{docModel.StatusPending, docModel.StatusFailed}, nil)
}

// claim finds or creates the document row for the content hash. The hash lock
// makes lookup and creation one step, so concurrent uploads of the same bytes
// end up on the same row.
func (o *Orchestrator) claim(ctx context.Context, log *logger_i.Logger, req IngestRequest, coll docModel.Collection, hash string, data []byte) (docModel.Document, bool, error) {
	release, err := o.acquireWait(ctx, hashLockKey(coll.Id, hash), config.HashClaimTTL)
	if err != nil {
		return docModel.Document{}, false, o.lockError(hash, err)
	}
	defer release(context.WithoutCancel(ctx))

	existing, found, err := o.deps.Documents.FindByHash(ctx, coll.Id, hash)
	if err != nil {
		return docModel.Document{}, false, err
	}

	var doc docModel.Document
	switch {
	case found && existing.ProcessingStatus != docModel.StatusFailed:
		log.Info("Duplicate document, returning existing", "documentId", existing.Id, "status", existing.ProcessingStatus)
		if req.BlobKey != "" && req.BlobKey != existing.BlobKey && o.deps.Blobs != nil {
			if err := o.deps.Blobs.Delete(ctx, req.BlobKey); err != nil {
				log.Warn("Could not delete duplicate upload", "key", req.BlobKey, "error", err)
			}
		}
		return existing, true, nil
	case found:
		log.Info("Retrying failed document in place", "documentId", existing.Id)
		doc = existing
		doc.ErrorMessage = ""
		if req.ChunkingStrategyId != "" || req.CleansingConfigId != "" {
			doc.Metadata = withOverrides(doc.Metadata, req.ChunkingStrategyId, req.CleansingConfigId)
		}
	default:
		doc = o.newDocument(req, coll.Id, hash, int64(len(data)))
	}

	switch {
	case doc.BlobKey == "":
		doc.BlobKey = req.BlobKey
	case req.BlobKey != "" && req.BlobKey != doc.BlobKey && o.deps.Blobs != nil:
		_ = o.deps.Blobs.Delete(ctx, req.BlobKey)
	}
	if doc.BlobKey == "" && o.deps.Blobs != nil {
		key := blobKey(doc.Id, doc.Filename)
		if err := o.writeBlob(ctx, key, data, doc.ContentType); err != nil {
			log.Warn("Could not keep raw bytes, reprocess will be unavailable", "error", err)
		} else {
			doc.BlobKey = key
		}
	}

	doc.UpdatedAt = time.Now().UTC()
	if err := o.deps.Documents.Save(ctx, doc); err != nil {
		return doc, false, err
	}
	return doc, false, nil
}

func hashLockKey(collectionId, hash string) string {
	return "hash:" + collectionId + ":" + hash
}

// acquireWait polls the locker until the key is free or ctx ends.
func (o *Orchestrator) acquireWait(ctx context.Context, key string, ttl time.Duration) (func(context.Context), error) {
	ticker := time.NewTicker(config.LockPollInterval)
	defer ticker.Stop()
	for {
		release, err := o.deps.Locker.Acquire(ctx, key, ttl)
		if !errors.Is(err, docModel.ErrLockHeld) {
			return release, err
		}
		select {
		case <-ctx.Done():
			return nil, err
		case <-ticker.C:
		}
	}
}

// Reprocess drops every chunk of the document and runs the pipeline again from the stored bytes.
func (o *Orchestrator) Reprocess(ctx context.Context, documentId string, req ReprocessRequest) (docModel.Document, error) {
	log := o.traceLogger(ctx).With("documentId", documentId)

	doc, found, err := o.deps.Documents.Get(ctx, documentId)
	if err != nil {
		return docModel.Document{}, err
	}
	if !found {
		return docModel.Document{}, ragErrors.NewProcessingError(ragErrors.DocumentNotFound, fmt.Sprintf("document %q not found", documentId), nil)
	}
	if doc.BlobKey == "" || o.deps.Blobs == nil {
		return doc, ragErrors.NewProcessingError(ragErrors.ProcessingFailed, "raw document bytes are not available for reprocessing", nil)
	}

	oldColl, err := o.collection(ctx, doc.CollectionId)
	if err != nil {
		return doc, err
	}
	target := oldColl
	if req.CollectionId != "" && req.CollectionId != doc.CollectionId {
		if target, err = o.collection(ctx, req.CollectionId); err != nil {
			return doc, err
		}
	}

	data, err := o.readBlob(ctx, doc.BlobKey)
	if err != nil {
		return doc, err
	}

	cleanup := func(ctx context.Context) error {
		return o.dropChunks(ctx, oldColl, doc.Id)
	}

	strategyId := firstNonEmpty(req.ChunkingStrategyId, doc.ProcessingValue(docModel.MetaChunkingStrategyId), metaString(doc.Metadata, docModel.MetaChunkingStrategyId))
	cleansingId := firstNonEmpty(req.CleansingConfigId, doc.ProcessingValue(docModel.MetaCleansingConfigId), metaString(doc.Metadata, docModel.MetaCleansingConfigId))
	doc.Metadata = withOverrides(doc.Metadata, strategyId, cleansingId)
	doc.CollectionId = target.Id
	doc.ErrorMessage = ""

	log.Info("Reprocessing document", "collection", target.Id)
	return o.run(ctx, doc, target, data, []docModel.Status{docModel.StatusCompleted, docModel.StatusFailed, docModel.StatusPending}, cleanup)
}

// IngestBatch runs every request independently; a failure never affects its siblings.
func (o *Orchestrator) IngestBatch(ctx context.Context, reqs []IngestRequest) []BatchResult {
	results := make([]BatchResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(o.opts.BatchConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			doc, err := o.Ingest(ctx, req)
			results[i] = BatchResult{Document: doc, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// run claims the document, runs the pipeline and records the outcome on the document.
func (o *Orchestrator) run(ctx context.Context, doc docModel.Document, coll docModel.Collection, data []byte, from []docModel.Status, before func(context.Context) error) (docModel.Document, error) {
	log := o.traceLogger(ctx).With("documentId", doc.Id, "collection", coll.Id)

	release, err := o.deps.Locker.Acquire(ctx, lockKey(doc.Id), o.opts.LockTTL)
	if err != nil {
		return doc, o.lockError(doc.Id, err)
	}
	defer release(context.WithoutCancel(ctx))

	ok, err := o.deps.Documents.TransitionStatus(ctx, doc.Id, from, docModel.StatusProcessing)
	if err != nil {
		return doc, err
	}
	if !ok {
		return doc, ragErrors.NewProcessingError(ragErrors.AlreadyProcessing, fmt.Sprintf("document %q is already being processed", doc.Id), nil)
	}
	doc.ProcessingStatus = docModel.StatusProcessing

	runCtx, cancel := context.WithTimeout(ctx, o.opts.DocumentTimeout)
	defer cancel()

	if before != nil {
		if err := before(runCtx); err != nil {
			return o.fail(ctx, log, doc, err)
		}
	}

	start := time.Now()
	doc, chunks, err := o.process(runCtx, log, doc, coll, data)
	if err != nil {
		return o.fail(ctx, log, doc, err)
	}

	doc.ProcessingStatus = docModel.StatusCompleted
	doc.ErrorMessage = ""
	doc.UpdatedAt = time.Now().UTC()
	if err := o.deps.Documents.Save(ctx, doc); err != nil {
		cause := ragErrors.NewProcessingError(ragErrors.ProcessingFailed, "recording completed document", err)
		if dropErr := o.dropChunks(context.WithoutCancel(ctx), coll, doc.Id); dropErr != nil {
			log.Error("Could not remove chunks of unrecorded document", "error", dropErr)
		}
		return o.fail(ctx, log, doc, cause)
	}

	metrics.CaptureDocumentProcessed(string(docModel.StatusCompleted), chunks)
	log.Info("Document processed", "chunks", chunks, "elapsed", time.Since(start))
	return doc, nil
}

func (o *Orchestrator) fail(ctx context.Context, log *logger_i.Logger, doc docModel.Document, cause error) (docModel.Document, error) {
	log.Error("Document processing failed", "error", cause)

	doc.ProcessingStatus = docModel.StatusFailed
	doc.ErrorMessage = ragErrors.Describe(cause)
	doc.UpdatedAt = time.Now().UTC()
	if err := o.deps.Documents.Save(context.WithoutCancel(ctx), doc); err != nil {
		log.Error("Could not record failure", "error", err)
	}
	metrics.CaptureDocumentProcessed(string(docModel.StatusFailed), 0)
	return doc, cause
}

func (o *Orchestrator) lockError(documentId string, err error) error {
	if errors.Is(err, docModel.ErrLockHeld) {
		return ragErrors.NewProcessingError(ragErrors.AlreadyProcessing, fmt.Sprintf("document %q is locked by another run", documentId), err)
	}
	return ragErrors.NewProcessingError(ragErrors.ProcessingFailed, "acquiring document lock", err)
}

func (o *Orchestrator) collection(ctx context.Context, id string) (docModel.Collection, error) {
	coll, found, err := o.deps.Catalog.Collection(ctx, id)
	if err != nil {
		return docModel.Collection{}, err
	}
	if !found {
		return docModel.Collection{}, ragErrors.NewProcessingError(ragErrors.CollectionNotFound, fmt.Sprintf("collection %q not found", id), nil)
	}
	return coll, nil
}

func (o *Orchestrator) newDocument(req IngestRequest, collectionId, hash string, size int64) docModel.Document {
	id := req.DocumentId
	if id == "" {
		id = uuid.NewString()
	}
	title := req.Title
	if title == "" {
		title = req.Filename
	}
	now := time.Now().UTC()
	return docModel.Document{
		Id:               id,
		CollectionId:     collectionId,
		Title:            title,
		Filename:         req.Filename,
		FileSize:         size,
		ContentType:      req.ContentType,
		ContentHash:      hash,
		ProcessingStatus: docModel.StatusPending,
		Metadata:         withOverrides(copyMap(req.Metadata), req.ChunkingStrategyId, req.CleansingConfigId),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// withOverrides records per-document strategy and cleansing choices so reprocess can carry them over.
func withOverrides(meta map[string]any, strategyId, cleansingId string) map[string]any {
	if strategyId == "" && cleansingId == "" {
		return meta
	}
	if meta == nil {
		meta = make(map[string]any)
	}
	if strategyId != "" {
		meta[docModel.MetaChunkingStrategyId] = strategyId
	}
	if cleansingId != "" {
		meta[docModel.MetaCleansingConfigId] = cleansingId
	}
	return meta
}

func metaString(meta map[string]any, key string) string {
	v, _ := meta[key].(string)
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
