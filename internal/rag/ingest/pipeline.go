package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/data/blobStore"
	"github.com/akolanti/GoIngest/internal/domain/commonModels"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/internal/metrics"
	"github.com/akolanti/GoIngest/internal/rag/chunking"
	"github.com/akolanti/GoIngest/internal/rag/embedding"
	"github.com/akolanti/GoIngest/internal/rag/extract"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
	"github.com/akolanti/GoIngest/pkg/logger_i"
	"github.com/google/uuid"
)

// chunkNamespace seeds the deterministic chunk ids.
var chunkNamespace = uuid.MustParse("6f1c4a52-8a43-4f0e-9d2b-3c7e5b1a9d10")

func chunkId(documentId string, index int) string {
	return uuid.NewSHA1(chunkNamespace, fmt.Appendf(nil, "%s:%d", documentId, index)).String()
}

func blobKey(documentId, filename string) string {
	return blobStore.UploadKey(config.DefaultUploadKeyPrefix, documentId, filename)
}

// process runs extract, chunk, cleanse, embed and upsert for one claimed document.
// On error no chunks of this run are left behind in the vector store.
func (o *Orchestrator) process(ctx context.Context, log *logger_i.Logger, doc docModel.Document, coll docModel.Collection, data []byte) (docModel.Document, int, error) {
	result, err := o.extractStep(ctx, log, doc, data)
	if err != nil {
		return doc, 0, err
	}
	doc.FileType = result.FileType
	doc.RawText = result.Text
	if len(result.Metadata) > 0 {
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]any)
		}
		doc.Metadata[docModel.MetaExtracted] = result.Metadata
	}

	strategyId, strategy, err := o.resolveStrategy(ctx, doc, coll)
	if err != nil {
		return doc, 0, err
	}
	chunks := o.chunkStep(log, strategy, doc, result.Text, result.Pages)
	if len(chunks) == 0 {
		return doc, 0, ragErrors.NewProcessingError(ragErrors.ProcessingFailed, "document produced no chunks", nil)
	}

	cleansingId, cfg, err := o.resolveCleansing(ctx, doc, coll)
	if err != nil {
		return doc, 0, err
	}
	if cfg != nil {
		if err := o.cleanseStep(ctx, log, chunks, *cfg); err != nil {
			return doc, 0, err
		}
	}

	provider, err := o.deps.Embedders.Provider(ctx, coll.EmbeddingProvider, coll.EmbeddingModel, coll.EmbeddingDimensions)
	if err != nil {
		return doc, 0, err
	}
	if err := o.embedStep(ctx, log, provider, chunks); err != nil {
		return doc, 0, err
	}

	store, err := o.deps.Stores.Get(ctx, coll.VectorStoreId)
	if err != nil {
		return doc, 0, err
	}
	if err := o.upsertStep(ctx, log, store, coll, doc, chunks); err != nil {
		return doc, 0, err
	}

	records := make([]docModel.ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = docModel.ChunkRecord{
			Id:             c.Id,
			ChunkIndex:     c.ChunkIndex,
			Content:        c.Content,
			CleanedContent: c.CleanedContent,
			TokenCount:     c.TokenCount,
			StartIndex:     c.StartIndex,
			EndIndex:       c.EndIndex,
			Metadata:       c.Metadata,
		}
	}
	if err := o.deps.Documents.SaveChunks(ctx, doc.Id, records); err != nil {
		o.rollback(log, store, coll.Name, chunks)
		return doc, 0, err
	}

	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata[docModel.MetaProcessing] = map[string]any{
		docModel.MetaChunkingStrategyId: strategyId,
		docModel.MetaCleansingConfigId:  cleansingId,
		"embedding_model":               provider.Model(),
		"vector_store_id":               coll.VectorStoreId,
		"chunk_count":                   len(chunks),
		"processed_at":                  time.Now().UTC().Format(time.RFC3339),
	}
	return doc, len(chunks), nil
}

func (o *Orchestrator) extractStep(ctx context.Context, log *logger_i.Logger, doc docModel.Document, data []byte) (extract.Result, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("extract", time.Since(start)) }()

	r, err := o.deps.Extractor.Extract(ctx, data, doc.ContentType)
	if err != nil {
		return extract.Result{}, err
	}
	log.Debug("Extracted text", "fileType", r.FileType, "pages", len(r.Pages))
	return r, nil
}

func (o *Orchestrator) resolveStrategy(ctx context.Context, doc docModel.Document, coll docModel.Collection) (string, chunking.Strategy, error) {
	id := firstNonEmpty(metaString(doc.Metadata, docModel.MetaChunkingStrategyId), coll.DefaultChunkingStrategyId)
	if id == "" {
		s, err := chunking.New(docModel.FixedSize, chunking.Options{ChunkSize: config.DefaultChunkSize, ChunkOverlap: config.DefaultChunkOverlap})
		return "", s, err
	}
	cfg, found, err := o.deps.Catalog.ChunkingStrategy(ctx, id)
	if err != nil {
		return id, nil, err
	}
	if !found {
		return id, nil, ragErrors.NewProcessingError(ragErrors.ProcessingFailed, fmt.Sprintf("chunking strategy %q not found", id), nil)
	}
	s, err := chunking.FromConfig(cfg)
	return id, s, err
}

func (o *Orchestrator) chunkStep(log *logger_i.Logger, strategy chunking.Strategy, doc docModel.Document, text string, pages []commonModels.PageSpan) []commonModels.DocumentChunk {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("chunk", time.Since(start)) }()

	pieces := strategy.Chunk(text)
	chunks := make([]commonModels.DocumentChunk, len(pieces))
	for i, p := range pieces {
		if page := pageOf(pages, p.StartIndex); page > 0 {
			if p.Metadata == nil {
				p.Metadata = make(map[string]any)
			}
			p.Metadata["page_number"] = page
		}
		chunks[i] = commonModels.DocumentChunk{
			TextChunk:  p,
			Id:         chunkId(doc.Id, i),
			ChunkIndex: i,
			DocumentId: doc.Id,
			TokenCount: chunking.EstimateTokens(p.Content),
		}
	}
	log.Debug("Chunked document", "strategy", strategy.Type(), "chunks", len(chunks))
	return chunks
}

// pageOf returns the 1-based page containing the rune offset, or 0 when unknown.
func pageOf(pages []commonModels.PageSpan, offset int) int {
	for _, p := range pages {
		if offset >= p.StartIndex && offset < p.EndIndex {
			return p.Number
		}
	}
	return 0
}

func (o *Orchestrator) resolveCleansing(ctx context.Context, doc docModel.Document, coll docModel.Collection) (string, *docModel.CleansingConfig, error) {
	id := firstNonEmpty(metaString(doc.Metadata, docModel.MetaCleansingConfigId), coll.DefaultCleansingConfigId)
	if id == "" {
		return "", nil, nil
	}
	cfg, found, err := o.deps.Catalog.CleansingConfig(ctx, id)
	if err != nil {
		return id, nil, err
	}
	if !found {
		return id, nil, ragErrors.NewProcessingError(ragErrors.ProcessingFailed, fmt.Sprintf("cleansing config %q not found", id), nil)
	}
	return id, &cfg, nil
}

func (o *Orchestrator) cleanseStep(ctx context.Context, log *logger_i.Logger, chunks []commonModels.DocumentChunk, cfg docModel.CleansingConfig) error {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("cleanse", time.Since(start)) }()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	cleaned, err := o.deps.Cleanser.CleanseChunks(ctx, texts, cfg)
	if ragErrors.HasCode(err, ragErrors.MissingAPIKey) || ragErrors.HasCode(err, ragErrors.LLMCleansingFailed) {
		log.Warn("LLM cleansing unavailable, using basic cleansing", "error", err)
		cleaned, err = o.basic.CleanseChunks(ctx, texts, cfg)
	}
	if err != nil {
		return err
	}
	if len(cleaned) != len(chunks) {
		return ragErrors.NewCleansingError(ragErrors.LLMCleansingFailed, fmt.Sprintf("cleanser returned %d texts for %d chunks", len(cleaned), len(chunks)), nil)
	}
	for i := range chunks {
		chunks[i].CleanedContent = cleaned[i]
	}
	return nil
}

func (o *Orchestrator) embedStep(ctx context.Context, log *logger_i.Logger, provider embedding.Provider, chunks []commonModels.DocumentChunk) error {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embed", time.Since(start)) }()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.RetrievalText()
	}
	vectors, err := provider.EmbedMany(ctx, texts)
	if err != nil {
		return err
	}
	if err := embedding.CheckVectors(vectors, len(chunks), provider.Dimensions()); err != nil {
		return err
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	log.Debug("Embedded chunks", "model", provider.Model(), "count", len(chunks))
	return nil
}

func (o *Orchestrator) upsertStep(ctx context.Context, log *logger_i.Logger, store vectorDB.Store, coll docModel.Collection, doc docModel.Document, chunks []commonModels.DocumentChunk) error {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("upsert", time.Since(start)) }()

	records := make([]vectorDB.Record, len(chunks))
	for i, c := range chunks {
		meta := map[string]any{
			"document_id":   doc.Id,
			"chunk_index":   c.ChunkIndex,
			"collection_id": coll.Id,
			"filename":      doc.Filename,
			"title":         doc.Title,
			"start_index":   c.StartIndex,
			"end_index":     c.EndIndex,
		}
		for k, v := range c.Metadata {
			meta[k] = v
		}
		records[i] = vectorDB.Record{Id: c.Id, Content: c.RetrievalText(), Embedding: c.Embedding, Metadata: meta}
	}

	if err := store.AddDocuments(ctx, coll.Name, records); err != nil {
		o.rollback(log, store, coll.Name, chunks)
		return err
	}
	return nil
}

// rollback removes a partially written document from the store by chunk id.
func (o *Orchestrator) rollback(log *logger_i.Logger, store vectorDB.Store, collection string, chunks []commonModels.DocumentChunk) {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.Id
	}
	ctx, cancel := context.WithTimeout(context.Background(), config.VectorStoreHTTPTimeout)
	defer cancel()
	if err := store.DeleteDocuments(ctx, collection, ids); err != nil {
		log.Error("Rollback of partial upsert failed", "collection", collection, "error", err)
	}
}

// dropChunks removes every chunk of a document from its store and from the repository.
func (o *Orchestrator) dropChunks(ctx context.Context, coll docModel.Collection, documentId string) error {
	rows, err := o.deps.Documents.GetChunks(ctx, documentId)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		store, err := o.deps.Stores.Get(ctx, coll.VectorStoreId)
		if err != nil {
			return err
		}
		ids := make([]string, len(rows))
		for i, r := range rows {
			ids[i] = r.Id
		}
		if err := store.DeleteDocuments(ctx, coll.Name, ids); err != nil {
			return err
		}
	}
	return o.deps.Documents.DeleteChunks(ctx, documentId)
}

func (o *Orchestrator) readBlob(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, config.BlobReadTimeout)
	defer cancel()
	data, err := o.deps.Blobs.Get(ctx, key)
	if errors.Is(err, docModel.ErrBlobNotFound) {
		return nil, ragErrors.NewProcessingError(ragErrors.ProcessingFailed, fmt.Sprintf("raw bytes %q are missing", key), err)
	}
	return data, err
}

func (o *Orchestrator) writeBlob(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, config.BlobWriteTimeout)
	defer cancel()
	return o.deps.Blobs.Put(ctx, key, data, contentType)
}
