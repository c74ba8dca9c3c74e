package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/akolanti/GoIngest/internal/domain/commonModels"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/internal/metrics"
	"github.com/akolanti/GoIngest/internal/rag/embedding"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
)

const defaultTopK = 5

// SearchRequest selects the collections to search and how many results to keep.
//
// With CollectionId empty, every active collection is searched and the results
// are merged by raw score. Scores are only comparable between collections on
// the same kind of store: chroma, pgvector and qdrant report cosine similarity,
// while faiss reports 1/(1+squared L2 distance). Merging across store kinds
// orders results by those mixed scales; set CollectionId to rank within one.
type SearchRequest struct {
	// CollectionId empty searches every active collection.
	CollectionId string                 `json:"collection_id,omitempty"`
	Query        string                 `json:"query"`
	TopK         int                    `json:"top_k,omitempty"`
	Filter       map[string]any         `json:"filter,omitempty"`
	Rerank       *docModel.RerankConfig `json:"rerank,omitempty"`
}

func (o *Orchestrator) Search(ctx context.Context, req SearchRequest) ([]commonModels.SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ragErrors.NewProcessingError(ragErrors.ProcessingFailed, "query must not be empty", nil)
	}
	if req.TopK <= 0 {
		req.TopK = defaultTopK
	}
	if err := checkRerank(req.Rerank); err != nil {
		return nil, err
	}

	var colls []docModel.Collection
	if req.CollectionId != "" {
		coll, err := o.collection(ctx, req.CollectionId)
		if err != nil {
			return nil, err
		}
		colls = append(colls, coll)
	} else {
		all, err := o.deps.Catalog.ListCollections(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range all {
			if c.IsActive {
				colls = append(colls, c)
			}
		}
	}

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("search", time.Since(start)) }()

	var results []commonModels.SearchResult
	for _, coll := range colls {
		found, err := o.searchCollection(ctx, coll, req)
		if err != nil {
			return nil, err
		}
		results = append(results, found...)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	limit := req.TopK
	if req.Rerank != nil && req.Rerank.TopN > 0 && req.Rerank.TopN < limit {
		limit = req.Rerank.TopN
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (o *Orchestrator) searchCollection(ctx context.Context, coll docModel.Collection, req SearchRequest) ([]commonModels.SearchResult, error) {
	provider, err := o.deps.Embedders.Provider(ctx, coll.EmbeddingProvider, coll.EmbeddingModel, coll.EmbeddingDimensions)
	if err != nil {
		return nil, err
	}
	vector, err := provider.EmbedOne(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	if err := embedding.CheckVectors([][]float32{vector}, 1, provider.Dimensions()); err != nil {
		return nil, err
	}

	store, err := o.deps.Stores.Get(ctx, coll.VectorStoreId)
	if err != nil {
		return nil, err
	}
	matches, err := store.Search(ctx, coll.Name, vector, req.TopK, vectorDB.Filter(req.Filter))
	if err != nil {
		return nil, err
	}

	out := make([]commonModels.SearchResult, len(matches))
	for i, m := range matches {
		documentId, _ := m.Metadata["document_id"].(string)
		out[i] = commonModels.SearchResult{
			DocumentId:   documentId,
			ChunkId:      m.Id,
			CollectionId: coll.Id,
			Content:      m.Content,
			Score:        m.Score,
			Metadata:     m.Metadata,
		}
	}
	return out, nil
}

// checkRerank accepts only the pass-through strategy; model based reranking is not built in.
func checkRerank(cfg *docModel.RerankConfig) error {
	if cfg == nil {
		return nil
	}
	switch strings.ToLower(cfg.Strategy) {
	case "", "none":
		return nil
	default:
		return ragErrors.NewProcessingError(ragErrors.NotImplemented, fmt.Sprintf("rerank strategy %q is not implemented", cfg.Strategy), nil)
	}
}
