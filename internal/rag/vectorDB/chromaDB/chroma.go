package chromaDB

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/customHttpClient"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
	"github.com/akolanti/GoIngest/pkg/logger_i"
	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
)

var logger = logger_i.NewLogger("chroma_store")

const (
	dimensionsKey  = "dimensions"
	descriptionKey = "description"
	spaceKey       = "hnsw:space"
	tokenHeader    = "X-Chroma-Token"
)

type Options struct {
	URL        string
	Token      string
	Tenant     string
	Database   string
	HTTPClient *http.Client
}

type collectionRef struct {
	col  chroma.Collection
	dims int
}

type Store struct {
	opts Options

	mu          sync.RWMutex
	client      chroma.Client
	collections map[string]collectionRef
}

func New(opts Options) *Store {
	if opts.Tenant == "" {
		opts.Tenant = config.ChromaDefaultTenant
	}
	if opts.Database == "" {
		opts.Database = config.ChromaDefaultDatabase
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = customHttpClient.New(config.VectorStoreHTTPTimeout)
	}
	return &Store{opts: opts, collections: make(map[string]collectionRef)}
}

func FromConfig(cfg docModel.VectorStoreConfig) (vectorDB.Store, error) {
	return New(Options{
		URL:      cfg.ConnectionString,
		Token:    cfg.APIKey,
		Tenant:   cfg.Setting("tenant", config.ChromaDefaultTenant),
		Database: cfg.Setting("database", config.ChromaDefaultDatabase),
	}), nil
}

func (s *Store) Backend() docModel.BackendType { return docModel.ChromaDB }

func (s *Store) Connect(ctx context.Context) error {
	clientOpts := []chroma.ClientOption{
		chroma.WithBaseURL(s.opts.URL),
		chroma.WithHTTPClient(s.opts.HTTPClient),
		chroma.WithDatabaseAndTenant(s.opts.Database, s.opts.Tenant),
	}
	if s.opts.Token != "" {
		clientOpts = append(clientOpts, chroma.WithDefaultHeaders(map[string]string{tokenHeader: s.opts.Token}))
	}
	client, err := chroma.NewHTTPClient(clientOpts...)
	if err != nil {
		return vectorDB.ConnectionError("building chroma client", err)
	}
	if err := client.Heartbeat(ctx); err != nil {
		_ = client.Close()
		logger.Error("chroma heartbeat failed", "url", s.opts.URL, "error", err)
		return vectorDB.ConnectionError("chroma heartbeat failed", err)
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	logger.Info("connected to chroma", "url", s.opts.URL, "tenant", s.opts.Tenant, "database", s.opts.Database)
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = make(map[string]collectionRef)
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *Store) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil
}

func (s *Store) ready(name string) (chroma.Client, error) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return nil, vectorDB.NotConnected(docModel.ChromaDB)
	}
	if name == "" {
		return client, nil
	}
	return client, vectorDB.ValidateName(name)
}

// hashing function only; every record carries its own embedding
func embeddingFunction() embeddings.EmbeddingFunction {
	return embeddings.NewConsistentHashEmbeddingFunction()
}

// exists asks the server rather than the cache, since other writers may drop collections.
func (s *Store) exists(ctx context.Context, client chroma.Client, name string) (bool, error) {
	cols, err := client.ListCollections(ctx)
	if err != nil {
		return false, vectorDB.OpError("list", "listing collections", err)
	}
	return slices.ContainsFunc(cols, func(c chroma.Collection) bool { return c.Name() == name }), nil
}

// resolve fetches the collection handle for name, caching it.
func (s *Store) resolve(ctx context.Context, client chroma.Client, name string) (collectionRef, error) {
	s.mu.RLock()
	ref, ok := s.collections[name]
	s.mu.RUnlock()
	if ok {
		return ref, nil
	}

	col, err := client.GetCollection(ctx, name, chroma.WithEmbeddingFunctionGet(embeddingFunction()))
	if err != nil {
		if found, lookupErr := s.exists(ctx, client, name); lookupErr == nil && !found {
			return collectionRef{}, vectorDB.CollectionNotFound(name)
		}
		return collectionRef{}, vectorDB.OpError("get_collection", fmt.Sprintf("looking up collection %s", name), err)
	}
	ref = collectionRef{col: col, dims: intValue(toMap(col.Metadata())[dimensionsKey])}

	s.mu.Lock()
	s.collections[name] = ref
	s.mu.Unlock()
	return ref, nil
}

func (s *Store) forget(name string) {
	s.mu.Lock()
	delete(s.collections, name)
	s.mu.Unlock()
}

func (s *Store) CreateCollection(ctx context.Context, name string, dims int, opts vectorDB.CollectionOptions) error {
	client, err := s.ready(name)
	if err != nil {
		return err
	}
	if err := vectorDB.ValidateDimensions(dims); err != nil {
		return err
	}
	found, err := s.exists(ctx, client, name)
	if err != nil {
		return err
	}
	if found {
		return vectorDB.CollectionExists(name)
	}

	meta := flattenMetadata(opts.Metadata)
	meta[spaceKey] = "cosine"
	meta[dimensionsKey] = int64(dims)
	if opts.Description != "" {
		meta[descriptionKey] = opts.Description
	}

	col, err := client.CreateCollection(ctx, name,
		chroma.WithCollectionMetadataCreate(chroma.NewMetadataFromMap(meta)),
		chroma.WithEmbeddingFunctionCreate(embeddingFunction()),
	)
	if err != nil {
		return vectorDB.OpError("create", fmt.Sprintf("creating collection %s", name), err)
	}

	s.mu.Lock()
	s.collections[name] = collectionRef{col: col, dims: dims}
	s.mu.Unlock()
	return nil
}

func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	client, err := s.ready(name)
	if err != nil {
		return err
	}
	s.forget(name)
	found, err := s.exists(ctx, client, name)
	if err != nil {
		return err
	}
	if !found {
		return vectorDB.CollectionNotFound(name)
	}
	if err := client.DeleteCollection(ctx, name); err != nil {
		return vectorDB.OpError("delete", fmt.Sprintf("deleting collection %s", name), err)
	}
	return nil
}

func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	client, err := s.ready(name)
	if err != nil {
		return false, err
	}
	return s.exists(ctx, client, name)
}

func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	client, err := s.ready("")
	if err != nil {
		return nil, err
	}
	cols, err := client.ListCollections(ctx)
	if err != nil {
		return nil, vectorDB.OpError("list", "listing collections", err)
	}
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) AddDocuments(ctx context.Context, name string, records []vectorDB.Record) error {
	client, err := s.ready(name)
	if err != nil {
		return err
	}
	ref, err := s.resolve(ctx, client, name)
	if err != nil {
		return err
	}
	if err := vectorDB.ValidateRecords(records, ref.dims, true); err != nil {
		return err
	}

	return vectorDB.InBatches(ctx, records, func(ctx context.Context, batch []vectorDB.Record) error {
		ids := make([]chroma.DocumentID, len(batch))
		texts := make([]string, len(batch))
		vectors := make([]embeddings.Embedding, len(batch))
		metas := make([]chroma.DocumentMetadata, len(batch))
		for i, r := range batch {
			meta, err := documentMetadata(r.Metadata)
			if err != nil {
				return vectorDB.OpError("add", fmt.Sprintf("encoding metadata of %s", r.Id), err)
			}
			ids[i] = chroma.DocumentID(r.Id)
			texts[i] = r.Content
			vectors[i] = embeddings.NewEmbeddingFromFloat32(r.Embedding)
			metas[i] = meta
		}
		err := ref.col.Upsert(ctx,
			chroma.WithIDs(ids...),
			chroma.WithTexts(texts...),
			chroma.WithEmbeddings(vectors...),
			chroma.WithMetadatas(metas...),
		)
		if err != nil {
			return vectorDB.OpError("add", fmt.Sprintf("upserting %d records into %s", len(batch), name), err)
		}
		return nil
	})
}

func (s *Store) UpdateDocument(ctx context.Context, name string, u vectorDB.Update) error {
	client, err := s.ready(name)
	if err != nil {
		return err
	}
	ref, err := s.resolve(ctx, client, name)
	if err != nil {
		return err
	}
	if u.Embedding != nil {
		if err := vectorDB.ValidateVector(u.Embedding, ref.dims); err != nil {
			return err
		}
	}
	// chroma ignores unknown ids on update
	if _, err := s.get(ctx, name, ref, u.Id, false); err != nil {
		return err
	}

	opts := []chroma.CollectionUpdateOption{chroma.WithIDsUpdate(chroma.DocumentID(u.Id))}
	if u.Embedding != nil {
		opts = append(opts, chroma.WithEmbeddingsUpdate(embeddings.NewEmbeddingFromFloat32(u.Embedding)))
	}
	if u.Content != nil {
		opts = append(opts, chroma.WithTextsUpdate(*u.Content))
	}
	if u.Metadata != nil {
		meta, err := documentMetadata(u.Metadata)
		if err != nil {
			return vectorDB.OpError("update", fmt.Sprintf("encoding metadata of %s", u.Id), err)
		}
		opts = append(opts, chroma.WithMetadatasUpdate(meta))
	}
	if err := ref.col.Update(ctx, opts...); err != nil {
		return vectorDB.OpError("update", fmt.Sprintf("updating %s in %s", u.Id, name), err)
	}
	return nil
}

func (s *Store) DeleteDocuments(ctx context.Context, name string, ids []string) error {
	client, err := s.ready(name)
	if err != nil {
		return err
	}
	ref, err := s.resolve(ctx, client, name)
	if err != nil {
		return err
	}
	return vectorDB.InBatches(ctx, ids, func(ctx context.Context, batch []string) error {
		if err := ref.col.Delete(ctx, chroma.WithIDsDelete(documentIds(batch)...)); err != nil {
			return vectorDB.OpError("delete", fmt.Sprintf("deleting %d records from %s", len(batch), name), err)
		}
		return nil
	})
}

func (s *Store) GetDocument(ctx context.Context, name, id string) (vectorDB.Record, error) {
	client, err := s.ready(name)
	if err != nil {
		return vectorDB.Record{}, err
	}
	ref, err := s.resolve(ctx, client, name)
	if err != nil {
		return vectorDB.Record{}, err
	}
	return s.get(ctx, name, ref, id, true)
}

func (s *Store) get(ctx context.Context, name string, ref collectionRef, id string, withEmbedding bool) (vectorDB.Record, error) {
	include := []chroma.Include{chroma.IncludeDocuments, chroma.IncludeMetadatas}
	if withEmbedding {
		include = append(include, chroma.IncludeEmbeddings)
	}
	res, err := ref.col.Get(ctx, chroma.WithIDsGet(chroma.DocumentID(id)), chroma.WithIncludeGet(include...))
	if err != nil {
		return vectorDB.Record{}, vectorDB.OpError("get", fmt.Sprintf("fetching %s from %s", id, name), err)
	}
	ids := res.GetIDs()
	if len(ids) == 0 {
		return vectorDB.Record{}, vectorDB.DocumentNotFound(name, id)
	}

	rec := vectorDB.Record{Id: string(ids[0])}
	if docs := res.GetDocuments(); len(docs) > 0 && docs[0] != nil {
		rec.Content = docs[0].ContentString()
	}
	if metas := res.GetMetadatas(); len(metas) > 0 {
		rec.Metadata = toMap(metas[0])
	}
	if vecs := res.GetEmbeddings(); len(vecs) > 0 && vecs[0] != nil {
		rec.Embedding = vecs[0].ContentAsFloat32()
	}
	return rec, nil
}

// Search queries the collection's cosine index; score is 1 - distance.
func (s *Store) Search(ctx context.Context, name string, vector []float32, k int, filter vectorDB.Filter) ([]vectorDB.Match, error) {
	client, err := s.ready(name)
	if err != nil {
		return nil, err
	}
	ref, err := s.resolve(ctx, client, name)
	if err != nil {
		return nil, err
	}
	if err := vectorDB.ValidateVector(vector, ref.dims); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []vectorDB.Match{}, nil
	}

	opts := []chroma.CollectionQueryOption{
		chroma.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(vector)),
		chroma.WithNResults(k),
		chroma.WithIncludeQuery(chroma.IncludeDocuments, chroma.IncludeMetadatas, chroma.IncludeDistances),
	}
	if where := whereClause(filter); where != nil {
		opts = append(opts, chroma.WithWhereQuery(where))
	}

	start := time.Now()
	res, err := ref.col.Query(ctx, opts...)
	if err != nil {
		return nil, vectorDB.OpError("search", fmt.Sprintf("querying %s", name), err)
	}
	logger.Debug("chroma query", "collection", name, "took", time.Since(start))

	idGroups := res.GetIDGroups()
	if len(idGroups) == 0 {
		return []vectorDB.Match{}, nil
	}
	docGroups, metaGroups, distGroups := res.GetDocumentsGroups(), res.GetMetadatasGroups(), res.GetDistancesGroups()

	matches := make([]vectorDB.Match, 0, len(idGroups[0]))
	for i, id := range idGroups[0] {
		m := vectorDB.Match{Id: string(id)}
		if len(docGroups) > 0 && i < len(docGroups[0]) && docGroups[0][i] != nil {
			m.Content = docGroups[0][i].ContentString()
		}
		if len(metaGroups) > 0 && i < len(metaGroups[0]) {
			m.Metadata = toMap(metaGroups[0][i])
		}
		if len(distGroups) > 0 && i < len(distGroups[0]) {
			m.Score = 1 - float32(distGroups[0][i])
		}
		matches = append(matches, m)
	}
	return vectorDB.TopK(matches, k), nil
}

func (s *Store) SearchByText(ctx context.Context, name, text string, k int, filter vectorDB.Filter) ([]vectorDB.Match, error) {
	return nil, vectorDB.SearchByTextUnsupported(docModel.ChromaDB)
}

func (s *Store) Stats(ctx context.Context, name string) (vectorDB.Stats, error) {
	client, err := s.ready(name)
	if err != nil {
		return vectorDB.Stats{}, err
	}
	ref, err := s.resolve(ctx, client, name)
	if err != nil {
		return vectorDB.Stats{}, err
	}
	n, err := ref.col.Count(ctx)
	if err != nil {
		s.forget(name)
		return vectorDB.Stats{}, vectorDB.OpError("stats", fmt.Sprintf("counting %s", name), err)
	}
	return vectorDB.Stats{Collection: name, Count: n, Dimensions: ref.dims, IndexType: "HNSW"}, nil
}

// whereClause turns an equality filter into $eq clauses joined with $and.
func whereClause(filter vectorDB.Filter) chroma.WhereFilter {
	if len(filter) == 0 {
		return nil
	}
	flat := flattenMetadata(filter)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]chroma.WhereClause, 0, len(keys))
	for _, k := range keys {
		switch v := flat[k].(type) {
		case string:
			clauses = append(clauses, chroma.EqString(k, v))
		case bool:
			clauses = append(clauses, chroma.EqBool(k, v))
		case int64:
			clauses = append(clauses, chroma.EqInt(k, int(v)))
		case float64:
			if v == float64(int64(v)) {
				clauses = append(clauses, chroma.EqInt(k, int(v)))
			} else {
				clauses = append(clauses, chroma.EqFloat(k, float32(v)))
			}
		}
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return chroma.And(clauses...)
}

func documentMetadata(in map[string]any) (chroma.DocumentMetadata, error) {
	return chroma.NewDocumentMetadataFromMap(flattenMetadata(in))
}

func documentIds(ids []string) []chroma.DocumentID {
	out := make([]chroma.DocumentID, len(ids))
	for i, id := range ids {
		out[i] = chroma.DocumentID(id)
	}
	return out
}

// flattenMetadata keeps scalars and encodes anything else as JSON, which is all chroma accepts.
// Integers widen to int64 and floats to float64.
func flattenMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch n := v.(type) {
		case nil:
			continue
		case string, bool, int64, float64:
			out[k] = n
		case int:
			out[k] = int64(n)
		case int32:
			out[k] = int64(n)
		case float32:
			out[k] = float64(n)
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				out[k] = fmt.Sprint(v)
				continue
			}
			out[k] = string(raw)
		}
	}
	return out
}

// toMap reads chroma metadata back through its JSON form.
func toMap(meta any) map[string]any {
	if meta == nil {
		return nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func intValue(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}
