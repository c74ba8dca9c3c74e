package chromaDB

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createCollectionRequest struct {
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

type recordsRequest struct {
	Ids        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
}

type getRequest struct {
	Ids     []string `json:"ids"`
	Include []string `json:"include"`
}

type getResponse struct {
	Ids        []string         `json:"ids"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
	Embeddings [][]float32      `json:"embeddings"`
	Include    []string         `json:"include"`
}

type queryRequest struct {
	QueryEmbeddings [][]float32    `json:"query_embeddings"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where"`
	Include         []string       `json:"include"`
}

type queryResponse struct {
	Ids       [][]string         `json:"ids"`
	Documents [][]string         `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float32        `json:"distances"`
	Include   []string           `json:"include"`
}

type fakeRecord struct {
	document  string
	embedding []float32
	metadata  map[string]any
}

type fakeCollection struct {
	id       string
	name     string
	metadata map[string]any
	records  map[string]*fakeRecord
}

// fakeChroma is an in-memory stand-in for the parts of the v2 REST API the client calls.
type fakeChroma struct {
	mu     sync.Mutex
	byName map[string]*fakeCollection
	byId   map[string]*fakeCollection
	nextId int
	tokens []string
}

func newFakeChroma(t *testing.T) (*fakeChroma, *httptest.Server) {
	t.Helper()
	f := &fakeChroma{byName: map[string]*fakeCollection{}, byId: map[string]*fakeCollection{}}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.tokens = append(f.tokens, r.Header.Get("x-chroma-token"))
			f.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/api/v2/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"nanosecond heartbeat": 1})
	})
	r.Get("/api/v2/pre-flight-checks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"max_batch_size": 1000})
	})
	r.Route("/api/v2/tenants/{tenant}/databases/{database}/collections", func(r chi.Router) {
		r.Post("/", f.create)
		r.Get("/", f.list)
		r.Get("/{name}", f.get)
		r.Delete("/{name}", f.delete)
		r.Get("/{id}/count", f.count)
		r.Post("/{id}/{op}", f.records)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return f, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (c *fakeCollection) model() map[string]any {
	return map[string]any{
		"id":                 c.id,
		"name":               c.name,
		"metadata":           c.metadata,
		"configuration_json": map[string]any{},
		"tenant":             "default_tenant",
		"database":           "default_database",
		"version":            0,
		"log_position":       0,
	}
}

func (f *fakeChroma) create(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byName[req.Name]; ok {
		writeJSON(w, http.StatusConflict, map[string]any{"error": "UniqueConstraintError"})
		return
	}
	f.nextId++
	c := &fakeCollection{id: fmt.Sprintf("col-%d", f.nextId), name: req.Name, metadata: req.Metadata, records: map[string]*fakeRecord{}}
	f.byName[c.name] = c
	f.byId[c.id] = c
	writeJSON(w, http.StatusOK, c.model())
}

func (f *fakeChroma) list(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []map[string]any{}
	for _, c := range f.byName {
		out = append(out, c.model())
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *fakeChroma) get(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byName[chi.URLParam(r, "name")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "NotFoundError"})
		return
	}
	writeJSON(w, http.StatusOK, c.model())
}

func (f *fakeChroma) delete(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byName[chi.URLParam(r, "name")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "NotFoundError"})
		return
	}
	delete(f.byName, c.name)
	delete(f.byId, c.id)
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (f *fakeChroma) count(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byId[chi.URLParam(r, "id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "NotFoundError"})
		return
	}
	writeJSON(w, http.StatusOK, len(c.records))
}

func (f *fakeChroma) records(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byId[chi.URLParam(r, "id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "NotFoundError"})
		return
	}

	switch chi.URLParam(r, "op") {
	case "upsert":
		var req recordsRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for i, id := range req.Ids {
			rec := &fakeRecord{document: req.Documents[i], embedding: req.Embeddings[i]}
			if i < len(req.Metadatas) {
				rec.metadata = req.Metadatas[i]
			}
			c.records[id] = rec
		}
		writeJSON(w, http.StatusOK, map[string]any{})
	case "update":
		var req recordsRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for i, id := range req.Ids {
			rec, ok := c.records[id]
			if !ok {
				continue
			}
			if req.Documents != nil {
				rec.document = req.Documents[i]
			}
			if req.Embeddings != nil {
				rec.embedding = req.Embeddings[i]
			}
			if i < len(req.Metadatas) && req.Metadatas[i] != nil {
				rec.metadata = vectorDB.MergeMetadata(rec.metadata, req.Metadatas[i])
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{})
	case "delete":
		var req recordsRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, id := range req.Ids {
			delete(c.records, id)
		}
		writeJSON(w, http.StatusOK, map[string]any{})
	case "get":
		var req getRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := getResponse{Ids: []string{}, Documents: []string{}, Metadatas: []map[string]any{}, Embeddings: [][]float32{}, Include: req.Include}
		for _, id := range req.Ids {
			rec, ok := c.records[id]
			if !ok {
				continue
			}
			resp.Ids = append(resp.Ids, id)
			resp.Documents = append(resp.Documents, rec.document)
			resp.Metadatas = append(resp.Metadatas, rec.metadata)
			resp.Embeddings = append(resp.Embeddings, rec.embedding)
		}
		writeJSON(w, http.StatusOK, resp)
	case "query":
		var req queryRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		type hit struct {
			id   string
			rec  *fakeRecord
			dist float32
		}
		var hits []hit
		for id, rec := range c.records {
			if !matchesWhere(rec.metadata, req.Where) {
				continue
			}
			hits = append(hits, hit{id: id, rec: rec, dist: cosineDistance(req.QueryEmbeddings[0], rec.embedding)})
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
		if len(hits) > req.NResults {
			hits = hits[:req.NResults]
		}
		resp := queryResponse{Ids: [][]string{{}}, Documents: [][]string{{}}, Metadatas: [][]map[string]any{{}}, Distances: [][]float32{{}}, Include: req.Include}
		for _, h := range hits {
			resp.Ids[0] = append(resp.Ids[0], h.id)
			resp.Documents[0] = append(resp.Documents[0], h.rec.document)
			resp.Metadatas[0] = append(resp.Metadatas[0], h.rec.metadata)
			resp.Distances[0] = append(resp.Distances[0], h.dist)
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		http.NotFound(w, r)
	}
}

func matchesWhere(meta map[string]any, where map[string]any) bool {
	if len(where) == 0 {
		return true
	}
	if clauses, ok := where["$and"].([]any); ok {
		for _, c := range clauses {
			if !matchesWhere(meta, c.(map[string]any)) {
				return false
			}
		}
		return true
	}
	for k, cond := range where {
		want := cond
		if ops, ok := cond.(map[string]any); ok {
			want = ops["$eq"]
		}
		if !vectorDB.MatchesFilter(meta, vectorDB.Filter{k: want}) {
			return false
		}
	}
	return true
}

func cosineDistance(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}

func connectedStore(t *testing.T) (*Store, *fakeChroma) {
	t.Helper()
	f, srv := newFakeChroma(t)
	s := New(Options{URL: srv.URL, Token: "secret"})
	require.NoError(t, s.Connect(context.Background()))
	return s, f
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, f := connectedStore(t)

	require.NoError(t, s.CreateCollection(ctx, "docs", 3, vectorDB.CollectionOptions{Description: "test"}))
	assert.Equal(t, "cosine", f.byName["docs"].metadata[spaceKey])

	err := s.AddDocuments(ctx, "docs", []vectorDB.Record{
		{Id: "a", Content: "alpha", Embedding: []float32{1, 0, 0}, Metadata: map[string]any{"document_id": "d1", "tags": []string{"x"}}},
		{Id: "b", Content: "beta", Embedding: []float32{0, 1, 0}, Metadata: map[string]any{"document_id": "d2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `["x"]`, f.byName["docs"].records["a"].metadata["tags"])

	rec, err := s.GetDocument(ctx, "docs", "a")
	require.NoError(t, err)
	assert.Equal(t, "alpha", rec.Content)
	assert.Equal(t, []float32{1, 0, 0}, rec.Embedding)

	matches, err := s.Search(ctx, "docs", []float32{1, 0.1, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].Id)
	assert.Greater(t, matches[0].Score, matches[1].Score)
	assert.InDelta(t, 0.995, matches[0].Score, 0.001)

	matches, err = s.Search(ctx, "docs", []float32{1, 0, 0}, 5, vectorDB.Filter{"document_id": "d2"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].Id)

	stats, err := s.Stats(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 3, stats.Dimensions)

	assert.Contains(t, f.tokens, "secret")
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := connectedStore(t)
	require.NoError(t, s.CreateCollection(ctx, "docs", 2, vectorDB.CollectionOptions{}))
	require.NoError(t, s.AddDocuments(ctx, "docs", []vectorDB.Record{
		{Id: "a", Content: "alpha", Embedding: []float32{1, 0}, Metadata: map[string]any{"k": "v"}},
	}))

	content := "alpha v2"
	require.NoError(t, s.UpdateDocument(ctx, "docs", vectorDB.Update{Id: "a", Content: &content, Metadata: map[string]any{"n": 1}}))
	rec, err := s.GetDocument(ctx, "docs", "a")
	require.NoError(t, err)
	assert.Equal(t, "alpha v2", rec.Content)
	assert.Equal(t, "v", rec.Metadata["k"])

	err = s.UpdateDocument(ctx, "docs", vectorDB.Update{Id: "missing", Content: &content})
	assert.Equal(t, ragErrors.DocumentNotFound, ragErrors.CodeOf(err))

	require.NoError(t, s.DeleteDocuments(ctx, "docs", []string{"a"}))
	_, err = s.GetDocument(ctx, "docs", "a")
	assert.Equal(t, ragErrors.DocumentNotFound, ragErrors.CodeOf(err))
}

func TestCollections(t *testing.T) {
	ctx := context.Background()
	s, _ := connectedStore(t)

	require.NoError(t, s.CreateCollection(ctx, "one", 2, vectorDB.CollectionOptions{}))
	require.NoError(t, s.CreateCollection(ctx, "two", 2, vectorDB.CollectionOptions{}))
	assert.Equal(t, ragErrors.CollectionExists, ragErrors.CodeOf(s.CreateCollection(ctx, "one", 2, vectorDB.CollectionOptions{})))

	names, err := s.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, names)

	require.NoError(t, s.DeleteCollection(ctx, "one"))
	exists, err := s.CollectionExists(ctx, "one")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Equal(t, ragErrors.CollectionNotFound, ragErrors.CodeOf(s.DeleteCollection(ctx, "one")))
	_, err = s.Search(ctx, "one", []float32{1, 0}, 3, nil)
	assert.Equal(t, ragErrors.CollectionNotFound, ragErrors.CodeOf(err))
}

func TestValidation(t *testing.T) {
	ctx := context.Background()

	_, srv := newFakeChroma(t)
	disconnected := New(Options{URL: srv.URL})
	assert.Equal(t, ragErrors.ConnectionFailed, ragErrors.CodeOf(disconnected.CreateCollection(ctx, "docs", 2, vectorDB.CollectionOptions{})))

	s, _ := connectedStore(t)
	assert.Equal(t, ragErrors.InvalidCollectionName, ragErrors.CodeOf(s.CreateCollection(ctx, "a/b", 2, vectorDB.CollectionOptions{})))
	require.NoError(t, s.CreateCollection(ctx, "docs", 2, vectorDB.CollectionOptions{}))

	err := s.AddDocuments(ctx, "docs", []vectorDB.Record{{Id: "a", Content: "x", Embedding: []float32{1, 2, 3}}})
	assert.Equal(t, ragErrors.DimensionMismatch, ragErrors.CodeOf(err))

	err = s.AddDocuments(ctx, "docs", []vectorDB.Record{{Id: "a", Content: " ", Embedding: []float32{1, 2}}})
	assert.Equal(t, ragErrors.InvalidDocument, ragErrors.CodeOf(err))

	_, err = s.SearchByText(ctx, "docs", "query", 3, nil)
	assert.Equal(t, ragErrors.NotImplemented, ragErrors.CodeOf(err))
}

func TestConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := New(Options{URL: srv.URL})
	err := s.Connect(context.Background())
	assert.Equal(t, ragErrors.ConnectionFailed, ragErrors.CodeOf(err))
	assert.False(t, s.IsConnected())
}

func TestWhereClause(t *testing.T) {
	assert.Nil(t, whereClause(nil))

	raw, err := json.Marshal(whereClause(vectorDB.Filter{"a": "x"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{"$eq":"x"}}`, string(raw))

	raw, err = json.Marshal(whereClause(vectorDB.Filter{"b": 2, "a": "x"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"$and":[{"a":{"$eq":"x"}},{"b":{"$eq":2}}]}`, string(raw))
}

func TestFlattenMetadata(t *testing.T) {
	flat := flattenMetadata(map[string]any{"n": 3, "f": float32(0.5), "tags": []string{"x"}, "skip": nil})
	assert.Equal(t, map[string]any{"n": int64(3), "f": 0.5, "tags": `["x"]`}, flat)
}
