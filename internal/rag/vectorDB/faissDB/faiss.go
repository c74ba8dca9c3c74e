package faissDB

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
	"github.com/akolanti/GoIngest/pkg/logger_i"
)

var logger = logger_i.NewLogger("faiss_store")

// WarningHandler receives notices about vectors that stay in the index until Compact.
type WarningHandler func(msg string, args ...any)

type Option func(*Store)

func WithWarningHandler(h WarningHandler) Option {
	return func(s *Store) { s.warn = h }
}

type entry struct {
	Position int            `json:"position"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type collection struct {
	Name        string            `json:"name"`
	Dimensions  int               `json:"dimensions"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	Records     map[string]*entry `json:"records"`
	Tombstones  []int             `json:"tombstones,omitempty"`

	vectors    [][]float32
	owners     []string
	tombstones map[int]struct{}
	dirty      bool
}

func newCollection(name string, dims int, opts vectorDB.CollectionOptions) *collection {
	return &collection{
		Name:        name,
		Dimensions:  dims,
		Description: opts.Description,
		Metadata:    opts.Metadata,
		Records:     make(map[string]*entry),
		tombstones:  make(map[int]struct{}),
		dirty:       true,
	}
}

func (c *collection) appendVector(id string, v []float32) int {
	c.vectors = append(c.vectors, vectorDB.CopyVector(v))
	c.owners = append(c.owners, id)
	return len(c.vectors) - 1
}

func (c *collection) tombstone(pos int) {
	c.tombstones[pos] = struct{}{}
	c.owners[pos] = ""
}

// Store is a local exact-search index kept in memory and persisted to a directory,
// one sub-directory per collection. Deleted vectors are tombstoned until Compact.
type Store struct {
	dir  string
	warn WarningHandler

	mu          sync.RWMutex
	connected   bool
	collections map[string]*collection
}

func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir:         dir,
		collections: make(map[string]*collection),
		warn:        func(msg string, args ...any) { logger.Warn(msg, args...) },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func FromConfig(cfg docModel.VectorStoreConfig) (vectorDB.Store, error) {
	dir := cfg.ConnectionString
	if dir == "" {
		dir = cfg.Setting("directory", config.DefaultFaissDirectory)
	}
	return New(dir), nil
}

func (s *Store) Backend() docModel.BackendType { return docModel.Faiss }

func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return vectorDB.ConnectionError(fmt.Sprintf("creating index directory %s", s.dir), err)
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return vectorDB.ConnectionError(fmt.Sprintf("reading index directory %s", s.dir), err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		c, err := load(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return vectorDB.ConnectionError(fmt.Sprintf("loading collection %s", e.Name()), err)
		}
		s.collections[c.Name] = c
	}
	s.connected = true
	logger.Info("flat index loaded", "directory", s.dir, "collections", len(s.collections))
	return nil
}

func (s *Store) Close() error {
	if err := s.Persist(context.Background()); err != nil {
		return err
	}
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return nil
}

func (s *Store) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Store) collection(name string) (*collection, error) {
	if !s.connected {
		return nil, vectorDB.NotConnected(docModel.Faiss)
	}
	if err := vectorDB.ValidateName(name); err != nil {
		return nil, err
	}
	c, ok := s.collections[name]
	if !ok {
		return nil, vectorDB.CollectionNotFound(name)
	}
	return c, nil
}

func (s *Store) CreateCollection(ctx context.Context, name string, dims int, opts vectorDB.CollectionOptions) error {
	if err := vectorDB.ValidateName(name); err != nil {
		return err
	}
	if err := vectorDB.ValidateDimensions(dims); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return vectorDB.NotConnected(docModel.Faiss)
	}
	if _, ok := s.collections[name]; ok {
		return vectorDB.CollectionExists(name)
	}

	c := newCollection(name, dims, opts)
	if err := c.save(filepath.Join(s.dir, name)); err != nil {
		return vectorDB.OpError("create", fmt.Sprintf("persisting collection %s", name), err)
	}
	s.collections[name] = c
	return nil
}

func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.collection(name); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.dir, name)); err != nil {
		return vectorDB.OpError("delete", fmt.Sprintf("removing collection %s", name), err)
	}
	delete(s.collections, name)
	return nil
}

func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return false, vectorDB.NotConnected(docModel.Faiss)
	}
	_, ok := s.collections[name]
	return ok, nil
}

func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return nil, vectorDB.NotConnected(docModel.Faiss)
	}
	names := make([]string, 0, len(s.collections))
	for n := range s.collections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) AddDocuments(ctx context.Context, name string, records []vectorDB.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collection(name)
	if err != nil {
		return err
	}
	if err := vectorDB.ValidateRecords(records, c.Dimensions, true); err != nil {
		return err
	}

	replaced := 0
	err = vectorDB.InBatches(ctx, records, func(_ context.Context, batch []vectorDB.Record) error {
		for _, r := range batch {
			if old, ok := c.Records[r.Id]; ok {
				c.tombstone(old.Position)
				replaced++
			}
			pos := c.appendVector(r.Id, r.Embedding)
			c.Records[r.Id] = &entry{Position: pos, Content: r.Content, Metadata: vectorDB.MergeMetadata(nil, r.Metadata)}
		}
		return nil
	})
	if err != nil {
		return vectorDB.OpError("add", "adding records", err)
	}
	c.dirty = true
	if replaced > 0 {
		s.warn("replaced vectors stay in the index until compaction", "collection", name, "count", replaced)
	}
	return nil
}

func (s *Store) UpdateDocument(ctx context.Context, name string, u vectorDB.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collection(name)
	if err != nil {
		return err
	}
	e, ok := c.Records[u.Id]
	if !ok {
		return vectorDB.DocumentNotFound(name, u.Id)
	}
	if u.Embedding != nil {
		if err := vectorDB.ValidateVector(u.Embedding, c.Dimensions); err != nil {
			return err
		}
	}

	if u.Content != nil {
		e.Content = *u.Content
	}
	if u.Metadata != nil {
		e.Metadata = vectorDB.MergeMetadata(e.Metadata, u.Metadata)
	}
	if u.Embedding != nil {
		c.tombstone(e.Position)
		e.Position = c.appendVector(u.Id, u.Embedding)
		s.warn("embedding update appended a new vector, the old one stays until compaction", "collection", name, "id", u.Id)
	}
	c.dirty = true
	return nil
}

func (s *Store) DeleteDocuments(ctx context.Context, name string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collection(name)
	if err != nil {
		return err
	}

	removed := 0
	err = vectorDB.InBatches(ctx, ids, func(_ context.Context, batch []string) error {
		for _, id := range batch {
			e, ok := c.Records[id]
			if !ok {
				continue
			}
			c.tombstone(e.Position)
			delete(c.Records, id)
			removed++
		}
		return nil
	})
	if err != nil {
		return vectorDB.OpError("delete", "deleting records", err)
	}
	if removed > 0 {
		c.dirty = true
		s.warn("deleted vectors stay in the index until compaction", "collection", name, "count", removed)
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, name, id string) (vectorDB.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(name)
	if err != nil {
		return vectorDB.Record{}, err
	}
	e, ok := c.Records[id]
	if !ok {
		return vectorDB.Record{}, vectorDB.DocumentNotFound(name, id)
	}
	return vectorDB.Record{
		Id:        id,
		Content:   e.Content,
		Embedding: vectorDB.CopyVector(c.vectors[e.Position]),
		Metadata:  vectorDB.MergeMetadata(nil, e.Metadata),
	}, nil
}

// Search is an exact scan over live vectors; score is 1/(1+squared L2 distance).
func (s *Store) Search(ctx context.Context, name string, vector []float32, k int, filter vectorDB.Filter) ([]vectorDB.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(name)
	if err != nil {
		return nil, err
	}
	if err := vectorDB.ValidateVector(vector, c.Dimensions); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []vectorDB.Match{}, nil
	}

	matches := make([]vectorDB.Match, 0, len(c.Records))
	for pos, id := range c.owners {
		if id == "" {
			continue
		}
		e := c.Records[id]
		if e == nil || e.Position != pos {
			continue
		}
		if len(filter) > 0 && !vectorDB.MatchesFilter(e.Metadata, filter) {
			continue
		}
		d := squaredL2(vector, c.vectors[pos])
		matches = append(matches, vectorDB.Match{
			Id:       id,
			Content:  e.Content,
			Score:    float32(1 / (1 + d)),
			Metadata: vectorDB.MergeMetadata(nil, e.Metadata),
		})
	}
	return vectorDB.TopK(matches, k), nil
}

func (s *Store) SearchByText(ctx context.Context, name, text string, k int, filter vectorDB.Filter) ([]vectorDB.Match, error) {
	return nil, vectorDB.SearchByTextUnsupported(docModel.Faiss)
}

func (s *Store) Stats(ctx context.Context, name string) (vectorDB.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(name)
	if err != nil {
		return vectorDB.Stats{}, err
	}
	return vectorDB.Stats{
		Collection: name,
		Count:      len(c.Records),
		Dimensions: c.Dimensions,
		IndexType:  vectorDB.IndexFlat,
		Tombstones: len(c.tombstones),
	}, nil
}

// Compact rebuilds the index without tombstoned vectors and returns how many were dropped.
func (s *Store) Compact(ctx context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collection(name)
	if err != nil {
		return 0, err
	}
	removed := len(c.tombstones)
	if removed == 0 {
		return 0, nil
	}

	vectors := make([][]float32, 0, len(c.Records))
	owners := make([]string, 0, len(c.Records))
	for pos, id := range c.owners {
		if _, dead := c.tombstones[pos]; dead || id == "" {
			continue
		}
		c.Records[id].Position = len(vectors)
		vectors = append(vectors, c.vectors[pos])
		owners = append(owners, id)
	}
	c.vectors = vectors
	c.owners = owners
	c.tombstones = make(map[int]struct{})
	c.dirty = true
	logger.Info("collection compacted", "collection", name, "removed", removed, "live", len(vectors))
	return removed, nil
}

func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, c := range s.collections {
		if !c.dirty {
			continue
		}
		if err := c.save(filepath.Join(s.dir, name)); err != nil {
			return vectorDB.OpError("persist", fmt.Sprintf("persisting collection %s", name), err)
		}
	}
	return nil
}

func squaredL2(a, b []float32) float64 {
	var d float64
	for i := range a {
		x := float64(a[i]) - float64(b[i])
		d += x * x
	}
	return d
}
