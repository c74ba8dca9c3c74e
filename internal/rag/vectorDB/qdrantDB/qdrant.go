package qdrantDB

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
	"github.com/akolanti/GoIngest/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var logger = logger_i.NewLogger("qdrant_store")

type Options struct {
	Host     string
	Port     int
	APIKey   string
	UseTLS   bool
	PoolSize uint
}

type Store struct {
	opts Options

	mu     sync.RWMutex
	client *qdrant.Client
	dims   map[string]int
}

func New(opts Options) *Store {
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.Port == 0 {
		opts.Port = config.QdrantGrpcPort
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = config.QdrantPoolSize
	}
	return &Store{opts: opts, dims: make(map[string]int)}
}

// FromConfig reads "host:port" (or a bare host) from the connection string.
func FromConfig(cfg docModel.VectorStoreConfig) (vectorDB.Store, error) {
	opts := Options{
		Host:     cfg.ConnectionString,
		APIKey:   cfg.APIKey,
		UseTLS:   cfg.Setting("tls", "false") == "true",
		PoolSize: uint(cfg.IntSetting("pool_size", config.QdrantPoolSize)),
	}
	if host, port, err := net.SplitHostPort(cfg.ConnectionString); err == nil {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, vectorDB.ConnectionError(fmt.Sprintf("invalid qdrant port %q", port), err)
		}
		opts.Host, opts.Port = host, p
	}
	return New(opts), nil
}

func (s *Store) Backend() docModel.BackendType { return docModel.Qdrant }

func (s *Store) Connect(ctx context.Context) error {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     s.opts.Host,
		Port:     s.opts.Port,
		APIKey:   s.opts.APIKey,
		UseTLS:   s.opts.UseTLS,
		PoolSize: s.opts.PoolSize,
	})
	if err != nil {
		return vectorDB.ConnectionError("could not instantiate qdrant client", err)
	}

	hctx, cancel := context.WithTimeout(ctx, config.QdrantConnectionTimeout)
	defer cancel()
	if _, err := client.HealthCheck(hctx); err != nil {
		_ = client.Close()
		return vectorDB.ConnectionError(fmt.Sprintf("qdrant at %s:%d is unreachable", s.opts.Host, s.opts.Port), err)
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	logger.Info("connected to qdrant", "host", s.opts.Host, "port", s.opts.Port)
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
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

func (s *Store) conn() (*qdrant.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, vectorDB.NotConnected(docModel.Qdrant)
	}
	return s.client, nil
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (s *Store) dimensions(ctx context.Context, client *qdrant.Client, name string) (int, error) {
	if err := vectorDB.ValidateName(name); err != nil {
		return 0, err
	}
	s.mu.RLock()
	dims, ok := s.dims[name]
	s.mu.RUnlock()
	if ok {
		return dims, nil
	}

	info, err := client.GetCollectionInfo(ctx, name)
	if isNotFound(err) {
		return 0, vectorDB.CollectionNotFound(name)
	}
	if err != nil {
		return 0, vectorDB.OpError("get_collection", fmt.Sprintf("loading collection %s", name), err)
	}
	dims = int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())

	s.mu.Lock()
	s.dims[name] = dims
	s.mu.Unlock()
	return dims, nil
}

func (s *Store) CreateCollection(ctx context.Context, name string, dims int, opts vectorDB.CollectionOptions) error {
	client, err := s.conn()
	if err != nil {
		return err
	}
	if err := vectorDB.ValidateName(name); err != nil {
		return err
	}
	if err := vectorDB.ValidateDimensions(dims); err != nil {
		return err
	}

	exists, err := client.CollectionExists(ctx, name)
	if err != nil {
		return vectorDB.OpError("create", fmt.Sprintf("checking collection %s", name), err)
	}
	if exists {
		return vectorDB.CollectionExists(name)
	}

	err = client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return vectorDB.OpError("create", fmt.Sprintf("creating collection %s", name), err)
	}

	s.mu.Lock()
	s.dims[name] = dims
	s.mu.Unlock()
	return nil
}

func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	client, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := s.dimensions(ctx, client, name); err != nil {
		return err
	}
	if err := client.DeleteCollection(ctx, name); err != nil {
		return vectorDB.OpError("delete", fmt.Sprintf("deleting collection %s", name), err)
	}
	s.mu.Lock()
	delete(s.dims, name)
	s.mu.Unlock()
	return nil
}

func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	client, err := s.conn()
	if err != nil {
		return false, err
	}
	exists, err := client.CollectionExists(ctx, name)
	if err != nil {
		return false, vectorDB.OpError("exists", fmt.Sprintf("checking collection %s", name), err)
	}
	return exists, nil
}

func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	client, err := s.conn()
	if err != nil {
		return nil, err
	}
	names, err := client.ListCollections(ctx)
	if err != nil {
		return nil, vectorDB.OpError("list", "listing collections", err)
	}
	return names, nil
}

func (s *Store) AddDocuments(ctx context.Context, name string, records []vectorDB.Record) error {
	client, err := s.conn()
	if err != nil {
		return err
	}
	dims, err := s.dimensions(ctx, client, name)
	if err != nil {
		return err
	}
	if err := vectorDB.ValidateRecords(records, dims, true); err != nil {
		return err
	}

	return vectorDB.InBatches(ctx, records, func(ctx context.Context, batch []vectorDB.Record) error {
		points := make([]*qdrant.PointStruct, len(batch))
		for i, r := range batch {
			payload, err := buildPayload(r)
			if err != nil {
				return vectorDB.OpError("add", fmt.Sprintf("encoding payload for %s", r.Id), err)
			}
			points[i] = &qdrant.PointStruct{
				Id:      pointId(r.Id),
				Vectors: qdrant.NewVectors(r.Embedding...),
				Payload: payload,
			}
		}
		_, err := client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return vectorDB.OpError("add", fmt.Sprintf("qdrant upsert of %d points failed", len(points)), err)
		}
		return nil
	})
}

func (s *Store) fetch(ctx context.Context, client *qdrant.Client, name, id string, withVectors bool) (*qdrant.RetrievedPoint, error) {
	points, err := client.Get(ctx, &qdrant.GetPoints{
		CollectionName: name,
		Ids:            []*qdrant.PointId{pointId(id)},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(withVectors),
	})
	if err != nil {
		return nil, vectorDB.OpError("get", fmt.Sprintf("fetching %s from %s", id, name), err)
	}
	if len(points) == 0 {
		return nil, vectorDB.DocumentNotFound(name, id)
	}
	return points[0], nil
}

// UpdateDocument rewrites the payload with merged metadata and replaces the vector when given.
func (s *Store) UpdateDocument(ctx context.Context, name string, u vectorDB.Update) error {
	client, err := s.conn()
	if err != nil {
		return err
	}
	dims, err := s.dimensions(ctx, client, name)
	if err != nil {
		return err
	}
	if u.Embedding != nil {
		if err := vectorDB.ValidateVector(u.Embedding, dims); err != nil {
			return err
		}
	}

	point, err := s.fetch(ctx, client, name, u.Id, false)
	if err != nil {
		return err
	}
	_, content, meta := recordFromPayload(point.GetPayload())
	if u.Content != nil {
		content = *u.Content
	}
	payload, err := buildPayload(vectorDB.Record{Id: u.Id, Content: content, Metadata: vectorDB.MergeMetadata(meta, u.Metadata)})
	if err != nil {
		return vectorDB.OpError("update", "encoding payload", err)
	}

	_, err = client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Payload:        payload,
		PointsSelector: qdrant.NewPointsSelector(point.GetId()),
	})
	if err != nil {
		return vectorDB.OpError("update", fmt.Sprintf("updating payload of %s", u.Id), err)
	}

	if u.Embedding != nil {
		_, err = client.UpdateVectors(ctx, &qdrant.UpdatePointVectors{
			CollectionName: name,
			Wait:           qdrant.PtrOf(true),
			Points: []*qdrant.PointVectors{
				{Id: point.GetId(), Vectors: qdrant.NewVectors(u.Embedding...)},
			},
		})
		if err != nil {
			return vectorDB.OpError("update", fmt.Sprintf("updating vector of %s", u.Id), err)
		}
	}
	return nil
}

func (s *Store) DeleteDocuments(ctx context.Context, name string, ids []string) error {
	client, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := s.dimensions(ctx, client, name); err != nil {
		return err
	}
	return vectorDB.InBatches(ctx, ids, func(ctx context.Context, batch []string) error {
		_, err := client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: name,
			Wait:           qdrant.PtrOf(true),
			Points:         qdrant.NewPointsSelector(pointIds(batch)...),
		})
		if err != nil {
			return vectorDB.OpError("delete", fmt.Sprintf("deleting %d points from %s", len(batch), name), err)
		}
		return nil
	})
}

func (s *Store) GetDocument(ctx context.Context, name, id string) (vectorDB.Record, error) {
	client, err := s.conn()
	if err != nil {
		return vectorDB.Record{}, err
	}
	if _, err := s.dimensions(ctx, client, name); err != nil {
		return vectorDB.Record{}, err
	}
	point, err := s.fetch(ctx, client, name, id, true)
	if err != nil {
		return vectorDB.Record{}, err
	}
	recordId, content, meta := recordFromPayload(point.GetPayload())
	if recordId == "" {
		recordId = id
	}
	return vectorDB.Record{Id: recordId, Content: content, Metadata: meta, Embedding: denseVector(point.GetVectors())}, nil
}

func denseVector(v *qdrant.VectorsOutput) []float32 {
	out := v.GetVector()
	if dense := out.GetDense(); dense != nil {
		return dense.GetData()
	}
	return out.GetData()
}

// Search pushes scalar filters down to qdrant and applies the rest afterwards.
func (s *Store) Search(ctx context.Context, name string, vector []float32, k int, filter vectorDB.Filter) ([]vectorDB.Match, error) {
	client, err := s.conn()
	if err != nil {
		return nil, err
	}
	dims, err := s.dimensions(ctx, client, name)
	if err != nil {
		return nil, err
	}
	if err := vectorDB.ValidateVector(vector, dims); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []vectorDB.Match{}, nil
	}

	qFilter, rest := buildFilter(filter)
	limit := uint64(k)
	if rest != nil {
		limit = uint64(k * 4)
	}
	hits, err := client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Filter:         qFilter,
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, vectorDB.OpError("search", fmt.Sprintf("querying %s", name), err)
	}

	matches := make([]vectorDB.Match, 0, len(hits))
	for _, hit := range hits {
		id, content, meta := recordFromPayload(hit.GetPayload())
		if rest != nil && !vectorDB.MatchesFilter(meta, rest) {
			continue
		}
		matches = append(matches, vectorDB.Match{Id: id, Content: content, Score: hit.GetScore(), Metadata: meta})
	}
	return vectorDB.TopK(matches, k), nil
}

func (s *Store) SearchByText(ctx context.Context, name, text string, k int, filter vectorDB.Filter) ([]vectorDB.Match, error) {
	return nil, vectorDB.SearchByTextUnsupported(docModel.Qdrant)
}

func (s *Store) Stats(ctx context.Context, name string) (vectorDB.Stats, error) {
	client, err := s.conn()
	if err != nil {
		return vectorDB.Stats{}, err
	}
	dims, err := s.dimensions(ctx, client, name)
	if err != nil {
		return vectorDB.Stats{}, err
	}
	count, err := client.Count(ctx, &qdrant.CountPoints{CollectionName: name, Exact: qdrant.PtrOf(true)})
	if err != nil {
		return vectorDB.Stats{}, vectorDB.OpError("stats", fmt.Sprintf("counting %s", name), err)
	}
	return vectorDB.Stats{Collection: name, Count: int(count), Dimensions: dims, IndexType: "HNSW"}, nil
}
