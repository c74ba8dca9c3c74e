package pgvectorDB

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
	"github.com/akolanti/GoIngest/pkg/logger_i"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
)

var logger = logger_i.NewLogger("pgvector_store")

//go:embed scripts/initdb.sql
var bootstrapSQL string

type Store struct {
	dsn string

	mu sync.RWMutex
	db *sqlx.DB
}

type documentRow struct {
	Id        string          `db:"id"`
	Content   string          `db:"content"`
	Metadata  []byte          `db:"metadata"`
	Embedding pgvector.Vector `db:"embedding"`
}

type matchRow struct {
	Id       string  `db:"id"`
	Content  string  `db:"content"`
	Metadata []byte  `db:"metadata"`
	Score    float64 `db:"score"`
}

func New(dsn string) *Store {
	return &Store{dsn: dsn}
}

func FromConfig(cfg docModel.VectorStoreConfig) (vectorDB.Store, error) {
	if cfg.ConnectionString == "" {
		return nil, vectorDB.ConnectionError(fmt.Sprintf("vector store %q has no connection string", cfg.Id), nil)
	}
	return New(cfg.ConnectionString), nil
}

func (s *Store) Backend() docModel.BackendType { return docModel.PgVector }

func (s *Store) Connect(ctx context.Context) error {
	db, err := sqlx.Open("pgx", s.dsn)
	if err != nil {
		return vectorDB.ConnectionError("opening postgres pool", err)
	}
	db.SetMaxOpenConns(config.PgMaxOpenConns)
	db.SetMaxIdleConns(config.PgMaxIdleConns)
	db.SetConnMaxLifetime(config.PgConnMaxLifetime)
	db.SetConnMaxIdleTime(config.PgConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return vectorDB.ConnectionError("postgres ping failed", err)
	}
	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return vectorDB.ConnectionError("bootstrapping vector schema", err)
	}

	s.mu.Lock()
	s.db = db
	s.mu.Unlock()
	logger.Info("connected to postgres")
	return nil
}

func bootstrap(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, bootstrapSQL); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

func (s *Store) conn() (*sqlx.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, vectorDB.NotConnected(docModel.PgVector)
	}
	return s.db, nil
}

// dimensions returns the collection's fixed dimension, or COLLECTION_NOT_FOUND.
func (s *Store) dimensions(ctx context.Context, db *sqlx.DB, name string) (int, error) {
	if err := vectorDB.ValidateName(name); err != nil {
		return 0, err
	}
	var dims int
	err := db.GetContext(ctx, &dims, sqlx.Rebind(sqlx.DOLLAR, `SELECT dimensions FROM vector_collections WHERE name = ?`), name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, vectorDB.CollectionNotFound(name)
	}
	if err != nil {
		return 0, vectorDB.OpError("get_collection", fmt.Sprintf("loading collection %s", name), err)
	}
	return dims, nil
}

func (s *Store) CreateCollection(ctx context.Context, name string, dims int, opts vectorDB.CollectionOptions) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if err := vectorDB.ValidateName(name); err != nil {
		return err
	}
	if err := vectorDB.ValidateDimensions(dims); err != nil {
		return err
	}
	meta, err := encodeMetadata(opts.Metadata)
	if err != nil {
		return vectorDB.OpError("create", "encoding collection metadata", err)
	}

	_, err = db.ExecContext(ctx,
		sqlx.Rebind(sqlx.DOLLAR, `INSERT INTO vector_collections (name, dimensions, description, metadata) VALUES (?, ?, ?, ?::jsonb)`),
		name, dims, opts.Description, meta)
	if isUniqueViolation(err) {
		return vectorDB.CollectionExists(name)
	}
	if err != nil {
		return vectorDB.OpError("create", fmt.Sprintf("creating collection %s", name), err)
	}
	return nil
}

func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if err := vectorDB.ValidateName(name); err != nil {
		return err
	}
	if err := s.dropIndex(ctx, db, name); err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, `DELETE FROM vector_collections WHERE name = ?`), name)
	if err != nil {
		return vectorDB.OpError("delete", fmt.Sprintf("deleting collection %s", name), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return vectorDB.CollectionNotFound(name)
	}
	return nil
}

func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	db, err := s.conn()
	if err != nil {
		return false, err
	}
	var exists bool
	err = db.GetContext(ctx, &exists, sqlx.Rebind(sqlx.DOLLAR, `SELECT EXISTS (SELECT 1 FROM vector_collections WHERE name = ?)`), name)
	if err != nil {
		return false, vectorDB.OpError("exists", fmt.Sprintf("checking collection %s", name), err)
	}
	return exists, nil
}

func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var names []string
	if err := db.SelectContext(ctx, &names, `SELECT name FROM vector_collections ORDER BY name`); err != nil {
		return nil, vectorDB.OpError("list", "listing collections", err)
	}
	return names, nil
}

// AddDocuments upserts all records in one transaction, one multi-row statement per sub-batch.
func (s *Store) AddDocuments(ctx context.Context, name string, records []vectorDB.Record) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	dims, err := s.dimensions(ctx, db, name)
	if err != nil {
		return err
	}
	if err := vectorDB.ValidateRecords(records, dims, true); err != nil {
		return err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return vectorDB.OpError("add", "starting transaction", err)
	}
	err = vectorDB.InBatches(ctx, records, func(ctx context.Context, batch []vectorDB.Record) error {
		query, args, err := upsertStatement(name, batch)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		_ = tx.Rollback()
		return vectorDB.OpError("add", fmt.Sprintf("upserting %d records into %s", len(records), name), err)
	}
	if err := tx.Commit(); err != nil {
		return vectorDB.OpError("add", "committing upsert", err)
	}
	return nil
}

func upsertStatement(collection string, batch []vectorDB.Record) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO vector_documents (collection, id, content, metadata, embedding) VALUES `)
	args := make([]any, 0, len(batch)*5)
	for i, r := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?::jsonb, ?::vector)")
		meta, err := encodeMetadata(r.Metadata)
		if err != nil {
			return "", nil, err
		}
		args = append(args, collection, r.Id, r.Content, meta, pgvector.NewVector(r.Embedding))
	}
	sb.WriteString(` ON CONFLICT (collection, id) DO UPDATE SET
		content = EXCLUDED.content,
		metadata = EXCLUDED.metadata,
		embedding = EXCLUDED.embedding,
		updated_at = now()`)
	return sqlx.Rebind(sqlx.DOLLAR, sb.String()), args, nil
}

// UpdateDocument builds the SET list from the fields present; metadata is merged.
func (s *Store) UpdateDocument(ctx context.Context, name string, u vectorDB.Update) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	dims, err := s.dimensions(ctx, db, name)
	if err != nil {
		return err
	}

	sets := []string{"updated_at = now()"}
	var args []any
	if u.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *u.Content)
	}
	if u.Metadata != nil {
		meta, err := encodeMetadata(u.Metadata)
		if err != nil {
			return vectorDB.OpError("update", "encoding metadata", err)
		}
		sets = append(sets, "metadata = metadata || ?::jsonb")
		args = append(args, meta)
	}
	if u.Embedding != nil {
		if err := vectorDB.ValidateVector(u.Embedding, dims); err != nil {
			return err
		}
		sets = append(sets, "embedding = ?::vector")
		args = append(args, pgvector.NewVector(u.Embedding))
	}
	args = append(args, name, u.Id)

	query := fmt.Sprintf(`UPDATE vector_documents SET %s WHERE collection = ? AND id = ?`, strings.Join(sets, ", "))
	res, err := db.ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
	if err != nil {
		return vectorDB.OpError("update", fmt.Sprintf("updating %s in %s", u.Id, name), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return vectorDB.DocumentNotFound(name, u.Id)
	}
	return nil
}

func (s *Store) DeleteDocuments(ctx context.Context, name string, ids []string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := s.dimensions(ctx, db, name); err != nil {
		return err
	}
	return vectorDB.InBatches(ctx, ids, func(ctx context.Context, batch []string) error {
		query, args, err := sqlx.In(`DELETE FROM vector_documents WHERE collection = ? AND id IN (?)`, name, batch)
		if err != nil {
			return vectorDB.OpError("delete", "building delete", err)
		}
		if _, err := db.ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
			return vectorDB.OpError("delete", fmt.Sprintf("deleting %d records from %s", len(batch), name), err)
		}
		return nil
	})
}

func (s *Store) GetDocument(ctx context.Context, name, id string) (vectorDB.Record, error) {
	db, err := s.conn()
	if err != nil {
		return vectorDB.Record{}, err
	}
	if _, err := s.dimensions(ctx, db, name); err != nil {
		return vectorDB.Record{}, err
	}

	var row documentRow
	err = db.GetContext(ctx, &row,
		sqlx.Rebind(sqlx.DOLLAR, `SELECT id, content, metadata, embedding FROM vector_documents WHERE collection = ? AND id = ?`),
		name, id)
	if errors.Is(err, sql.ErrNoRows) {
		return vectorDB.Record{}, vectorDB.DocumentNotFound(name, id)
	}
	if err != nil {
		return vectorDB.Record{}, vectorDB.OpError("get", fmt.Sprintf("fetching %s from %s", id, name), err)
	}
	meta, err := decodeMetadata(row.Metadata)
	if err != nil {
		return vectorDB.Record{}, vectorDB.OpError("get", "decoding metadata", err)
	}
	return vectorDB.Record{Id: row.Id, Content: row.Content, Metadata: meta, Embedding: row.Embedding.Slice()}, nil
}

// Search orders by cosine distance on the dimension-cast expression so a partial index can serve it.
func (s *Store) Search(ctx context.Context, name string, vector []float32, k int, filter vectorDB.Filter) ([]vectorDB.Match, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	dims, err := s.dimensions(ctx, db, name)
	if err != nil {
		return nil, err
	}
	if err := vectorDB.ValidateVector(vector, dims); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []vectorDB.Match{}, nil
	}

	q := pgvector.NewVector(vector)
	expr := fmt.Sprintf("embedding::vector(%d)", dims)
	args := []any{q, name}
	where := "collection = ?"
	if len(filter) > 0 {
		raw, err := json.Marshal(filter)
		if err != nil {
			return nil, vectorDB.OpError("search", "encoding filter", err)
		}
		where += " AND metadata @> ?::jsonb"
		args = append(args, string(raw))
	}
	args = append(args, q, k)

	query := fmt.Sprintf(`SELECT id, content, metadata, 1 - (%[1]s <=> ?::vector) AS score
		FROM vector_documents WHERE %[2]s
		ORDER BY %[1]s <=> ?::vector LIMIT ?`, expr, where)

	var rows []matchRow
	if err := db.SelectContext(ctx, &rows, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
		return nil, vectorDB.OpError("search", fmt.Sprintf("searching %s", name), err)
	}

	matches := make([]vectorDB.Match, 0, len(rows))
	for _, r := range rows {
		meta, err := decodeMetadata(r.Metadata)
		if err != nil {
			return nil, vectorDB.OpError("search", "decoding metadata", err)
		}
		matches = append(matches, vectorDB.Match{Id: r.Id, Content: r.Content, Score: float32(r.Score), Metadata: meta})
	}
	return vectorDB.TopK(matches, k), nil
}

func (s *Store) SearchByText(ctx context.Context, name, text string, k int, filter vectorDB.Filter) ([]vectorDB.Match, error) {
	return nil, vectorDB.SearchByTextUnsupported(docModel.PgVector)
}

func (s *Store) Stats(ctx context.Context, name string) (vectorDB.Stats, error) {
	db, err := s.conn()
	if err != nil {
		return vectorDB.Stats{}, err
	}
	dims, err := s.dimensions(ctx, db, name)
	if err != nil {
		return vectorDB.Stats{}, err
	}

	var count int
	if err := db.GetContext(ctx, &count, sqlx.Rebind(sqlx.DOLLAR, `SELECT count(*) FROM vector_documents WHERE collection = ?`), name); err != nil {
		return vectorDB.Stats{}, vectorDB.OpError("stats", fmt.Sprintf("counting %s", name), err)
	}

	var indexDefs []string
	if err := db.SelectContext(ctx, &indexDefs, sqlx.Rebind(sqlx.DOLLAR, `SELECT indexdef FROM pg_indexes WHERE tablename = 'vector_documents' AND indexname = ?`), indexName(name)); err != nil {
		return vectorDB.Stats{}, vectorDB.OpError("stats", "reading index definition", err)
	}
	indexType := vectorDB.IndexFlat
	if len(indexDefs) > 0 {
		def := strings.ToLower(indexDefs[0])
		switch {
		case strings.Contains(def, "using hnsw"):
			indexType = "HNSW"
		case strings.Contains(def, "using ivfflat"):
			indexType = "IVFFlat"
		}
	}
	return vectorDB.Stats{Collection: name, Count: count, Dimensions: dims, IndexType: indexType}, nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	return string(raw), err
}

func decodeMetadata(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	err := json.Unmarshal(raw, &m)
	return m, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
