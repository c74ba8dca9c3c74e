package pgvectorDB

import (
	"context"
	"fmt"
	"strings"

	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
	"github.com/cespare/xxhash/v2"
	"github.com/jmoiron/sqlx"
)

const (
	defaultM              = 16
	defaultEfConstruction = 64
	defaultLists          = 100

	indexPrefix = "vector_documents_"
	indexSuffix = "_idx"
	// postgres truncates identifiers past NAMEDATALEN-1 bytes
	maxIdentLength = 63
)

// indexName is the collection's index identifier. Names that would not fit in
// maxIdentLength keep a prefix of the collection and a hash of all of it.
func indexName(collection string) string {
	name := indexPrefix + collection + indexSuffix
	if len(name) <= maxIdentLength {
		return name
	}
	sum := fmt.Sprintf("%016x", xxhash.Sum64String(collection))
	keep := maxIdentLength - len(indexPrefix) - len(indexSuffix) - len(sum) - 1
	return indexPrefix + collection[:keep] + "_" + sum + indexSuffix
}

// indexStatement builds a partial index over one collection's rows. The collection
// name has already passed ValidateName, so it is safe as a literal.
func indexStatement(collection string, dims int, opts vectorDB.IndexOptions) (string, error) {
	expr := fmt.Sprintf("(embedding::vector(%d)) vector_cosine_ops", dims)
	name := quoteIdent(indexName(collection))
	where := fmt.Sprintf("WHERE collection = '%s'", collection)

	switch strings.ToLower(opts.Type) {
	case vectorDB.IndexHNSW:
		m, ef := opts.M, opts.EfConstruction
		if m <= 0 {
			m = defaultM
		}
		if ef <= 0 {
			ef = defaultEfConstruction
		}
		return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON vector_documents USING hnsw (%s) WITH (m = %d, ef_construction = %d) %s",
			name, expr, m, ef, where), nil
	case vectorDB.IndexIVFFlat:
		lists := opts.Lists
		if lists <= 0 {
			lists = defaultLists
		}
		return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON vector_documents USING ivfflat (%s) WITH (lists = %d) %s",
			name, expr, lists, where), nil
	default:
		return "", ragErrors.NewVectorStoreError(ragErrors.InvalidIndexOptions,
			fmt.Sprintf("unsupported index type %q, expected hnsw or ivfflat", opts.Type), nil)
	}
}

// CreateIndex replaces any existing index on the collection.
func (s *Store) CreateIndex(ctx context.Context, collection string, opts vectorDB.IndexOptions) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	dims, err := s.dimensions(ctx, db, collection)
	if err != nil {
		return err
	}
	stmt, err := indexStatement(collection, dims, opts)
	if err != nil {
		return err
	}
	if err := s.dropIndex(ctx, db, collection); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return vectorDB.OpError("create_index", fmt.Sprintf("building %s index on %s", opts.Type, collection), err)
	}
	logger.Info("index created", "collection", collection, "type", opts.Type)
	return nil
}

func (s *Store) DropIndex(ctx context.Context, collection string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := s.dimensions(ctx, db, collection); err != nil {
		return err
	}
	return s.dropIndex(ctx, db, collection)
}

func (s *Store) dropIndex(ctx context.Context, db *sqlx.DB, collection string) error {
	if _, err := db.ExecContext(ctx, "DROP INDEX IF EXISTS "+quoteIdent(indexName(collection))); err != nil {
		return vectorDB.OpError("drop_index", fmt.Sprintf("dropping index on %s", collection), err)
	}
	return nil
}
