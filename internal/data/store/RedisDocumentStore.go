package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/data/redisStore"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

// RedisDocumentStore layout:
//
//	doc:<id>                     document json
//	doc:<id>:chunks              list of chunk json, in order
//	hash:<collection>:<sha256>   document id
//	collection:<id>:docs         set of document ids
type RedisDocumentStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func NewRedisDocumentStore(store *redisStore.Store) *RedisDocumentStore {
	return &RedisDocumentStore{
		store:  store,
		logger: logger_i.NewLogger("document_store"),
	}
}

func docKey(id string) string {
	return "doc:" + id
}

func chunksKey(id string) string {
	return "doc:" + id + ":chunks"
}

func hashIndexKey(collection, hash string) string {
	return fmt.Sprintf("hash:%s:%s", collection, hash)
}

func collectionDocsKey(id string) string {
	return "collection:" + id + ":docs"
}

func (s *RedisDocumentStore) load(ctx context.Context, id string) (docModel.Document, bool, error) {
	var doc docModel.Document
	val, err := s.store.Get(ctx, docKey(id))
	if s.store.IsNil(err) {
		return doc, false, nil
	}
	if err != nil {
		return doc, false, err
	}
	if err := json.Unmarshal([]byte(val), &doc); err != nil {
		return doc, false, fmt.Errorf("corrupt document %s: %w", id, err)
	}
	return doc, true, nil
}

func (s *RedisDocumentStore) Save(ctx context.Context, doc docModel.Document) error {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "documentId", doc.Id)
	old, existed, err := s.load(ctx, doc.Id)
	if err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	_, err = s.store.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if existed && (old.ContentHash != doc.ContentHash || old.CollectionId != doc.CollectionId) {
			pipe.Del(ctx, hashIndexKey(old.CollectionId, old.ContentHash))
			pipe.SRem(ctx, collectionDocsKey(old.CollectionId), doc.Id)
		}
		pipe.Set(ctx, docKey(doc.Id), data, 0)
		if doc.ContentHash != "" {
			pipe.Set(ctx, hashIndexKey(doc.CollectionId, doc.ContentHash), doc.Id, 0)
		}
		pipe.SAdd(ctx, collectionDocsKey(doc.CollectionId), doc.Id)
		return nil
	})
	if err != nil {
		log.Error("saving document failed", "error", err)
		return err
	}
	log.Debug("saved document", "status", doc.ProcessingStatus)
	return nil
}

func (s *RedisDocumentStore) Get(ctx context.Context, id string) (docModel.Document, bool, error) {
	return s.load(ctx, id)
}

func (s *RedisDocumentStore) FindByHash(ctx context.Context, collectionId, hash string) (docModel.Document, bool, error) {
	id, err := s.store.Get(ctx, hashIndexKey(collectionId, hash))
	if s.store.IsNil(err) {
		return docModel.Document{}, false, nil
	}
	if err != nil {
		return docModel.Document{}, false, err
	}
	return s.load(ctx, id)
}

func (s *RedisDocumentStore) ListByCollection(ctx context.Context, collectionId string) ([]docModel.Document, error) {
	ids, err := s.store.SetMembers(ctx, collectionDocsKey(collectionId))
	if err != nil {
		return nil, err
	}
	out := make([]docModel.Document, 0, len(ids))
	for _, id := range ids {
		doc, ok, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// TransitionStatus runs under WATCH so two workers cannot both claim the document.
func (s *RedisDocumentStore) TransitionStatus(ctx context.Context, id string, from []docModel.Status, to docModel.Status) (bool, error) {
	swapped, err := s.store.CompareAndSwap(ctx, docKey(id), func(current string) (string, bool, error) {
		var doc docModel.Document
		if err := json.Unmarshal([]byte(current), &doc); err != nil {
			return "", false, err
		}
		if !slices.Contains(from, doc.ProcessingStatus) {
			return "", false, nil
		}
		doc.ProcessingStatus = to
		doc.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(doc)
		return string(data), err == nil, err
	})
	if s.store.IsNil(err) {
		return false, nil
	}
	return swapped, err
}

func (s *RedisDocumentStore) Delete(ctx context.Context, id string) error {
	doc, ok, err := s.load(ctx, id)
	if err != nil || !ok {
		return err
	}
	_, err = s.store.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, docKey(id), chunksKey(id), hashIndexKey(doc.CollectionId, doc.ContentHash))
		pipe.SRem(ctx, collectionDocsKey(doc.CollectionId), id)
		return nil
	})
	return err
}

func (s *RedisDocumentStore) SaveChunks(ctx context.Context, documentId string, chunks []docModel.ChunkRecord) error {
	values := make([]interface{}, len(chunks))
	for i, c := range chunks {
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		values[i] = data
	}
	return s.store.ListReplace(ctx, chunksKey(documentId), values)
}

func (s *RedisDocumentStore) GetChunks(ctx context.Context, documentId string) ([]docModel.ChunkRecord, error) {
	raw, err := s.store.ListGetAll(ctx, chunksKey(documentId))
	if err != nil {
		return nil, err
	}
	out := make([]docModel.ChunkRecord, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal([]byte(r), &out[i]); err != nil {
			return nil, fmt.Errorf("corrupt chunk %d of %s: %w", i, documentId, err)
		}
	}
	return out, nil
}

func (s *RedisDocumentStore) DeleteChunks(ctx context.Context, documentId string) error {
	return s.store.Del(ctx, chunksKey(documentId))
}
