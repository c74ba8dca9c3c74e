package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/akolanti/GoIngest/internal/domain/docModel"
)

// InMemoryDocumentStore keeps documents and their chunk rows in process memory.
type InMemoryDocumentStore struct {
	lock   *sync.RWMutex
	docs   map[string]docModel.Document
	hashes map[string]string
	chunks map[string][]docModel.ChunkRecord
}

func InitInMemoryDocumentStore() *InMemoryDocumentStore {
	return &InMemoryDocumentStore{
		lock:   new(sync.RWMutex),
		docs:   make(map[string]docModel.Document),
		hashes: make(map[string]string),
		chunks: make(map[string][]docModel.ChunkRecord),
	}
}

func hashKey(collectionId, hash string) string {
	return collectionId + "|" + hash
}

func (store *InMemoryDocumentStore) Save(ctx context.Context, doc docModel.Document) error {
	store.lock.Lock()
	defer store.lock.Unlock()
	if old, ok := store.docs[doc.Id]; ok {
		delete(store.hashes, hashKey(old.CollectionId, old.ContentHash))
	}
	store.docs[doc.Id] = doc
	if doc.ContentHash != "" {
		store.hashes[hashKey(doc.CollectionId, doc.ContentHash)] = doc.Id
	}
	return nil
}

func (store *InMemoryDocumentStore) Get(ctx context.Context, id string) (docModel.Document, bool, error) {
	store.lock.RLock()
	defer store.lock.RUnlock()
	doc, ok := store.docs[id]
	return doc, ok, nil
}

func (store *InMemoryDocumentStore) FindByHash(ctx context.Context, collectionId, hash string) (docModel.Document, bool, error) {
	store.lock.RLock()
	defer store.lock.RUnlock()
	id, ok := store.hashes[hashKey(collectionId, hash)]
	if !ok {
		return docModel.Document{}, false, nil
	}
	doc, ok := store.docs[id]
	return doc, ok, nil
}

func (store *InMemoryDocumentStore) ListByCollection(ctx context.Context, collectionId string) ([]docModel.Document, error) {
	store.lock.RLock()
	defer store.lock.RUnlock()
	var out []docModel.Document
	for _, doc := range store.docs {
		if doc.CollectionId == collectionId {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (store *InMemoryDocumentStore) TransitionStatus(ctx context.Context, id string, from []docModel.Status, to docModel.Status) (bool, error) {
	store.lock.Lock()
	defer store.lock.Unlock()
	doc, ok := store.docs[id]
	if !ok || !slices.Contains(from, doc.ProcessingStatus) {
		return false, nil
	}
	doc.ProcessingStatus = to
	doc.UpdatedAt = time.Now().UTC()
	store.docs[id] = doc
	return true, nil
}

func (store *InMemoryDocumentStore) Delete(ctx context.Context, id string) error {
	store.lock.Lock()
	defer store.lock.Unlock()
	if doc, ok := store.docs[id]; ok {
		delete(store.hashes, hashKey(doc.CollectionId, doc.ContentHash))
	}
	delete(store.docs, id)
	delete(store.chunks, id)
	return nil
}

func (store *InMemoryDocumentStore) SaveChunks(ctx context.Context, documentId string, chunks []docModel.ChunkRecord) error {
	store.lock.Lock()
	defer store.lock.Unlock()
	store.chunks[documentId] = slices.Clone(chunks)
	return nil
}

func (store *InMemoryDocumentStore) GetChunks(ctx context.Context, documentId string) ([]docModel.ChunkRecord, error) {
	store.lock.RLock()
	defer store.lock.RUnlock()
	return slices.Clone(store.chunks[documentId]), nil
}

func (store *InMemoryDocumentStore) DeleteChunks(ctx context.Context, documentId string) error {
	store.lock.Lock()
	defer store.lock.Unlock()
	delete(store.chunks, documentId)
	return nil
}
