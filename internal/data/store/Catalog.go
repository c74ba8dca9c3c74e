package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
)

// InMemoryCatalog holds collections and the named configurations they reference.
type InMemoryCatalog struct {
	mu           sync.RWMutex
	collections  map[string]docModel.Collection
	strategies   map[string]docModel.ChunkingStrategyConfig
	cleansing    map[string]docModel.CleansingConfig
	vectorStores map[string]docModel.VectorStoreConfig
}

func NewInMemoryCatalog() *InMemoryCatalog {
	return &InMemoryCatalog{
		collections:  make(map[string]docModel.Collection),
		strategies:   make(map[string]docModel.ChunkingStrategyConfig),
		cleansing:    make(map[string]docModel.CleansingConfig),
		vectorStores: make(map[string]docModel.VectorStoreConfig),
	}
}

// CatalogFromSettings seeds a catalog with everything declared in the config file.
func CatalogFromSettings(s *config.Settings) *InMemoryCatalog {
	c := NewInMemoryCatalog()
	for _, v := range s.VectorStores {
		c.vectorStores[v.Id] = v
	}
	for _, v := range s.ChunkingStrategies {
		c.strategies[v.Id] = v
	}
	for _, v := range s.CleansingConfigs {
		c.cleansing[v.Id] = v
	}
	for _, v := range s.Collections {
		c.collections[v.Id] = v
	}
	return c
}

func (c *InMemoryCatalog) Collection(ctx context.Context, id string) (docModel.Collection, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.collections[id]
	return v, ok, nil
}

func (c *InMemoryCatalog) ListCollections(ctx context.Context) ([]docModel.Collection, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]docModel.Collection, 0, len(c.collections))
	for _, v := range c.collections {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

func (c *InMemoryCatalog) SaveCollection(ctx context.Context, col docModel.Collection) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if col.CreatedAt.IsZero() {
		col.CreatedAt = time.Now().UTC()
	}
	c.collections[col.Id] = col
	return nil
}

func (c *InMemoryCatalog) DeleteCollection(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.collections, id)
	return nil
}

func (c *InMemoryCatalog) ChunkingStrategy(ctx context.Context, id string) (docModel.ChunkingStrategyConfig, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.strategies[id]
	return v, ok, nil
}

func (c *InMemoryCatalog) SaveChunkingStrategy(ctx context.Context, s docModel.ChunkingStrategyConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strategies[s.Id] = s
	return nil
}

func (c *InMemoryCatalog) CleansingConfig(ctx context.Context, id string) (docModel.CleansingConfig, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.cleansing[id]
	return v, ok, nil
}

func (c *InMemoryCatalog) SaveCleansingConfig(ctx context.Context, cfg docModel.CleansingConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleansing[cfg.Id] = cfg
	return nil
}

func (c *InMemoryCatalog) VectorStoreConfig(ctx context.Context, id string) (docModel.VectorStoreConfig, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vectorStores[id]
	return v, ok, nil
}

func (c *InMemoryCatalog) SaveVectorStoreConfig(ctx context.Context, cfg docModel.VectorStoreConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vectorStores[cfg.Id] = cfg
	return nil
}
