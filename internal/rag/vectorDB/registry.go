package vectorDB

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/pkg/logger_i"
)

var logger = logger_i.NewLogger("vector_store")

type Constructor func(cfg docModel.VectorStoreConfig) (Store, error)

type Registry struct {
	mu    sync.RWMutex
	ctors map[docModel.BackendType]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: make(map[docModel.BackendType]Constructor)}
}

func (r *Registry) Register(backend docModel.BackendType, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[backend] = ctor
}

func (r *Registry) New(cfg docModel.VectorStoreConfig) (Store, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, ragErrors.NewVectorStoreError(ragErrors.UnsupportedBackend, fmt.Sprintf("unsupported vector store backend %q", cfg.Type), nil)
	}
	return ctor(cfg)
}

// ConfigSource resolves vector store configs by id.
type ConfigSource interface {
	VectorStoreConfig(ctx context.Context, id string) (docModel.VectorStoreConfig, bool, error)
}

// Manager keeps one connected Store per vector store config.
type Manager struct {
	registry *Registry
	configs  ConfigSource

	mu     sync.Mutex
	stores map[string]Store
}

func NewManager(registry *Registry, configs ConfigSource) *Manager {
	return &Manager{registry: registry, configs: configs, stores: make(map[string]Store)}
}

func (m *Manager) Get(ctx context.Context, id string) (Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.stores[id]; ok && s.IsConnected() {
		return s, nil
	}

	cfg, ok, err := m.configs.VectorStoreConfig(ctx, id)
	if err != nil {
		return nil, ragErrors.NewVectorStoreError(ragErrors.ConnectionFailed, fmt.Sprintf("loading vector store config %q", id), err)
	}
	if !ok {
		return nil, ragErrors.NewVectorStoreError(ragErrors.ConnectionFailed, fmt.Sprintf("vector store config %q not found", id), nil)
	}

	s, err := m.registry.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Connect(ctx); err != nil {
		logger.Error("vector store connect failed", "id", id, "backend", cfg.Type, "error", err)
		return nil, err
	}
	logger.Info("vector store connected", "id", id, "backend", cfg.Type)
	m.stores[id] = s
	return s, nil
}

// Each calls fn for every store connected so far.
func (m *Manager) Each(fn func(id string, s Store)) {
	m.mu.Lock()
	snapshot := make(map[string]Store, len(m.stores))
	for id, s := range m.stores {
		snapshot[id] = s
	}
	m.mu.Unlock()

	for id, s := range snapshot {
		fn(id, s)
	}
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for id, s := range m.stores {
		if err := s.Close(); err != nil {
			logger.Error("closing vector store failed", "id", id, "error", err)
			errs = append(errs, err)
		}
		delete(m.stores, id)
	}
	return errors.Join(errs...)
}
