package blobStore

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/pkg/logger_i"
)

var logger = logger_i.NewLogger("blob_store")

// New picks the backend named in settings.
func New(ctx context.Context, s config.BlobSettings) (docModel.BlobStore, error) {
	switch strings.ToLower(s.Backend) {
	case "memory":
		return NewMemory(), nil
	case "fs", "":
		return NewFS(s.Directory)
	case "s3":
		return NewS3(ctx, s)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", s.Backend)
	}
}

// UploadKey builds the key raw uploads are stored under.
func UploadKey(prefix, documentId, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" {
		name = "upload"
	}
	return path.Join(prefix, documentId, name)
}

type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Put(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, docModel.ErrBlobNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}
