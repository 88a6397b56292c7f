package memory

import (
	"context"
	"sync"

	"github.com/tendant/simple-registry/pkg/registry"
)

// Backend is an in-memory implementation of registry.ArchiveStore
type Backend struct {
	mu       sync.RWMutex
	archives map[string][]byte
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		archives: make(map[string][]byte),
	}
}

// StoreArchive stores a copy of data
func (b *Backend) StoreArchive(ctx context.Context, name, version string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.archives[registry.ArchiveKey(name, version)] = stored
	return nil
}

// HasArchive reports whether an archive is stored
func (b *Backend) HasArchive(ctx context.Context, name, version string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, exists := b.archives[registry.ArchiveKey(name, version)]
	return exists, nil
}

// Archive returns a copy of the stored archive or registry.ErrArchiveNotFound
func (b *Backend) Archive(name, version string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.archives[registry.ArchiveKey(name, version)]
	if !exists {
		return nil, registry.ErrArchiveNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
