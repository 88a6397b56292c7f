package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tendant/simple-registry/pkg/registry"
)

// Repository implements registry.RecordStore using in-memory storage
type Repository struct {
	mu      sync.RWMutex
	records map[registry.RecordKey]*registry.PackageRecord
	byName  map[string][]registry.RecordKey // name -> keys in registration order
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		records: make(map[registry.RecordKey]*registry.PackageRecord),
		byName:  make(map[string][]registry.RecordKey),
	}
}

// PutRecordIfAbsent checks and inserts under one write lock.
func (r *Repository) PutRecordIfAbsent(ctx context.Context, record *registry.PackageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := record.Key()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[key]; exists {
		return fmt.Errorf("%s: %w", key, registry.ErrDuplicateVersion)
	}

	r.records[key] = record.Clone()
	r.byName[key.Name] = append(r.byName[key.Name], key)
	return nil
}

func (r *Repository) GetRecord(ctx context.Context, name, version string) (*registry.PackageRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[registry.RecordKey{Name: name, Version: version}]
	if !exists {
		return nil, registry.ErrRecordNotFound
	}
	return record.Clone(), nil
}

func (r *Repository) ListRecords(ctx context.Context, name string) ([]*registry.PackageRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := r.byName[name]
	result := make([]*registry.PackageRecord, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.records[key].Clone())
	}
	return result, nil
}

func (r *Repository) ListNames(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Len returns the number of stored records.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
