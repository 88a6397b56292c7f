package registry

import (
	"context"
	"fmt"
)

// RecordStore is the registration store. PutRecordIfAbsent is the only write
// and must be a single atomic insert-if-absent keyed by (name, version).
type RecordStore interface {
	// PutRecordIfAbsent persists record unless a record with the same name and
	// version exists, in which case it returns an error wrapping ErrDuplicateVersion.
	PutRecordIfAbsent(ctx context.Context, record *PackageRecord) error

	// GetRecord returns the record for name and version or ErrRecordNotFound
	GetRecord(ctx context.Context, name, version string) (*PackageRecord, error)

	// ListRecords returns every record registered for name, oldest first
	ListRecords(ctx context.Context, name string) ([]*PackageRecord, error)

	// ListNames returns the names of all registered packages
	ListNames(ctx context.Context) ([]string, error)
}

// ArchiveStore persists archive bytes keyed by (name, version).
type ArchiveStore interface {
	StoreArchive(ctx context.Context, name, version string, data []byte) error
}

// ArchiveInspector is implemented by archive stores that can report whether
// an archive exists without reading it.
type ArchiveInspector interface {
	HasArchive(ctx context.Context, name, version string) (bool, error)
}

// ArchiveKey returns the object key used for an archive,
// e.g. crates/demo/demo-1.0.0.crate.
func ArchiveKey(name, version string) string {
	return fmt.Sprintf("crates/%s/%s-%s.crate", name, name, version)
}
