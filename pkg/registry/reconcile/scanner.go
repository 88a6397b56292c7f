// Package reconcile reports registered versions whose archive is missing.
//
// A publish registers the record before writing the archive and does not
// roll the record back when the archive write fails. The scanner finds those
// records so an operator can re-upload or remove them. It never modifies
// either store.
package reconcile

import (
	"context"
	"fmt"

	"github.com/tendant/simple-registry/pkg/registry"
)

// Scanner walks every registered version and checks its archive.
type Scanner struct {
	records  registry.RecordStore
	archives registry.ArchiveInspector
}

// New creates a new Scanner instance.
func New(records registry.RecordStore, archives registry.ArchiveInspector) *Scanner {
	return &Scanner{records: records, archives: archives}
}

// ScanOptions configures the scan operation.
type ScanOptions struct {
	// Names limits the scan to these packages. Empty scans every package.
	Names []string

	// OnOrphan is called for each record without an archive (optional)
	OnOrphan func(record *registry.PackageRecord)
}

// ScanResult contains statistics about the scan operation.
type ScanResult struct {
	// TotalChecked is the number of records inspected
	TotalChecked int64

	// Orphaned lists the keys of records whose archive is missing
	Orphaned []registry.RecordKey

	// Failed lists the keys whose archive could not be inspected
	Failed []registry.RecordKey
}

// Scan checks every record. Inspection errors for a single archive are
// recorded in the result and scanning continues; store listing errors abort.
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	result := &ScanResult{}

	names := opts.Names
	if len(names) == 0 {
		var err error
		names, err = s.records.ListNames(ctx)
		if err != nil {
			return result, fmt.Errorf("failed to list packages: %w", err)
		}
	}

	for _, name := range names {
		records, err := s.records.ListRecords(ctx, name)
		if err != nil {
			return result, fmt.Errorf("failed to list versions of %s: %w", name, err)
		}

		for _, record := range records {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			result.TotalChecked++

			ok, err := s.archives.HasArchive(ctx, record.Name, record.Version)
			if err != nil {
				result.Failed = append(result.Failed, record.Key())
				continue
			}
			if !ok {
				result.Orphaned = append(result.Orphaned, record.Key())
				if opts.OnOrphan != nil {
					opts.OnOrphan(record)
				}
			}
		}
	}

	return result, nil
}
