package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// publisher implements the Publisher interface
type publisher struct {
	records      RecordStore
	archives     ArchiveStore
	warnings     *WarningChecker
	logger       *slog.Logger
	strictFrames bool
}

// Option represents a functional option for configuring the publisher
type Option func(*publisher)

// WithRecordStore sets the registration store
func WithRecordStore(store RecordStore) Option {
	return func(p *publisher) {
		p.records = store
	}
}

// WithArchiveStore sets the archive store
func WithArchiveStore(store ArchiveStore) Option {
	return func(p *publisher) {
		p.archives = store
	}
}

// WithLogger sets the logger used for operator-facing diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(p *publisher) {
		p.logger = logger
	}
}

// WithWarningChecker replaces the default metadata warning checker
func WithWarningChecker(checker *WarningChecker) Option {
	return func(p *publisher) {
		p.warnings = checker
	}
}

// WithStrictFrames rejects request bodies with bytes after the archive segment
func WithStrictFrames() Option {
	return func(p *publisher) {
		p.strictFrames = true
	}
}

// New creates a new publisher with the given options
func New(options ...Option) (Publisher, error) {
	p := &publisher{
		warnings: NewWarningChecker(),
	}

	for _, option := range options {
		option(p)
	}

	if p.records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if p.archives == nil {
		return nil, fmt.Errorf("archive store is required")
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p, nil
}

// Publish runs decode, parse, checksum and build before touching any store.
// The record is registered first; the archive is written only after the
// registration succeeded. A failed archive write leaves the record in place.
func (p *publisher) Publish(ctx context.Context, body []byte) (*PublishResult, error) {
	frame, err := p.decode(body)
	if err != nil {
		p.logger.Info("Rejected publish frame", "error", err, "body_len", len(body))
		return nil, err
	}
	if frame.Trailing > 0 {
		p.logger.Warn("Ignoring trailing bytes after archive segment", "trailing", frame.Trailing)
	}

	meta, version, err := ParseMetadata(frame.Metadata)
	if err != nil {
		p.logger.Info("Rejected publish metadata", "error", err)
		return nil, err
	}

	checksum := Checksum(frame.Archive)
	record := BuildRecord(meta, version, checksum)
	warnings := p.warnings.Check(meta)

	if err := p.records.PutRecordIfAbsent(ctx, record); err != nil {
		if errors.Is(err, ErrDuplicateVersion) {
			p.logger.Info("Duplicate publish", "name", record.Name, "version", record.Version)
			return nil, newError(KindDuplicateVersion, record.Name, record.Version, err)
		}
		p.logger.Error("Failed to register package",
			"name", record.Name, "version", record.Version, "error", err)
		return nil, newError(KindStoreUnavailable, record.Name, record.Version, err)
	}

	if err := p.archives.StoreArchive(ctx, record.Name, record.Version, frame.Archive); err != nil {
		p.logger.Error("Failed to store archive",
			"name", record.Name, "version", record.Version,
			"archive_key", ArchiveKey(record.Name, record.Version),
			"orphaned_record", true, "error", err)
		return nil, newError(KindArchiveStoreFailed, record.Name, record.Version, err)
	}

	p.logger.Info("Package published",
		"name", record.Name, "version", record.Version,
		"checksum", record.Checksum, "archive_size", len(frame.Archive))

	return &PublishResult{Record: record, Warnings: warnings}, nil
}

func (p *publisher) decode(body []byte) (*Frame, error) {
	if p.strictFrames {
		return DecodeFrameStrict(body)
	}
	return DecodeFrame(body)
}

func (p *publisher) GetPackage(ctx context.Context, name string) (*PackageInfo, error) {
	records, err := p.records.ListRecords(ctx, name)
	if err != nil {
		p.logger.Error("Failed to list package versions", "name", name, "error", err)
		return nil, newError(KindStoreUnavailable, name, "", err)
	}
	if len(records) == 0 {
		return nil, newError(KindNonExistentPackageInfo, name, "", ErrRecordNotFound)
	}
	return &PackageInfo{Name: name, Versions: records}, nil
}

func (p *publisher) GetVersion(ctx context.Context, name, version string) (*PackageRecord, error) {
	record, err := p.records.GetRecord(ctx, name, version)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, newError(KindNonExistentCrateVersion, name, version, err)
		}
		p.logger.Error("Failed to get package version", "name", name, "version", version, "error", err)
		return nil, newError(KindStoreUnavailable, name, version, err)
	}
	return record, nil
}
