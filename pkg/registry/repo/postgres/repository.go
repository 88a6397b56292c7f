package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-registry/pkg/registry"
)

// Schema creates the table used by the repository. The unique constraint on
// (name, version) is what makes PutRecordIfAbsent atomic.
const Schema = `
CREATE TABLE IF NOT EXISTS package_version (
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL,
	version    TEXT NOT NULL,
	checksum   TEXT NOT NULL,
	purl       TEXT NOT NULL,
	metadata   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT package_version_name_version_key UNIQUE (name, version)
)`

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements registry.RecordStore using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Migrate creates the package_version table if it does not exist
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return r.handlePostgresError("migrate", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", operation, registry.ErrDuplicateVersion)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required: %w", registry.ErrStoreUnavailable)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s): %w", operation, pgErr.Message, pgErr.Code, registry.ErrStoreUnavailable)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, errors.Join(registry.ErrStoreUnavailable, err))
}

// PutRecordIfAbsent inserts the record in a single statement. A conflicting
// row makes the insert a no-op, which is reported as a duplicate.
func (r *Repository) PutRecordIfAbsent(ctx context.Context, record *registry.PackageRecord) error {
	metadata, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record metadata: %w", err)
	}

	query := `
		INSERT INTO package_version (
			id, name, version, checksum, purl, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name, version) DO NOTHING`

	tag, err := r.db.Exec(ctx, query,
		record.ID, record.Name, record.Version, record.Checksum,
		record.PURL, metadata, record.CreatedAt)
	if err != nil {
		return r.handlePostgresError("put record", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", record.Key(), registry.ErrDuplicateVersion)
	}
	return nil
}

func (r *Repository) GetRecord(ctx context.Context, name, version string) (*registry.PackageRecord, error) {
	query := `
		SELECT id, name, version, checksum, purl, metadata, created_at
		FROM package_version WHERE name = $1 AND version = $2`

	record, err := scanRecord(r.db.QueryRow(ctx, query, name, version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, registry.ErrRecordNotFound
		}
		return nil, r.handlePostgresError("get record", err)
	}
	return record, nil
}

func (r *Repository) ListRecords(ctx context.Context, name string) ([]*registry.PackageRecord, error) {
	query := `
		SELECT id, name, version, checksum, purl, metadata, created_at
		FROM package_version WHERE name = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, name)
	if err != nil {
		return nil, r.handlePostgresError("list records", err)
	}
	defer rows.Close()

	records := []*registry.PackageRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, r.handlePostgresError("list records", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list records", err)
	}

	return records, nil
}

func (r *Repository) ListNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT name FROM package_version ORDER BY name`)
	if err != nil {
		return nil, r.handlePostgresError("list names", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, r.handlePostgresError("list names", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list names", err)
	}
	return names, nil
}

// scanRecord decodes the descriptive fields from the metadata column; the
// key, checksum and timestamps always come from their own columns.
func scanRecord(row pgx.Row) (*registry.PackageRecord, error) {
	var (
		record   registry.PackageRecord
		metadata []byte
	)
	if err := row.Scan(
		&record.ID, &record.Name, &record.Version, &record.Checksum,
		&record.PURL, &metadata, &record.CreatedAt); err != nil {
		return nil, err
	}

	var doc registry.PackageRecord
	if err := json.Unmarshal(metadata, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode record metadata: %w", err)
	}

	doc.ID = record.ID
	doc.Name = record.Name
	doc.Version = record.Version
	doc.Checksum = record.Checksum
	doc.PURL = record.PURL
	doc.CreatedAt = record.CreatedAt.UTC()
	return &doc, nil
}
