package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-registry/pkg/registry"
)

// setupTestRepository connects to TEST_DATABASE_URL and migrates a fresh schema.
func setupTestRepository(t *testing.T) *Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("Skipping integration test: TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	schema := fmt.Sprintf("registry_test_%d", time.Now().UnixNano())

	cfg, err := pgxpool.ParseConfig(dbURL)
	require.NoError(t, err)
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, "CREATE SCHEMA "+pgx.Identifier{schema}.Sanitize())
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DROP SCHEMA "+pgx.Identifier{schema}.Sanitize()+" CASCADE")
		pool.Close()
	})

	repo := NewWithPool(pool)
	require.NoError(t, repo.Migrate(ctx))
	return repo
}

func newRecord(name, version string) *registry.PackageRecord {
	return &registry.PackageRecord{
		ID:        uuid.New(),
		Name:      name,
		Version:   version,
		Checksum:  registry.Checksum([]byte(version)),
		PURL:      registry.PackageURL(name, version),
		Keywords:  []string{"demo"},
		License:   "MIT",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestRepository_PutRecordIfAbsent(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	record := newRecord("demo", "1.0.0")
	require.NoError(t, repo.PutRecordIfAbsent(ctx, record))

	err := repo.PutRecordIfAbsent(ctx, newRecord("demo", "1.0.0"))
	assert.True(t, errors.Is(err, registry.ErrDuplicateVersion))

	got, err := repo.GetRecord(ctx, "demo", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, record.Checksum, got.Checksum)
	assert.Equal(t, record.Keywords, got.Keywords)
	assert.True(t, record.CreatedAt.Equal(got.CreatedAt))

	_, err = repo.GetRecord(ctx, "demo", "2.0.0")
	assert.True(t, errors.Is(err, registry.ErrRecordNotFound))
}

func TestRepository_Concurrent(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	const writers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.PutRecordIfAbsent(ctx, newRecord("demo", "1.0.0"))
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, registry.ErrDuplicateVersion), "unexpected error: %v", err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, success)
}

func TestRepository_List(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	for _, v := range []string{"2.0.0", "1.0.0"} {
		require.NoError(t, repo.PutRecordIfAbsent(ctx, newRecord("demo", v)))
		time.Sleep(time.Millisecond)
	}
	require.NoError(t, repo.PutRecordIfAbsent(ctx, newRecord("alpha", "0.1.0")))

	records, err := repo.ListRecords(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2.0.0", records[0].Version)
	assert.Equal(t, "1.0.0", records[1].Version)

	names, err := repo.ListNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "demo"}, names)
}

func TestHandlePostgresError(t *testing.T) {
	repo := &Repository{}

	err := repo.handlePostgresError("put record", &pgconn.PgError{Code: "23505"})
	assert.True(t, errors.Is(err, registry.ErrDuplicateVersion))

	err = repo.handlePostgresError("get record", &pgconn.PgError{Code: "42P01"})
	assert.True(t, errors.Is(err, registry.ErrStoreUnavailable))

	err = repo.handlePostgresError("get record", &pgconn.PgError{Code: "57P01", Message: "terminating connection"})
	assert.True(t, errors.Is(err, registry.ErrStoreUnavailable))
	assert.False(t, errors.Is(err, registry.ErrDuplicateVersion))

	cause := errors.New("connection reset")
	err = repo.handlePostgresError("list records", cause)
	assert.True(t, errors.Is(err, registry.ErrStoreUnavailable))
	assert.True(t, errors.Is(err, cause))
}
