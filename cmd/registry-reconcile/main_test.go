package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-registry/pkg/registry"
	"github.com/tendant/simple-registry/pkg/registry/config"
	"github.com/tendant/simple-registry/pkg/registry/reconcile"
	"github.com/tendant/simple-registry/pkg/registry/repo/memory"
	memorystorage "github.com/tendant/simple-registry/pkg/registry/storage/memory"
)

func TestScan(t *testing.T) {
	ctx := context.Background()
	records := memory.New()
	archives := memorystorage.New()

	for _, v := range []string{"1.0.0", "1.1.0"} {
		require.NoError(t, records.PutRecordIfAbsent(ctx, &registry.PackageRecord{
			ID: uuid.New(), Name: "demo", Version: v, CreatedAt: time.Now(),
		}))
	}
	require.NoError(t, archives.StoreArchive(ctx, "demo", "1.0.0", []byte("abc")))

	var logs bytes.Buffer
	stores := &config.Stores{Records: records, Archives: archives}
	result, err := scan(ctx, stores, nil, newTextLogger(&logs))
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.TotalChecked)
	assert.Equal(t, []registry.RecordKey{{Name: "demo", Version: "1.1.0"}}, result.Orphaned)
	assert.Contains(t, logs.String(), "crates/demo/demo-1.1.0.crate")
}

func TestScanRequiresInspector(t *testing.T) {
	stores := &config.Stores{Records: memory.New(), Archives: writeOnly{}}
	_, err := scan(context.Background(), stores, nil, newTextLogger(io.Discard))
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	t.Setenv("RECONCILE_TEST_DATABASE_URL", "memory")

	var stdout bytes.Buffer
	code, err := run(context.Background(), []string{"--env-prefix", "RECONCILE_TEST_", "--json"}, &stdout, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	var result reconcile.ScanResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	assert.Zero(t, result.TotalChecked)
}

type writeOnly struct{}

func (writeOnly) StoreArchive(context.Context, string, string, []byte) error { return nil }
