// registry-reconcile lists registered versions whose archive is missing.
// It reads the same environment as registry-server and never modifies
// either store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/tendant/simple-registry/pkg/registry"
	"github.com/tendant/simple-registry/pkg/registry/config"
	"github.com/tendant/simple-registry/pkg/registry/reconcile"
)

// exitOrphans is returned when the scan found orphaned records
const exitOrphans = 2

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code, err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	if err != nil && !errors.Is(err, pflag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) (int, error) {
	var (
		envPrefix string
		names     []string
		asJSON    bool
	)

	flagSet := pflag.NewFlagSet("registry-reconcile", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&envPrefix, "env-prefix", "REGISTRY_", "prefix of the registry environment variables")
	flagSet.StringSliceVar(&names, "name", nil, "only scan these packages (repeatable)")
	flagSet.BoolVar(&asJSON, "json", false, "print the result as JSON")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0, err
		}
		return 1, err
	}

	serverConfig, err := config.Load(config.WithEnv(envPrefix))
	if err != nil {
		return 1, err
	}
	stores, err := serverConfig.BuildStores(ctx)
	if err != nil {
		return 1, err
	}
	defer stores.Close()

	result, err := scan(ctx, stores, names, newTextLogger(stderr))
	if err != nil {
		return 1, err
	}

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return 1, err
		}
	} else {
		fmt.Fprintf(stdout, "checked %d versions, %d orphaned, %d failed\n",
			result.TotalChecked, len(result.Orphaned), len(result.Failed))
		for _, key := range result.Orphaned {
			fmt.Fprintf(stdout, "orphaned %s\n", key)
		}
		for _, key := range result.Failed {
			fmt.Fprintf(stdout, "failed %s\n", key)
		}
	}

	if len(result.Orphaned) > 0 {
		return exitOrphans, nil
	}
	return 0, nil
}

func scan(ctx context.Context, stores *config.Stores, names []string, logger *slog.Logger) (*reconcile.ScanResult, error) {
	inspector, ok := stores.Archives.(registry.ArchiveInspector)
	if !ok {
		return nil, fmt.Errorf("archive store %T cannot report archive presence", stores.Archives)
	}

	return reconcile.New(stores.Records, inspector).Scan(ctx, reconcile.ScanOptions{
		Names: names,
		OnOrphan: func(record *registry.PackageRecord) {
			logger.Warn("Record without archive",
				"name", record.Name, "version", record.Version,
				"archive_key", registry.ArchiveKey(record.Name, record.Version),
				"created_at", record.CreatedAt)
		},
	})
}

func newTextLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, nil))
}
