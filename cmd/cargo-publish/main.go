// cargo-publish packs a package directory, frames it with its metadata and
// uploads it to a registry's publish endpoint.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/tendant/simple-registry/pkg/registry"
	"github.com/tendant/simple-registry/pkg/registry/api"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	registryURL string
	token       string
	authHeader  string
	manifest    string
	dir         string
	crate       string
	dryRun      bool
	timeout     time.Duration
	maxElapsed  time.Duration
	verbose     bool
}

func run(args []string, stdout, stderr io.Writer) error {
	var opts options

	flagSet := pflag.NewFlagSet("cargo-publish", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.registryURL, "registry", "http://localhost:8080", "registry base URL")
	flagSet.StringVar(&opts.token, "token", os.Getenv("REGISTRY_TOKEN"), "API token (default: $REGISTRY_TOKEN)")
	flagSet.StringVar(&opts.authHeader, "auth-header", "Authorization", "header carrying the API token")
	flagSet.StringVarP(&opts.manifest, "metadata", "m", "", "metadata JSON file (default: <dir>/metadata.json)")
	flagSet.StringVarP(&opts.dir, "dir", "d", ".", "package directory to pack")
	flagSet.StringVar(&opts.crate, "crate", "", "upload this prebuilt archive instead of packing --dir")
	flagSet.BoolVar(&opts.dryRun, "dry-run", false, "build the frame but do not upload")
	flagSet.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "timeout for a single request")
	flagSet.DurationVar(&opts.maxElapsed, "retry-for", time.Minute, "stop retrying failed uploads after this long")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log retries")

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	level := slog.LevelError
	if opts.verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	body, meta, err := buildFrame(opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Packaged %s v%s (%d bytes)\n", meta.Name, meta.Vers, len(body))
	if opts.dryRun {
		return nil
	}

	client := &Client{
		endpoint:   strings.TrimSuffix(opts.registryURL, "/") + "/api/v1/crates/new",
		token:      opts.token,
		authHeader: opts.authHeader,
		httpClient: newHTTPClient(opts.timeout),
		newBackOff: exponentialBackOff(opts.maxElapsed),
		logger:     logger,
	}

	resp, err := client.Publish(context.Background(), body)
	if err != nil {
		return err
	}
	printWarnings(stderr, resp)
	fmt.Fprintf(stdout, "Uploaded %s v%s\n", meta.Name, meta.Vers)
	return nil
}

// buildFrame reads the metadata, packs or reads the archive and frames both
func buildFrame(opts options) ([]byte, *registry.RawMetadata, error) {
	manifest := opts.manifest
	if manifest == "" {
		manifest = filepath.Join(opts.dir, "metadata.json")
	}
	metadata, err := os.ReadFile(manifest)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	meta, _, err := registry.ParseMetadata(metadata)
	if err != nil {
		return nil, nil, err
	}

	var archive []byte
	if opts.crate != "" {
		archive, err = os.ReadFile(opts.crate)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read archive: %w", err)
		}
	} else {
		var buf bytes.Buffer
		if err := packDir(&buf, opts.dir, meta.Name+"-"+meta.Vers); err != nil {
			return nil, nil, fmt.Errorf("failed to pack %s: %w", opts.dir, err)
		}
		archive = buf.Bytes()
	}

	return registry.EncodeFrame(metadata, archive), meta, nil
}

func printWarnings(w io.Writer, resp *api.PublishResponse) {
	if resp == nil {
		return
	}
	for _, bag := range resp.Warnings {
		for _, c := range bag.InvalidCategories {
			fmt.Fprintf(w, "warning: invalid category %q ignored\n", c)
		}
		for _, b := range bag.InvalidBadges {
			fmt.Fprintf(w, "warning: unknown badge %q ignored\n", b)
		}
		for _, o := range bag.Other {
			fmt.Fprintf(w, "warning: %s\n", o)
		}
	}
}
