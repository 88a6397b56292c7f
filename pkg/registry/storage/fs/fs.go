package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-registry/pkg/registry"
)

// Backend is a filesystem implementation of registry.ArchiveStore
type Backend struct {
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing archives
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{baseDir: filepath.Clean(config.BaseDir)}, nil
}

// path resolves the archive path. Names and versions must be single path
// segments; anything else could alias another package's archive.
func (b *Backend) path(name, version string) (string, error) {
	for _, part := range []string{name, version} {
		if err := checkSegment(part); err != nil {
			return "", fmt.Errorf("invalid archive key %s@%s: %w", name, version, err)
		}
	}
	p := filepath.Join(b.baseDir, filepath.FromSlash(registry.ArchiveKey(name, version)))
	if !strings.HasPrefix(p, b.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("archive key for %s@%s escapes base directory", name, version)
	}
	return p, nil
}

// StoreArchive writes the archive to a temporary file and renames it into
// place, so readers never observe a partial archive.
func (b *Backend) StoreArchive(ctx context.Context, name, version string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	filePath, err := b.path(name, version)
	if err != nil {
		return err
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move archive into place: %w", err)
	}

	return nil
}

// HasArchive reports whether the archive file exists
func (b *Backend) HasArchive(ctx context.Context, name, version string) (bool, error) {
	filePath, err := b.path(name, version)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(filePath)
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to get file info: %w", err)
	}
	return true, nil
}

func checkSegment(part string) error {
	switch {
	case part == "":
		return errors.New("empty segment")
	case part == "." || part == "..":
		return fmt.Errorf("%q is a relative path segment", part)
	case strings.ContainsAny(part, `/\`) || strings.ContainsRune(part, 0):
		return fmt.Errorf("%q contains a path separator", part)
	}
	return nil
}
