package main

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readArchive(t *testing.T, data []byte) map[string]string {
	t.Helper()
	gr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gr)

	files := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[hdr.Name] = string(content)
	}
	return files
}

func TestPackDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Cargo.toml"), "[package]\nname = \"demo\"\n")
	writeFile(t, filepath.Join(dir, "src", "lib.rs"), "pub fn demo() {}\n")
	writeFile(t, filepath.Join(dir, "target", "debug", "demo"), "binary")
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "ref: refs/heads/main\n")

	var buf bytes.Buffer
	require.NoError(t, packDir(&buf, dir, "demo-1.0.0"))

	files := readArchive(t, buf.Bytes())
	assert.Equal(t, map[string]string{
		"demo-1.0.0/Cargo.toml": "[package]\nname = \"demo\"\n",
		"demo-1.0.0/src/lib.rs": "pub fn demo() {}\n",
	}, files)
}

func TestPackDirDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	writeFile(t, filepath.Join(dir, "b", "c.txt"), "c")

	var first, second bytes.Buffer
	require.NoError(t, packDir(&first, dir, "demo-1.0.0"))
	require.NoError(t, packDir(&second, dir, "demo-1.0.0"))
	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestPackDirMissing(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, packDir(&buf, filepath.Join(t.TempDir(), "missing"), "demo-1.0.0"))
}
