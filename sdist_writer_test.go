package wheelwright

import (
	"archive/tar"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tarEntry struct {
	mode    fs.FileMode
	content []byte
}

func readSDist(t *testing.T, path string) map[string]tarEntry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	entries := make(map[string]tarEntry)
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[header.Name] = tarEntry{mode: fs.FileMode(header.Mode), content: content}
	}
	return entries
}

func TestSDistNaming(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewSDistWriter(dir, &Metadata{Name: "my-pkg", Version: "2.1"})
	require.NoError(t, err)

	out, err := w.Finish()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "my_pkg-2.1.tar.gz"), out)
}

func TestSDistDeduplication(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewSDistWriter(dir, &Metadata{Name: "pkg", Version: "1.0"})
	require.NoError(t, err)

	require.NoError(t, w.AddBytes("pkg/mod.py", []byte("first")))
	require.NoError(t, w.AddBytes("pkg/mod.py", []byte("second")))
	out, err := w.Finish()
	require.NoError(t, err)

	entries := readSDist(t, out)
	require.Len(t, entries, 1)
	// First writer wins.
	assert.Equal(t, "first", string(entries["pkg/mod.py"].content))
}

func TestSDistSelfInclusionGuard(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewSDistWriter(dir, &Metadata{Name: "pkg", Version: "1.0"})
	require.NoError(t, err)

	require.NoError(t, w.AddFile("pkg-1.0.tar.gz", filepath.Join(dir, "pkg-1.0.tar.gz")))
	out, err := w.Finish()
	require.NoError(t, err)

	assert.Empty(t, readSDist(t, out))
}

func TestSDistExcludes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewSDistWriter(dir, &Metadata{Name: "pkg", Version: "1.0"}, SDistWithExcludes("test*", "!test2"))
	require.NoError(t, err)

	for _, target := range []string{"test1", "test2", "test3", "yes"} {
		require.NoError(t, w.AddBytes(target, []byte(target)))
	}
	out, err := w.Finish()
	require.NoError(t, err)

	entries := readSDist(t, out)
	require.Len(t, entries, 2)
	assert.Contains(t, entries, "test2")
	assert.Contains(t, entries, "yes")
}

func TestSDistStreamedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := filepath.Join(dir, "build.rs")
	require.NoError(t, os.WriteFile(source, []byte("fn main() {}\n"), 0o755))

	w, err := NewSDistWriter(dir, &Metadata{Name: "pkg", Version: "1.0"})
	require.NoError(t, err)
	require.NoError(t, w.AddFile("pkg-1.0/build.rs", source))
	out, err := w.Finish()
	require.NoError(t, err)

	entries := readSDist(t, out)
	entry, ok := entries["pkg-1.0/build.rs"]
	require.True(t, ok)
	assert.Equal(t, "fn main() {}\n", string(entry.content))
	if isUnixHost() {
		assert.NotZero(t, entry.mode&0o111)
	}
}

func TestSDistFileWithMode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := filepath.Join(dir, "tool")
	require.NoError(t, os.WriteFile(source, []byte("#!/bin/sh\n"), 0o644))

	w, err := NewSDistWriter(dir, &Metadata{Name: "pkg", Version: "1.0"})
	require.NoError(t, err)
	require.NoError(t, w.AddFileWithMode("pkg-1.0/tool", source, ModeExecutable))
	out, err := w.Finish()
	require.NoError(t, err)

	entries := readSDist(t, out)
	assert.Equal(t, fs.FileMode(0o755), entries["pkg-1.0/tool"].mode)
}

func TestSDistWriteAfterFinish(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewSDistWriter(dir, &Metadata{Name: "pkg", Version: "1.0"})
	require.NoError(t, err)
	_, err = w.Finish()
	require.NoError(t, err)

	require.ErrorIs(t, w.AddBytes("late", nil), ErrFinished)
}

func isUnixHost() bool {
	return filepath.Separator == '/'
}
