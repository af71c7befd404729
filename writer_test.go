package wheelwright

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// memWriter is an in-memory ModuleWriter capturing entries for layout
// and dist-info tests.
type memWriter struct {
	entries map[string]memEntry
	order   []string
	dirs    []string
}

type memEntry struct {
	content []byte
	mode    fs.FileMode
}

func newMemWriter() *memWriter {
	return &memWriter{entries: make(map[string]memEntry)}
}

func (w *memWriter) AddDirectory(dir string) error {
	w.dirs = append(w.dirs, dir)
	return nil
}

func (w *memWriter) AddBytes(target string, content []byte) error {
	return w.AddBytesWithMode(target, content, ModeRegular)
}

func (w *memWriter) AddBytesWithMode(target string, content []byte, mode fs.FileMode) error {
	if _, ok := w.entries[target]; !ok {
		w.order = append(w.order, target)
	}
	w.entries[target] = memEntry{content: append([]byte(nil), content...), mode: mode}
	return nil
}

func (w *memWriter) AddFile(target, source string) error {
	return copyFile(w, target, source, ModeRegular)
}

func (w *memWriter) AddFileWithMode(target, source string, mode fs.FileMode) error {
	return copyFile(w, target, source, mode)
}

func (w *memWriter) content(t *testing.T, target string) string {
	t.Helper()
	e, ok := w.entries[target]
	require.True(t, ok, "entry %q not found, have %v", target, w.order)
	return string(e.content)
}

// createTestFiles writes the given path->content map under dir.
func createTestFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for p, content := range files {
		abs := filepath.Join(dir, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
}

func TestCopyFileReportsSourcePath(t *testing.T) {
	t.Parallel()

	w := newMemWriter()
	missing := filepath.Join(t.TempDir(), "nope.txt")
	err := w.AddFile("target.txt", missing)
	require.Error(t, err)
	require.Contains(t, err.Error(), missing)
}
