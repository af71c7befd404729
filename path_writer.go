package wheelwright

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/meigma/wheelwright/internal/record"
)

// PathWriter is a ModuleWriter that installs the module somewhere in the
// filesystem, e.g. a virtualenv's site-packages directory. It is the only
// backend that creates real directories and the only one without an
// exclusion filter: an in-place install has no packaging-exclusion
// concept, every write is intentional.
type PathWriter struct {
	base     string
	ledger   record.Ledger
	logger   *slog.Logger
	finished bool
}

// PathOption configures a PathWriter.
type PathOption func(*PathWriter)

// PathWithLogger sets the logger for per-entry debug output.
func PathWithLogger(logger *slog.Logger) PathOption {
	return func(w *PathWriter) {
		w.logger = logger
	}
}

// NewPathWriter creates a PathWriter that writes every entry under base.
func NewPathWriter(base string, opts ...PathOption) *PathWriter {
	w := &PathWriter{base: base, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// DeleteDir removes a directory relative to the base path, cleaning up
// the contents of an older in-place install. A missing directory is a
// no-op.
func (w *PathWriter) DeleteDir(relative string) error {
	absolute := filepath.Join(w.base, filepath.FromSlash(relative))
	if err := os.RemoveAll(absolute); err != nil {
		return fmt.Errorf("remove %s: %w", absolute, err)
	}
	return nil
}

// AddDirectory creates the directory (and any missing parents) under the
// base path.
func (w *PathWriter) AddDirectory(dir string) error {
	if w.finished {
		return ErrFinished
	}
	target := filepath.Join(w.base, filepath.FromSlash(dir))
	w.logger.Debug("adding directory", "path", target)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", target, err)
	}
	return nil
}

// AddBytes writes content at target with ModeRegular permissions.
func (w *PathWriter) AddBytes(target string, content []byte) error {
	return w.AddBytesWithMode(target, content, ModeRegular)
}

// AddBytesWithMode writes content at target. The permission bits are
// honored only on platforms with POSIX create modes; elsewhere files are
// created with the platform default regardless of mode.
func (w *PathWriter) AddBytesWithMode(target string, content []byte, mode fs.FileMode) error {
	if w.finished {
		return ErrFinished
	}
	abs := filepath.Join(w.base, filepath.FromSlash(target))
	w.logger.Debug("adding", "path", abs)

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", filepath.Dir(abs), err)
	}
	f, err := createFile(abs, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", abs, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", abs, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", abs, err)
	}

	w.ledger.Add(path.Clean(filepath.ToSlash(target)), content)
	return nil
}

// AddFile copies the file at source to target with ModeRegular
// permissions.
func (w *PathWriter) AddFile(target, source string) error {
	return copyFile(w, target, source, ModeRegular)
}

// AddFileWithMode copies the file at source to target with the given
// permission bits.
func (w *PathWriter) AddFileWithMode(target, source string, mode fs.FileMode) error {
	return copyFile(w, target, source, mode)
}

// WriteRecord finalizes the install by writing the integrity ledger as
// the metadata directory's RECORD file. It must be called exactly once,
// after every other entry has been written; no entry may be added
// afterwards. Returns the path of the written RECORD file.
func (w *PathWriter) WriteRecord(meta *Metadata) (string, error) {
	if w.finished {
		return "", ErrFinished
	}
	w.finished = true

	relative := path.Join(meta.DistInfoDir(), "RECORD")
	recordFile := filepath.Join(w.base, filepath.FromSlash(relative))
	if err := os.MkdirAll(filepath.Dir(recordFile), 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", filepath.Dir(recordFile), err)
	}
	if err := os.WriteFile(recordFile, w.ledger.Serialize(relative), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", recordFile, err)
	}
	return recordFile, nil
}
