package wheelwright

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/meigma/wheelwright/internal/exclude"
)

// SDistWriter is a ModuleWriter backed by a gzip-compressed tar stream,
// the source archive. It deduplicates target paths (first writer wins),
// so overlapping file-discovery passes can safely offer the same file
// more than once, and it refuses to include its own output file.
//
// Unlike the wheel, the sdist carries no RECORD manifest: the tar format
// itself is the canonical completeness guarantee.
type SDistWriter struct {
	tar      *tar.Writer
	gz       *gzip.Writer
	file     *os.File
	path     string
	files    map[string]struct{}
	excludes *exclude.RuleSet
	logger   *slog.Logger
	finished bool
}

type sdistConfig struct {
	excludes []string
	logger   *slog.Logger
}

// SDistOption configures an SDistWriter.
type SDistOption func(*sdistConfig)

// SDistWithExcludes sets the exclusion rules applied before every write.
func SDistWithExcludes(patterns ...string) SDistOption {
	return func(c *sdistConfig) {
		c.excludes = patterns
	}
}

// SDistWithLogger sets the logger for per-entry debug output and the
// self-inclusion warning.
func SDistWithLogger(logger *slog.Logger) SDistOption {
	return func(c *sdistConfig) {
		c.logger = logger
	}
}

// NewSDistWriter creates a source archive at dir/{name}-{version}.tar.gz.
// The caller must call Finish exactly once after all entries are written.
func NewSDistWriter(dir string, meta *Metadata, opts ...SDistOption) (*SDistWriter, error) {
	cfg := sdistConfig{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}
	rules, err := exclude.Compile(cfg.excludes)
	if err != nil {
		return nil, err
	}

	out := filepath.Join(dir, meta.SDistFileName())
	f, err := os.Create(out)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", out, err)
	}
	gz := gzip.NewWriter(f)

	return &SDistWriter{
		tar:      tar.NewWriter(gz),
		gz:       gz,
		file:     f,
		path:     out,
		files:    make(map[string]struct{}),
		excludes: rules,
		logger:   cfg.logger,
	}, nil
}

// AddDirectory is a no-op: directories are inferred from entry paths.
func (w *SDistWriter) AddDirectory(string) error {
	return nil
}

// AddBytes writes content at target with ModeRegular permissions.
func (w *SDistWriter) AddBytes(target string, content []byte) error {
	return w.AddBytesWithMode(target, content, ModeRegular)
}

// AddBytesWithMode writes content at target with the given permission
// bits. Excluded targets and targets already present in the archive are
// silently dropped.
func (w *SDistWriter) AddBytesWithMode(target string, content []byte, mode fs.FileMode) error {
	if w.finished {
		return ErrFinished
	}
	target = normalizeArchivePath(target)
	if w.excludes.Match(target) {
		w.logger.Debug("excluded", "path", target)
		return nil
	}
	if _, dup := w.files[target]; dup {
		return nil
	}

	header := &tar.Header{
		Name:   target,
		Size:   int64(len(content)),
		Mode:   int64(mode.Perm()),
		Format: tar.FormatGNU,
	}
	if err := w.tar.WriteHeader(header); err != nil {
		return fmt.Errorf("add %d bytes to sdist as %s: %w", len(content), target, err)
	}
	if _, err := w.tar.Write(content); err != nil {
		return fmt.Errorf("add %d bytes to sdist as %s: %w", len(content), target, err)
	}
	w.files[target] = struct{}{}
	return nil
}

// AddFile streams the file at source to target, carrying the source
// file's own permission bits. Offering the archive's output file as a
// source is skipped with a warning instead of corrupting the archive
// with a self-reference.
func (w *SDistWriter) AddFile(target, source string) error {
	return w.addFile(target, source, 0, true)
}

// AddFileWithMode streams the file at source to target with the given
// permission bits.
func (w *SDistWriter) AddFileWithMode(target, source string, mode fs.FileMode) error {
	return w.addFile(target, source, mode, false)
}

func (w *SDistWriter) addFile(target, source string, mode fs.FileMode, sourceMode bool) error {
	if w.finished {
		return ErrFinished
	}
	if w.excludes.Match(normalizeArchivePath(source)) {
		w.logger.Debug("excluded", "path", source)
		return nil
	}
	if w.isSelf(source) {
		w.logger.Warn("attempting to include the sdist output tarball into itself, skipping", "path", source)
		return nil
	}
	target = normalizeArchivePath(target)
	if _, dup := w.files[target]; dup {
		return nil
	}
	w.logger.Debug("adding", "path", target, "source", source)

	f, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("read %s: %w", source, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("read %s: %w", source, err)
	}
	if sourceMode {
		mode = info.Mode()
	}

	header := &tar.Header{
		Name:    target,
		Size:    info.Size(),
		Mode:    int64(mode.Perm()),
		ModTime: info.ModTime(),
		Format:  tar.FormatGNU,
	}
	if err := w.tar.WriteHeader(header); err != nil {
		return fmt.Errorf("add file from %s to sdist as %s: %w", source, target, err)
	}
	// Stream the content instead of buffering it twice.
	if _, err := io.Copy(w.tar, f); err != nil {
		return fmt.Errorf("add file from %s to sdist as %s: %w", source, target, err)
	}
	w.files[target] = struct{}{}
	return nil
}

// Finish flushes and closes the tar and gzip streams and returns the
// archive's output path. No entry may be added afterwards.
func (w *SDistWriter) Finish() (string, error) {
	if w.finished {
		return "", ErrFinished
	}
	w.finished = true

	if err := w.tar.Close(); err != nil {
		w.file.Close()
		return "", fmt.Errorf("finish %s: %w", w.path, err)
	}
	if err := w.gz.Close(); err != nil {
		w.file.Close()
		return "", fmt.Errorf("finish %s: %w", w.path, err)
	}
	if err := w.file.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", w.path, err)
	}
	return w.path, nil
}

func (w *SDistWriter) isSelf(source string) bool {
	abs, err := filepath.Abs(source)
	if err != nil {
		return false
	}
	out, err := filepath.Abs(w.path)
	if err != nil {
		return false
	}
	return abs == out
}
