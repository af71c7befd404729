package wheelwright

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/meigma/wheelwright/internal/exclude"
	"github.com/meigma/wheelwright/internal/record"
)

// WheelWriter is a ModuleWriter backed by a single zip archive, the
// wheel. Construction derives the output name {name}-{version}-{tag}.whl,
// opens the archive and immediately writes the dist-info metadata
// directory into it; Finish writes the RECORD integrity manifest and
// closes the archive.
type WheelWriter struct {
	zip        *zip.Writer
	file       *os.File
	ledger     record.Ledger
	recordPath string
	wheelPath  string
	excludes   *exclude.RuleSet
	stored     bool
	logger     *slog.Logger
	finished   bool
}

// wheelConfig collects constructor options before the writer exists.
type wheelConfig struct {
	excludes []string
	stored   bool
	logger   *slog.Logger
}

// WheelOption configures a WheelWriter.
type WheelOption func(*wheelConfig)

// WheelWithExcludes sets the exclusion rules applied before every write.
// Rules are glob patterns; a "!" prefix re-includes, the last matching
// rule wins.
func WheelWithExcludes(patterns ...string) WheelOption {
	return func(c *wheelConfig) {
		c.excludes = patterns
	}
}

// WheelWithStoredEntries disables per-entry deflate compression, storing
// entries uncompressed. Unpacking stored wheels is considerably faster,
// which matters for tight test loops; production builds should keep
// compression on.
func WheelWithStoredEntries(stored bool) WheelOption {
	return func(c *wheelConfig) {
		c.stored = stored
	}
}

// WheelWithLogger sets the logger for per-entry debug output.
func WheelWithLogger(logger *slog.Logger) WheelOption {
	return func(c *wheelConfig) {
		c.logger = logger
	}
}

// NewWheelWriter creates a wheel at dir/{name}-{version}-{tag}.whl and
// writes the dist-info directory (METADATA, WHEEL, entry points,
// licenses) for the given compatibility tags into it. The caller must
// call Finish exactly once after all other entries are written.
func NewWheelWriter(dir string, meta *Metadata, tag string, tags []string, opts ...WheelOption) (*WheelWriter, error) {
	cfg := wheelConfig{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}
	rules, err := exclude.Compile(cfg.excludes)
	if err != nil {
		return nil, err
	}

	wheelPath := filepath.Join(dir, meta.WheelFileName(tag))
	f, err := os.Create(wheelPath)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", wheelPath, err)
	}

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	w := &WheelWriter{
		zip:        zw,
		file:       f,
		recordPath: path.Join(meta.DistInfoDir(), "RECORD"),
		wheelPath:  wheelPath,
		excludes:   rules,
		stored:     cfg.stored,
		logger:     cfg.logger,
	}

	if err := WriteDistInfo(w, meta, tags); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// AddDirectory is a no-op: the zip format infers directories from entry
// paths.
func (w *WheelWriter) AddDirectory(string) error {
	return nil
}

// AddBytes writes content at target with ModeRegular permissions.
func (w *WheelWriter) AddBytes(target string, content []byte) error {
	return w.AddBytesWithMode(target, content, ModeRegular)
}

// AddBytesWithMode writes content at target with the given permission
// bits. Excluded targets are silently dropped: no entry and no ledger
// record.
func (w *WheelWriter) AddBytesWithMode(target string, content []byte, mode fs.FileMode) error {
	if w.finished {
		return ErrFinished
	}
	// The zip standard mandates unix style paths.
	target = normalizeArchivePath(target)
	if w.excludes.Match(target) {
		w.logger.Debug("excluded", "path", target)
		return nil
	}
	w.logger.Debug("adding", "path", target)

	if err := w.writeEntry(target, content, mode); err != nil {
		return fmt.Errorf("write %s to wheel: %w", target, err)
	}
	w.ledger.Add(target, content)
	return nil
}

// AddFile copies the file at source to target with ModeRegular
// permissions.
func (w *WheelWriter) AddFile(target, source string) error {
	return copyFile(w, target, source, ModeRegular)
}

// AddFileWithMode copies the file at source to target with the given
// permission bits.
func (w *WheelWriter) AddFileWithMode(target, source string, mode fs.FileMode) error {
	return copyFile(w, target, source, mode)
}

// AddPth writes a {name}.pth file at the wheel root pointing at the
// interpreted-source parent directory, for editable installs.
func (w *WheelWriter) AddPth(layout *ProjectLayout, meta *Metadata) error {
	if layout.PythonModule == "" {
		return nil
	}
	absolute, err := filepath.Abs(layout.PythonModule)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", layout.PythonModule, err)
	}
	target := meta.EscapedName() + ".pth"
	w.logger.Debug("adding", "path", target, "source", filepath.Dir(absolute))
	return w.AddBytes(target, []byte(filepath.Dir(absolute)))
}

// Finish writes the RECORD file, with its own self-record last, and
// closes the archive. It returns the wheel's output path. No entry may
// be added afterwards.
func (w *WheelWriter) Finish() (string, error) {
	if w.finished {
		return "", ErrFinished
	}
	w.finished = true
	w.logger.Debug("adding", "path", w.recordPath)

	if err := w.writeEntry(w.recordPath, w.ledger.Serialize(w.recordPath), ModeRegular); err != nil {
		w.file.Close()
		return "", fmt.Errorf("write %s to wheel: %w", w.recordPath, err)
	}
	if err := w.zip.Close(); err != nil {
		w.file.Close()
		return "", fmt.Errorf("finish %s: %w", w.wheelPath, err)
	}
	if err := w.file.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", w.wheelPath, err)
	}
	return w.wheelPath, nil
}

func (w *WheelWriter) writeEntry(target string, content []byte, mode fs.FileMode) error {
	method := zip.Deflate
	if w.stored {
		method = zip.Store
	}
	header := &zip.FileHeader{Name: target, Method: method}
	header.SetMode(mode)

	entry, err := w.zip.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = entry.Write(content)
	return err
}

// normalizeArchivePath converts target to the forward-slash form
// mandated by the container formats, regardless of host conventions.
func normalizeArchivePath(target string) string {
	return path.Clean(strings.ReplaceAll(filepath.ToSlash(target), "\\", "/"))
}
