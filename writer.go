package wheelwright

import (
	"fmt"
	"io/fs"
	"os"
)

// Default permission bits for archive entries. ModeExecutable marks
// placed binaries and launcher scripts.
const (
	ModeRegular    fs.FileMode = 0o644
	ModeExecutable fs.FileMode = 0o755
)

// ModuleWriter is the write-only contract shared by the filesystem, wheel
// and sdist backends. Target paths are slash-separated and relative to
// the archive root. Entries are immutable once written; there is no
// update or delete.
//
// Each call either fully applies or does not apply at all, but the
// contract gives no atomicity across a sequence of calls: a failure
// partway through a build leaves a partial, unfinished output that the
// caller must discard.
type ModuleWriter interface {
	// AddDirectory declares an empty directory. Backends whose container
	// format infers directories from entry paths treat this as a no-op.
	AddDirectory(path string) error

	// AddBytes writes in-memory content at target with ModeRegular
	// permissions.
	AddBytes(target string, content []byte) error

	// AddBytesWithMode writes in-memory content at target with the given
	// permission bits.
	AddBytesWithMode(target string, content []byte, mode fs.FileMode) error

	// AddFile copies the file at source to target with ModeRegular
	// permissions.
	AddFile(target, source string) error

	// AddFileWithMode copies the file at source to target with the given
	// permission bits.
	AddFileWithMode(target, source string, mode fs.FileMode) error
}

// copyFile is the shared file-to-bytes delegation used by backends that
// buffer entry content. Read failures carry the source path, write
// failures the target path.
func copyFile(w ModuleWriter, target, source string, mode fs.FileMode) error {
	content, err := os.ReadFile(source)
	if err != nil {
		return fmt.Errorf("read %s: %w", source, err)
	}
	if err := w.AddBytesWithMode(target, content, mode); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return nil
}
