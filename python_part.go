package wheelwright

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// nativeLibExts marks files supplied separately by the binary-placement
// step. A stale copy from a previous in-place build must not leak into a
// packaged build.
var nativeLibExts = map[string]bool{
	".so":  true,
	".pyd": true,
}

// WritePythonPart mirrors the interpreted-source tree of a mixed project
// into the archive root. Hidden entries are skipped, as are native
// shared libraries. The includes patterns pull in extra files outside
// the normal tree, relative to the tree's parent directory; a matched
// directory is copied recursively.
func WritePythonPart(w ModuleWriter, pythonModule string, includes []string) error {
	root, err := os.OpenRoot(pythonModule)
	if err != nil {
		return fmt.Errorf("open %s: %w", pythonModule, err)
	}
	defer root.Close()

	// Targets are relative to the tree's parent, so the package
	// directory itself is part of every path.
	base := filepath.Base(filepath.Clean(pythonModule))

	err = fs.WalkDir(root.FS(), ".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		target := path.Join(base, p)
		if d.IsDir() {
			return w.AddDirectory(target)
		}
		if nativeLibExts[path.Ext(p)] {
			slog.Debug("ignoring native library", "path", target)
			return nil
		}
		source := filepath.Join(pythonModule, filepath.FromSlash(p))
		if err := w.AddFile(target, source); err != nil {
			return fmt.Errorf("add file from %s: %w", source, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	parent := filepath.Dir(filepath.Clean(pythonModule))
	for _, pattern := range includes {
		if err := addIncludePattern(w, parent, pattern); err != nil {
			return err
		}
	}
	return nil
}

// addIncludePattern copies every file matching pattern (relative to
// dir), recursing into matched directories.
func addIncludePattern(w ModuleWriter, dir, pattern string) error {
	slog.Debug("including files", "pattern", pattern)
	matches, err := doublestar.FilepathGlob(filepath.Join(dir, pattern))
	if err != nil {
		return fmt.Errorf("include pattern %q: %w", pattern, err)
	}
	for _, source := range matches {
		relative, err := filepath.Rel(dir, source)
		if err != nil {
			return fmt.Errorf("include pattern %q: %w", pattern, err)
		}
		target := filepath.ToSlash(relative)

		info, err := os.Stat(source)
		if err != nil {
			return fmt.Errorf("include %s: %w", source, err)
		}
		if !info.IsDir() {
			if err := w.AddFile(target, source); err != nil {
				return err
			}
			continue
		}
		if err := w.AddDirectory(target); err != nil {
			return err
		}
		err = filepath.WalkDir(source, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}
			if d.IsDir() {
				return w.AddDirectory(filepath.ToSlash(rel))
			}
			return w.AddFile(filepath.ToSlash(rel), p)
		})
		if err != nil {
			return fmt.Errorf("include %s: %w", source, err)
		}
	}
	return nil
}
