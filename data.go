package wheelwright

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// dataSubdirs are the only subdirectory names a data directory may
// contain, matching the wheel data-directory categories.
var dataSubdirs = []string{"data", "scripts", "headers", "purelib", "platlib"}

// AddData copies an external data directory into the archive's
// {name}-{version}.data directory, mirroring its internal structure.
// Any subdirectory other than data, scripts, headers, purelib or platlib
// is a validation error. Symbolic links are resolved to their target's
// content before copying, so a data directory can be aggregated from
// symlinks across several generation sources without the archive ever
// storing a link. An empty dataDir is a no-op.
func AddData(w ModuleWriter, meta *Metadata, dataDir string) error {
	if dataDir == "" {
		return nil
	}
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return fmt.Errorf("read data dir %s: %w", dataDir, err)
	}
	for _, entry := range entries {
		subdir := filepath.Join(dataDir, entry.Name())
		if !entry.IsDir() || !validDataSubdir(entry.Name()) {
			return fmt.Errorf("%w: %s (possible are directories named %v)", ErrInvalidDataDir, subdir, dataSubdirs)
		}
		if err := addDataSubdir(w, meta, dataDir, subdir); err != nil {
			return fmt.Errorf("include data from %s: %w", dataDir, err)
		}
	}
	return nil
}

func addDataSubdir(w ModuleWriter, meta *Metadata, dataDir, subdir string) error {
	return filepath.WalkDir(subdir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		relative, err := filepath.Rel(dataDir, p)
		if err != nil {
			return err
		}
		target := path.Join(meta.DataDir(), filepath.ToSlash(relative))

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			// Copy the target's content, not the link.
			source, err := filepath.EvalSymlinks(p)
			if err != nil {
				return fmt.Errorf("resolve symlink %s: %w", p, err)
			}
			return w.AddFile(target, source)
		case d.IsDir():
			return w.AddDirectory(target)
		case d.Type().IsRegular():
			return w.AddFile(target, p)
		default:
			return fmt.Errorf("can't handle data dir entry %s", p)
		}
	})
}

func validDataSubdir(name string) bool {
	for _, allowed := range dataSubdirs {
		if name == allowed {
			return true
		}
	}
	return false
}
