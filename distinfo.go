package wheelwright

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// WriteDistInfo creates the {name}-{version}.dist-info directory and
// fills it with every metadata file except RECORD: METADATA, WHEEL, the
// entry-points file (omitted when no entry points exist) and the
// license_files subdirectory. Finalizing the backend stays the caller's
// responsibility.
func WriteDistInfo(w ModuleWriter, meta *Metadata, tags []string) error {
	distInfo := meta.DistInfoDir()

	if err := w.AddDirectory(distInfo); err != nil {
		return err
	}
	if err := w.AddBytes(path.Join(distInfo, "METADATA"), []byte(meta.FileContents())); err != nil {
		return fmt.Errorf("write METADATA: %w", err)
	}
	if err := w.AddBytes(path.Join(distInfo, "WHEEL"), []byte(wheelFileContents(tags))); err != nil {
		return fmt.Errorf("write WHEEL: %w", err)
	}

	if entryPoints := entryPointsContents(meta); entryPoints != "" {
		if err := w.AddBytes(path.Join(distInfo, "entry_points.txt"), []byte(entryPoints)); err != nil {
			return fmt.Errorf("write entry_points.txt: %w", err)
		}
	}

	if len(meta.LicenseFiles) > 0 {
		licenseDir := path.Join(distInfo, "license_files")
		if err := w.AddDirectory(licenseDir); err != nil {
			return err
		}
		for _, license := range meta.LicenseFiles {
			name := filepath.Base(filepath.Clean(license))
			if name == "." || name == string(filepath.Separator) {
				return fmt.Errorf("license file %s: %w", license, ErrMissingFileName)
			}
			if err := w.AddFile(path.Join(licenseDir, name), license); err != nil {
				return fmt.Errorf("copy license file: %w", err)
			}
		}
	}
	return nil
}

// wheelFileContents renders the WHEEL file: a fixed three-line header
// followed by one Tag line per compatibility tag, in caller order.
func wheelFileContents(tags []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Wheel-Version: 1.0\nGenerator: %s (%s)\nRoot-Is-Purelib: false\n", generatorName, generatorVersion)
	for _, tag := range tags {
		fmt.Fprintf(&b, "Tag: %s\n", tag)
	}
	return b.String()
}

// entryPointsContents renders entry_points.txt: one bracketed section
// per group, console_scripts and gui_scripts first, then caller-defined
// groups in their given order. Entry points are ordered slices, never
// maps, so the output is reproducible byte for byte.
func entryPointsContents(meta *Metadata) string {
	var b strings.Builder
	writeSection(&b, "console_scripts", meta.Scripts)
	writeSection(&b, "gui_scripts", meta.GUIScripts)
	for _, group := range meta.Groups {
		writeSection(&b, group.Name, group.Entries)
	}
	return b.String()
}

func writeSection(b *strings.Builder, name string, entries []EntryPoint) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, "[%s]\n", name)
	for _, e := range entries {
		fmt.Fprintf(b, "%s=%s\n", e.Name, e.Target)
	}
}
