package wheelwright

import (
	"fmt"
	"strings"
)

// EntryPoint is a single name=target pair in an entry-point group. Entry
// points are kept as an ordered slice rather than a map so the generated
// entry_points.txt is deterministic.
type EntryPoint struct {
	Name   string `yaml:"name"`
	Target string `yaml:"target"`
}

// EntryPointGroup is a caller-defined entry-point section beyond the
// standard console_scripts and gui_scripts.
type EntryPointGroup struct {
	Name    string       `yaml:"name"`
	Entries []EntryPoint `yaml:"entries"`
}

// Metadata is the package-metadata record consumed read-only by the
// writers: it names the distribution, carries its entry points and
// license files, and derives archive and metadata-directory names.
type Metadata struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Summary string `yaml:"summary,omitempty"`
	Author  string `yaml:"author,omitempty"`
	License string `yaml:"license,omitempty"`

	// Requires lists dependency specifiers emitted as Requires-Dist.
	Requires []string `yaml:"requires,omitempty"`

	// Scripts and GUIScripts populate the console_scripts and gui_scripts
	// entry-point sections.
	Scripts    []EntryPoint      `yaml:"scripts,omitempty"`
	GUIScripts []EntryPoint      `yaml:"gui-scripts,omitempty"`
	Groups     []EntryPointGroup `yaml:"entry-points,omitempty"`

	// LicenseFiles are paths to license files copied into the metadata
	// directory's license_files subdirectory.
	LicenseFiles []string `yaml:"license-files,omitempty"`

	// Raw, when set, is written verbatim as the METADATA file instead of
	// the serialization produced by FileContents. The metadata format is
	// owned by the metadata collaborator; this engine treats it as text.
	Raw string `yaml:"-"`
}

// EscapedName returns the distribution name escaped for use in file
// names: every run of characters outside [A-Za-z0-9._] becomes a single
// underscore.
func (m *Metadata) EscapedName() string {
	return escape(m.Name)
}

// EscapedVersion returns the version escaped the same way as the name.
func (m *Metadata) EscapedVersion() string {
	return escape(m.Version)
}

// DistInfoDir returns the archive-internal metadata directory name,
// {name}-{version}.dist-info.
func (m *Metadata) DistInfoDir() string {
	return fmt.Sprintf("%s-%s.dist-info", m.EscapedName(), m.EscapedVersion())
}

// DataDir returns the archive-internal data directory name,
// {name}-{version}.data.
func (m *Metadata) DataDir() string {
	return fmt.Sprintf("%s-%s.data", m.EscapedName(), m.EscapedVersion())
}

// WheelFileName returns {name}-{version}-{tag}.whl for the given
// compatibility tag string.
func (m *Metadata) WheelFileName(tag string) string {
	return fmt.Sprintf("%s-%s-%s.whl", m.EscapedName(), m.EscapedVersion(), tag)
}

// SDistFileName returns {name}-{version}.tar.gz.
func (m *Metadata) SDistFileName() string {
	return fmt.Sprintf("%s-%s.tar.gz", m.EscapedName(), m.EscapedVersion())
}

// FileContents serializes the record as core-metadata text for the
// METADATA file. If Raw is set it is returned unchanged.
func (m *Metadata) FileContents() string {
	if m.Raw != "" {
		return m.Raw
	}
	var b strings.Builder
	b.WriteString("Metadata-Version: 2.1\n")
	fmt.Fprintf(&b, "Name: %s\n", m.Name)
	fmt.Fprintf(&b, "Version: %s\n", m.Version)
	if m.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", m.Summary)
	}
	if m.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n", m.Author)
	}
	if m.License != "" {
		fmt.Fprintf(&b, "License: %s\n", m.License)
	}
	for _, req := range m.Requires {
		fmt.Fprintf(&b, "Requires-Dist: %s\n", req)
	}
	return b.String()
}

// escape replaces every run of characters outside [A-Za-z0-9._] with a
// single underscore, matching the escaping used for wheel file names.
func escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			inRun = false
		default:
			if !inRun {
				b.WriteByte('_')
			}
			inRun = true
		}
	}
	return b.String()
}
