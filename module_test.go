package wheelwright

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cpythonNaming struct{ tag string }

func (c cpythonNaming) LibraryName(extensionName string) string {
	return extensionName + "." + c.tag + ".so"
}

func writeArtifact(t *testing.T, dir string) string {
	t.Helper()
	artifact := filepath.Join(dir, "libpkg.so")
	require.NoError(t, os.WriteFile(artifact, []byte("\x7fELF fake"), 0o755))
	return artifact
}

func TestExtensionFileName(t *testing.T) {
	t.Parallel()

	interp := cpythonNaming{tag: "cpython-312-x86_64-linux-gnu"}
	assert.Equal(t, "pkg.cpython-312-x86_64-linux-gnu.so", extensionFileName("pkg", interp, Target{OS: "linux"}))
	assert.Equal(t, "pkg.abi3.so", extensionFileName("pkg", nil, Target{OS: "linux"}))
	assert.Equal(t, "pkg.abi3.so", extensionFileName("pkg", nil, Target{OS: "darwin"}))
	assert.Equal(t, "pkg.pyd", extensionFileName("pkg", nil, Target{OS: "windows"}))
}

func TestWriteBindingsModuleSynthetic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	artifact := writeArtifact(t, dir)
	extDir := filepath.Join(dir, "target")
	createTestFiles(t, extDir, map[string]string{"pkg.pyi": "def f() -> int: ...\n"})

	layout := &ProjectLayout{ExtensionDir: extDir, ExtensionName: "pkg"}
	w := newMemWriter()
	require.NoError(t, WriteBindingsModule(w, layout, "pkg", artifact, nil, Target{OS: "linux"}, false, nil))

	init := w.content(t, "pkg/__init__.py")
	assert.Contains(t, init, "from .pkg import *")
	assert.Contains(t, init, "__doc__ = pkg.__doc__")
	assert.Contains(t, init, `if hasattr(pkg, "__all__"):`)

	assert.Equal(t, "def f() -> int: ...\n", w.content(t, "pkg/__init__.pyi"))
	assert.Equal(t, "", w.content(t, "pkg/py.typed"))
	assert.Equal(t, ModeExecutable, w.entries["pkg/pkg.abi3.so"].mode)
}

func TestWriteBindingsModuleMixed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	artifact := writeArtifact(t, dir)
	pythonModule := filepath.Join(dir, "pkg")
	createTestFiles(t, pythonModule, map[string]string{
		"__init__.py":     "from .native import *\n",
		"helpers.py":      "x = 1\n",
		"sub/__init__.py": "",
	})
	layout := &ProjectLayout{
		PythonModule:  pythonModule,
		ExtensionDir:  filepath.Join(dir, "pkg", "native"),
		ExtensionName: "native",
	}

	w := newMemWriter()
	interp := cpythonNaming{tag: "cpython-312-x86_64-linux-gnu"}
	require.NoError(t, WriteBindingsModule(w, layout, "pkg", artifact, interp, Target{OS: "linux"}, false, nil))

	assert.Contains(t, w.entries, "pkg/__init__.py")
	assert.Contains(t, w.entries, "pkg/helpers.py")
	assert.Contains(t, w.entries, "pkg/sub/__init__.py")

	so := w.entries["pkg/native/native.cpython-312-x86_64-linux-gnu.so"]
	assert.Equal(t, ModeExecutable, so.mode)
}

func TestWriteBindingsModuleEditable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	artifact := writeArtifact(t, dir)
	pythonModule := filepath.Join(dir, "pkg")
	extDir := filepath.Join(pythonModule, "native")
	createTestFiles(t, pythonModule, map[string]string{"__init__.py": ""})
	require.NoError(t, os.MkdirAll(extDir, 0o755))

	// A stale artifact from a previous build must be replaced.
	stale := filepath.Join(extDir, "native.abi3.so")
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o755))

	layout := &ProjectLayout{PythonModule: pythonModule, ExtensionDir: extDir, ExtensionName: "native"}
	w := newMemWriter()
	require.NoError(t, WriteBindingsModule(w, layout, "pkg", artifact, nil, Target{OS: "linux"}, true, nil))

	// Editable installs archive nothing.
	assert.Empty(t, w.entries)

	content, err := os.ReadFile(stale)
	require.NoError(t, err)
	assert.Equal(t, "\x7fELF fake", string(content))
}

func TestWriteCffiModule(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	artifact := writeArtifact(t, dir)
	layout := &ProjectLayout{ExtensionDir: filepath.Join(dir, "target"), ExtensionName: "pkg"}

	w := newMemWriter()
	require.NoError(t, WriteCffiModule(w, layout, "pkg", artifact, "# generated declarations\n", false, nil))

	init := w.content(t, "pkg/__init__.py")
	assert.Contains(t, init, `__all__ = ["lib", "ffi"]`)
	assert.Contains(t, init, "ffi.dlopen")
	assert.Equal(t, "# generated declarations\n", w.content(t, "pkg/ffi.py"))
	assert.Equal(t, ModeExecutable, w.entries["pkg/native.so"].mode)
}

func TestWriteBin(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	artifact := writeArtifact(t, dir)
	meta := &Metadata{Name: "pkg", Version: "1.0.0"}

	w := newMemWriter()
	require.NoError(t, WriteBin(w, artifact, meta, "pkg-cli"))

	entry, ok := w.entries["pkg-1.0.0.data/scripts/pkg-cli"]
	require.True(t, ok)
	assert.Equal(t, ModeExecutable, entry.mode)
	assert.Contains(t, w.dirs, "pkg-1.0.0.data/scripts")
}

func TestWriteWasmLauncher(t *testing.T) {
	t.Parallel()

	meta := &Metadata{Name: "pkg", Version: "1.0.0"}
	w := newMemWriter()
	require.NoError(t, WriteWasmLauncher(w, meta, "pkg-cli"))

	entry, ok := w.entries["pkg/pkg_cli.py"]
	require.True(t, ok)
	assert.Equal(t, ModeExecutable, entry.mode)

	script := string(entry.content)
	assert.Contains(t, script, "from wasmtime import Store, Module, Engine, WasiConfig, Linker")
	assert.Contains(t, script, `joinpath("pkg-cli")`)
	assert.Contains(t, script, "wasi.inherit_argv()")
	assert.Contains(t, script, "wasi.inherit_env()")
	assert.Contains(t, script, "wasi.inherit_stdin()")
	assert.Contains(t, script, `wasi.preopen_dir(".", ".")`)
}

func TestAddDataRejectsUnknownSubdir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data-dir")
	createTestFiles(t, dataDir, map[string]string{"bogus/file.txt": "x"})

	err := AddData(newMemWriter(), &Metadata{Name: "pkg", Version: "1.0"}, dataDir)
	require.ErrorIs(t, err, ErrInvalidDataDir)
	assert.Contains(t, err.Error(), "bogus")
}

func TestAddDataCopies(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data-dir")
	createTestFiles(t, dataDir, map[string]string{
		"scripts/tool":        "#!/bin/sh\n",
		"data/share/cfg.toml": "key = 1\n",
	})

	w := newMemWriter()
	require.NoError(t, AddData(w, &Metadata{Name: "pkg", Version: "1.0"}, dataDir))

	assert.Equal(t, "#!/bin/sh\n", w.content(t, "pkg-1.0.data/scripts/tool"))
	assert.Equal(t, "key = 1\n", w.content(t, "pkg-1.0.data/data/share/cfg.toml"))
}

func TestAddDataResolvesSymlinks(t *testing.T) {
	t.Parallel()
	if !isUnixHost() {
		t.Skip("symlinks require a unix host")
	}

	dir := t.TempDir()
	source := filepath.Join(dir, "generated.txt")
	require.NoError(t, os.WriteFile(source, []byte("resolved content"), 0o644))

	dataDir := filepath.Join(dir, "data-dir")
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "data"), 0o755))
	require.NoError(t, os.Symlink(source, filepath.Join(dataDir, "data", "generated.txt")))

	w := newMemWriter()
	require.NoError(t, AddData(w, &Metadata{Name: "pkg", Version: "1.0"}, dataDir))
	assert.Equal(t, "resolved content", w.content(t, "pkg-1.0.data/data/generated.txt"))
}

func TestAddDataEmptyIsNoOp(t *testing.T) {
	t.Parallel()

	w := newMemWriter()
	require.NoError(t, AddData(w, &Metadata{Name: "pkg", Version: "1.0"}, ""))
	assert.Empty(t, w.entries)
}
