package wheelwright

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ProjectLayout describes where a project keeps its interpreted source
// and its compiled extension.
type ProjectLayout struct {
	// PythonModule is the path to the interpreted-source package
	// directory, empty for a pure-extension project.
	PythonModule string

	// ExtensionDir is the directory the compiled extension is placed in.
	// For mixed projects it lives under PythonModule's parent.
	ExtensionDir string

	// ExtensionName is the importable name of the compiled extension.
	ExtensionName string
}

// Interpreter names compiled-extension files for a specific interpreter
// build. A nil Interpreter selects the stable-interface naming instead.
type Interpreter interface {
	// LibraryName returns the shared-library file name for an extension,
	// e.g. "mymod.cpython-312-x86_64-linux-gnu.so".
	LibraryName(extensionName string) string
}

// Target is the resolved platform the artifact was built for.
type Target struct {
	OS string
}

// IsUnix reports whether the target uses unix shared-object naming and
// honors POSIX permission bits.
func (t Target) IsUnix() bool {
	return t.OS != "windows"
}

// extensionFileName picks the file name the compiled artifact is placed
// under: interpreter-specific when an interpreter is given, otherwise
// the stable-interface name.
func extensionFileName(extensionName string, interp Interpreter, target Target) string {
	if interp != nil {
		return interp.LibraryName(extensionName)
	}
	if target.IsUnix() {
		return extensionName + ".abi3.so"
	}
	// There is no stable-interface tag in windows extension names.
	return extensionName + ".pyd"
}

// reexportModule generates the __init__.py for a synthetic top-level
// package around a bare extension: it re-exports all public names and
// forwards the extension's docstring and __all__ list if present.
func reexportModule(moduleName string) string {
	return fmt.Sprintf(`from .%[1]s import *

__doc__ = %[1]s.__doc__
if hasattr(%[1]s, "__all__"):
    __all__ = %[1]s.__all__
`, moduleName)
}

// cffiInitFile is the fixed glue loader exposing the shared library as
// `lib` next to the cffi declarations.
const cffiInitFile = `__all__ = ["lib", "ffi"]

import os
from .ffi import ffi

lib = ffi.dlopen(os.path.join(os.path.dirname(__file__), 'native.so'))
del os
`

// WriteBindingsModule places a compiled extension with native bindings.
//
// With an interpreted-source tree, the tree is copied in wholesale and
// the artifact lands alongside it; the editable variant instead copies
// only the artifact into the live source tree and archives nothing.
// Without a source tree, a synthetic top-level package re-exporting the
// extension is created, bundling a type stub and py.typed marker when a
// {module}.pyi stub exists next to the extension.
func WriteBindingsModule(w ModuleWriter, layout *ProjectLayout, moduleName, artifact string, interp Interpreter, target Target, editable bool, includes []string) error {
	soFile := extensionFileName(layout.ExtensionName, interp, target)

	if layout.PythonModule != "" {
		if editable {
			dest := filepath.Join(layout.ExtensionDir, soFile)
			// Remove the stale shared object first: overwriting a mapped
			// library can crash a running interpreter.
			os.Remove(dest)
			if err := copyFileContents(artifact, dest); err != nil {
				return err
			}
			return nil
		}

		if err := WritePythonPart(w, layout.PythonModule, includes); err != nil {
			return fmt.Errorf("add the python module to the package: %w", err)
		}
		relative, err := filepath.Rel(filepath.Dir(layout.PythonModule), layout.ExtensionDir)
		if err != nil {
			return fmt.Errorf("resolve extension dir %s: %w", layout.ExtensionDir, err)
		}
		return w.AddFileWithMode(path.Join(filepath.ToSlash(relative), soFile), artifact, ModeExecutable)
	}

	if err := w.AddDirectory(moduleName); err != nil {
		return err
	}
	if err := w.AddBytes(path.Join(moduleName, "__init__.py"), []byte(reexportModule(moduleName))); err != nil {
		return err
	}
	if err := addTypeStub(w, layout, moduleName); err != nil {
		return err
	}
	return w.AddFileWithMode(path.Join(moduleName, soFile), artifact, ModeExecutable)
}

// WriteCffiModule places a compiled extension exposed through cffi: the
// generated declaration source (see the bindgen subpackage), the fixed
// glue loader and the artifact renamed to native.so.
func WriteCffiModule(w ModuleWriter, layout *ProjectLayout, moduleName, artifact string, declarations string, editable bool, includes []string) error {
	var module string

	if layout.PythonModule != "" {
		if !editable {
			if err := WritePythonPart(w, layout.PythonModule, includes); err != nil {
				return fmt.Errorf("add the python module to the package: %w", err)
			}
		} else {
			base := filepath.Join(layout.PythonModule, moduleName)
			if err := os.MkdirAll(base, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", base, err)
			}
			if err := copyFileContents(artifact, filepath.Join(base, "native.so")); err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(base, "__init__.py"), []byte(cffiInitFile), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", filepath.Join(base, "__init__.py"), err)
			}
			if err := os.WriteFile(filepath.Join(base, "ffi.py"), []byte(declarations), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", filepath.Join(base, "ffi.py"), err)
			}
		}

		relative, err := filepath.Rel(filepath.Dir(layout.PythonModule), layout.ExtensionDir)
		if err != nil {
			return fmt.Errorf("resolve extension dir %s: %w", layout.ExtensionDir, err)
		}
		module = path.Join(filepath.ToSlash(relative), layout.ExtensionName)
		if !editable {
			if err := w.AddDirectory(module); err != nil {
				return err
			}
		}
	} else {
		module = moduleName
		if err := w.AddDirectory(module); err != nil {
			return err
		}
		if err := addTypeStub(w, layout, moduleName); err != nil {
			return err
		}
	}

	if !editable || layout.PythonModule == "" {
		if err := w.AddBytes(path.Join(module, "__init__.py"), []byte(cffiInitFile)); err != nil {
			return err
		}
		if err := w.AddBytes(path.Join(module, "ffi.py"), []byte(declarations)); err != nil {
			return err
		}
		if err := w.AddFileWithMode(path.Join(module, "native.so"), artifact, ModeExecutable); err != nil {
			return err
		}
	}
	return nil
}

// WriteBin places a standalone binary under the {name}-{version}.data
// scripts directory with executable permissions, for installers that
// understand per-category data directories.
func WriteBin(w ModuleWriter, artifact string, meta *Metadata, binName string) error {
	dataDir := path.Join(meta.DataDir(), "scripts")
	if err := w.AddDirectory(dataDir); err != nil {
		return err
	}
	return w.AddFileWithMode(path.Join(dataDir, binName), artifact, ModeExecutable)
}

// WriteWasmLauncher writes a launcher script that runs the wasm binary
// under a minimal wasmtime runtime with inherited standard I/O,
// arguments, environment and one pre-opened working-directory
// capability. The binary itself must be placed separately via WriteBin.
func WriteWasmLauncher(w ModuleWriter, meta *Metadata, binName string) error {
	script := fmt.Sprintf(`from pathlib import Path

from wasmtime import Store, Module, Engine, WasiConfig, Linker

import sysconfig

def main():
    program_location = Path(sysconfig.get_path("scripts")).joinpath("%s")
    engine = Engine()
    store = Store(engine)
    wasi = WasiConfig()
    wasi.inherit_argv()
    wasi.inherit_env()
    wasi.inherit_stdout()
    wasi.inherit_stderr()
    wasi.inherit_stdin()
    wasi.preopen_dir(".", ".")
    store.set_wasi(wasi)
    linker = Linker(engine)
    linker.define_wasi()
    module = Module.from_file(store.engine, str(program_location))
    linking1 = linker.instantiate(store, module)
    start = linking1.exports(store).get("") or linking1.exports(store)["_start"]
    start(store)

if __name__ == '__main__':
    main()
`, binName)

	launcher := path.Join(meta.EscapedName(), strings.ReplaceAll(binName, "-", "_")+".py")
	return w.AddBytesWithMode(launcher, []byte(script), ModeExecutable)
}

// addTypeStub bundles a {module}.pyi stub found next to the compiled
// extension as __init__.pyi plus an empty py.typed marker.
func addTypeStub(w ModuleWriter, layout *ProjectLayout, moduleName string) error {
	stub := filepath.Join(layout.ExtensionDir, moduleName+".pyi")
	if _, err := os.Stat(stub); err != nil {
		return nil
	}
	slog.Debug("found type stub file", "path", stub)
	if err := w.AddFile(path.Join(moduleName, "__init__.pyi"), stub); err != nil {
		return err
	}
	return w.AddBytes(path.Join(moduleName, "py.typed"), nil)
}

// copyFileContents copies source to dest on the local filesystem,
// carrying the source's permission bits.
func copyFileContents(source, dest string) error {
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", source, dest, err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", source, dest, err)
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", source, dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s to %s: %w", source, dest, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("copy %s to %s: %w", source, dest, err)
	}
	return nil
}
