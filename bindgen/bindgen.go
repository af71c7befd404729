package bindgen

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// missingCffi is the stderr line that classifies a generation failure
// as a recoverable missing dependency.
const missingCffi = "ModuleNotFoundError: No module named 'cffi'"

// Generator produces cffi declaration source for one crate.
type Generator struct {
	crateDir  string
	targetDir string
	python    string
	runner    Runner
	logger    *slog.Logger
	warnings  io.Writer
}

// Option configures a Generator.
type Option func(*Generator)

// WithRunner replaces the subprocess runner. Tests inject a fake here to
// exercise the recovery protocol without real subprocesses.
func WithRunner(r Runner) Option {
	return func(g *Generator) {
		g.runner = r
	}
}

// WithLogger sets the logger for progress output.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithWarningsTo redirects interpreter stderr warnings, which are
// forwarded verbatim on success. Defaults to os.Stderr.
func WithWarningsTo(w io.Writer) Option {
	return func(g *Generator) {
		g.warnings = w
	}
}

// New creates a Generator for the crate at crateDir whose build output
// lives under targetDir, using the interpreter at python.
func New(crateDir, targetDir, python string, opts ...Option) *Generator {
	g := &Generator{
		crateDir:  crateDir,
		targetDir: targetDir,
		python:    python,
		runner:    execRunner{},
		logger:    slog.New(slog.DiscardHandler),
		warnings:  os.Stderr,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// state is one step of the generation recovery protocol.
type state int

const (
	stateGenerate state = iota
	stateInstallDependency
	stateRetryGenerate
	stateSuccess
	stateFailed
)

// Declarations returns the generated declaration source (the contents
// of what becomes ffi.py).
//
// The header comes from targetDir/header.h when the user supplies one,
// otherwise cbindgen generates it. The interpreter run that reads the
// header gets at most one install-and-retry when cffi is missing inside
// an isolated environment; every other failure is terminal and carries
// the subprocess output verbatim.
func (g *Generator) Declarations() (string, error) {
	tempDir, err := os.MkdirTemp("", "wheelwright-bindgen")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tempDir)

	header, err := g.header(tempDir)
	if err != nil {
		return "", err
	}

	ffiPy := filepath.Join(tempDir, "ffi.py")
	// Raw strings keep windows temp paths like C:\Users\...\Temp from
	// turning into broken escape sequences.
	script := fmt.Sprintf(`
import cffi
from cffi import recompiler

ffi = cffi.FFI()
with open(r"%s") as header:
    ffi.cdef(header.read())
recompiler.make_py_source(ffi, "ffi", r"%s")
`, header, ffiPy)

	var out *Result
	for st := stateGenerate; ; {
		switch st {
		case stateGenerate:
			out, err = g.runner.Run(g.python, "-c", script)
			if err != nil {
				return "", err
			}
			if out.Success() {
				st = stateSuccess
				continue
			}
			if lastLine(out.Stderr) != missingCffi {
				st = stateFailed
				continue
			}
			isolated, err := g.inIsolatedEnvironment()
			if err != nil {
				return "", err
			}
			if !isolated {
				return "", fmt.Errorf(
					"cffi is missing and %s is not inside a virtualenv, so it will not be installed automatically; please install cffi yourself (e.g. `%s -m pip install cffi`)",
					g.python, g.python,
				)
			}
			st = stateInstallDependency

		case stateInstallDependency:
			g.logger.Warn("cffi not found, trying to install it")
			// Install through the interpreter so python and pip cannot
			// come from different environments.
			install, err := g.runner.Run(g.python, "-m", "pip", "install", "--disable-pip-version-check", "cffi")
			if err != nil {
				return "", err
			}
			if !install.Success() {
				return "", fmt.Errorf(
					"installing cffi with `%s -m pip install cffi` failed: exit status %d\n--- stdout:\n%s\n--- stderr:\n%s\n---\nplease install cffi yourself",
					g.python, install.ExitCode, install.Stdout, install.Stderr,
				)
			}
			g.logger.Info("installed cffi")
			st = stateRetryGenerate

		case stateRetryGenerate:
			out, err = g.runner.Run(g.python, "-c", script)
			if err != nil {
				return "", err
			}
			if out.Success() {
				st = stateSuccess
			} else {
				st = stateFailed
			}

		case stateSuccess:
			// Don't swallow warnings.
			if len(out.Stderr) > 0 {
				g.warnings.Write(out.Stderr)
			}
			declarations, err := os.ReadFile(ffiPy)
			if err != nil {
				return "", fmt.Errorf("read %s: %w", ffiPy, err)
			}
			return string(declarations), nil

		case stateFailed:
			return "", fmt.Errorf(
				"failed to generate cffi declarations using %s: exit status %d\n--- stdout:\n%s\n--- stderr:\n%s",
				g.python, out.ExitCode, out.Stdout, out.Stderr,
			)
		}
	}
}

// inIsolatedEnvironment probes whether the interpreter runs inside a
// virtualenv. Only isolated environments are modified automatically; a
// global environment never is.
func (g *Generator) inIsolatedEnvironment() (bool, error) {
	probe, err := g.runner.Run(g.python, "-c", "import sys\nprint(sys.base_prefix != sys.prefix)")
	if err != nil {
		return false, err
	}
	switch strings.TrimSpace(string(probe.Stdout)) {
	case "True":
		return true, nil
	case "False":
		return false, nil
	default:
		g.logger.Warn("failed to determine whether python is running inside a virtualenv", "python", g.python)
		return false, nil
	}
}

// header returns the C header to feed the declaration reader: an
// existing targetDir/header.h wins, otherwise cbindgen generates one
// into tempDir.
func (g *Generator) header(tempDir string) (string, error) {
	existing := filepath.Join(g.targetDir, "header.h")
	if info, err := os.Stat(existing); err == nil && info.Mode().IsRegular() {
		g.logger.Info("using the existing header", "path", existing)
		return existing, nil
	}

	config, err := g.cbindgenConfig(tempDir)
	if err != nil {
		return "", err
	}
	header := filepath.Join(tempDir, "header.h")
	out, err := g.runner.Run("cbindgen", "--config", config, "--output", header, g.crateDir)
	if err != nil {
		return "", err
	}
	if !out.Success() {
		return "", fmt.Errorf(
			"cbindgen failed for %s: exit status %d\n--- stdout:\n%s\n--- stderr:\n%s",
			g.crateDir, out.ExitCode, out.Stdout, out.Stderr,
		)
	}
	g.logger.Debug("generated header.h", "path", header)
	return header, nil
}

// cbindgenConfig writes the cbindgen configuration to use: the crate's
// own cbindgen.toml, sanitized, or a minimal default. The declaration
// reader supports neither preprocessor defines nor include guards, so
// those settings are stripped and C output without includes is
// enforced.
func (g *Generator) cbindgenConfig(tempDir string) (string, error) {
	var lines []string

	existing := filepath.Join(g.crateDir, "cbindgen.toml")
	if f, err := os.Open(existing); err == nil {
		g.logger.Info("using the existing cbindgen.toml configuration, enforcing language C, no includes, no include guard, no defines")
		scanner := bufio.NewScanner(f)
		skipSection := false
		for scanner.Scan() {
			line := scanner.Text()
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "[") {
				skipSection = trimmed == "[defines]"
			}
			if skipSection || strings.HasPrefix(trimmed, "include_guard") || strings.HasPrefix(trimmed, "language") || strings.HasPrefix(trimmed, "no_includes") {
				continue
			}
			lines = append(lines, line)
		}
		f.Close()
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read %s: %w", existing, err)
		}
	}

	lines = append(lines, `language = "C"`, "no_includes = true")

	config := filepath.Join(tempDir, "cbindgen.toml")
	if err := os.WriteFile(config, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", config, err)
	}
	return config, nil
}

func lastLine(b []byte) string {
	s := strings.TrimRight(string(b), "\r\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimRight(s, "\r")
}
