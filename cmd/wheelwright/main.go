// wheelwright assembles a pre-built extension artifact into
// distributable Python packages.
//
// Usage:
//
//	wheelwright --metadata metadata.yaml --artifact target/release/libmymod.so [flags]
//
// The wheel layout is selected with --binding: "bindings" for a native
// extension, "cffi" for a declaration-based foreign interface, "bin" for
// a standalone binary, "wasm" for a sandboxed binary with a generated
// launcher. --sdist additionally builds a source archive; wheel and
// sdist builds run concurrently, each on its own writer.
package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/meigma/wheelwright"
	"github.com/meigma/wheelwright/bindgen"
)

type config struct {
	metadataFile string
	outDir       string
	artifact     string
	binding      string
	moduleName   string
	binName      string
	tag          string
	tags         []string
	excludes     []string
	pythonModule string
	extensionDir string
	extName      string
	dataDir      string
	includes     []string
	crateDir     string
	targetDir    string
	python       string
	sdist        bool
	noWheel      bool
	stored       bool
	debug        bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config

	flags := pflag.NewFlagSet("wheelwright", pflag.ContinueOnError)
	flags.StringVar(&cfg.metadataFile, "metadata", "", "path to the package metadata yaml file (required)")
	flags.StringVarP(&cfg.outDir, "out", "o", ".", "directory the archives are written to")
	flags.StringVar(&cfg.artifact, "artifact", "", "path to the compiled artifact")
	flags.StringVar(&cfg.binding, "binding", "bindings", "binding style: bindings, cffi, bin or wasm")
	flags.StringVar(&cfg.moduleName, "module-name", "", "importable module name (defaults to the escaped distribution name)")
	flags.StringVar(&cfg.binName, "bin-name", "", "binary name for the bin and wasm binding styles")
	flags.StringVar(&cfg.tag, "tag", "py3-none-any", "compatibility tag used in the wheel file name")
	flags.StringSliceVar(&cfg.tags, "tags", nil, "compatibility tags written to the WHEEL file (defaults to --tag)")
	flags.StringSliceVar(&cfg.excludes, "exclude", nil, "glob patterns excluded from the archives; prefix with ! to re-include")
	flags.StringVar(&cfg.pythonModule, "python-module", "", "interpreted-source package directory of a mixed project")
	flags.StringVar(&cfg.extensionDir, "extension-dir", "", "directory the compiled extension is placed in")
	flags.StringVar(&cfg.extName, "extension-name", "", "importable name of the compiled extension (defaults to the module name)")
	flags.StringVar(&cfg.dataDir, "data", "", "external data directory (data, scripts, headers, purelib, platlib)")
	flags.StringSliceVar(&cfg.includes, "include", nil, "extra include glob patterns for the interpreted-source copy")
	flags.StringVar(&cfg.crateDir, "crate-dir", ".", "crate directory, the root of the sdist")
	flags.StringVar(&cfg.targetDir, "target-dir", "target", "build output directory searched for a user-supplied header.h")
	flags.StringVar(&cfg.python, "python", "python3", "interpreter used for cffi declaration generation")
	flags.BoolVar(&cfg.sdist, "sdist", false, "also build a source archive")
	flags.BoolVar(&cfg.noWheel, "no-wheel", false, "skip the wheel build")
	flags.BoolVar(&cfg.stored, "stored", false, "store wheel entries uncompressed (faster iterative testing)")
	flags.BoolVar(&cfg.debug, "debug", false, "enable debug logging")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if cfg.metadataFile == "" {
		return fmt.Errorf("--metadata is required")
	}
	meta, err := loadMetadata(cfg.metadataFile)
	if err != nil {
		return err
	}
	if cfg.moduleName == "" {
		cfg.moduleName = meta.EscapedName()
	}
	if cfg.extName == "" {
		cfg.extName = cfg.moduleName
	}
	if len(cfg.tags) == 0 {
		cfg.tags = []string{cfg.tag}
	}

	var group errgroup.Group
	if !cfg.noWheel {
		group.Go(func() error {
			out, err := buildWheel(&cfg, meta, logger)
			if err != nil {
				return fmt.Errorf("build wheel: %w", err)
			}
			logger.Info("built wheel", "path", out)
			return nil
		})
	}
	if cfg.sdist {
		group.Go(func() error {
			out, err := buildSDist(&cfg, meta, logger)
			if err != nil {
				return fmt.Errorf("build sdist: %w", err)
			}
			logger.Info("built sdist", "path", out)
			return nil
		})
	}
	return group.Wait()
}

func loadMetadata(file string) (*wheelwright.Metadata, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var meta wheelwright.Metadata
	if err := yaml.Unmarshal(content, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", file, err)
	}
	if meta.Name == "" || meta.Version == "" {
		return nil, fmt.Errorf("metadata %s: name and version are required", file)
	}
	return &meta, nil
}

func buildWheel(cfg *config, meta *wheelwright.Metadata, logger *slog.Logger) (string, error) {
	w, err := wheelwright.NewWheelWriter(cfg.outDir, meta, cfg.tag, cfg.tags,
		wheelwright.WheelWithExcludes(cfg.excludes...),
		wheelwright.WheelWithStoredEntries(cfg.stored),
		wheelwright.WheelWithLogger(logger),
	)
	if err != nil {
		return "", err
	}

	layout := &wheelwright.ProjectLayout{
		PythonModule:  cfg.pythonModule,
		ExtensionDir:  cfg.extensionDir,
		ExtensionName: cfg.extName,
	}
	if layout.ExtensionDir == "" {
		layout.ExtensionDir = cfg.targetDir
	}

	switch cfg.binding {
	case "bindings":
		err = wheelwright.WriteBindingsModule(w, layout, cfg.moduleName, cfg.artifact, nil, wheelwright.Target{OS: cfg.targetOS()}, false, cfg.includes)
	case "cffi":
		gen := bindgen.New(cfg.crateDir, cfg.targetDir, cfg.python, bindgen.WithLogger(logger))
		var declarations string
		declarations, err = gen.Declarations()
		if err == nil {
			err = wheelwright.WriteCffiModule(w, layout, cfg.moduleName, cfg.artifact, declarations, false, cfg.includes)
		}
	case "bin":
		err = wheelwright.WriteBin(w, cfg.artifact, meta, cfg.requireBinName())
	case "wasm":
		if err = wheelwright.WriteBin(w, cfg.artifact, meta, cfg.requireBinName()); err == nil {
			err = wheelwright.WriteWasmLauncher(w, meta, cfg.requireBinName())
		}
	default:
		err = fmt.Errorf("unknown binding style %q", cfg.binding)
	}
	if err != nil {
		return "", err
	}

	if err := wheelwright.AddData(w, meta, cfg.dataDir); err != nil {
		return "", err
	}
	return w.Finish()
}

func buildSDist(cfg *config, meta *wheelwright.Metadata, logger *slog.Logger) (string, error) {
	w, err := wheelwright.NewSDistWriter(cfg.outDir, meta,
		wheelwright.SDistWithExcludes(cfg.excludes...),
		wheelwright.SDistWithLogger(logger),
	)
	if err != nil {
		return "", err
	}

	// Root every entry at {name}-{version}/ per sdist convention.
	prefix := fmt.Sprintf("%s-%s", meta.EscapedName(), meta.EscapedVersion())
	root := filepath.Clean(cfg.crateDir)
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		relative, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		return w.AddFile(path.Join(prefix, filepath.ToSlash(relative)), p)
	})
	if err != nil {
		return "", err
	}
	return w.Finish()
}

func (cfg *config) requireBinName() string {
	if cfg.binName != "" {
		return cfg.binName
	}
	return cfg.moduleName
}

func (cfg *config) targetOS() string {
	// Cross builds hand the writers a pre-built artifact and the
	// matching tag; the tag decides the naming convention, not the host.
	if strings.Contains(cfg.tag, "win") {
		return "windows"
	}
	return runtime.GOOS
}
