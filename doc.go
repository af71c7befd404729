// Package wheelwright assembles compiled Python extension modules into
// distributable packages: wheels, source archives, and in-place installs.
//
// The package does not build the extension itself. It takes a pre-built
// artifact plus optional interpreted source and writes the three container
// layouts through one contract, [ModuleWriter], with three backends:
//
//   - [PathWriter] installs files directly under a base directory,
//     e.g. a virtualenv's site-packages.
//   - [WheelWriter] produces a {name}-{version}-{tag}.whl zip archive with
//     a dist-info metadata directory and RECORD integrity manifest.
//   - [SDistWriter] produces a {name}-{version}.tar.gz source archive.
//
// # Quick Start
//
// Build a wheel for an extension with native bindings:
//
//	w, err := wheelwright.NewWheelWriter(dir, meta, tag, tags)
//	if err != nil {
//	    return err
//	}
//	err = wheelwright.WriteBindingsModule(w, layout, "mymod", artifact, interp, target, false)
//	if err != nil {
//	    return err
//	}
//	wheelPath, err := w.Finish()
//
// Layout strategies ([WriteBindingsModule], [WriteCffiModule], [WriteBin],
// [WriteWasmLauncher], [AddData]) decide where artifacts land for each
// binding style; they only ever call the [ModuleWriter] contract, so every
// strategy works against every backend.
//
// Declaration generation for the cffi binding style lives in the bindgen
// subpackage.
package wheelwright
