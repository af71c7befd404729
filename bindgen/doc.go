// Package bindgen generates loadable cffi declaration source from a
// compiled crate's C header by driving an external Python interpreter.
//
// Generation is a small recovery protocol rather than a single call: a
// failed run whose stderr ends in a missing-cffi error triggers, inside
// an isolated environment only, one automatic install of cffi followed
// by exactly one retry. The subprocess boundary is the Runner interface,
// so the protocol is testable without an interpreter.
package bindgen
