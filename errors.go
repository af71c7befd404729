package wheelwright

import "errors"

var (
	// ErrFinished is returned when an entry is written to a backend after
	// Finish has been called.
	ErrFinished = errors.New("archive already finished")

	// ErrInvalidDataDir is returned when a data directory contains an
	// entry other than the allowed subdirectories (data, scripts, headers,
	// purelib, platlib).
	ErrInvalidDataDir = errors.New("invalid data directory entry")

	// ErrMissingFileName is returned when a declared license file path has
	// no final path component.
	ErrMissingFileName = errors.New("missing file name component")
)
