//go:build !unix

package wheelwright

import (
	"io/fs"
	"os"
)

// createFile opens path for writing. Platforms without POSIX create
// modes ignore the requested bits and use the platform default.
func createFile(path string, _ fs.FileMode) (*os.File, error) {
	return os.Create(path)
}
