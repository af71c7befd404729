//go:build unix

package wheelwright

import (
	"io/fs"
	"os"
)

// createFile opens path for writing with the requested POSIX mode bits,
// truncating any existing file.
func createFile(path string, mode fs.FileMode) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
}
