//go:build windows

package device

import (
	"io"
	"os"
)

// Size returns the size of a regular file. Raw device size probing is not
// implemented on Windows.
func Size(f *os.File) (int64, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err == nil {
		_, _ = f.Seek(0, io.SeekStart)
		return size, nil
	}
	return 0, os.ErrInvalid
}
