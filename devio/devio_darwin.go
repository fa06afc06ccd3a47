//go:build darwin

package devio

import (
	"os"

	"golang.org/x/sys/unix"
)

func openUncached(path string) (*os.File, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	if _, err := unix.FcntlInt(f.Fd(), unix.F_NOCACHE, 1); err != nil {
		f.Close()
		return nil, false
	}
	return f, true
}

// F_NOCACHE has no alignment requirement.
func alignedBuffer(size int) []byte {
	return make([]byte, size)
}

// DropCache is a no-op; F_NOCACHE already keeps reads out of the cache.
func DropCache(_ *os.File) error {
	return nil
}
