//go:build !linux && !darwin && !windows

package devio

import "os"

func openUncached(_ string) (*os.File, bool) {
	return nil, false
}

func alignedBuffer(size int) []byte {
	return make([]byte, size)
}

// DropCache is not supported on this platform.
func DropCache(_ *os.File) error {
	return nil
}
