//go:build linux

package devio

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

func openUncached(path string) (*os.File, bool) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_DIRECT|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, false
	}
	return os.NewFile(uintptr(fd), path), true
}

func alignedBuffer(size int) []byte {
	buf := make([]byte, size+Alignment)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	offset := int(Alignment - (addr % uintptr(Alignment)))
	if offset == Alignment {
		offset = 0
	}
	return buf[offset : offset+size]
}

// DropCache asks the kernel to evict f's cached pages.
func DropCache(f *os.File) error {
	return unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_DONTNEED)
}
