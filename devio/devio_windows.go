//go:build windows

package devio

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	fileFlagNoBuffering    = 0x20000000
	fileFlagSequentialScan = 0x08000000
)

func openUncached(path string) (*os.File, bool) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, false
	}
	h, err := windows.CreateFile(
		p,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ,
		nil,
		windows.OPEN_EXISTING,
		fileFlagNoBuffering|fileFlagSequentialScan,
		0)
	if err != nil {
		return nil, false
	}
	return os.NewFile(uintptr(h), path), true
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

// DropCache is a no-op; FILE_FLAG_NO_BUFFERING bypasses the cache manager.
func DropCache(_ *os.File) error {
	return nil
}
