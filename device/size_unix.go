//go:build !windows

package device

import (
	"fmt"
	"io"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Size returns the size of a regular file or block device in bytes.
func Size(f *os.File) (int64, error) {
	// Seeking to the end works for regular files and most Linux block devices.
	size, err := f.Seek(0, io.SeekEnd)
	if err == nil && size > 0 {
		_, _ = f.Seek(0, io.SeekStart)
		return size, nil
	}

	// macOS/BSD block devices: DKIOCGETBLOCKCOUNT * DKIOCGETBLOCKSIZE
	const (
		dkiocGetBlockSize  = 0x40046418 // _IOR('d', 24, uint32)
		dkiocGetBlockCount = 0x40086419 // _IOR('d', 25, uint64)
		blkGetSize64       = 0x80081272 // Linux BLKGETSIZE64
	)

	var blockSize uint32
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), dkiocGetBlockSize, uintptr(unsafe.Pointer(&blockSize)))
	if errno != 0 {
		var sizeBytes uint64
		_, _, errno = unix.Syscall(unix.SYS_IOCTL, f.Fd(), blkGetSize64, uintptr(unsafe.Pointer(&sizeBytes)))
		if errno != 0 {
			if err == nil {
				return size, nil
			}
			return 0, fmt.Errorf("cannot determine device size: %v", errno)
		}
		return int64(sizeBytes), nil
	}

	var blockCount uint64
	_, _, errno = unix.Syscall(unix.SYS_IOCTL, f.Fd(), dkiocGetBlockCount, uintptr(unsafe.Pointer(&blockCount)))
	if errno != 0 {
		return 0, fmt.Errorf("cannot get block count: %v", errno)
	}
	return int64(blockSize) * int64(blockCount), nil
}
