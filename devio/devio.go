// Package devio opens test files for reading with the operating system's page
// cache bypassed where the platform allows it.
//
// Direct reads require the buffer address, the transfer length and the file
// offset to be multiples of Alignment. Callers that cannot guarantee that
// should open with direct=false.
package devio

import "os"

// Alignment is the buffer/offset alignment used for direct I/O.
const Alignment = 4096

// OpenRead opens path for reading. When direct is true it first tries an
// uncached open and reports whether that succeeded; on filesystems that
// refuse it (tmpfs, some network mounts) it silently falls back to a normal
// open. A missing file is reported by the returned error in either case.
func OpenRead(path string, direct bool) (f *os.File, uncached bool, err error) {
	if direct {
		if f, ok := openUncached(path); ok {
			return f, true, nil
		}
	}
	f, err = os.Open(path)
	return f, false, err
}

// Buffer returns a zeroed buffer of size bytes. When aligned is true the
// start address is a multiple of Alignment.
func Buffer(size int, aligned bool) []byte {
	if !aligned {
		return make([]byte, size)
	}
	return alignedBuffer(size)
}

// DirectCompatible reports whether transfers of size bytes can use direct I/O.
func DirectCompatible(size int64) bool {
	return size > 0 && size%Alignment == 0
}
