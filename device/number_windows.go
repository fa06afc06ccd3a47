//go:build windows

package device

import (
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

const ioctlStorageGetDeviceNumber = 0x2D1080

type storageDeviceNumber struct {
	DeviceType      uint32
	DeviceNumber    uint32
	PartitionNumber uint32
}

// diskNumber maps a drive letter ("E" or "E:") to its physical disk number.
func diskNumber(letter string) (int, error) {
	letter = strings.ToUpper(strings.TrimSuffix(letter, ":"))
	if len(letter) != 1 || letter[0] < 'A' || letter[0] > 'Z' {
		return -1, fmt.Errorf("not a drive letter: %q", letter)
	}
	vol := `\\.\` + letter + `:`
	h, err := windows.CreateFile(
		windows.StringToUTF16Ptr(vol),
		0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		return -1, fmt.Errorf("open %s: %w", vol, err)
	}
	defer windows.CloseHandle(h)

	var out storageDeviceNumber
	var returned uint32
	err = windows.DeviceIoControl(h, ioctlStorageGetDeviceNumber, nil, 0,
		(*byte)(unsafe.Pointer(&out)), uint32(unsafe.Sizeof(out)), &returned, nil)
	if err != nil {
		return -1, fmt.Errorf("IOCTL_STORAGE_GET_DEVICE_NUMBER on %s: %w", vol, err)
	}
	return int(out.DeviceNumber), nil
}

// driveType reports how Windows classifies the volume at a drive letter.
func driveType(letter string) string {
	root, err := windows.UTF16PtrFromString(strings.TrimSuffix(letter, ":") + `:\`)
	if err != nil {
		return ""
	}
	return driveTypeString(windows.GetDriveType(root))
}
