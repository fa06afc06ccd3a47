package device

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"
)

// Info describes where a path lives.
type Info struct {
	Path       string `json:"path" yaml:"path"`
	Mountpoint string `json:"mountpoint,omitempty" yaml:"mountpoint,omitempty"`
	Fstype     string `json:"fstype,omitempty" yaml:"fstype,omitempty"`
	// Device is the partition or volume node backing Mountpoint.
	Device string `json:"device,omitempty" yaml:"device,omitempty"`
	// Whole is the whole-disk node for Device (\\.\PhysicalDriveN on Windows).
	Whole       string `json:"whole,omitempty" yaml:"whole,omitempty"`
	DriveLetter string `json:"drive_letter,omitempty" yaml:"drive_letter,omitempty"`
	// DriveType is the Windows volume class (removable, fixed, network...).
	DriveType string `json:"drive_type,omitempty" yaml:"drive_type,omitempty"`
	// DiskNumber is the Windows disk number, -1 when unknown.
	DiskNumber int `json:"disk_number" yaml:"disk_number"`
}

// Resolve maps a file or directory path to the mount and device it lives on.
// A path that matches no mount still returns an Info carrying Path.
func Resolve(ctx context.Context, path string) (Info, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Info{Path: path, DiskNumber: -1}, err
	}
	parts, err := disk.PartitionsWithContext(ctx, true)
	if err != nil && len(parts) == 0 {
		return Info{Path: abs, DiskNumber: -1}, fmt.Errorf("list partitions: %w", err)
	}
	info := resolve(abs, parts, runtime.GOOS)
	if info.DriveLetter != "" {
		info.DriveType = driveType(info.DriveLetter)
		if n, err := diskNumber(info.DriveLetter); err == nil {
			info.DiskNumber = n
			info.Whole = PhysicalDrive(n)
		}
	}
	return info, nil
}

func resolve(abs string, parts []disk.PartitionStat, goos string) Info {
	info := Info{Path: abs, DiskNumber: -1}
	if goos == "windows" {
		if vol := filepath.VolumeName(abs); len(vol) == 2 && vol[1] == ':' {
			info.DriveLetter = strings.ToUpper(vol)
		}
	}

	best := -1
	for i, p := range parts {
		if !underMount(abs, p.Mountpoint, goos) {
			continue
		}
		if best < 0 || len(p.Mountpoint) > len(parts[best].Mountpoint) {
			best = i
		}
	}
	if best < 0 {
		return info
	}
	p := parts[best]
	info.Mountpoint = p.Mountpoint
	info.Fstype = p.Fstype
	info.Device = p.Device
	if strings.HasPrefix(p.Device, "/dev/") {
		info.Whole = WholeDevice(p.Device)
	}
	return info
}

func underMount(path, mount, goos string) bool {
	if mount == "" {
		return false
	}
	if goos == "windows" {
		path, mount = strings.ToUpper(path), strings.ToUpper(mount)
	}
	if path == mount {
		return true
	}
	sep := "/"
	if goos == "windows" {
		sep = `\`
	}
	if !strings.HasSuffix(mount, sep) {
		mount += sep
	}
	return strings.HasPrefix(path, mount)
}
