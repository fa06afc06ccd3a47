// Package device finds the block device behind a test path and lists the
// drives a host exposes.
package device

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
)

// Entry is one discovered device node.
type Entry struct {
	Path       string `json:"path" yaml:"path"`
	Whole      bool   `json:"whole" yaml:"whole"`
	Reason     string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Type       string `json:"type,omitempty" yaml:"type,omitempty"`
	Serial     string `json:"serial,omitempty" yaml:"serial,omitempty"`
	SizeBytes  int64  `json:"size_bytes,omitempty" yaml:"size_bytes,omitempty"`
	SizeString string `json:"size,omitempty" yaml:"size,omitempty"`
}

// Discover lists device nodes on the current platform. Partitions and loop
// devices are reported with Whole=false and a reason.
func Discover() ([]Entry, error) {
	switch runtime.GOOS {
	case "darwin":
		return discoverDarwin("/dev")
	case "linux":
		return discoverLinux("/dev")
	case "windows":
		return discoverWindows(), nil
	default:
		return nil, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
}

func discoverDarwin(root string) ([]Entry, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "disk") && !strings.HasPrefix(name, "rdisk") {
			continue
		}
		path := filepath.Join(root, name)
		if isPartitionDarwin(name) {
			out = append(out, Entry{Path: path, Reason: "partition"})
		} else {
			out = append(out, Entry{Path: path, Whole: true})
		}
	}
	return out, nil
}

// isPartitionDarwin reports whether name carries an sN slice suffix (disk2s1).
func isPartitionDarwin(name string) bool {
	for i := 0; i+1 < len(name); i++ {
		if name[i] == 's' && name[i+1] >= '0' && name[i+1] <= '9' {
			return true
		}
	}
	return false
}

func discoverLinux(root string) ([]Entry, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range entries {
		name := e.Name()
		path := filepath.Join(root, name)
		switch {
		case isWholeLinuxDevice(name):
			out = append(out, Entry{Path: path, Whole: true})
		case isPartitionLinux(name):
			out = append(out, Entry{Path: path, Reason: "partition"})
		case strings.HasPrefix(name, "loop"):
			out = append(out, Entry{Path: path, Reason: "loop device"})
		}
	}
	return out, nil
}

func isWholeLinuxDevice(name string) bool {
	// sdX, vdX
	if len(name) == 3 && (strings.HasPrefix(name, "sd") || strings.HasPrefix(name, "vd")) && name[2] >= 'a' && name[2] <= 'z' {
		return true
	}
	// nvmeXnY
	if strings.HasPrefix(name, "nvme") && !strings.Contains(name, "p") {
		parts := strings.Split(strings.TrimPrefix(name, "nvme"), "n")
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return true
		}
	}
	// mmcblkX
	if strings.HasPrefix(name, "mmcblk") && !strings.Contains(name, "p") {
		return true
	}
	return false
}

func isPartitionLinux(name string) bool {
	// sdXN or vdXN
	if (strings.HasPrefix(name, "sd") || strings.HasPrefix(name, "vd")) && len(name) >= 4 {
		if isDigit(name[len(name)-1]) {
			return true
		}
	}
	// nvmeXnYpZ
	if strings.HasPrefix(name, "nvme") && strings.Contains(name, "n") && strings.Contains(name, "p") {
		return true
	}
	// mmcblkXpZ
	if strings.HasPrefix(name, "mmcblk") && strings.Contains(name, "p") {
		return true
	}
	return false
}

func discoverWindows() []Entry {
	var out []Entry
	for i := 0; i < 32; i++ {
		path := PhysicalDrive(i)
		f, err := os.Open(path)
		if err == nil {
			_ = f.Close()
			out = append(out, Entry{Path: path, Whole: true})
			continue
		}
		// Only list a few inaccessible ones to keep the noise down.
		if i < 8 {
			out = append(out, Entry{Path: path, Reason: "not accessible"})
		}
	}
	return out
}

// PhysicalDrive returns the Windows raw device path for disk n.
func PhysicalDrive(n int) string {
	return fmt.Sprintf(`\\.\PhysicalDrive%d`, n)
}

// WholeDevice strips a partition suffix from a device path: /dev/sdb1 becomes
// /dev/sdb, /dev/nvme0n1p2 becomes /dev/nvme0n1, /dev/disk4s1 becomes
// /dev/disk4. Paths it does not recognise are returned unchanged.
func WholeDevice(dev string) string {
	dir, name := filepath.Split(dev)
	switch {
	case strings.HasPrefix(name, "nvme"), strings.HasPrefix(name, "mmcblk"):
		if i := strings.LastIndex(name, "p"); i > 0 && i < len(name)-1 && allDigits(name[i+1:]) {
			name = name[:i]
		}
	case strings.HasPrefix(name, "sd"), strings.HasPrefix(name, "vd"), strings.HasPrefix(name, "hd"), strings.HasPrefix(name, "xvd"):
		name = strings.TrimRightFunc(name, func(r rune) bool { return r >= '0' && r <= '9' })
	case strings.HasPrefix(name, "disk"), strings.HasPrefix(name, "rdisk"):
		prefix := name[:strings.Index(name, "disk")+4]
		rest := name[len(prefix):]
		if i := strings.Index(rest, "s"); i > 0 && allDigits(rest[:i]) && rest[i+1:] != "" && allDigits(rest[i+1:]) {
			name = prefix + rest[:i]
		}
	}
	return dir + name
}

// Details fills Type, Serial and Size for a device path, best effort.
func Details(path string) Entry {
	e := Entry{Path: path, Type: "Disk", Serial: "-", SizeString: "-", Whole: true}
	switch runtime.GOOS {
	case "linux":
		sysPath := filepath.Join("/sys/block", filepath.Base(path))
		if _, err := os.Stat(sysPath); err != nil {
			sysPath = filepath.Join("/sys/class/block", filepath.Base(path))
		}
		if b, err := os.ReadFile(filepath.Join(sysPath, "removable")); err == nil {
			if strings.TrimSpace(string(b)) == "1" {
				e.Type = "Removable Disk"
			} else {
				e.Type = "Fixed Disk"
			}
		}
		if b, err := os.ReadFile(filepath.Join(sysPath, "device", "serial")); err == nil {
			e.Serial = strings.TrimSpace(string(b))
		}
	case "windows":
		e.Type = "PhysicalDrive"
	}
	if f, err := os.Open(path); err == nil {
		defer f.Close()
		if sz, err := Size(f); err == nil {
			e.SizeBytes = sz
			e.SizeString = humanize.IBytes(uint64(sz))
		}
	}
	return e
}

// driveTypeString names a GetDriveType result.
func driveTypeString(t uint32) string {
	switch t {
	case 2:
		return "removable"
	case 3:
		return "fixed"
	case 4:
		return "network"
	case 5:
		return "cdrom"
	case 6:
		return "ramdisk"
	default:
		return "unknown"
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
