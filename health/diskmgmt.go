package health

import (
	"context"
	"fmt"
	"runtime"
	"strings"
)

// DiskManagement summarises the disk through the platform's own tooling:
// PowerShell Get-Disk on Windows, lsblk on Linux, diskutil on macOS.
type DiskManagement struct {
	GOOS string
	run  Runner
}

func NewDiskManagement(run Runner) *DiskManagement {
	return &DiskManagement{GOOS: runtime.GOOS, run: run}
}

func (d *DiskManagement) Name() string { return "disk-management" }

func (d *DiskManagement) Probe(ctx context.Context, t Target) Report {
	name, args, err := diskManagementCommand(d.GOOS, t)
	if err != nil {
		return Unavailable(d.Name(), err.Error())
	}
	out, err := d.run(ctx, name, args...)
	out = strings.TrimSpace(out)
	if err != nil {
		return Unavailable(d.Name(), fmt.Sprintf("%s: %v %s", name, err, firstChars(out, 200)))
	}
	if out == "" {
		return Unavailable(d.Name(), name+" returned nothing")
	}
	return OK(d.Name(), name, out)
}

func diskManagementCommand(goos string, t Target) (string, []string, error) {
	switch goos {
	case "windows":
		dl := strings.TrimSuffix(t.DriveLetter, ":")
		if len(dl) != 1 {
			return "", nil, fmt.Errorf("no drive letter for %s", t.Path)
		}
		script := fmt.Sprintf(
			"$d = (Get-Partition -DriveLetter %s -ErrorAction SilentlyContinue | Get-Disk | Select-Object -First 1); "+
				"if ($d) { $d | Select-Object Number, FriendlyName, Model, BusType, HealthStatus, Size | Format-List | Out-String }",
			dl)
		return "powershell", powershellArgs(script), nil
	case "linux":
		if t.Whole == "" {
			return "", nil, fmt.Errorf("no block device for %s", t.Path)
		}
		return "lsblk", []string{"-J", "-o", "NAME,MODEL,SERIAL,TRAN,ROTA,SIZE,STATE,HCTL", t.Whole}, nil
	case "darwin":
		dev := t.Whole
		if dev == "" {
			dev = t.Device
		}
		if dev == "" {
			return "", nil, fmt.Errorf("no disk for %s", t.Path)
		}
		return "diskutil", []string{"info", dev}, nil
	default:
		return "", nil, fmt.Errorf("unsupported OS: %s", goos)
	}
}

func powershellArgs(script string) []string {
	return []string{"-NoProfile", "-ExecutionPolicy", "Bypass", "-Command", script}
}
