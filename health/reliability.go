package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"
)

// Reliability reports error and wear counters: Get-StorageReliabilityCounter
// on Windows, kernel I/O counters plus SCSI error counts on Linux.
type Reliability struct {
	GOOS string
	// SysfsRoot is /sys/block unless overridden.
	SysfsRoot string
	run       Runner
	counters  func(ctx context.Context, names ...string) (map[string]disk.IOCountersStat, error)
}

func NewReliability(run Runner) *Reliability {
	return &Reliability{
		GOOS:      runtime.GOOS,
		SysfsRoot: "/sys/block",
		run:       run,
		counters:  disk.IOCountersWithContext,
	}
}

func (r *Reliability) Name() string { return "reliability" }

func (r *Reliability) Probe(ctx context.Context, t Target) Report {
	switch r.GOOS {
	case "windows":
		return r.probeWindows(ctx, t)
	case "linux":
		return r.probeLinux(ctx, t)
	default:
		return Unavailable(r.Name(), "reliability counters are not exposed on "+r.GOOS)
	}
}

func (r *Reliability) probeWindows(ctx context.Context, t Target) Report {
	if t.DiskNumber < 0 {
		return Unavailable(r.Name(), "could not map drive letter to a disk number")
	}
	script := fmt.Sprintf(
		"$d = Get-Disk -Number %d -ErrorAction SilentlyContinue; "+
			"if ($d) { Get-StorageReliabilityCounter -Disk $d -ErrorAction SilentlyContinue | "+
			"Select-Object Temperature, TemperatureMax, ReadErrorsTotal, WriteErrorsTotal, "+
			"Wear, StartStopCount, LoadUnloadCycleCount | Format-List | Out-String }",
		t.DiskNumber)
	out, err := r.run(ctx, "powershell", powershellArgs(script)...)
	out = strings.TrimSpace(out)
	if err != nil || out == "" {
		return Unavailable(r.Name(), "reliability counters not available (non-admin or the bridge does not expose them)")
	}
	return OK(r.Name(), "Get-StorageReliabilityCounter", out)
}

func (r *Reliability) probeLinux(ctx context.Context, t Target) Report {
	if t.Whole == "" {
		return Unavailable(r.Name(), "no block device for "+t.Path)
	}
	name := filepath.Base(t.Whole)
	stats, err := r.counters(ctx, name)
	if err != nil {
		return Unavailable(r.Name(), fmt.Sprintf("io counters for %s: %v", name, err))
	}
	s, ok := stats[name]
	if !ok {
		return Unavailable(r.Name(), "kernel reports no io counters for "+name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Device           : %s\n", name)
	if s.SerialNumber != "" {
		fmt.Fprintf(&b, "SerialNumber     : %s\n", s.SerialNumber)
	}
	fmt.Fprintf(&b, "ReadCount        : %d\n", s.ReadCount)
	fmt.Fprintf(&b, "WriteCount       : %d\n", s.WriteCount)
	fmt.Fprintf(&b, "ReadBytes        : %d\n", s.ReadBytes)
	fmt.Fprintf(&b, "WriteBytes       : %d\n", s.WriteBytes)
	fmt.Fprintf(&b, "ReadTimeMs       : %d\n", s.ReadTime)
	fmt.Fprintf(&b, "WriteTimeMs      : %d\n", s.WriteTime)
	fmt.Fprintf(&b, "IopsInProgress   : %d\n", s.IopsInProgress)
	for _, f := range []struct{ label, file string }{
		{"IoErrorCount     ", "ioerr_cnt"},
		{"IoDoneCount      ", "iodone_cnt"},
	} {
		if v, ok := readSysfsCounter(filepath.Join(r.SysfsRoot, name, "device", f.file)); ok {
			fmt.Fprintf(&b, "%s: %d\n", f.label, v)
		}
	}
	return OK(r.Name(), "gopsutil io counters", strings.TrimRight(b.String(), "\n"))
}

// readSysfsCounter parses a sysfs counter, which the SCSI layer prints in hex.
func readSysfsCounter(path string) (uint64, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	s := strings.TrimSpace(string(raw))
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
