package health

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// SmartKeys are the substrings that mark a smartctl line worth keeping.
var SmartKeys = []string{
	"SMART overall-health",
	"SMART Health Status",
	"Reallocated_Sector_Ct",
	"Reallocated Sector Count",
	"Current_Pending_Sector",
	"Current Pending Sector",
	"Offline_Uncorrectable",
	"UDMA_CRC_Error_Count",
	"Reported_Uncorrect",
	"Temperature_Celsius",
	"Temperature",
}

// DeviceTypes are the smartctl -d hints tried in order. USB bridges often
// hide SMART unless the matching pass-through type is named.
var DeviceTypes = []string{"auto", "sat", "usbjmicron", "usbcypress", "usbsunplus", "usbprolific"}

// MaxKeyLines caps the smartctl payload.
const MaxKeyLines = 60

// Smartctl probes SMART data through smartmontools.
type Smartctl struct {
	Binary      string
	DeviceTypes []string
	run         Runner
	lookPath    func(string) (string, error)
}

func NewSmartctl(run Runner) *Smartctl {
	return &Smartctl{Binary: "smartctl", DeviceTypes: DeviceTypes, run: run, lookPath: exec.LookPath}
}

func (s *Smartctl) Name() string { return "smartctl" }

// Candidates lists the device paths to hand smartctl, best first.
func (s *Smartctl) Candidates(t Target) []string {
	var out []string
	add := func(c string) {
		if c == "" {
			return
		}
		for _, have := range out {
			if have == c {
				return
			}
		}
		out = append(out, c)
	}
	add(t.Whole)
	if t.DriveLetter != "" {
		add(strings.TrimSuffix(t.DriveLetter, ":") + ":")
	}
	add(t.Device)
	return out
}

func (s *Smartctl) Probe(ctx context.Context, t Target) Report {
	bin, err := s.lookPath(s.Binary)
	if err != nil {
		return Unavailable(s.Name(), "smartctl not found; install smartmontools for SMART data")
	}
	candidates := s.Candidates(t)
	if len(candidates) == 0 {
		return Unavailable(s.Name(), "no device resolved for "+t.Path)
	}

	var failures []string
	for _, dev := range candidates {
		for _, typ := range s.DeviceTypes {
			if ctx.Err() != nil {
				return Unavailable(s.Name(), "cancelled")
			}
			args := []string{"-a"}
			if typ != "" && typ != "auto" {
				args = append(args, "-d", typ)
			}
			args = append(args, dev)

			out, err := s.run(ctx, bin, args...)
			if fatalSmartExit(err) {
				failures = append(failures, fmt.Sprintf("%s (-d %s): %s", dev, typ, firstChars(out+" "+err.Error(), 300)))
				continue
			}
			lines := KeyLines(out, SmartKeys, MaxKeyLines)
			if len(lines) == 0 {
				failures = append(failures, fmt.Sprintf("%s (-d %s): no standard attributes recognised", dev, typ))
				continue
			}
			return OK(s.Name(), strings.Join(append([]string{bin}, args...), " "), strings.Join(lines, "\n"))
		}
	}
	return Unavailable(s.Name(), strings.Join(failures, "; "))
}

// fatalSmartExit reports whether smartctl failed before reading the device.
// Bits 0 and 1 of its exit status mean a command-line or open failure; the
// higher bits describe disk state and come with usable output.
func fatalSmartExit(err error) bool {
	if err == nil {
		return false
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode() < 0 || exitErr.ExitCode()&0x3 != 0
	}
	return true
}
