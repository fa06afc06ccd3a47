// Package report turns a RunResult into something an operator reads: a
// coloured console summary, JSON or YAML, and a line progress bar while the
// run is going.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"drivecheck/engine"
	"drivecheck/health"
	"drivecheck/seqio"
)

// Formats accepted by Render.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Render writes res to w in the given format.
func Render(w io.Writer, format string, res *engine.RunResult) error {
	switch strings.ToLower(format) {
	case "", FormatText:
		PrintSummary(w, res)
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

type printer struct {
	w      io.Writer
	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	gray   *color.Color
	bold   *color.Color
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:      w,
		green:  color.New(color.FgGreen, color.Bold),
		red:    color.New(color.FgRed, color.Bold),
		yellow: color.New(color.FgYellow),
		cyan:   color.New(color.FgCyan),
		gray:   color.New(color.FgHiBlack),
		bold:   color.New(color.Bold),
	}
}

// PrintSummary writes the human-readable report for res.
func PrintSummary(w io.Writer, res *engine.RunResult) {
	p := newPrinter(w)
	p.header(res)
	p.health(res.Health)
	p.measurements(res)
	p.integrity(res)
	p.cacheNote(res)
	p.tips(runtime.GOOS)
}

// PrintHealth writes only the health section.
func PrintHealth(w io.Writer, reports []health.Report) {
	newPrinter(w).health(reports)
}

// PrintPartial writes what a failed run measured before it stopped. There is
// no integrity section since the run never reached the digest comparison.
func PrintPartial(w io.Writer, runErr *engine.RunError) {
	p := newPrinter(w)
	if res := runErr.Partial; res != nil {
		p.header(res)
		p.health(res.Health)
		p.measurements(res)
	}
	fmt.Fprintln(p.w)
	p.red.Fprint(p.w, "ABORTED ")
	fmt.Fprintf(p.w, "%s phase failed: %v\n", runErr.Phase, runErr.Err)
}

func (p *printer) header(res *engine.RunResult) {
	order := "random probe after sequential read"
	if res.RandomFirst {
		order = "random probe before sequential read"
	}
	p.bold.Fprintf(p.w, "Run %s", res.ID)
	fmt.Fprintf(p.w, "  (%s, %s)\n", res.Mode, order)
	fmt.Fprintf(p.w, "%-8s%s (%s, chunk %s)\n", "Target", res.Config.Path,
		humanize.IBytes(uint64(res.FileSize)), humanize.IBytes(uint64(res.Config.ChunkSize)))
	if !res.StartedAt.IsZero() {
		p.gray.Fprintf(p.w, "%-8s%s, took %s\n", "", res.StartedAt.Format(time.RFC3339), formatDuration(res.Duration()))
	}
}

func (p *printer) health(reports []health.Report) {
	if len(reports) == 0 {
		return
	}
	p.cyan.Fprintln(p.w, "\nHealth")
	for _, r := range reports {
		if !r.Available() {
			fmt.Fprintf(p.w, "  %-16s", r.Provider)
			p.yellow.Fprintf(p.w, "unavailable")
			fmt.Fprintf(p.w, ": %s\n", r.Reason)
			continue
		}
		fmt.Fprintf(p.w, "  %-16s", r.Provider)
		p.green.Fprint(p.w, "ok")
		if r.Source != "" {
			p.gray.Fprintf(p.w, "  (%s)", r.Source)
		}
		fmt.Fprintln(p.w)
		for _, line := range strings.Split(strings.TrimSpace(r.Payload), "\n") {
			fmt.Fprintf(p.w, "      %s\n", strings.TrimRight(line, " \r"))
		}
	}
	fmt.Fprintln(p.w)
}

func (p *printer) measurements(res *engine.RunResult) {
	p.sequential("Write", res.Write)
	p.sequential("Read", res.Read)
	s := res.Random
	switch {
	case s == nil:
		return
	case !s.HasStats:
		fmt.Fprintf(p.w, "%-8s%s reads: no samples completed (%d requested)\n", "Random",
			humanize.IBytes(uint64(s.SampleSize)), s.Requested)
	default:
		fmt.Fprintf(p.w, "%-8s%s reads: avg %s, p95 %s, ~%s over %d/%d samples\n", "Random",
			humanize.IBytes(uint64(s.SampleSize)), formatLatency(s.Average), formatLatency(s.P95),
			s.Throughput, s.Achieved, s.Requested)
	}
}

func (p *printer) sequential(label string, m *seqio.Measurement) {
	if m == nil {
		return
	}
	fmt.Fprintf(p.w, "%-8s%s in %s  ->  %s", label, humanize.IBytes(uint64(m.Bytes)),
		formatDuration(m.Elapsed), m.Throughput())
	if m.Uncached {
		p.gray.Fprint(p.w, "  (uncached)")
	}
	fmt.Fprintln(p.w)
}

func (p *printer) integrity(res *engine.RunResult) {
	in := res.Integrity
	fmt.Fprintln(p.w)
	if in.WriteDigest != nil {
		fmt.Fprintf(p.w, "%-8s%-9s%s\n", "Digest", "write", in.WriteDigest)
	}
	if in.Expected != nil {
		fmt.Fprintf(p.w, "%-8s%-9s%s\n", "Digest", "expected", in.Expected)
	}
	fmt.Fprintf(p.w, "%-8s%-9s%s\n", "Digest", "read", in.ReadDigest)

	switch in.Verdict {
	case engine.VerdictPass:
		p.green.Fprint(p.w, "PASS    ")
		if in.Reference == engine.ReferenceWrite {
			fmt.Fprintln(p.w, "read-after-write digest matches, data integrity good")
		} else {
			fmt.Fprintln(p.w, "digest matches the recorded value, data integrity good")
		}
	case engine.VerdictFail:
		p.red.Fprint(p.w, "FAIL    ")
		fmt.Fprintln(p.w, "digest mismatch: data corruption detected, stop using this drive")
	default:
		p.yellow.Fprint(p.w, "READ OK ")
		fmt.Fprintln(p.w, "file read back completely, but there was no digest to compare against;")
		fmt.Fprintln(p.w, "        corruption was NOT checked. Keep the file from a write run (--keep) or pass --expect.")
	}
}

func (p *printer) cacheNote(res *engine.RunResult) {
	if !res.CacheSuspected {
		return
	}
	fmt.Fprintln(p.w)
	if res.Mode == engine.ModeVerifyOnly {
		p.yellow.Fprintln(p.w, "NOTE    Extremely low random latencies suggest results are still served from the OS cache.")
		return
	}
	p.yellow.Fprintln(p.w, "NOTE    Your read and latency results look heavily OS-cached.")
	fmt.Fprintln(p.w, "        For more realistic read numbers, try one of these:")
	fmt.Fprintln(p.w, "          1) re-run with a larger file (--size 8GiB or 16GiB)")
	fmt.Fprintln(p.w, "          2) run once with --keep, unplug and replug the drive, then run verify")
	fmt.Fprintln(p.w, "          3) reboot and run verify on the kept file")
	fmt.Fprintln(p.w, "          4) re-run with --direct to bypass the cache where supported")
}

func (p *printer) tips(goos string) {
	p.gray.Fprintln(p.w, "\nTips:")
	for _, t := range tipLines(goos) {
		p.gray.Fprintf(p.w, " - %s\n", t)
	}
}

func tipLines(goos string) []string {
	scan := "fsck -n /dev/sdX1 (unmounted)"
	switch goos {
	case "windows":
		scan = "chkdsk /scan E:"
	case "darwin":
		scan = "diskutil verifyVolume /Volumes/NAME"
	}
	return []string{
		"Write speed is usually realistic; read speed can look high if data is cached by the OS.",
		"For a quick surface/filesystem check, run: " + scan,
		"SMART IDs to watch: 5, 187, 197, 198 should be 0; 199 > 0 often means a bad USB cable or port.",
		"Typical USB 3.x external HDD sequential speeds are ~100-200 MB/s. Much lower may indicate USB 2.0 or cabling issues.",
	}
}

func formatLatency(d time.Duration) string {
	return fmt.Sprintf("%.2f ms", float64(d)/float64(time.Millisecond))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}
