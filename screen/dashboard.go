package screen

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"drivecheck/engine"
)

const redrawEvery = 100 * time.Millisecond

// Dashboard shows engine progress on a UI.
type Dashboard struct {
	ui  *UI
	now func() time.Time

	mu       sync.Mutex
	phase    engine.Phase
	total    int64
	done     int64
	started  time.Time
	lastDraw time.Time
	failure  string
}

var _ engine.Observer = (*Dashboard)(nil)

// NewDashboard prepares ui for a run of cfg.
func NewDashboard(ui *UI, cfg engine.Config, withHealth bool) *Dashboard {
	ui.SetTitle(" drivecheck ")
	ui.SetSummaryLines([]string{
		"Target: " + cfg.Path,
		fmt.Sprintf("Mode: %s   Chunk: %s   Samples: %d   Direct: %t",
			cfg.Mode(), humanize.IBytes(uint64(cfg.ChunkSize)), cfg.SampleCount, cfg.Direct),
	})
	ui.SetLegend([]string{"█ done  ░ pending   q/Esc/Ctrl-C stop"})
	ui.SetPhases(phaseLabels(cfg, withHealth))
	return &Dashboard{ui: ui, now: time.Now}
}

func phaseLabels(cfg engine.Config, withHealth bool) []string {
	var out []string
	if withHealth {
		out = append(out, string(engine.PhaseHealth))
	}
	if !cfg.VerifyOnly {
		out = append(out, string(engine.PhaseWrite))
	}
	if cfg.EffectiveRandomFirst() {
		return append(out, string(engine.PhaseRandom), string(engine.PhaseRead))
	}
	return append(out, string(engine.PhaseRead), string(engine.PhaseRandom))
}

func (d *Dashboard) PhaseStarted(p engine.Phase, total int64) {
	d.mu.Lock()
	d.phase, d.total, d.done = p, total, 0
	d.started = d.now()
	d.failure = ""
	d.mu.Unlock()
	d.draw(true)
}

func (d *Dashboard) PhaseProgress(_ engine.Phase, done int64) {
	d.mu.Lock()
	d.done = done
	d.mu.Unlock()
	d.draw(false)
}

func (d *Dashboard) PhaseFinished(p engine.Phase, err error) {
	d.mu.Lock()
	if err != nil {
		d.failure = err.Error()
	} else {
		d.done = d.total
	}
	d.mu.Unlock()
	if err == nil {
		d.ui.SetPhaseDone(string(p))
	}
	d.draw(true)
}

func (d *Dashboard) draw(force bool) {
	d.mu.Lock()
	now := d.now()
	if !force && now.Sub(d.lastDraw) < redrawEvery {
		d.mu.Unlock()
		return
	}
	d.lastDraw = now
	phase, done, total, failure := d.phase, d.done, d.total, d.failure
	elapsed := now.Sub(d.started)
	d.mu.Unlock()

	w, h := d.ui.Size()
	if w > 0 && h > 0 {
		d.ui.SetProgressMap(progressMap(done, total, w, max(h-12, 1)))
	}
	d.ui.SetStatusLines(statusLines(phase, done, total, elapsed, failure))
	d.ui.LayoutAndDraw()
}

// progressMap fills w*rows cells proportionally to done/total.
func progressMap(done, total int64, w, rows int) []string {
	if total <= 0 || w <= 0 || rows <= 0 {
		return nil
	}
	cells := int64(w * rows)
	filled := min(done*cells/total, cells)
	lines := make([]string, rows)
	for row := range rows {
		var b strings.Builder
		b.Grow(w * 3)
		for col := 0; col < w; col++ {
			if int64(row*w+col) < filled {
				b.WriteRune('█')
			} else {
				b.WriteRune('░')
			}
		}
		lines[row] = b.String()
	}
	return lines
}

func statusLines(phase engine.Phase, done, total int64, elapsed time.Duration, failure string) []string {
	bytesPhase := phase == engine.PhaseWrite || phase == engine.PhaseRead
	elapsed = elapsed.Truncate(time.Second)

	var progress, rate string
	if bytesPhase {
		progress = fmt.Sprintf("%s / %s", humanize.IBytes(uint64(done)), humanize.IBytes(uint64(total)))
	} else {
		progress = fmt.Sprintf("%d / %d", done, total)
	}
	eta := "-"
	if secs := elapsed.Seconds(); secs > 0 && done > 0 {
		perSec := float64(done) / secs
		if bytesPhase {
			rate = humanize.IBytes(uint64(perSec)) + "/s"
		} else {
			rate = fmt.Sprintf("%.0f/s", perSec)
		}
		eta = time.Duration(float64(total-done) / perSec * float64(time.Second)).Truncate(time.Second).String()
	} else {
		rate = "-"
	}

	lines := []string{
		"Phase: " + string(phase),
		"Progress: " + progress,
		fmt.Sprintf("Elapsed: %s   Rate: %s   ETA: %s", elapsed, rate, eta),
	}
	if failure != "" {
		lines = append(lines, "Failed: "+failure)
	}
	return lines
}
