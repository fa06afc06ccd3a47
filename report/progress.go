package report

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"drivecheck/engine"
)

// ProgressObserver draws one progress bar per phase on a line-oriented
// writer, typically stderr.
type ProgressObserver struct {
	mu  sync.Mutex
	w   io.Writer
	bar *progressbar.ProgressBar
}

var _ engine.Observer = (*ProgressObserver)(nil)

func NewProgressObserver(w io.Writer) *ProgressObserver {
	return &ProgressObserver{w: w}
}

func (o *ProgressObserver) PhaseStarted(p engine.Phase, total int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	opts := []progressbar.Option{
		progressbar.OptionSetWriter(o.w),
		progressbar.OptionSetDescription(fmt.Sprintf("%-7s", p)),
		progressbar.OptionThrottle(100 * time.Millisecond),
		progressbar.OptionSetWidth(30),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(o.w) }),
	}
	switch p {
	case engine.PhaseWrite, engine.PhaseRead:
		opts = append(opts, progressbar.OptionShowBytes(true))
	default:
		opts = append(opts, progressbar.OptionShowCount())
	}
	o.bar = progressbar.NewOptions64(total, opts...)
}

func (o *ProgressObserver) PhaseProgress(_ engine.Phase, done int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.bar != nil {
		_ = o.bar.Set64(done)
	}
}

func (o *ProgressObserver) PhaseFinished(p engine.Phase, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.bar == nil {
		return
	}
	if err != nil {
		_ = o.bar.Exit()
		fmt.Fprintf(o.w, "\n%s failed: %v\n", p, err)
	} else {
		_ = o.bar.Finish()
	}
	o.bar = nil
}
