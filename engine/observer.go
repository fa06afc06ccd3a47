package engine

// Phase names one step of a run.
type Phase string

const (
	PhaseHealth Phase = "health"
	PhaseWrite  Phase = "write"
	PhaseRead   Phase = "read"
	PhaseRandom Phase = "random"
)

// Observer is told about phase boundaries and progress. total and done are
// bytes for write and read, samples for random and providers for health.
// Calls arrive on the goroutine running the phase.
type Observer interface {
	PhaseStarted(p Phase, total int64)
	PhaseProgress(p Phase, done int64)
	PhaseFinished(p Phase, err error)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) PhaseStarted(Phase, int64)  {}
func (NopObserver) PhaseProgress(Phase, int64) {}
func (NopObserver) PhaseFinished(Phase, error) {}

// MultiObserver fans every call out to each observer in order.
type MultiObserver []Observer

func (m MultiObserver) PhaseStarted(p Phase, total int64) {
	for _, o := range m {
		o.PhaseStarted(p, total)
	}
}

func (m MultiObserver) PhaseProgress(p Phase, done int64) {
	for _, o := range m {
		o.PhaseProgress(p, done)
	}
}

func (m MultiObserver) PhaseFinished(p Phase, err error) {
	for _, o := range m {
		o.PhaseFinished(p, err)
	}
}
