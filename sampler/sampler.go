// Package sampler probes a file with small reads at random offsets and
// summarises the per-read latency.
//
// Average and p95 are both reported because page-cache hits and device-bound
// reads tend to form two clusters: cached reads collapse below 0.1 ms while a
// spinning disk answers in single-digit to tens of milliseconds.
package sampler

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"math/rand/v2"
	"time"

	"drivecheck/devio"
	"drivecheck/driveerr"
	"drivecheck/stats"
)

// DefaultSampleSize is the size of one probe read.
const DefaultSampleSize = 4096

// P95 is the percentile reported alongside the mean.
const P95 = 95

// Options configure a probe run.
type Options struct {
	SampleSize int64
	Count      int
	// Direct requests uncached reads; offsets are then aligned down to the
	// sample size.
	Direct bool
	// Rand supplies offsets. A time-seeded PCG is used when nil.
	Rand *rand.Rand
	// Progress, when set, is called after every attempted sample.
	Progress func(done int)
}

// SampleSet is the outcome of a probe run.
type SampleSet struct {
	Requested  int             `json:"requested" yaml:"requested"`
	Achieved   int             `json:"achieved" yaml:"achieved"`
	SampleSize int64           `json:"sample_size" yaml:"sample_size"`
	Uncached   bool            `json:"uncached" yaml:"uncached"`
	Offsets    []int64         `json:"-" yaml:"-"`
	Latencies  []time.Duration `json:"latencies_ns" yaml:"latencies_ns"`
	Average    time.Duration   `json:"average_ns" yaml:"average_ns"`
	P95        time.Duration   `json:"p95_ns" yaml:"p95_ns"`
	// HasStats is false when no sample was achieved.
	HasStats   bool       `json:"has_stats" yaml:"has_stats"`
	Throughput stats.Rate `json:"throughput" yaml:"throughput"`
}

// Sample issues Count reads of SampleSize bytes at uniformly random offsets in
// [0, fileSize-SampleSize] and times each read call individually. Offsets may
// repeat. A read that comes back short is dropped from the set, so Achieved
// can be lower than Requested; statistics cover the achieved samples only.
//
// Throughput is Achieved*SampleSize divided by the summed latencies.
func Sample(ctx context.Context, path string, fileSize int64, opts Options) (SampleSet, error) {
	size := opts.SampleSize
	if size <= 0 {
		size = DefaultSampleSize
	}
	set := SampleSet{Requested: opts.Count, SampleSize: size}
	if fileSize < size {
		return set, driveerr.Newf(driveerr.KindFileTooSmall, "sample", path, "file is %d bytes, sample needs %d", fileSize, size)
	}

	rng := opts.Rand
	if rng == nil {
		now := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(now, now>>1|1))
	}

	direct := opts.Direct && devio.DirectCompatible(size)
	f, uncached, err := devio.OpenRead(path, direct)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return set, driveerr.New(driveerr.KindVerifyTargetMissing, "sample", path, err)
		}
		return set, driveerr.New(driveerr.KindIOFailure, "sample", path, err)
	}
	defer f.Close()
	set.Uncached = uncached

	buf := devio.Buffer(int(size), uncached)
	span := fileSize - size + 1
	set.Offsets = make([]int64, 0, opts.Count)
	set.Latencies = make([]time.Duration, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		if err := ctx.Err(); err != nil {
			return set, driveerr.New(driveerr.KindInterrupted, "sample", path, err)
		}
		off := rng.Int64N(span)
		if uncached {
			off -= off % size
		}
		t0 := time.Now()
		n, err := f.ReadAt(buf, off)
		lat := time.Since(t0)
		if opts.Progress != nil {
			opts.Progress(i + 1)
		}
		if err != nil && err != io.EOF {
			return set, driveerr.New(driveerr.KindIOFailure, "sample", path, err)
		}
		if int64(n) < size {
			continue
		}
		set.Offsets = append(set.Offsets, off)
		set.Latencies = append(set.Latencies, lat)
	}
	set.Achieved = len(set.Latencies)
	set.summarise()
	return set, nil
}

func (s *SampleSet) summarise() {
	avg, ok := stats.Mean(s.Latencies)
	if !ok {
		return
	}
	p95, _ := stats.Percentile(s.Latencies, P95)
	s.Average = avg
	s.P95 = p95
	s.HasStats = true
	s.Throughput = stats.NewRate(int64(s.Achieved)*s.SampleSize, stats.Sum(s.Latencies))
}
