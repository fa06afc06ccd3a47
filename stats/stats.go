// Package stats holds the small amount of arithmetic behind a drive check:
// means, nearest-rank percentiles and throughput rates that refuse to divide
// by a zero duration.
package stats

import (
	"fmt"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
)

// NearestRank returns the 1-based rank of the percent-th percentile in a
// sample of n values using the nearest-rank method:
//
//	rank = ceil(percent/100 * n)
//
// computed in integer arithmetic as (percent*n + 99) / 100 so that, for
// example, n=20 gives rank 19 for p95 and n=37 gives rank 36. The rank is
// clamped to [1, n]. It returns 0 when n is 0.
func NearestRank(percent, n int) int {
	if n <= 0 {
		return 0
	}
	rank := (percent*n + 99) / 100
	if rank < 1 {
		rank = 1
	}
	if rank > n {
		rank = n
	}
	return rank
}

// Percentile returns the nearest-rank percentile of samples. The input is not
// modified. ok is false for an empty sample.
func Percentile(samples []time.Duration, percent int) (d time.Duration, ok bool) {
	if len(samples) == 0 {
		return 0, false
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	return sorted[NearestRank(percent, len(sorted))-1], true
}

// Mean returns the arithmetic mean of samples. ok is false for an empty sample.
func Mean(samples []time.Duration) (d time.Duration, ok bool) {
	if len(samples) == 0 {
		return 0, false
	}
	return Sum(samples) / time.Duration(len(samples)), true
}

// Sum adds up samples.
func Sum(samples []time.Duration) time.Duration {
	var total time.Duration
	for _, s := range samples {
		total += s
	}
	return total
}

// Rate is a throughput in bytes per second. A zero Rate with Defined unset
// means the measured duration was zero and no rate can be derived.
type Rate struct {
	BytesPerSecond float64 `json:"bytes_per_second" yaml:"bytes_per_second"`
	Defined        bool    `json:"defined" yaml:"defined"`
}

// NewRate derives bytes/elapsed. Elapsed <= 0 yields an undefined Rate.
func NewRate(bytes int64, elapsed time.Duration) Rate {
	if elapsed <= 0 {
		return Rate{}
	}
	return Rate{BytesPerSecond: float64(bytes) / elapsed.Seconds(), Defined: true}
}

// MiBPerSecond returns the rate in MiB/s, or 0 when undefined.
func (r Rate) MiBPerSecond() float64 {
	if !r.Defined {
		return 0
	}
	return r.BytesPerSecond / (1024 * 1024)
}

func (r Rate) String() string {
	if !r.Defined {
		return "undefined"
	}
	return fmt.Sprintf("%s/s", humanize.IBytes(uint64(r.BytesPerSecond)))
}
