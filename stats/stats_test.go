package stats

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msSeq(n int) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = time.Duration(i+1) * time.Millisecond
	}
	return out
}

func TestNearestRank(t *testing.T) {
	tests := []struct {
		percent, n, want int
	}{
		{95, 20, 19},
		{95, 37, 36},
		{95, 1, 1},
		{95, 0, 0},
		{50, 10, 5},
		{50, 11, 6},
		{100, 7, 7},
		{1, 400, 4},
		{95, 400, 380},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NearestRank(tt.percent, tt.n), "p%d n=%d", tt.percent, tt.n)
	}
}

func TestPercentile_HandComputed(t *testing.T) {
	t.Run("1..20 ms", func(t *testing.T) {
		p95, ok := Percentile(msSeq(20), 95)
		require.True(t, ok)
		assert.Equal(t, 19*time.Millisecond, p95)
	})

	t.Run("37 samples shuffled", func(t *testing.T) {
		samples := msSeq(37)
		// reverse so the input is unsorted
		for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
			samples[i], samples[j] = samples[j], samples[i]
		}
		p95, ok := Percentile(samples, 95)
		require.True(t, ok)
		assert.Equal(t, 36*time.Millisecond, p95)
		assert.Equal(t, 37*time.Millisecond, samples[0], "input must not be reordered")
	})

	t.Run("empty", func(t *testing.T) {
		_, ok := Percentile(nil, 95)
		assert.False(t, ok)
	})
}

func TestMean(t *testing.T) {
	m, ok := Mean(msSeq(4))
	require.True(t, ok)
	assert.Equal(t, 2500*time.Microsecond, m)

	_, ok = Mean(nil)
	assert.False(t, ok)
}

func TestNewRate(t *testing.T) {
	r := NewRate(2*1024*1024, time.Second)
	assert.True(t, r.Defined)
	assert.InDelta(t, 2.0, r.MiBPerSecond(), 1e-9)

	zero := NewRate(0, 0)
	assert.False(t, zero.Defined)
	assert.Equal(t, "undefined", zero.String())
	assert.Equal(t, 0.0, zero.MiBPerSecond())

	assert.False(t, NewRate(4096, -time.Millisecond).Defined)
}

func TestProperty_NearestRankBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("rank stays within [1, n]", prop.ForAll(
		func(percent, n int) bool {
			r := NearestRank(percent, n)
			return r >= 1 && r <= n
		},
		gen.IntRange(1, 100),
		gen.IntRange(1, 10000),
	))

	properties.Property("percentile is an element of the sample at the nearest rank", prop.ForAll(
		func(n int) bool {
			samples := msSeq(n)
			p, ok := Percentile(samples, 95)
			return ok && p == time.Duration(NearestRank(95, n))*time.Millisecond
		},
		gen.IntRange(1, 2000),
	))

	properties.TestingRun(t)
}
