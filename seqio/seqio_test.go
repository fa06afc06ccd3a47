package seqio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivecheck/digest"
	"drivecheck/driveerr"
	"drivecheck/payload"
)

func writeFile(t *testing.T, path string, pattern payload.Pattern, total, chunk int64) (Measurement, digest.Digest) {
	t.Helper()
	gen, err := payload.New(pattern, total, chunk)
	require.NoError(t, err)
	acc := digest.New()
	m, err := Write(context.Background(), path, total, gen, acc, Options{ChunkSize: chunk})
	require.NoError(t, err)
	return m, acc.Sum()
}

func TestWriteThenRead_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		pattern payload.Pattern
		total   int64
		chunk   int64
		direct  bool
	}{
		{name: "zeros 1MiB/256KiB", pattern: payload.Zeros, total: 1 << 20, chunk: 256 << 10},
		{name: "random with remainder", pattern: payload.Random, total: 300_001, chunk: 65536},
		{name: "random direct", pattern: payload.Random, total: 1 << 20, chunk: 128 << 10, direct: true},
		{name: "direct with odd chunk falls back", pattern: payload.Zeros, total: 10_000, chunk: 1000, direct: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "testfile.bin")
			wm, want := writeFile(t, path, tt.pattern, tt.total, tt.chunk)
			assert.Equal(t, tt.total, wm.Bytes)

			var seen []int64
			rm, got, err := Read(context.Background(), path, tt.total, Options{
				ChunkSize: tt.chunk,
				Direct:    tt.direct,
				Progress:  func(done int64) { seen = append(seen, done) },
			})
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, tt.total, rm.Bytes)
			assert.Equal(t, wm.Chunks, rm.Chunks)
			assert.Len(t, seen, rm.Chunks)
			if tt.chunk%4096 != 0 {
				assert.False(t, rm.Uncached)
			}
		})
	}
}

func TestWrite_ChunkCountAndProgress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bin")
	gen, err := payload.New(payload.Zeros, 1<<20, 256<<10)
	require.NoError(t, err)

	var progress []int64
	m, err := Write(context.Background(), path, 1<<20, gen, digest.New(), Options{
		Progress: func(done int64) { progress = append(progress, done) },
	})
	require.NoError(t, err)
	assert.Equal(t, 4, m.Chunks)
	assert.Equal(t, []int64{262144, 524288, 786432, 1048576}, progress)
	assert.True(t, m.Elapsed > 0)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), info.Size())
}

func TestWrite_DeclaredSizeMismatchIsIOFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bin")
	gen, err := payload.New(payload.Zeros, 100, 10)
	require.NoError(t, err)

	_, err = Write(context.Background(), path, 200, gen, digest.New(), Options{})
	assert.ErrorIs(t, err, driveerr.ErrIOFailure)
}

func TestWrite_MissingDirectoryIsIOFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no", "such", "dir", "f.bin")
	gen, err := payload.New(payload.Zeros, 10, 10)
	require.NoError(t, err)

	_, err = Write(context.Background(), path, 10, gen, digest.New(), Options{})
	assert.ErrorIs(t, err, driveerr.ErrIOFailure)
}

func TestRead_ShortFileIsIOFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bin")
	writeFile(t, path, payload.Zeros, 4096, 4096)

	_, _, err := Read(context.Background(), path, 8192, Options{ChunkSize: 4096})
	assert.ErrorIs(t, err, driveerr.ErrIOFailure)
}

func TestRead_MissingFileIsVerifyTargetMissing(t *testing.T) {
	_, _, err := Read(context.Background(), filepath.Join(t.TempDir(), "absent.bin"), 10, Options{ChunkSize: 4096})
	assert.ErrorIs(t, err, driveerr.ErrVerifyTargetMissing)
}

func TestRead_RejectsZeroChunk(t *testing.T) {
	_, _, err := Read(context.Background(), "whatever", 10, Options{})
	assert.ErrorIs(t, err, driveerr.ErrInvalidConfig)
}

func TestCancelledContextStopsAtChunkBoundary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bin")
	gen, err := payload.New(payload.Zeros, 1<<20, 64<<10)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	m, err := Write(ctx, path, 1<<20, gen, digest.New(), Options{
		Progress: func(done int64) {
			if done >= 128<<10 {
				cancel()
			}
		},
	})
	assert.ErrorIs(t, err, driveerr.ErrInterrupted)
	assert.Equal(t, 2, m.Chunks)
	assert.Equal(t, int64(128<<10), m.Bytes)

	_, _, err = Read(ctx, path, 128<<10, Options{ChunkSize: 4096})
	assert.ErrorIs(t, err, driveerr.ErrInterrupted)
}

func TestMeasurement_ZeroDurationIsUndefined(t *testing.T) {
	m := Measurement{Bytes: 0, Elapsed: 0}
	assert.False(t, m.Throughput().Defined)
	assert.Equal(t, "undefined", m.Throughput().String())

	m = Measurement{Bytes: 1 << 20, Elapsed: time.Second}
	assert.InDelta(t, 1.0, m.Throughput().MiBPerSecond(), 1e-9)
}

func TestRead_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	m, d, err := Read(context.Background(), path, 0, Options{ChunkSize: 4096})
	require.NoError(t, err)
	assert.Equal(t, int64(0), m.Bytes)
	assert.Equal(t, 0, m.Chunks)
	assert.False(t, d.IsZero())
}

func TestProgressTimeIsNotMeasured(t *testing.T) {
	const pause = 100 * time.Millisecond
	path := filepath.Join(t.TempDir(), "f.bin")
	gen, err := payload.New(payload.Zeros, 256<<10, 64<<10)
	require.NoError(t, err)

	slow := Options{ChunkSize: 64 << 10, Progress: func(int64) { time.Sleep(pause) }}
	wm, err := Write(context.Background(), path, 256<<10, gen, digest.New(), slow)
	require.NoError(t, err)
	assert.Equal(t, 4, wm.Chunks)
	assert.Less(t, wm.Elapsed, 4*pause)

	rm, _, err := Read(context.Background(), path, 256<<10, slow)
	require.NoError(t, err)
	assert.Equal(t, 4, rm.Chunks)
	assert.Less(t, rm.Elapsed, 4*pause)
}

func TestBufferSize(t *testing.T) {
	tests := []struct {
		chunk, total, want int64
	}{
		{chunk: 64 << 20, total: 2 << 30, want: 64 << 20},
		{chunk: 64 << 20, total: 64 << 20, want: 64 << 20},
		{chunk: 16 << 30, total: 1 << 20, want: 1 << 20},
		{chunk: 64 << 20, total: 10_000, want: 12288},
		{chunk: 64 << 20, total: 0, want: 4096},
		{chunk: 1000, total: 10, want: 1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bufferSize(tt.chunk, tt.total), "chunk=%d total=%d", tt.chunk, tt.total)
	}
}

func TestRead_HugeChunkSmallFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bin")
	_, want := writeFile(t, path, payload.Random, 10_000, 4096)

	m, got, err := Read(context.Background(), path, 10_000, Options{ChunkSize: 16 << 30})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, m.Chunks)
}
