// Package seqio streams a test file to and from a volume one chunk at a time
// and measures how long it took.
package seqio

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"drivecheck/devio"
	"drivecheck/digest"
	"drivecheck/driveerr"
	"drivecheck/stats"
)

// Source yields the chunks to write. payload.Generator satisfies it.
type Source interface {
	Next() ([]byte, bool)
}

// Measurement is one timed sequential pass.
type Measurement struct {
	Bytes    int64         `json:"bytes" yaml:"bytes"`
	Chunks   int           `json:"chunks" yaml:"chunks"`
	Elapsed  time.Duration `json:"elapsed_ns" yaml:"elapsed_ns"`
	Uncached bool          `json:"uncached" yaml:"uncached"`
}

// Throughput is Bytes/Elapsed, undefined for a zero duration.
func (m Measurement) Throughput() stats.Rate {
	return stats.NewRate(m.Bytes, m.Elapsed)
}

// Options tune a pass.
type Options struct {
	// ChunkSize is the size of each read; writes use whatever the Source yields.
	ChunkSize int64
	// Direct requests uncached reads when the chunk size allows it.
	Direct bool
	// Progress, when set, is called after every chunk with the bytes moved so
	// far. Time spent inside it is not counted in Elapsed.
	Progress func(done int64)
}

// progress reports done and returns how long the callback took, so the
// caller can keep observer time out of the measurement.
func (o Options) progress(done int64) time.Duration {
	if o.Progress == nil {
		return 0
	}
	t0 := time.Now()
	o.Progress(done)
	return time.Since(t0)
}

// Write creates or truncates path and writes every chunk from src into it,
// feeding each chunk to sum as well. The timed region covers the whole loop
// plus the final fsync so the OS write cache cannot hide device latency;
// progress callbacks are excluded.
//
// Cancellation of ctx is honoured between chunks; a chunk is never left half
// written by the loop itself.
func Write(ctx context.Context, path string, total int64, src Source, sum io.Writer, opts Options) (Measurement, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return Measurement{}, driveerr.New(driveerr.KindIOFailure, "write", path, err)
	}
	defer f.Close()

	var (
		m      Measurement
		paused time.Duration
	)
	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return m, driveerr.New(driveerr.KindInterrupted, "write", path, err)
		}
		chunk, ok := src.Next()
		if !ok {
			break
		}
		n, err := f.Write(chunk)
		m.Bytes += int64(n)
		if err != nil {
			return m, driveerr.New(driveerr.KindIOFailure, "write", path, err)
		}
		if n != len(chunk) {
			return m, driveerr.Newf(driveerr.KindIOFailure, "write", path, "short write: %d of %d bytes", n, len(chunk))
		}
		if _, err := sum.Write(chunk); err != nil {
			return m, driveerr.New(driveerr.KindIOFailure, "write", path, err)
		}
		m.Chunks++
		paused += opts.progress(m.Bytes)
	}
	if err := f.Sync(); err != nil {
		return m, driveerr.New(driveerr.KindIOFailure, "write", path, err)
	}
	m.Elapsed = time.Since(start) - paused

	if err := f.Close(); err != nil {
		return m, driveerr.New(driveerr.KindIOFailure, "write", path, err)
	}
	if m.Bytes != total {
		return m, driveerr.Newf(driveerr.KindIOFailure, "write", path, "wrote %d bytes, declared %d", m.Bytes, total)
	}
	return m, nil
}

// Read streams path until EOF in ChunkSize reads, hashing everything it sees.
// The file must hold exactly total bytes.
func Read(ctx context.Context, path string, total int64, opts Options) (Measurement, digest.Digest, error) {
	if opts.ChunkSize <= 0 {
		return Measurement{}, digest.Digest{}, driveerr.Newf(driveerr.KindInvalidConfig, "read", path, "chunk size must be positive")
	}
	direct := opts.Direct && devio.DirectCompatible(opts.ChunkSize)
	f, uncached, err := devio.OpenRead(path, direct)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Measurement{}, digest.Digest{}, driveerr.New(driveerr.KindVerifyTargetMissing, "read", path, err)
		}
		return Measurement{}, digest.Digest{}, driveerr.New(driveerr.KindIOFailure, "read", path, err)
	}
	defer f.Close()
	if uncached {
		_ = devio.DropCache(f)
	}

	acc := digest.New()
	buf := devio.Buffer(int(bufferSize(opts.ChunkSize, total)), uncached)
	m := Measurement{Uncached: uncached}
	var paused time.Duration
	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return m, digest.Digest{}, driveerr.New(driveerr.KindInterrupted, "read", path, err)
		}
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			_, _ = acc.Write(buf[:n])
			m.Bytes += int64(n)
			m.Chunks++
			paused += opts.progress(m.Bytes)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return m, digest.Digest{}, driveerr.New(driveerr.KindIOFailure, "read", path, err)
		}
	}
	m.Elapsed = time.Since(start) - paused

	if m.Bytes != total {
		return m, digest.Digest{}, driveerr.Newf(driveerr.KindIOFailure, "read", path, "read %d bytes, expected %d", m.Bytes, total)
	}
	return m, acc.Sum(), nil
}

// bufferSize caps a read buffer at total rounded up to devio.Alignment, so a
// chunk far larger than the file does not allocate the whole chunk.
func bufferSize(chunk, total int64) int64 {
	if total >= chunk {
		return chunk
	}
	n := (max(total, devio.Alignment) + devio.Alignment - 1) / devio.Alignment * devio.Alignment
	return min(n, chunk)
}
