// Package payload produces the bytes written to the test file.
package payload

import (
	crand "crypto/rand"
	"fmt"
	"math/rand/v2"
)

// Pattern selects what the generator emits.
type Pattern string

const (
	// Random emits independently generated, incompressible chunks.
	Random Pattern = "random"
	// Zeros emits a constant zero buffer.
	Zeros Pattern = "zeros"
)

// ParsePattern validates a pattern name.
func ParsePattern(s string) (Pattern, error) {
	switch Pattern(s) {
	case Random, Zeros:
		return Pattern(s), nil
	}
	return "", fmt.Errorf("unknown pattern %q (want random|zeros)", s)
}

// Generator lazily yields chunks summing to exactly Total bytes; the last
// chunk is truncated to the remainder.
//
// Random chunks are freshly allocated on every call so a returned slice is
// never overwritten by a later one. Zero chunks share one read-only buffer.
type Generator struct {
	pattern  Pattern
	total    int64
	chunk    int64
	produced int64
	rng      *rand.ChaCha8
	zero     []byte
}

// New returns a generator for total bytes in chunk-sized pieces.
func New(pattern Pattern, total, chunk int64) (*Generator, error) {
	if total < 0 {
		return nil, fmt.Errorf("negative total size %d", total)
	}
	if chunk <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunk)
	}
	g := &Generator{pattern: pattern, total: total, chunk: chunk}
	switch pattern {
	case Random:
		var seed [32]byte
		if _, err := crand.Read(seed[:]); err != nil {
			return nil, fmt.Errorf("seed payload generator: %w", err)
		}
		g.rng = rand.NewChaCha8(seed)
	case Zeros:
		g.zero = make([]byte, min(chunk, max(total, 1)))
	default:
		return nil, fmt.Errorf("unknown pattern %q", pattern)
	}
	return g, nil
}

// Next returns the next chunk, or ok=false once Total bytes have been produced.
func (g *Generator) Next() (chunk []byte, ok bool) {
	remaining := g.total - g.produced
	if remaining <= 0 {
		return nil, false
	}
	n := min(g.chunk, remaining)
	if g.pattern == Zeros {
		chunk = g.zero[:n]
	} else {
		chunk = make([]byte, n)
		_, _ = g.rng.Read(chunk)
	}
	g.produced += n
	return chunk, true
}

// Chunks returns how many chunks the generator yields in total.
func (g *Generator) Chunks() int64 {
	if g.total == 0 {
		return 0
	}
	return (g.total + g.chunk - 1) / g.chunk
}

// Produced returns the number of bytes handed out so far.
func (g *Generator) Produced() int64 {
	return g.produced
}

// Total returns the declared size.
func (g *Generator) Total() int64 {
	return g.total
}
