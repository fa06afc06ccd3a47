// Package digest computes the BLAKE2b-256 digest of a stream incrementally,
// so neither the write nor the read phase ever holds the whole file.
package digest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// Size is the digest length in bytes.
const Size = blake2b.Size256

// ErrFinalized is returned when bytes are fed after Sum.
var ErrFinalized = errors.New("digest already finalized")

// Digest is a finalized BLAKE2b-256 value.
type Digest [Size]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether d is the zero value (no digest).
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// MarshalText encodes the digest as lowercase hex.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses a hex digest.
func (d *Digest) UnmarshalText(b []byte) error {
	p, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = p
	return nil
}

// Parse decodes a 64-character hex digest.
func Parse(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("parse digest: %w", err)
	}
	if len(b) != Size {
		return d, fmt.Errorf("parse digest: want %d bytes, got %d", Size, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// Accumulator is an io.Writer that hashes everything written to it. Each
// instance owns its hash state; instances never share anything.
type Accumulator struct {
	h         hash.Hash
	n         int64
	finalized bool
	sum       Digest
}

// New returns an empty accumulator.
func New() *Accumulator {
	// New256 only fails for keys longer than 64 bytes.
	h, _ := blake2b.New256(nil)
	return &Accumulator{h: h}
}

// Write feeds p into the digest.
func (a *Accumulator) Write(p []byte) (int, error) {
	if a.finalized {
		return 0, ErrFinalized
	}
	n, _ := a.h.Write(p)
	a.n += int64(n)
	return n, nil
}

// Sum finalizes the accumulator on first call and returns the same digest on
// every later call.
func (a *Accumulator) Sum() Digest {
	if !a.finalized {
		copy(a.sum[:], a.h.Sum(nil))
		a.finalized = true
	}
	return a.sum
}

// Len returns the number of bytes hashed.
func (a *Accumulator) Len() int64 {
	return a.n
}
