package engine

import (
	"fmt"

	"drivecheck/digest"
	"drivecheck/driveerr"
	"drivecheck/payload"
	"drivecheck/sampler"
)

// Mode selects which phases run.
type Mode string

const (
	ModeWriteVerify Mode = "write_verify"
	ModeVerifyOnly  Mode = "verify_only"
)

// Defaults used when a field is left zero by the caller.
const (
	DefaultSizeBytes   int64 = 2 << 30
	DefaultChunkSize   int64 = 64 << 20
	DefaultSampleCount       = 400
)

// Config is everything a run needs. It is built once at the command boundary
// and passed by value.
type Config struct {
	// Path is the test file.
	Path string `json:"path" yaml:"path"`
	// SizeBytes is the declared file size. Ignored in verify-only mode, where
	// the size on disk is used.
	SizeBytes   int64           `json:"size_bytes" yaml:"size_bytes"`
	ChunkSize   int64           `json:"chunk_size" yaml:"chunk_size"`
	Pattern     payload.Pattern `json:"pattern" yaml:"pattern"`
	// SampleCount is the number of random probe reads; zero means
	// DefaultSampleCount.
	SampleCount int             `json:"sample_count" yaml:"sample_count"`
	SampleSize  int64           `json:"sample_size" yaml:"sample_size"`
	VerifyOnly  bool            `json:"verify_only" yaml:"verify_only"`
	// RandomFirst runs the random probe before the sequential read. Nil means
	// "not set by the operator"; see EffectiveRandomFirst.
	RandomFirst *bool `json:"random_first,omitempty" yaml:"random_first,omitempty"`
	KeepFile    bool  `json:"keep_file" yaml:"keep_file"`
	// ExpectedDigest is a hex BLAKE2b-256 digest the read must match.
	ExpectedDigest string `json:"expected_digest,omitempty" yaml:"expected_digest,omitempty"`
	Direct         bool   `json:"direct" yaml:"direct"`
}

// Mode derives the run mode from VerifyOnly.
func (c Config) Mode() Mode {
	if c.VerifyOnly {
		return ModeVerifyOnly
	}
	return ModeWriteVerify
}

// EffectiveRandomFirst resolves the probe ordering. An explicit setting always
// wins. Unset, verify-only runs probe first so the sequential read cannot warm
// the page cache for the probe; write-verify runs probe last.
func (c Config) EffectiveRandomFirst() bool {
	if c.RandomFirst != nil {
		return *c.RandomFirst
	}
	return c.VerifyOnly
}

// WithDefaults fills zero fields with the defaults.
func (c Config) WithDefaults() Config {
	if c.SizeBytes == 0 && !c.VerifyOnly {
		c.SizeBytes = DefaultSizeBytes
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Pattern == "" {
		c.Pattern = payload.Random
	}
	if c.SampleCount == 0 {
		c.SampleCount = DefaultSampleCount
	}
	if c.SampleSize == 0 {
		c.SampleSize = sampler.DefaultSampleSize
	}
	return c
}

// Validate rejects configurations the core cannot run.
func (c Config) Validate() error {
	bad := func(format string, args ...any) error {
		return driveerr.Newf(driveerr.KindInvalidConfig, "config", c.Path, format, args...)
	}
	switch {
	case c.Path == "":
		return bad("path is required")
	case c.ChunkSize <= 0:
		return bad("chunk size must be positive, got %d", c.ChunkSize)
	case c.SampleCount < 0:
		return bad("sample count must not be negative, got %d", c.SampleCount)
	case c.SampleSize <= 0:
		return bad("sample size must be positive, got %d", c.SampleSize)
	}
	if !c.VerifyOnly {
		if c.SizeBytes <= 0 {
			return bad("size must be positive, got %d", c.SizeBytes)
		}
		if _, err := payload.ParsePattern(string(c.Pattern)); err != nil {
			return bad("%v", err)
		}
	}
	if c.ExpectedDigest != "" {
		if _, err := digest.Parse(c.ExpectedDigest); err != nil {
			return bad("expected digest: %v", err)
		}
	}
	return nil
}

func (c Config) expected() (*digest.Digest, error) {
	if c.ExpectedDigest == "" {
		return nil, nil
	}
	d, err := digest.Parse(c.ExpectedDigest)
	if err != nil {
		return nil, fmt.Errorf("expected digest: %w", err)
	}
	return &d, nil
}
