package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"drivecheck/digest"
	"drivecheck/driveerr"
	"drivecheck/health"
	"drivecheck/sampler"
	"drivecheck/seqio"
)

// Verdict is the integrity outcome of a run.
type Verdict string

const (
	// VerdictPass: the read digest matched a reference digest.
	VerdictPass Verdict = "pass"
	// VerdictFail: the read digest differed from a reference digest.
	VerdictFail Verdict = "fail"
	// VerdictUnverified: the file read back completely but there was nothing
	// to compare it against. This says nothing about corruption.
	VerdictUnverified Verdict = "read_ok_unverified"
)

// Reference records what the read digest was compared with.
type Reference string

const (
	ReferenceWrite    Reference = "write_digest"
	ReferenceExpected Reference = "expected_digest"
	ReferenceNone     Reference = "none"
)

// Integrity is the digest comparison of a run.
type Integrity struct {
	Verdict     Verdict        `json:"verdict" yaml:"verdict"`
	Reference   Reference      `json:"reference" yaml:"reference"`
	WriteDigest *digest.Digest `json:"write_digest,omitempty" yaml:"write_digest,omitempty"`
	ReadDigest  digest.Digest  `json:"read_digest" yaml:"read_digest"`
	Expected    *digest.Digest `json:"expected_digest,omitempty" yaml:"expected_digest,omitempty"`
	Mismatch    bool           `json:"mismatch" yaml:"mismatch"`
}

// RunResult is the complete record of one run. It is not modified after Run
// returns it.
type RunResult struct {
	ID          uuid.UUID          `json:"id" yaml:"id"`
	Config      Config             `json:"config" yaml:"config"`
	Mode        Mode               `json:"mode" yaml:"mode"`
	RandomFirst bool               `json:"random_first" yaml:"random_first"`
	StartedAt   time.Time          `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time          `json:"finished_at" yaml:"finished_at"`
	FileSize    int64              `json:"file_size" yaml:"file_size"`
	Write       *seqio.Measurement `json:"write,omitempty" yaml:"write,omitempty"`
	Read        *seqio.Measurement `json:"read,omitempty" yaml:"read,omitempty"`
	Random      *sampler.SampleSet `json:"random,omitempty" yaml:"random,omitempty"`
	Integrity   Integrity          `json:"integrity" yaml:"integrity"`
	Health      []health.Report    `json:"health,omitempty" yaml:"health,omitempty"`
	// CacheSuspected flags read numbers that look served from the OS cache.
	CacheSuspected bool `json:"cache_suspected" yaml:"cache_suspected"`
}

// Passed reports whether the run found no integrity failure. An unverified
// verify-only run passes; check Integrity.Verdict to tell the two apart.
func (r *RunResult) Passed() bool {
	return r.Integrity.Verdict != VerdictFail
}

// IntegrityError returns a DigestMismatch error when the verdict failed.
func (r *RunResult) IntegrityError() error {
	if !r.Integrity.Mismatch {
		return nil
	}
	want := r.Integrity.Expected
	if r.Integrity.WriteDigest != nil && *r.Integrity.WriteDigest != r.Integrity.ReadDigest {
		want = r.Integrity.WriteDigest
	}
	return driveerr.Newf(driveerr.KindDigestMismatch, "verify", r.Config.Path,
		"read digest %s, want %s", r.Integrity.ReadDigest, want)
}

// Duration is the wall-clock length of the run.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *RunResult) judge(expected *digest.Digest) {
	in := &r.Integrity
	in.Expected = expected
	switch {
	case in.WriteDigest != nil:
		in.Reference = ReferenceWrite
		in.Mismatch = *in.WriteDigest != in.ReadDigest || (expected != nil && *expected != in.ReadDigest)
	case expected != nil:
		in.Reference = ReferenceExpected
		in.Mismatch = *expected != in.ReadDigest
	default:
		in.Reference = ReferenceNone
		in.Verdict = VerdictUnverified
		return
	}
	if in.Mismatch {
		in.Verdict = VerdictFail
	} else {
		in.Verdict = VerdictPass
	}
}

// Cache heuristic thresholds.
const (
	cacheReadFloor     = 250 << 20 // bytes/s
	cacheReadOverWrite = 2.5
	cacheRandomAvg     = 150 * time.Microsecond
	cacheRandomRateMin = 150 << 20 // bytes/s
)

// looksCached flags a sequential read far faster than the write together
// with random reads answered in well under a device seek time.
func (r *RunResult) looksCached() bool {
	if r.Random == nil || !r.Random.HasStats {
		return false
	}
	fastProbe := r.Random.Average < cacheRandomAvg
	if r.Write == nil {
		return fastProbe
	}
	if r.Read == nil {
		return false
	}
	read, write := r.Read.Throughput(), r.Write.Throughput()
	if !read.Defined || !write.Defined {
		return false
	}
	floor := max(float64(cacheReadFloor), write.BytesPerSecond*cacheReadOverWrite)
	return read.BytesPerSecond > floor && fastProbe && r.Random.Throughput.BytesPerSecond > cacheRandomRateMin
}

// RunError is returned when a phase fails fatally. Partial holds whatever the
// phases before the failure produced; it has no verdict.
type RunError struct {
	Phase   Phase
	Err     error
	Partial *RunResult
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s phase: %v", e.Phase, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
