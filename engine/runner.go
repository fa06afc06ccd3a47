// Package engine sequences a drive check: optional write, sequential read,
// random probe, digest comparison and health snapshots, and assembles the
// RunResult.
package engine

import (
	"context"
	"errors"
	"io/fs"
	"math/rand/v2"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"drivecheck/device"
	"drivecheck/digest"
	"drivecheck/driveerr"
	"drivecheck/health"
	"drivecheck/payload"
	"drivecheck/sampler"
	"drivecheck/seqio"
)

// Runner executes runs. One Runner may execute many runs, one at a time.
type Runner struct {
	log       logrus.FieldLogger
	providers []health.Provider
	observer  Observer
	rng       *rand.Rand
	now       func() time.Time
	resolve   func(ctx context.Context, path string) (health.Target, error)
}

// Option configures a Runner.
type Option func(*Runner)

// WithProviders sets the health providers probed at the start of each run.
func WithProviders(ps ...health.Provider) Option {
	return func(r *Runner) { r.providers = ps }
}

// WithObserver receives phase notifications.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithRand fixes the source of random probe offsets.
func WithRand(rng *rand.Rand) Option {
	return func(r *Runner) { r.rng = rng }
}

// WithClock replaces time.Now for the run timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithResolver replaces device.Resolve for mapping the test path to the
// device handed to health providers.
func WithResolver(fn func(ctx context.Context, path string) (health.Target, error)) Option {
	return func(r *Runner) { r.resolve = fn }
}

func NewRunner(log logrus.FieldLogger, opts ...Option) *Runner {
	r := &Runner{
		log:      log,
		observer: NopObserver{},
		now:      time.Now,
		resolve:  device.Resolve,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes one check described by cfg.
//
// Phase order:
//
//	write_verify:                 write, read, random   (random before read when RandomFirst is set)
//	verify_only, random first:    random, read
//	verify_only, random last:     read, random
//
// Health providers run before any I/O so their own device traffic does not
// land inside a measurement. A digest mismatch is recorded in the result and
// is not an error; every other failure aborts the run with a *RunError.
func (r *Runner) Run(ctx context.Context, cfg Config) (*RunResult, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	expected, err := cfg.expected()
	if err != nil {
		return nil, driveerr.New(driveerr.KindInvalidConfig, "config", cfg.Path, err)
	}

	res := &RunResult{
		ID:          uuid.New(),
		Config:      cfg,
		Mode:        cfg.Mode(),
		RandomFirst: cfg.EffectiveRandomFirst(),
		StartedAt:   r.now(),
	}
	log := r.log.WithFields(logrus.Fields{"run": res.ID.String(), "mode": res.Mode, "path": cfg.Path})
	log.WithFields(logrus.Fields{
		"size":         cfg.SizeBytes,
		"chunk":        cfg.ChunkSize,
		"pattern":      cfg.Pattern,
		"samples":      cfg.SampleCount,
		"random_first": res.RandomFirst,
		"direct":       cfg.Direct,
	}).Info("run starting")

	r.probeHealth(ctx, log, cfg.Path, res)

	if res.Mode == ModeWriteVerify {
		if err := r.write(ctx, log, cfg, res); err != nil {
			return nil, r.abort(log, PhaseWrite, err, res)
		}
		res.FileSize = res.Write.Bytes
	} else {
		info, err := os.Stat(cfg.Path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, r.abort(log, PhaseRead, driveerr.New(driveerr.KindVerifyTargetMissing, "verify", cfg.Path, err), res)
		case err != nil:
			return nil, r.abort(log, PhaseRead, driveerr.New(driveerr.KindIOFailure, "verify", cfg.Path, err), res)
		case !info.Mode().IsRegular():
			return nil, r.abort(log, PhaseRead, driveerr.Newf(driveerr.KindVerifyTargetMissing, "verify", cfg.Path, "not a regular file"), res)
		}
		res.FileSize = info.Size()
	}

	phases := []Phase{PhaseRead, PhaseRandom}
	if res.RandomFirst {
		phases = []Phase{PhaseRandom, PhaseRead}
	}
	for _, p := range phases {
		var err error
		if p == PhaseRead {
			err = r.read(ctx, log, cfg, res)
		} else {
			err = r.sample(ctx, log, cfg, res)
		}
		if err != nil {
			return nil, r.abort(log, p, err, res)
		}
	}

	res.judge(expected)
	res.CacheSuspected = res.looksCached()
	res.FinishedAt = r.now()

	entry := log.WithFields(logrus.Fields{
		"verdict":   res.Integrity.Verdict,
		"reference": res.Integrity.Reference,
		"duration":  res.Duration(),
	})
	if res.Integrity.Mismatch {
		entry.WithField("read_digest", res.Integrity.ReadDigest.String()).Error("digest mismatch")
	} else {
		entry.Info("run finished")
	}
	return res, nil
}

func (r *Runner) probeHealth(ctx context.Context, log logrus.FieldLogger, path string, res *RunResult) {
	if len(r.providers) == 0 {
		return
	}
	r.observer.PhaseStarted(PhaseHealth, int64(len(r.providers)))
	target, err := r.resolve(ctx, path)
	if err != nil {
		log.WithError(err).Debug("could not resolve device for health probes")
		target.Path = path
	}
	res.Health = health.ProbeAll(ctx, log, r.providers, target)
	r.observer.PhaseProgress(PhaseHealth, int64(len(res.Health)))
	r.observer.PhaseFinished(PhaseHealth, nil)
}

func (r *Runner) write(ctx context.Context, log logrus.FieldLogger, cfg Config, res *RunResult) error {
	gen, err := payload.New(cfg.Pattern, cfg.SizeBytes, cfg.ChunkSize)
	if err != nil {
		return driveerr.New(driveerr.KindInvalidConfig, "write", cfg.Path, err)
	}
	acc := digest.New()
	r.observer.PhaseStarted(PhaseWrite, cfg.SizeBytes)
	m, err := seqio.Write(ctx, cfg.Path, cfg.SizeBytes, gen, acc, seqio.Options{
		ChunkSize: cfg.ChunkSize,
		Progress:  func(done int64) { r.observer.PhaseProgress(PhaseWrite, done) },
	})
	r.observer.PhaseFinished(PhaseWrite, err)
	if err != nil {
		return err
	}
	res.Write = &m
	sum := acc.Sum()
	res.Integrity.WriteDigest = &sum
	log.WithFields(logrus.Fields{
		"bytes":      m.Bytes,
		"chunks":     m.Chunks,
		"elapsed":    m.Elapsed,
		"throughput": m.Throughput().String(),
	}).Info("write finished")
	return nil
}

func (r *Runner) read(ctx context.Context, log logrus.FieldLogger, cfg Config, res *RunResult) error {
	r.observer.PhaseStarted(PhaseRead, res.FileSize)
	m, sum, err := seqio.Read(ctx, cfg.Path, res.FileSize, seqio.Options{
		ChunkSize: cfg.ChunkSize,
		Direct:    cfg.Direct,
		Progress:  func(done int64) { r.observer.PhaseProgress(PhaseRead, done) },
	})
	r.observer.PhaseFinished(PhaseRead, err)
	if err != nil {
		return err
	}
	res.Read = &m
	res.Integrity.ReadDigest = sum
	if cfg.Direct && !m.Uncached {
		log.Info("uncached reads not available here, sequential read used the page cache")
	}
	log.WithFields(logrus.Fields{
		"bytes":      m.Bytes,
		"chunks":     m.Chunks,
		"elapsed":    m.Elapsed,
		"throughput": m.Throughput().String(),
	}).Info("read finished")
	return nil
}

func (r *Runner) sample(ctx context.Context, log logrus.FieldLogger, cfg Config, res *RunResult) error {
	r.observer.PhaseStarted(PhaseRandom, int64(cfg.SampleCount))
	set, err := sampler.Sample(ctx, cfg.Path, res.FileSize, sampler.Options{
		SampleSize: cfg.SampleSize,
		Count:      cfg.SampleCount,
		Direct:     cfg.Direct,
		Rand:       r.rng,
		Progress:   func(done int) { r.observer.PhaseProgress(PhaseRandom, int64(done)) },
	})
	r.observer.PhaseFinished(PhaseRandom, err)
	if err != nil {
		return err
	}
	res.Random = &set
	fields := logrus.Fields{"requested": set.Requested, "achieved": set.Achieved}
	if set.HasStats {
		fields["avg"] = set.Average
		fields["p95"] = set.P95
		fields["throughput"] = set.Throughput.String()
	}
	log.WithFields(fields).Info("random probe finished")
	return nil
}

func (r *Runner) abort(log logrus.FieldLogger, p Phase, err error, res *RunResult) error {
	res.FinishedAt = r.now()
	log.WithError(err).WithField("phase", p).Error("run aborted")
	return &RunError{Phase: p, Err: err, Partial: res}
}
