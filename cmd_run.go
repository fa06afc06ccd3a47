package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"drivecheck/digest"
	"drivecheck/driveerr"
	"drivecheck/engine"
	"drivecheck/health"
	"drivecheck/metrics"
	"drivecheck/payload"
	"drivecheck/report"
	"drivecheck/runlog"
	"drivecheck/screen"
	"drivecheck/settings"
	"drivecheck/workspace"
)

type runFlags struct {
	configFile string
	envFile    string
	expect     string

	size, chunk, pattern string
	samples              int
	randomFirst          bool
	keep, direct         bool
	dir, file, headroom  string
	format               string
	logFile              string
	metricsTextfile      string
	noHealth             bool
	smartTypes           []string
	tui                  bool
}

func (f *runFlags) register(fs *pflag.FlagSet, verifyOnly bool) {
	def := settings.Defaults()
	fs.StringVar(&f.configFile, "config", "", "YAML settings file")
	fs.StringVar(&f.envFile, "env-file", "", "dotenv file with DRIVECHECK_* overrides (default .env if present)")
	fs.StringVar(&f.expect, "expect", "", "hex BLAKE2b-256 digest the file must match")
	if !verifyOnly {
		fs.StringVar(&f.size, "size", def.Size, "test file size (e.g. 2GiB, 512m)")
		fs.StringVar(&f.pattern, "pattern", def.Pattern, "payload: random or zeros")
		fs.StringVar(&f.headroom, "headroom", def.Headroom, "free space to leave on the volume")
	}
	fs.StringVar(&f.chunk, "chunk", def.Chunk, "sequential I/O chunk size")
	fs.IntVar(&f.samples, "samples", def.Samples, "number of random 4 KiB reads")
	fs.BoolVar(&f.randomFirst, "random-first", false, "run the random probe before the sequential read")
	fs.BoolVar(&f.keep, "keep", false, "keep the test file and its digest sidecar")
	fs.BoolVar(&f.direct, "direct", false, "bypass the OS cache for reads where supported")
	fs.StringVar(&f.dir, "dir", def.Dir, "test directory name on the target")
	fs.StringVar(&f.file, "file", def.File, "test file name")
	fs.StringVarP(&f.format, "format", "o", def.Format, "output: text, json or yaml")
	fs.StringVar(&f.logFile, "log-file", "", "append each result as a JSON line to this file")
	fs.StringVar(&f.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics for the run to this file")
	fs.BoolVar(&f.noHealth, "no-health", false, "skip SMART and OS health probes")
	fs.StringSliceVar(&f.smartTypes, "smart-types", def.SmartTypes, "smartctl -d types to try, in order")
	fs.BoolVar(&f.tui, "tui", false, "full-screen progress display")
}

// merge applies explicitly set flags on top of s.
func (f *runFlags) merge(fs *pflag.FlagSet, s *settings.Settings) {
	str := map[string]*string{
		"size": &s.Size, "chunk": &s.Chunk, "pattern": &s.Pattern,
		"dir": &s.Dir, "file": &s.File, "headroom": &s.Headroom,
		"format": &s.Format, "log-file": &s.LogFile, "metrics-textfile": &s.MetricsTextfile,
	}
	val := map[string]string{
		"size": f.size, "chunk": f.chunk, "pattern": f.pattern,
		"dir": f.dir, "file": f.file, "headroom": f.headroom,
		"format": f.format, "log-file": f.logFile, "metrics-textfile": f.metricsTextfile,
	}
	for name, dst := range str {
		if fs.Changed(name) {
			*dst = val[name]
		}
	}
	if fs.Changed("samples") {
		s.Samples = f.samples
	}
	if fs.Changed("random-first") {
		b := f.randomFirst
		s.RandomFirst = &b
	}
	if fs.Changed("keep") {
		s.Keep = f.keep
	}
	if fs.Changed("direct") {
		s.Direct = f.direct
	}
	if fs.Changed("no-health") {
		s.NoHealth = f.noHealth
	}
	if fs.Changed("smart-types") {
		s.SmartTypes = f.smartTypes
	}
	if fs.Changed("tui") {
		s.TUI = f.tui
	}
}

// plan is a fully resolved invocation.
type plan struct {
	settings  settings.Settings
	workspace workspace.Options
	config    engine.Config
}

func buildPlan(s settings.Settings, target string, verifyOnly bool, expect string) (plan, error) {
	bad := func(err error) error {
		return driveerr.New(driveerr.KindInvalidConfig, "config", target, err)
	}
	if target == "" {
		target = s.Target
	}
	p := plan{settings: s}
	p.config = engine.Config{
		SampleCount:    s.Samples,
		RandomFirst:    s.RandomFirst,
		KeepFile:       s.Keep || verifyOnly,
		ExpectedDigest: expect,
		Direct:         s.Direct,
		VerifyOnly:     verifyOnly,
	}
	if err := expectFlagDigest(expect); err != nil {
		return p, bad(fmt.Errorf("expect: %w", err))
	}
	var err error
	if p.config.ChunkSize, err = settings.ParseSize(s.Chunk); err != nil {
		return p, bad(fmt.Errorf("chunk: %w", err))
	}
	if !verifyOnly {
		if p.config.SizeBytes, err = settings.ParseSize(s.Size); err != nil {
			return p, bad(fmt.Errorf("size: %w", err))
		}
		if p.config.Pattern, err = payload.ParsePattern(s.Pattern); err != nil {
			return p, bad(err)
		}
	}
	headroom := workspace.DefaultHeadroom
	if s.Headroom != "" {
		if headroom, err = settings.ParseSize(s.Headroom); err != nil {
			return p, bad(fmt.Errorf("headroom: %w", err))
		}
	}
	p.workspace = workspace.Options{
		Root:       target,
		DirName:    s.Dir,
		FileName:   s.File,
		Size:       p.config.SizeBytes,
		Headroom:   headroom,
		VerifyOnly: verifyOnly,
	}
	return p, nil
}

func newRunCmd(verbose *bool, verifyOnly bool) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [TARGET]",
		Short: "Write, read back and verify a test file on TARGET (default: current directory)",
		Args:  cobra.MaximumNArgs(1),
	}
	if verifyOnly {
		cmd.Use = "verify [TARGET]"
		cmd.Short = "Read back and time an existing test file on TARGET without writing"
	}
	f.register(cmd.Flags(), verifyOnly)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load(f.configFile, f.envFile)
		if err != nil {
			return driveerr.New(driveerr.KindInvalidConfig, "config", f.configFile, err)
		}
		f.merge(cmd.Flags(), &s)
		var target string
		if len(args) == 1 {
			target = args[0]
		}
		p, err := buildPlan(s, target, verifyOnly, f.expect)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return execute(ctx, p, *verbose, cmd.OutOrStdout(), cmd.ErrOrStderr())
	}
	return cmd
}

func execute(ctx context.Context, p plan, verbose bool, stdout, stderr io.Writer) error {
	s := p.settings
	logOut := stderr
	var (
		ui       *screen.UI
		observer engine.Observer = report.NewProgressObserver(stderr)
	)
	if s.TUI {
		var err error
		ui, err = screen.NewUI()
		if err != nil {
			return fmt.Errorf("start screen: %w", err)
		}
		logOut = io.Discard
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-ui.Done():
				cancel()
			case <-ctx.Done():
			}
		}()
	}
	log := newLogger(logOut, verbose)

	layout, err := workspace.Prepare(p.workspace, workspace.DiskFree)
	if err != nil {
		closeUI(ui)
		return err
	}
	cfg := p.config
	cfg.Path = layout.File
	log.WithFields(logrus.Fields{"dir": layout.Dir, "free": layout.Free}).Debug("workspace ready")

	if cfg.VerifyOnly && cfg.ExpectedDigest == "" {
		d, ok, err := workspace.LoadDigest(cfg.Path)
		switch {
		case err != nil:
			log.WithError(err).Warn("ignoring unreadable digest sidecar")
		case ok:
			cfg.ExpectedDigest = d.String()
			log.WithField("sidecar", workspace.SidecarPath(cfg.Path)).Info("verifying against saved digest")
		}
	}

	var providers []health.Provider
	if !s.NoHealth {
		providers = healthProviders(s.SmartTypes)
	}
	if ui != nil {
		observer = screen.NewDashboard(ui, cfg, len(providers) > 0)
	}
	runner := engine.NewRunner(log,
		engine.WithProviders(providers...),
		engine.WithObserver(observer),
	)
	res, runErr := runner.Run(ctx, cfg)
	closeUI(ui)

	if runErr != nil {
		var re *engine.RunError
		if errors.As(runErr, &re) {
			if !cfg.VerifyOnly {
				if err := workspace.Cleanup(cfg.Path, cfg.KeepFile); err != nil {
					log.WithError(err).Warn("cleanup failed")
				}
			}
			report.PrintPartial(stderr, re)
		}
		return runErr
	}

	if cfg.KeepFile && res.Integrity.WriteDigest != nil {
		if err := workspace.SaveDigest(cfg.Path, *res.Integrity.WriteDigest); err != nil {
			log.WithError(err).Warn("could not save digest sidecar")
		}
	}
	if err := workspace.Cleanup(cfg.Path, cfg.KeepFile); err != nil {
		log.WithError(err).Warn("cleanup failed")
	}

	if s.LogFile != "" {
		if err := appendRunLog(s.LogFile, res); err != nil {
			log.WithError(err).Error("run log")
		}
	}
	if s.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(s.MetricsTextfile, res); err != nil {
			log.WithError(err).Error("metrics textfile")
		}
	}
	if err := report.Render(stdout, s.Format, res); err != nil {
		return err
	}
	return res.IntegrityError()
}

func closeUI(ui *screen.UI) {
	if ui != nil {
		ui.Close()
	}
}

func healthProviders(smartTypes []string) []health.Provider {
	return health.Defaults(health.ExecRunner(health.DefaultTimeout), smartTypes...)
}

func appendRunLog(path string, res *engine.RunResult) error {
	l, err := runlog.Open(path)
	if err != nil {
		return err
	}
	if err := l.Append(res); err != nil {
		_ = l.Close()
		return err
	}
	return l.Close()
}

// expectFlagDigest validates --expect early so a typo fails before any I/O.
func expectFlagDigest(v string) error {
	if v == "" {
		return nil
	}
	_, err := digest.Parse(v)
	return err
}
