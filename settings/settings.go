// Package settings loads drivecheck defaults from a YAML file, a .env file and
// DRIVECHECK_* environment variables, in increasing order of precedence.
// Command-line flags are applied on top by the caller.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"drivecheck/engine"
	"drivecheck/health"
	"drivecheck/workspace"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DRIVECHECK_"

// Settings mirrors the command-line flags.
type Settings struct {
	Target          string   `yaml:"target"`
	Size            string   `yaml:"size"`
	Chunk           string   `yaml:"chunk"`
	Pattern         string   `yaml:"pattern"`
	Samples         int      `yaml:"samples"`
	RandomFirst     *bool    `yaml:"random_first"`
	Keep            bool     `yaml:"keep"`
	Direct          bool     `yaml:"direct"`
	Dir             string   `yaml:"dir"`
	File            string   `yaml:"file"`
	Headroom        string   `yaml:"headroom"`
	Format          string   `yaml:"format"`
	LogFile         string   `yaml:"log_file"`
	MetricsTextfile string   `yaml:"metrics_textfile"`
	NoHealth        bool     `yaml:"no_health"`
	SmartTypes      []string `yaml:"smart_device_types"`
	TUI             bool     `yaml:"tui"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Target:     ".",
		Size:       "2GiB",
		Chunk:      "64MiB",
		Pattern:    "random",
		Samples:    engine.DefaultSampleCount,
		Dir:        workspace.DefaultDir,
		File:       workspace.DefaultFile,
		Headroom:   "128MiB",
		Format:     "text",
		SmartTypes: slices.Clone(health.DeviceTypes),
	}
}

// Load builds Settings from the defaults, the YAML file at path (skipped when
// path is empty), envFile (a missing default ".env" is ignored) and the
// process environment.
func Load(path, envFile string) (Settings, error) {
	s := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return s, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
			return s, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := loadEnvFile(envFile); err != nil {
		return s, err
	}
	if err := s.applyEnv(os.LookupEnv); err != nil {
		return s, err
	}
	return s, nil
}

func loadEnvFile(file string) error {
	if file == "" {
		file = ".env"
	}
	if err := godotenv.Load(file); err != nil {
		if file == ".env" && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file '%s': %w", file, err)
	}
	return nil
}

func (s *Settings) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
		return nil
	}

	str("TARGET", &s.Target)
	str("SIZE", &s.Size)
	str("CHUNK", &s.Chunk)
	str("PATTERN", &s.Pattern)
	str("DIR", &s.Dir)
	str("FILE", &s.File)
	str("HEADROOM", &s.Headroom)
	str("FORMAT", &s.Format)
	str("LOG_FILE", &s.LogFile)
	str("METRICS_TEXTFILE", &s.MetricsTextfile)

	if v, ok := lookup(EnvPrefix + "SAMPLES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sSAMPLES: %w", EnvPrefix, err)
		}
		s.Samples = n
	}
	if v, ok := lookup(EnvPrefix + "SMART_DEVICE_TYPES"); ok {
		s.SmartTypes = splitList(v)
	}
	if _, ok := lookup(EnvPrefix + "RANDOM_FIRST"); ok {
		var b bool
		if err := boolean("RANDOM_FIRST", &b); err != nil {
			return err
		}
		s.RandomFirst = &b
	}
	for key, dst := range map[string]*bool{
		"KEEP":      &s.Keep,
		"DIRECT":    &s.Direct,
		"NO_HEALTH": &s.NoHealth,
		"TUI":       &s.TUI,
	} {
		if err := boolean(key, dst); err != nil {
			return err
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseSize accepts plain byte counts, short binary suffixes (512k, 64m,
// 1.5g, 2t) and anything go-humanize understands (2GiB, 500 MB).
func ParseSize(s string) (int64, error) {
	ss := strings.TrimSpace(strings.ToLower(s))
	if ss == "" {
		return 0, fmt.Errorf("empty size")
	}
	num, mult := ss, float64(1)
	switch ss[len(ss)-1] {
	case 'k':
		mult = 1 << 10
	case 'm':
		mult = 1 << 20
	case 'g':
		mult = 1 << 30
	case 't':
		mult = 1 << 40
	}
	if mult != 1 {
		num = ss[:len(ss)-1]
	}
	if v, err := strconv.ParseFloat(num, 64); err == nil {
		if v < 0 {
			return 0, fmt.Errorf("negative size %q", s)
		}
		return int64(v * mult), nil
	}
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int64(n), nil
}
