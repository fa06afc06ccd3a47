// Package health collects best-effort device health snapshots from external
// diagnostic tools. Nothing here is ever fatal to a run: a provider that
// cannot produce data reports itself unavailable with a reason.
package health

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"drivecheck/device"
)

// Status is the provider-level outcome.
type Status string

const (
	StatusOK          Status = "ok"
	StatusUnavailable Status = "unavailable"
)

// Report is one provider's payload. Payload is free-form text and is passed
// through untouched.
type Report struct {
	Provider string        `json:"provider" yaml:"provider"`
	Status   Status        `json:"status" yaml:"status"`
	Source   string        `json:"source,omitempty" yaml:"source,omitempty"`
	Payload  string        `json:"payload,omitempty" yaml:"payload,omitempty"`
	Reason   string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	Elapsed  time.Duration `json:"elapsed_ns" yaml:"elapsed_ns"`
}

// OK reports a successful probe.
func OK(provider, source, payload string) Report {
	return Report{Provider: provider, Status: StatusOK, Source: source, Payload: payload}
}

// Unavailable reports a probe that produced nothing usable.
func Unavailable(provider, reason string) Report {
	return Report{Provider: provider, Status: StatusUnavailable, Reason: reason}
}

// Available reports whether the probe produced a payload.
func (r Report) Available() bool { return r.Status == StatusOK }

// Target identifies the volume under test.
type Target = device.Info

// Provider is one source of health data.
type Provider interface {
	Name() string
	Probe(ctx context.Context, t Target) Report
}

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// DefaultTimeout bounds every external command.
const DefaultTimeout = 15 * time.Second

// ExecRunner runs commands through os/exec with a per-call timeout.
func ExecRunner(timeout time.Duration) Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return func(ctx context.Context, name string, args ...string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
		return string(out), err
	}
}

// Defaults returns the providers available on every platform, in the order
// they are probed. smartTypes, when given, replaces DeviceTypes for smartctl.
func Defaults(run Runner, smartTypes ...string) []Provider {
	smart := NewSmartctl(run)
	if len(smartTypes) > 0 {
		smart.DeviceTypes = smartTypes
	}
	return []Provider{
		NewDiskManagement(run),
		NewReliability(run),
		smart,
	}
}

// ProbeAll runs every provider in order and returns their reports. A nil
// provider list yields nil.
func ProbeAll(ctx context.Context, log logrus.FieldLogger, providers []Provider, t Target) []Report {
	if len(providers) == 0 {
		return nil
	}
	reports := make([]Report, 0, len(providers))
	for _, p := range providers {
		if ctx.Err() != nil {
			reports = append(reports, Unavailable(p.Name(), "cancelled"))
			continue
		}
		start := time.Now()
		r := p.Probe(ctx, t)
		r.Provider = p.Name()
		r.Elapsed = time.Since(start)
		entry := log.WithFields(logrus.Fields{"provider": r.Provider, "status": r.Status, "elapsed": r.Elapsed})
		if r.Available() {
			entry.Debug("health probe finished")
		} else {
			entry.WithField("reason", r.Reason).Info("health probe unavailable")
		}
		reports = append(reports, r)
	}
	return reports
}

// KeyLines returns the trimmed lines of out that contain any of keys, at most
// limit of them (no limit when limit <= 0).
func KeyLines(out string, keys []string, limit int) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, k := range keys {
			if strings.Contains(line, k) {
				lines = append(lines, line)
				break
			}
		}
		if limit > 0 && len(lines) >= limit {
			break
		}
	}
	return lines
}

func firstChars(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
