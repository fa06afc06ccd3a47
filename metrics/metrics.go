// Package metrics exports a finished run in the Prometheus text format so
// node_exporter's textfile collector can pick it up.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"drivecheck/engine"
	"drivecheck/health"
	"drivecheck/seqio"
)

const namespace = "drivecheck"

// Registry builds a registry holding the gauges for res. Every series carries
// a path label naming the test file.
func Registry(res *engine.RunResult) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	r := prometheus.WrapRegistererWith(prometheus.Labels{"path": res.Config.Path}, reg)

	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_info",
		Help:      "Constant 1, labelled with the run identity and outcome.",
	}, []string{"run_id", "mode", "verdict", "reference"})
	info.WithLabelValues(res.ID.String(), string(res.Mode), string(res.Integrity.Verdict), string(res.Integrity.Reference)).Set(1)

	integrityOK := gauge("integrity_ok", "1 unless the read digest differed from a reference digest.")
	integrityOK.Set(boolValue(res.Passed()))

	cached := gauge("cache_suspected", "1 when read numbers look served from the OS page cache.")
	cached.Set(boolValue(res.CacheSuspected))

	finished := gauge("run_timestamp_seconds", "Unix time the run finished.")
	finished.Set(float64(res.FinishedAt.UnixNano()) / 1e9)

	duration := gauge("run_duration_seconds", "Wall-clock length of the run.")
	duration.Set(res.Duration().Seconds())

	fileSize := gauge("file_size_bytes", "Size of the test file.")
	fileSize.Set(float64(res.FileSize))

	seqBytes := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sequential_bytes",
		Help:      "Bytes moved by a sequential phase.",
	}, []string{"phase"})
	seqRate := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sequential_bytes_per_second",
		Help:      "Sequential throughput; absent when the phase took no measurable time.",
	}, []string{"phase"})
	for _, p := range []struct {
		name string
		m    *seqio.Measurement
	}{{"write", res.Write}, {"read", res.Read}} {
		if p.m == nil {
			continue
		}
		seqBytes.WithLabelValues(p.name).Set(float64(p.m.Bytes))
		if rate := p.m.Throughput(); rate.Defined {
			seqRate.WithLabelValues(p.name).Set(rate.BytesPerSecond)
		}
	}

	collectors := []prometheus.Collector{info, integrityOK, cached, finished, duration, fileSize, seqBytes, seqRate}

	if s := res.Random; s != nil {
		samples := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "random_samples",
			Help:      "Random probe reads requested and achieved.",
		}, []string{"kind"})
		samples.WithLabelValues("requested").Set(float64(s.Requested))
		samples.WithLabelValues("achieved").Set(float64(s.Achieved))
		collectors = append(collectors, samples)

		if s.HasStats {
			latency := prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "random_read_latency_seconds",
				Help:      "Random 4 KiB read latency.",
			}, []string{"stat"})
			latency.WithLabelValues("avg").Set(s.Average.Seconds())
			latency.WithLabelValues("p95").Set(s.P95.Seconds())

			rate := gauge("random_bytes_per_second", "Aggregate random read throughput.")
			rate.Set(s.Throughput.BytesPerSecond)
			collectors = append(collectors, latency, rate)
		}
	}

	if len(res.Health) > 0 {
		up := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_provider_up",
			Help:      "1 when the health provider returned data.",
		}, []string{"provider"})
		for _, h := range res.Health {
			up.WithLabelValues(h.Provider).Set(boolValue(h.Status == health.StatusOK))
		}
		collectors = append(collectors, up)
	}

	r.MustRegister(collectors...)
	return reg
}

// WriteTextfile writes the metrics for res to path atomically.
func WriteTextfile(path string, res *engine.RunResult) error {
	return prometheus.WriteToTextfile(path, Registry(res))
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
