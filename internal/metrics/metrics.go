// Copyright 2026 The Rlsr Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics records per run build metrics in Prometheus format.
package metrics

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rlsr"

// Build outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the metrics of one run.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	builds        *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
	archiveBytes  *prometheus.CounterVec
	publishes     *prometheus.CounterVec
}

// New creates metrics registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Number of builds run, by release and outcome.",
		}, []string{"release", "outcome"}),
		buildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Build duration, from prehook to archive.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"release"}),
		archiveBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_bytes_total",
			Help:      "Total size of the archives produced.",
		}, []string{"release"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Number of publish attempts, by target and outcome.",
		}, []string{"target", "outcome"}),
	}

	m.registry.MustRegister(m.builds, m.buildDuration, m.archiveBytes, m.publishes)

	return m
}

// Registry returns the registry all metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveBuild records a finished build.
func (m *Metrics) ObserveBuild(release string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.builds.WithLabelValues(release, outcome(err)).Inc()
	m.buildDuration.WithLabelValues(release).Observe(d.Seconds())
}

// AddArchive adds the size of the archive at filename.
func (m *Metrics) AddArchive(release, filename string) error {
	if m == nil {
		return nil
	}
	fi, err := os.Stat(filename)
	if err != nil {
		return err
	}
	m.archiveBytes.WithLabelValues(release).Add(float64(fi.Size()))
	return nil
}

// ObservePublish records a publish attempt to target.
func (m *Metrics) ObservePublish(target string, err error) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(target, outcome(err)).Inc()
}

// WriteFile writes all metrics to filename in the text format read by
// the node exporter textfile collector.
func (m *Metrics) WriteFile(filename string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(filename, m.registry)
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
