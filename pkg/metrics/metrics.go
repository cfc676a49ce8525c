// Package metrics records conversion statistics with Prometheus collectors.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// File outcomes.
const (
	StatusConverted = "converted"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// Chunk outcomes.
const (
	ChunkConverted = "converted"
	ChunkDropped   = "dropped"
)

// Metrics holds the conversion collectors. Every instance owns its registry
// so tests and repeated runs do not collide.
type Metrics struct {
	registry *prometheus.Registry

	filesTotal   *prometheus.CounterVec
	chunksTotal  *prometheus.CounterVec
	bytesRead    prometheus.Counter
	bytesWritten prometheus.Counter
	fileDuration *prometheus.HistogramVec
	inFlight     prometheus.Gauge
}

// NewMetrics creates and registers the conversion collectors
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		filesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linear_tools_files_total",
				Help: "Region files processed, by outcome",
			},
			[]string{"status"},
		),

		chunksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linear_tools_chunks_total",
				Help: "Chunks processed, by outcome",
			},
			[]string{"status"},
		),

		bytesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "linear_tools_bytes_read_total",
				Help: "Bytes read from source region files",
			},
		),

		bytesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "linear_tools_bytes_written_total",
				Help: "Bytes written to converted region files",
			},
		),

		fileDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "linear_tools_file_duration_seconds",
				Help:    "Time spent converting one region file",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"target"},
		),

		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "linear_tools_files_in_flight",
				Help: "Region files currently being converted",
			},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Begin marks a file as in flight and returns the function that ends it.
func (m *Metrics) Begin() func() {
	m.inFlight.Inc()
	return m.inFlight.Dec
}

// RecordFile records the outcome of one file.
func (m *Metrics) RecordFile(status, target string, duration time.Duration) {
	m.filesTotal.WithLabelValues(status).Inc()
	if status == StatusConverted {
		m.fileDuration.WithLabelValues(target).Observe(duration.Seconds())
	}
}

// RecordChunks adds converted and dropped chunk counts.
func (m *Metrics) RecordChunks(converted, dropped int) {
	m.chunksTotal.WithLabelValues(ChunkConverted).Add(float64(converted))
	m.chunksTotal.WithLabelValues(ChunkDropped).Add(float64(dropped))
}

// RecordBytes adds to the byte counters.
func (m *Metrics) RecordBytes(read, written int64) {
	m.bytesRead.Add(float64(read))
	m.bytesWritten.Add(float64(written))
}

// WriteFile writes every collector in the text exposition format, for the
// node exporter's textfile collector.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
