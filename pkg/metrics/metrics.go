// Package metrics defines the Prometheus collectors for a load run and
// exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for a load run. It satisfies the
// worker pool's observer contract.
type Metrics struct {
	RecordsWrittenTotal  *prometheus.CounterVec
	WriteErrorsTotal     *prometheus.CounterVec
	WriteDuration        prometheus.Histogram
	ActiveWorkers        prometheus.Gauge
	TargetTPS            prometheus.Gauge
	StartupFailuresTotal prometheus.Counter
}

// New creates the collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates the collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsWrittenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "traceload_records_written_total",
				Help: "Total records stored by worker.",
			},
			[]string{"worker"},
		),
		WriteErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "traceload_write_errors_total",
				Help: "Total failed record writes by worker.",
			},
			[]string{"worker"},
		),
		WriteDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "traceload_write_duration_seconds",
				Help:    "Sink write latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		ActiveWorkers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "traceload_active_workers",
				Help: "Number of workers currently producing records.",
			},
		),
		TargetTPS: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "traceload_target_tps",
				Help: "Aggregate records per second the run aims for.",
			},
		),
		StartupFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "traceload_startup_failures_total",
				Help: "Total workers that could not open their sink connection.",
			},
		),
	}

	reg.MustRegister(
		m.RecordsWrittenTotal,
		m.WriteErrorsTotal,
		m.WriteDuration,
		m.ActiveWorkers,
		m.TargetTPS,
		m.StartupFailuresTotal,
	)

	return m
}

func (m *Metrics) RecordWritten(worker int, took time.Duration) {
	m.RecordsWrittenTotal.WithLabelValues(strconv.Itoa(worker)).Inc()
	m.WriteDuration.Observe(took.Seconds())
}

func (m *Metrics) WriteFailed(worker int) {
	m.WriteErrorsTotal.WithLabelValues(strconv.Itoa(worker)).Inc()
}

func (m *Metrics) TargetRate(tps int) {
	m.TargetTPS.Set(float64(tps))
}

func (m *Metrics) WorkerStarted(int) {
	m.ActiveWorkers.Inc()
}

func (m *Metrics) WorkerStopped(int) {
	m.ActiveWorkers.Dec()
}

func (m *Metrics) StartupFailed(int) {
	m.StartupFailuresTotal.Inc()
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
