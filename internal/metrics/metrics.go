// Package metrics exposes Prometheus metrics for ingestion and question answering.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyperjump/kotae/internal/trace"
)

// Status label values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Metrics holds the process collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	filesIngested *prometheus.CounterVec
	chunksStored  prometheus.Counter
	chunksTotal   prometheus.Gauge
	questions     *prometheus.CounterVec
	askDuration   prometheus.Histogram
	traceMessages *prometheus.CounterVec
}

// New creates and registers the collectors on a fresh registry, along with
// the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		filesIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kotae_files_ingested_total",
				Help: "Files processed by ingestion, by status",
			},
			[]string{"status"},
		),
		chunksStored: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kotae_chunks_stored_total",
				Help: "Chunks embedded and stored",
			},
		),
		chunksTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "kotae_collection_chunks",
				Help: "Chunks currently held by the collection",
			},
		),
		questions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kotae_questions_total",
				Help: "Questions answered, by status",
			},
			[]string{"status"},
		),
		askDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kotae_ask_duration_seconds",
				Help:    "Time to retrieve context and generate an answer",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
		),
		traceMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kotae_trace_messages_total",
				Help: "Trace messages emitted, by type",
			},
			[]string{"type"},
		),
	}
	m.registry.MustRegister(
		m.filesIngested, m.chunksStored, m.chunksTotal, m.questions, m.askDuration, m.traceMessages,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// FilesIngested counts ingested and failed files.
func (m *Metrics) FilesIngested(ok, failed int) {
	if m == nil {
		return
	}
	m.filesIngested.WithLabelValues(StatusOK).Add(float64(ok))
	m.filesIngested.WithLabelValues(StatusFailed).Add(float64(failed))
}

// ChunksStored counts newly stored chunks and records the collection size.
func (m *Metrics) ChunksStored(stored, total int) {
	if m == nil {
		return
	}
	m.chunksStored.Add(float64(stored))
	m.chunksTotal.Set(float64(total))
}

// CollectionSize records the collection size, e.g. after a reset.
func (m *Metrics) CollectionSize(total int) {
	if m == nil {
		return
	}
	m.chunksTotal.Set(float64(total))
}

// Question records one answered question.
func (m *Metrics) Question(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusFailed
	}
	m.questions.WithLabelValues(status).Inc()
	m.askDuration.Observe(elapsed.Seconds())
}

// Record counts trace messages by type, so Metrics can be used as a trace.Sink.
func (m *Metrics) Record(_ context.Context, msg trace.Message) {
	if m == nil {
		return
	}
	m.traceMessages.WithLabelValues(string(msg.Type)).Inc()
}

var _ trace.Sink = (*Metrics)(nil)
