// Package metrics implements the ports.Metrics port from spec.md §4.J.
// Prometheus wraps github.com/prometheus/client_golang, grounded on
// oriys-nova's internal/metrics/prometheus.go: a private prometheus.Registry,
// namespace-prefixed CounterVec/HistogramVec/GaugeVec collectors built in a
// constructor, and a promhttp.Handler for scraping (left for the caller to
// mount, since this module has no HTTP surface of its own).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"

	"github.com/oladejiayo/localzure-sub001/internal/ports"
)

var defaultDurationBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
var defaultSizeBuckets = []float64{64, 256, 1024, 4096, 16384, 65536, 262144}

// Prometheus is the production ports.Metrics implementation.
type Prometheus struct {
	registry *prometheus.Registry

	sendTotal         *prometheus.CounterVec
	receiveTotal      *prometheus.CounterVec
	completeTotal     *prometheus.CounterVec
	abandonTotal      *prometheus.CounterVec
	deadLetterTotal   *prometheus.CounterVec
	errorTotal        *prometheus.CounterVec

	sendDuration       *prometheus.HistogramVec
	receiveDuration    *prometheus.HistogramVec
	messageSize        *prometheus.HistogramVec
	filterEvalDuration *prometheus.HistogramVec

	activeGauge        *prometheus.GaugeVec
	deadLetterGauge     *prometheus.GaugeVec
	scheduledGauge      *prometheus.GaugeVec
	lockedGauge         *prometheus.GaugeVec
	entityCountGauge    *prometheus.GaugeVec
}

// NewPrometheus builds a Prometheus metrics port under the given
// namespace, registering Go/process collectors the way oriys-nova's
// InitPrometheus does.
func NewPrometheus(namespace string) *Prometheus {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	p := &Prometheus{
		registry: registry,
		sendTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "send_total", Help: "Total messages sent/published.",
		}, []string{"entity_type", "entity_name"}),
		receiveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "receive_total", Help: "Total receive operations.",
		}, []string{"entity_type", "entity_name"}),
		completeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "complete_total", Help: "Total completed messages.",
		}, []string{"entity_type", "entity_name"}),
		abandonTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "abandon_total", Help: "Total abandoned messages.",
		}, []string{"entity_type", "entity_name"}),
		deadLetterTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "dead_letter_total", Help: "Total dead-lettered messages.",
		}, []string{"entity_type", "entity_name", "reason"}),
		errorTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "error_total", Help: "Total broker errors.",
		}, []string{"operation", "error_type"}),

		sendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "send_duration_seconds", Help: "Send operation latency.", Buckets: defaultDurationBuckets,
		}, []string{"entity_type", "entity_name"}),
		receiveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "receive_duration_seconds", Help: "Receive operation latency.", Buckets: defaultDurationBuckets,
		}, []string{"entity_type", "entity_name"}),
		messageSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "message_size_bytes", Help: "Message body size.", Buckets: defaultSizeBuckets,
		}, []string{"entity_type", "entity_name"}),
		filterEvalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "filter_eval_duration_seconds", Help: "Rule filter evaluation latency.", Buckets: defaultDurationBuckets,
		}, []string{"topic", "subscription"}),

		activeGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_messages", Help: "Active (backlog) message count.",
		}, []string{"entity_type", "entity_name"}),
		deadLetterGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "dead_letter_messages", Help: "Dead-lettered message count.",
		}, []string{"entity_type", "entity_name"}),
		scheduledGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "scheduled_messages", Help: "Scheduled message count.",
		}, []string{"entity_type", "entity_name"}),
		lockedGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "locked_messages", Help: "Locked (leased) message count.",
		}, []string{"entity_type", "entity_name"}),
		entityCountGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "entity_count", Help: "Entity count by kind.",
		}, []string{"entity_type"}),
	}

	registry.MustRegister(
		p.sendTotal, p.receiveTotal, p.completeTotal, p.abandonTotal, p.deadLetterTotal, p.errorTotal,
		p.sendDuration, p.receiveDuration, p.messageSize, p.filterEvalDuration,
		p.activeGauge, p.deadLetterGauge, p.scheduledGauge, p.lockedGauge, p.entityCountGauge,
	)
	return p
}

// Handler returns an http.Handler suitable for mounting a scrape endpoint;
// the caller's own HTTP surface decides where to mount it (out of scope
// for this module per spec.md §1).
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) CountSend(kind ports.EntityKind, entity string) {
	p.sendTotal.WithLabelValues(string(kind), entity).Inc()
}
func (p *Prometheus) CountReceive(kind ports.EntityKind, entity string) {
	p.receiveTotal.WithLabelValues(string(kind), entity).Inc()
}
func (p *Prometheus) CountComplete(kind ports.EntityKind, entity string) {
	p.completeTotal.WithLabelValues(string(kind), entity).Inc()
}
func (p *Prometheus) CountAbandon(kind ports.EntityKind, entity string) {
	p.abandonTotal.WithLabelValues(string(kind), entity).Inc()
}
func (p *Prometheus) CountDeadLetter(kind ports.EntityKind, entity, reason string) {
	p.deadLetterTotal.WithLabelValues(string(kind), entity, reason).Inc()
}
func (p *Prometheus) CountError(operation, errorType string) {
	p.errorTotal.WithLabelValues(operation, errorType).Inc()
}
func (p *Prometheus) ObserveSendDuration(kind ports.EntityKind, entity string, d time.Duration) {
	p.sendDuration.WithLabelValues(string(kind), entity).Observe(d.Seconds())
}
func (p *Prometheus) ObserveReceiveDuration(kind ports.EntityKind, entity string, d time.Duration) {
	p.receiveDuration.WithLabelValues(string(kind), entity).Observe(d.Seconds())
}
func (p *Prometheus) ObserveMessageSize(kind ports.EntityKind, entity string, bytes int) {
	p.messageSize.WithLabelValues(string(kind), entity).Observe(float64(bytes))
}
func (p *Prometheus) ObserveFilterEvalDuration(topic, subscription string, d time.Duration) {
	p.filterEvalDuration.WithLabelValues(topic, subscription).Observe(d.Seconds())
}
func (p *Prometheus) SetActiveGauge(kind ports.EntityKind, entity string, n int) {
	p.activeGauge.WithLabelValues(string(kind), entity).Set(float64(n))
}
func (p *Prometheus) SetDeadLetterGauge(kind ports.EntityKind, entity string, n int) {
	p.deadLetterGauge.WithLabelValues(string(kind), entity).Set(float64(n))
}
func (p *Prometheus) SetScheduledGauge(kind ports.EntityKind, entity string, n int) {
	p.scheduledGauge.WithLabelValues(string(kind), entity).Set(float64(n))
}
func (p *Prometheus) SetLockedGauge(kind ports.EntityKind, entity string, n int) {
	p.lockedGauge.WithLabelValues(string(kind), entity).Set(float64(n))
}
func (p *Prometheus) SetEntityCountGauge(kind ports.EntityKind, n int) {
	p.entityCountGauge.WithLabelValues(string(kind)).Set(float64(n))
}
