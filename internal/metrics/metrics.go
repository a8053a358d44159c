// Package metrics records run statistics in a Prometheus registry and
// exports them in the node-exporter textfile format.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "getmyancestors"

// Recorder owns the collectors of one run.
type Recorder struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	persons         prometheus.Gauge
	families        prometheus.Gauge
	phaseDuration   *prometheus.GaugeVec
}

// New returns a Recorder with a private registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "API requests by endpoint and HTTP status.",
		}, []string{"endpoint", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "API request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by result.",
		}, []string{"result"}),
		persons: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "persons",
			Help:      "Individuals in the assembled tree.",
		}),
		families: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "families",
			Help:      "Families in the assembled tree.",
		}),
		phaseDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Wall time spent in each phase of the run.",
		}, []string{"phase"}),
	}
	r.registry.MustRegister(r.requests, r.requestDuration, r.cacheLookups, r.persons, r.families, r.phaseDuration)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRequest counts one API response.
func (r *Recorder) ObserveRequest(endpoint string, status int, elapsed time.Duration) {
	r.requests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	r.requestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveCache counts one cache lookup.
func (r *Recorder) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// SetTreeSize records the final size of the tree.
func (r *Recorder) SetTreeSize(persons, families int) {
	r.persons.Set(float64(persons))
	r.families.Set(float64(families))
}

// ObservePhase records how long a phase took.
func (r *Recorder) ObservePhase(phase string, elapsed time.Duration) {
	r.phaseDuration.WithLabelValues(phase).Set(elapsed.Seconds())
}

// WriteFile writes every metric to path in the textfile format.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
