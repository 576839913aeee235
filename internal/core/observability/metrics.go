// Package observability owns the service's Prometheus collectors. Init binds
// them to a registry; until then every Observe call is a no-op.
package observability

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type collectors struct {
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	inquiries      *prometheus.CounterVec
	inquiryLatency *prometheus.HistogramVec
	evaluations    *prometheus.CounterVec
	exclusions     prometheus.Counter
	cacheOps       *prometheus.CounterVec
	cacheDuration  *prometheus.HistogramVec
	cacheResults   *prometheus.CounterVec
	snapshotVer    prometheus.Gauge
	snapshotEvents *prometheus.CounterVec
	kafkaErrors    *prometheus.CounterVec
	buildInfo      *prometheus.GaugeVec
}

var (
	mu  sync.RWMutex
	cur *collectors
)

// Init registers all collectors with reg. With enabled false, or a nil reg,
// metrics are dropped.
func Init(reg prometheus.Registerer, enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled || reg == nil {
		cur = nil
		return
	}
	f := promauto.With(reg)
	cur = &collectors{
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"method", "route", "status"}),
		inquiries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "afc_inquiry_responses_total",
			Help: "Spectrum inquiry responses by response code and basis.",
		}, []string{"code", "basis"}),
		inquiryLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "afc_inquiry_duration_seconds",
			Help:    "Time to answer a spectrum inquiry.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, []string{"basis", "cache"}),
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "afc_channel_decisions_total",
			Help: "Per-channel grant decisions by outcome and cause.",
		}, []string{"decision", "cause"}),
		exclusions: f.NewCounter(prometheus.CounterOpts{
			Name: "afc_receiver_exclusions_total",
			Help: "Receiver exclusions across channel evaluations because of malformed data.",
		}),
		cacheOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Response cache operations by result.",
		}, []string{"op", "result"}),
		cacheDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cache_operation_duration_seconds",
			Help:    "Response cache operation latency.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"op"}),
		cacheResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Response cache lookups by outcome.",
		}, []string{"outcome"}),
		snapshotVer: f.NewGauge(prometheus.GaugeOpts{
			Name: "afc_incumbent_snapshot_version",
			Help: "Version of the incumbent snapshot currently served.",
		}),
		snapshotEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "afc_snapshot_events_total",
			Help: "Incumbent update events by operation and result.",
		}, []string{"op", "result"}),
		kafkaErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_consumer_errors_total",
			Help: "Kafka consumer errors by kind.",
		}, []string{"kind"}),
		buildInfo: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "afc_build_info",
			Help: "Build information for the binary.",
		}, []string{"version"}),
	}
}

func get() *collectors {
	mu.RLock()
	defer mu.RUnlock()
	return cur
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	c := get()
	if c == nil {
		return
	}
	st := strconv.Itoa(status)
	c.httpRequests.WithLabelValues(method, route, st).Inc()
	c.httpDuration.WithLabelValues(method, route, st).Observe(durationSeconds)
}

// ObserveInquiry records one answered inquiry. basis may be empty when the
// request was rejected before its basis was known.
func ObserveInquiry(code int, basis string, cached bool, durationSeconds float64) {
	c := get()
	if c == nil {
		return
	}
	if basis == "" {
		basis = "unknown"
	}
	cache := "miss"
	if cached {
		cache = "hit"
	}
	c.inquiries.WithLabelValues(strconv.Itoa(code), basis).Inc()
	c.inquiryLatency.WithLabelValues(basis, cache).Observe(durationSeconds)
}

func ObserveDecision(decision, cause string) {
	if c := get(); c != nil {
		c.evaluations.WithLabelValues(decision, cause).Inc()
	}
}

func AddExclusions(n int) {
	if c := get(); c != nil && n > 0 {
		c.exclusions.Add(float64(n))
	}
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	c := get()
	if c == nil {
		return
	}
	c.cacheOps.WithLabelValues(op, result(err)).Inc()
	c.cacheDuration.WithLabelValues(op).Observe(durationSeconds)
}

func IncCacheHit() {
	if c := get(); c != nil {
		c.cacheResults.WithLabelValues("hit").Inc()
	}
}

func IncCacheMiss() {
	if c := get(); c != nil {
		c.cacheResults.WithLabelValues("miss").Inc()
	}
}

func SetSnapshotVersion(v uint64) {
	if c := get(); c != nil {
		c.snapshotVer.Set(float64(v))
	}
}

func ObserveSnapshotEvent(op string, err error) {
	if c := get(); c != nil {
		c.snapshotEvents.WithLabelValues(op, result(err)).Inc()
	}
}

func IncKafkaConsumerError(kind string) {
	if c := get(); c != nil {
		c.kafkaErrors.WithLabelValues(kind).Inc()
	}
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	if c := get(); c != nil {
		c.buildInfo.WithLabelValues(version).Set(1)
	}
}
