package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Channel delivery results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// Metrics holds the service collectors. All methods are safe on a nil *Metrics.
type Metrics struct {
	gatherer prometheus.Gatherer

	// HTTP
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// triage / dispatch
	submissionsTotal *prometheus.CounterVec
	channelTotal     *prometheus.CounterVec
	channelDuration  *prometheus.HistogramVec
	dispatchDuration *prometheus.HistogramVec

	// idempotency cache
	cacheHitsTotal   *prometheus.CounterVec
	cacheMissesTotal *prometheus.CounterVec

	// live feed
	sseSubscribers prometheus.Gauge

	// background jobs
	jobRunsTotal *prometheus.CounterVec

	rateLimitTotal *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. A nil reg uses a fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	f := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		submissionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_submissions_total",
				Help: "Check-ins classified, by tier",
			},
			[]string{"tier"},
		),
		channelTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_channel_deliveries_total",
				Help: "Channel delivery outcomes",
			},
			[]string{"channel", "result"},
		),
		channelDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "triage_channel_duration_seconds",
				Help:    "Duration of attempted channel deliveries",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 8, 10},
			},
			[]string{"channel"},
		),
		dispatchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "triage_dispatch_duration_seconds",
				Help:    "Duration of a whole dispatch, by tier",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 8, 10},
			},
			[]string{"tier"},
		),

		cacheHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type", "operation"},
		),
		cacheMissesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type", "operation"},
		),

		sseSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "alerts_stream_subscribers",
			Help: "Connected alert stream clients",
		}),

		jobRunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scheduled_job_runs_total",
				Help: "Scheduled job executions",
			},
			[]string{"job", "status"},
		),

		rateLimitTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_decisions_total",
				Help: "Rate limiter decisions by route",
			},
			[]string{"route", "decision"},
		),
	}
}

// Handler serves the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.DefaultGatherer
	}
	return m.gatherer
}

// RecordHTTPRequest 记录HTTP请求指标
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) RecordSubmission(tier string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(tier).Inc()
}

// RecordChannel counts one channel result. Duration is observed only for
// attempted deliveries.
func (m *Metrics) RecordChannel(channel, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.channelTotal.WithLabelValues(channel, result).Inc()
	if result != ResultSkipped {
		m.channelDuration.WithLabelValues(channel).Observe(duration.Seconds())
	}
}

func (m *Metrics) RecordDispatch(tier string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dispatchDuration.WithLabelValues(tier).Observe(duration.Seconds())
}

// RecordCacheHit 记录缓存命中
func (m *Metrics) RecordCacheHit(cacheType, operation string) {
	if m == nil {
		return
	}
	m.cacheHitsTotal.WithLabelValues(cacheType, operation).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (m *Metrics) RecordCacheMiss(cacheType, operation string) {
	if m == nil {
		return
	}
	m.cacheMissesTotal.WithLabelValues(cacheType, operation).Inc()
}

func (m *Metrics) AddSSESubscribers(delta int) {
	if m == nil {
		return
	}
	m.sseSubscribers.Add(float64(delta))
}

func (m *Metrics) RecordJobRun(job, status string) {
	if m == nil {
		return
	}
	m.jobRunsTotal.WithLabelValues(job, status).Inc()
}

// OnAllow and OnDeny let *Metrics observe the rate limiter.
func (m *Metrics) OnAllow(route string) {
	if m == nil {
		return
	}
	m.rateLimitTotal.WithLabelValues(route, "allow").Inc()
}

func (m *Metrics) OnDeny(route string) {
	if m == nil {
		return
	}
	m.rateLimitTotal.WithLabelValues(route, "deny").Inc()
}

// Reset 重置所有指标
func (m *Metrics) Reset() {
	if m == nil {
		return
	}
	m.httpRequestsTotal.Reset()
	m.httpRequestDuration.Reset()
	m.submissionsTotal.Reset()
	m.channelTotal.Reset()
	m.channelDuration.Reset()
	m.dispatchDuration.Reset()
	m.cacheHitsTotal.Reset()
	m.cacheMissesTotal.Reset()
	m.sseSubscribers.Set(0)
	m.jobRunsTotal.Reset()
	m.rateLimitTotal.Reset()
}
