// Package metrics registers the prometheus counters/gauges/histograms
// exercised across Ignis's subsystems.
//
// Grounded on metrics/metrics.go (the teacher's own flat
// var-block-plus-Init()-registering-everything shape, namespace/subsystem
// constants, go.uber.org/multierr error aggregation) adapted from the
// teacher's domain (HTTP/DB/cache counters) to Ignis's own: container
// resolutions, query compilations, realtime fan-out, and the HF logger's
// ring buffer.
package metrics

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
)

const (
	Namespace = "ignis"
)

var (
	// Container (spec §4.2)
	ContainerResolutions  *prometheus.CounterVec // result=hit|miss|cyclic|error
	ContainerSingletonCtor *prometheus.CounterVec

	// Query builder (spec §4.5)
	QueryCompileDuration *prometheus.HistogramVec // outcome=ok|error
	QueryCompileErrors   *prometheus.CounterVec   // kind

	// Realtime (spec §4.8)
	RealtimeClientsConnected prometheus.Gauge
	RealtimeMessagesSent     *prometheus.CounterVec // destination=client|user|room|broadcast
	RealtimeCloses           *prometheus.CounterVec // code
	RealtimePubSubDedup      prometheus.Counter

	// HF logger (spec §4.9)
	HFLogAppended prometheus.Counter
	HFLogDropped  prometheus.Counter
	HFLogFlushed  *prometheus.CounterVec // sink=...

	// Repository (spec §4.6)
	RepositoryCalls *prometheus.CounterVec // op=find|find_one|count|create|create_all|update_where|delete_where, outcome=ok|error

	// HTTP (ginadapter — the out-of-scope transport binding)
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
)

// Init constructs and registers every collector. It is safe to call once
// per process; calling it twice returns an AlreadyRegisteredError wrapped
// by multierr.
func Init() error {
	ContainerResolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "container",
		Name:      "resolutions_total",
		Help:      "Container.Get calls by result (hit, miss, cyclic, error).",
	}, []string{"result"})
	ContainerSingletonCtor = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "container",
		Name:      "singleton_constructions_total",
		Help:      "Number of times a singleton binding was actually constructed.",
	}, []string{"key"})

	QueryCompileDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "query",
		Name:      "compile_duration_seconds",
		Help:      "FilterBuilder.Compile latency by outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
	QueryCompileErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "query",
		Name:      "compile_errors_total",
		Help:      "FilterBuilder.Compile failures by igniserr.Kind.",
	}, []string{"kind"})

	RealtimeClientsConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "realtime",
		Name:      "clients_connected",
		Help:      "Currently connected realtime clients on this instance.",
	})
	RealtimeMessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "realtime",
		Name:      "messages_sent_total",
		Help:      "Outbound realtime messages by destination kind.",
	}, []string{"destination"})
	RealtimeCloses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "realtime",
		Name:      "closes_total",
		Help:      "Client disconnects by close code.",
	}, []string{"code"})
	RealtimePubSubDedup = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "realtime",
		Name:      "pubsub_dedup_total",
		Help:      "Messages dropped because they originated from this server's own serverId.",
	})

	HFLogAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "hflog",
		Name:      "appended_total",
		Help:      "Entries appended to the ring buffer.",
	})
	HFLogDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "hflog",
		Name:      "dropped_total",
		Help:      "Entries dropped due to reader overrun.",
	})
	HFLogFlushed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "hflog",
		Name:      "flushed_total",
		Help:      "Entries drained by the flusher, by sink.",
	}, []string{"sink"})

	RepositoryCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "repository",
		Name:      "calls_total",
		Help:      "Default CRUD repository calls by operation and outcome.",
	}, []string{"op", "outcome"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests handled through ginadapter, by method/path/status.",
	}, []string{"method", "path", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency through ginadapter.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	errs := make([]error, 0, 14)
	errs = append(errs, prometheus.Register(ContainerResolutions))
	errs = append(errs, prometheus.Register(ContainerSingletonCtor))
	errs = append(errs, prometheus.Register(QueryCompileDuration))
	errs = append(errs, prometheus.Register(QueryCompileErrors))
	errs = append(errs, prometheus.Register(RealtimeClientsConnected))
	errs = append(errs, prometheus.Register(RealtimeMessagesSent))
	errs = append(errs, prometheus.Register(RealtimeCloses))
	errs = append(errs, prometheus.Register(RealtimePubSubDedup))
	errs = append(errs, prometheus.Register(HFLogAppended))
	errs = append(errs, prometheus.Register(HFLogDropped))
	errs = append(errs, prometheus.Register(HFLogFlushed))
	errs = append(errs, prometheus.Register(RepositoryCalls))
	errs = append(errs, prometheus.Register(HTTPRequestsTotal))
	errs = append(errs, prometheus.Register(HTTPRequestDuration))
	errs = append(errs, prometheus.Register(collectors.NewBuildInfoCollector()))

	return errors.WithStack(multierr.Combine(errs...))
}
