// Package telemetry exposes the service's Prometheus metrics: HTTP
// request counters, pipeline operation counters, and gauge views over
// the store, the task queues and the event bus.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"parley/pkg/apperr"
	"parley/pkg/events"
	"parley/pkg/store"
	"parley/pkg/tasks"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route template and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "parley",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route template.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "parley",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served.",
		},
	)

	pipelineOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "pipeline",
			Name:      "operations_total",
			Help:      "Pipeline operations by name.",
		},
		[]string{"op"},
	)

	pipelineFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "pipeline",
			Name:      "failures_total",
			Help:      "Pipeline failures by operation and error kind.",
		},
		[]string{"op", "kind"},
	)
)

func init() {
	prometheus.MustRegister(httpRequests)
	prometheus.MustRegister(httpDuration)
	prometheus.MustRegister(httpInFlight)
	prometheus.MustRegister(pipelineOps)
	prometheus.MustRegister(pipelineFailures)
}

// CountOp records one pipeline operation and, when err is non-nil, its
// failure kind.
func CountOp(op string, err error) {
	pipelineOps.WithLabelValues(op).Inc()
	if err != nil {
		pipelineFailures.WithLabelValues(op, string(apperr.KindOf(err))).Inc()
	}
}

// Middleware instruments a handler with request count, latency and
// in-flight gauges. Routes registered through mux are labelled by their
// path template so message ids don't explode the cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpInFlight.Inc()
		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(srw, r)

		httpInFlight.Dec()
		route := routeLabel(r)
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(srw.status)).Inc()
		httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func routeLabel(r *http.Request) string {
	if cur := mux.CurrentRoute(r); cur != nil {
		if tpl, err := cur.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// ObserveStore registers gauges over the pebble engine's live metrics.
func ObserveStore(st *store.Store) {
	register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "parley", Subsystem: "store", Name: "disk_bytes",
		Help: "Total bytes used by the store on disk.",
	}, func() float64 { return float64(st.Metrics().DiskBytes) }))
	register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "parley", Subsystem: "store", Name: "wal_bytes",
		Help: "Bytes in the write-ahead log.",
	}, func() float64 { return float64(st.Metrics().WALBytes) }))
	register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "parley", Subsystem: "store", Name: "l0_files",
		Help: "SSTables in level 0.",
	}, func() float64 { return float64(st.Metrics().L0Files) }))
	register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "parley", Subsystem: "store", Name: "compaction_backlog_bytes",
		Help: "Estimated compaction debt in bytes.",
	}, func() float64 { return float64(st.Metrics().CompactionBacklog) }))
}

// ObserveBus registers counters over the event bus.
func ObserveBus(b *events.Bus) {
	register(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "parley", Subsystem: "events", Name: "dropped_total",
		Help: "Events dropped on full subscriber buffers.",
	}, func() float64 { return float64(b.Dropped()) }))
	register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "parley", Subsystem: "events", Name: "subscribers",
		Help: "Live event subscribers.",
	}, func() float64 { return float64(b.Subscribers()) }))
}

// ObserveQueues registers a collector over the dispatcher's per-kind
// queue stats.
func ObserveQueues(d *tasks.Dispatcher) {
	register(&queueCollector{
		stats: d.QueueStats,
		depth: prometheus.NewDesc("parley_queue_depth",
			"Tasks waiting in a queue.", []string{"kind"}, nil),
		capacity: prometheus.NewDesc("parley_queue_capacity",
			"Queue capacity.", []string{"kind"}, nil),
		dropped: prometheus.NewDesc("parley_queue_dropped_total",
			"Tasks rejected on a full queue.", []string{"kind"}, nil),
	})
}

type queueCollector struct {
	stats    func() map[tasks.Kind]tasks.Stats
	depth    *prometheus.Desc
	capacity *prometheus.Desc
	dropped  *prometheus.Desc
}

func (c *queueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.depth
	ch <- c.capacity
	ch <- c.dropped
}

func (c *queueCollector) Collect(ch chan<- prometheus.Metric) {
	for kind, st := range c.stats() {
		ch <- prometheus.MustNewConstMetric(c.depth, prometheus.GaugeValue, float64(st.Len), string(kind))
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(st.Cap), string(kind))
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(st.Dropped), string(kind))
	}
}

// register tolerates re-registration so repeated app constructions in
// tests don't panic the default registry.
func register(c prometheus.Collector) {
	_ = prometheus.Register(c)
}
