package brisa

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/savsgio/brisa/tasks"
)

// Metrics is the framework's Prometheus instrumentation surface: request
// counts/latencies, cache hit/miss per tier outcome, and a live collector
// over the background task executor's queues.
type Metrics struct {
	Registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
}

// NewMetrics builds a Metrics instance with its own registry and registers
// every collector, including a live poll of pool's queues/counters.
func NewMetrics(pool *tasks.Pool) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brisa",
			Name:      "requests_total",
			Help:      "Total requests handled, labeled by method, matched route, and status code.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "brisa",
			Name:      "request_duration_seconds",
			Help:      "Request handling latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brisa",
			Name:      "cache_hits_total",
			Help:      "Response cache hits across all tiers.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brisa",
			Name:      "cache_misses_total",
			Help:      "Response cache misses across all tiers.",
		}),
	}

	reg.MustRegister(m.requestsTotal, m.requestDuration, m.cacheHits, m.cacheMisses)
	if pool != nil {
		reg.MustRegister(&taskPoolCollector{pool: pool})
	}

	return m
}

func (m *Metrics) observeRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, route, status).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) observeCacheHit(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

var (
	taskQueueDepthDesc = prometheus.NewDesc("brisa_task_queue_depth", "Queued task count by priority.", []string{"priority"}, nil)
	taskRunningDesc    = prometheus.NewDesc("brisa_task_running", "Tasks currently executing.", nil, nil)
	taskSucceededDesc  = prometheus.NewDesc("brisa_task_succeeded_total", "Tasks that completed successfully.", nil, nil)
	taskFailedDesc     = prometheus.NewDesc("brisa_task_failed_total", "Tasks that exhausted their retry budget.", nil, nil)
	taskCancelledDesc  = prometheus.NewDesc("brisa_task_cancelled_total", "Tasks cancelled while still queued.", nil, nil)
	taskAvgExecDesc    = prometheus.NewDesc("brisa_task_exec_seconds_avg", "Running average task execution time.", nil, nil)
	taskP95ExecDesc    = prometheus.NewDesc("brisa_task_exec_seconds_p95", "P95 task execution time over the sampling window.", nil, nil)
)

// taskPoolCollector is a prometheus.Collector that samples the executor's
// live state at scrape time, rather than duplicating its counters into a
// second set of atomics.
type taskPoolCollector struct {
	pool *tasks.Pool
}

func (c *taskPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- taskQueueDepthDesc
	ch <- taskRunningDesc
	ch <- taskSucceededDesc
	ch <- taskFailedDesc
	ch <- taskCancelledDesc
	ch <- taskAvgExecDesc
	ch <- taskP95ExecDesc
}

func (c *taskPoolCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.pool.Snapshot()

	priorityNames := []string{"critical", "high", "normal", "low"}
	for i, name := range priorityNames {
		ch <- prometheus.MustNewConstMetric(taskQueueDepthDesc, prometheus.GaugeValue, float64(snap.QueueDepth[i]), name)
	}

	ch <- prometheus.MustNewConstMetric(taskRunningDesc, prometheus.GaugeValue, float64(snap.Running))
	ch <- prometheus.MustNewConstMetric(taskSucceededDesc, prometheus.CounterValue, float64(snap.Succeeded))
	ch <- prometheus.MustNewConstMetric(taskFailedDesc, prometheus.CounterValue, float64(snap.Failed))
	ch <- prometheus.MustNewConstMetric(taskCancelledDesc, prometheus.CounterValue, float64(snap.Cancelled))
	ch <- prometheus.MustNewConstMetric(taskAvgExecDesc, prometheus.GaugeValue, snap.AvgExec.Seconds())
	ch <- prometheus.MustNewConstMetric(taskP95ExecDesc, prometheus.GaugeValue, snap.P95Exec.Seconds())
}
