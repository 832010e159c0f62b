package counter

import (
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRecorder observes the outcome and latency of counter operations.
type MetricsRecorder interface {
	RecordOperation(op string, d time.Duration, err error)
}

var expvarSeq uint64

// ExpvarRecorder publishes aggregate timing and result counters via expvar,
// for deployments that prefer process-local metrics without an external
// scrape target. Totals are kept in milliseconds per operation.
type ExpvarRecorder struct {
	name      string
	mu        sync.Mutex
	durations map[string]float64
	results   map[string]map[string]int64
}

// ExpvarSnapshot captures a read-only view of the recorded metrics.
type ExpvarSnapshot struct {
	DurationsMS map[string]float64          `json:"durations_ms_total"`
	Results     map[string]map[string]int64 `json:"results_total"`
	RecordedAt  time.Time                   `json:"recorded_at"`
}

// NewExpvarRecorder constructs an expvar-backed recorder published under the
// supplied name. When name is empty, a unique identifier is generated.
func NewExpvarRecorder(name string) *ExpvarRecorder {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("counter_metrics_%d", id)
	}
	rec := &ExpvarRecorder{
		name:      name,
		durations: make(map[string]float64),
		results:   make(map[string]map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name associated with the recorder.
func (r *ExpvarRecorder) Name() string { return r.name }

// RecordOperation accumulates one operation outcome.
func (r *ExpvarRecorder) RecordOperation(op string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations[op] += float64(d.Milliseconds())
	byResult, ok := r.results[op]
	if !ok {
		byResult = make(map[string]int64)
		r.results[op] = byResult
	}
	byResult[result]++
}

// Snapshot returns an immutable copy of the aggregated metrics.
func (r *ExpvarRecorder) Snapshot() ExpvarSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := ExpvarSnapshot{
		DurationsMS: make(map[string]float64, len(r.durations)),
		Results:     make(map[string]map[string]int64, len(r.results)),
		RecordedAt:  time.Now().UTC(),
	}
	for op, total := range r.durations {
		snap.DurationsMS[op] = total
	}
	for op, byResult := range r.results {
		cp := make(map[string]int64, len(byResult))
		for result, count := range byResult {
			cp[result] = count
		}
		snap.Results[op] = cp
	}
	return snap
}

// PrometheusRecorder exports operation counters and latency histograms to a
// Prometheus registry, served by the web layer at /metrics.
type PrometheusRecorder struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the counter metrics with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nuggetcore_operations_total",
			Help: "Counter operations by name and result.",
		}, []string{"op", "result"}),
		durations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nuggetcore_operation_duration_seconds",
			Help:    "Latency of counter operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

// RecordOperation accumulates one operation outcome.
func (r *PrometheusRecorder) RecordOperation(op string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.operations.WithLabelValues(op, result).Inc()
	r.durations.WithLabelValues(op).Observe(d.Seconds())
}
