// Package metrics records operational metrics for dataset loading, dashboard
// recomputation and the HTTP API behind a narrow, backend-agnostic interface.
//
// The global backend defaults to a no-op, so instrumentation is always safe
// to call. Concrete systems live in subpackages (prompush, datadog) and are
// installed once at startup with SetBackend.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Metric names emitted by this package.
const (
	StageTotal    = "echoair_stage_total"
	StageDuration = "echoair_stage_duration_seconds"
	RecordsTotal  = "echoair_records_total"
	RequestsTotal = "echoair_requests_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep measures latency and success/failure of one pipeline stage
// ("load", "filter", "aggregate", "rank", "series", "lorenz", ...).
func RecordStep(job, stage string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"job":    job,
		"stage":  stage,
		"status": status,
	}
	b := current()
	b.IncCounter(StageTotal, 1, lbls)
	b.ObserveHistogram(StageDuration, d.Seconds(), lbls)
}

// RecordRecords increments the record counter for the given job and kind.
//
// Kinds used by the loader:
//   - "loaded"
//   - "dropped" (no facility id)
//   - "skipped" (malformed source row)
func RecordRecords(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordRequest counts one HTTP request by route and status code.
func RecordRequest(job, route string, code int) {
	current().IncCounter(RequestsTotal, 1, Labels{
		"job":   job,
		"route": route,
		"code":  strconv.Itoa(code),
	})
}
