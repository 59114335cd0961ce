// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// Collectors are client_golang CounterVec and SummaryVec values registered on
// a private registry; Flush pushes the registry to the gateway under the job
// name. Nothing is exposed for scraping.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"echoair/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stageCounter  *prometheus.CounterVec // echoair_stage_total
	stageDuration *prometheus.SummaryVec // echoair_stage_duration_seconds
	recordCounter *prometheus.CounterVec // echoair_records_total
	reqCounter    *prometheus.CounterVec // echoair_requests_total
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name.
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "echoair"
	}

	reg := prometheus.NewRegistry()

	// job is the Pushgateway grouping key, so it is not a label here.
	stageCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.StageTotal,
			Help: "Pipeline stage executions, partitioned by stage and status.",
		},
		[]string{"stage", "status"},
	)
	stageDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.StageDuration,
			Help:       "Duration of pipeline stages in seconds, partitioned by stage and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"stage", "status"},
	)
	recordCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Record counts per kind (loaded, dropped, skipped).",
		},
		[]string{"kind"},
	)
	reqCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RequestsTotal,
			Help: "HTTP API requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	for name, c := range map[string]prometheus.Collector{
		"stage counter":   stageCounter,
		"stage summary":   stageDuration,
		"record counter":  recordCounter,
		"request counter": reqCounter,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		stageCounter:  stageCounter,
		stageDuration: stageDuration,
		recordCounter: recordCounter,
		reqCounter:    reqCounter,
	}, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StageTotal:
		if b.stageCounter == nil {
			return
		}
		b.stageCounter.WithLabelValues(labels["stage"], labels["status"]).Add(delta)

	case metrics.RecordsTotal:
		if b.recordCounter == nil {
			return
		}
		b.recordCounter.WithLabelValues(labels["kind"]).Add(delta)

	case metrics.RequestsTotal:
		if b.reqCounter == nil {
			return
		}
		b.reqCounter.WithLabelValues(labels["route"], labels["code"]).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StageDuration || b.stageDuration == nil {
		return
	}
	b.stageDuration.WithLabelValues(labels["stage"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
