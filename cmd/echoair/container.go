// This file wires configuration to concrete implementations: the dataset
// source, the metrics backend and the dashboard. Commands only see the
// assembled values.

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"echoair/internal/config"
	"echoair/internal/dashboard"
	"echoair/internal/datasource"
	"echoair/internal/datasource/file"
	"echoair/internal/datasource/httpds"
	"echoair/internal/datasource/s3ds"
	"echoair/internal/datasource/sqlds"
	"echoair/internal/metrics"
	"echoair/internal/metrics/datadog"
	"echoair/internal/metrics/prompush"
	"echoair/internal/records"
)

// newSource builds the byte-stream source for file, http and s3 kinds.
func newSource(ctx context.Context, s config.Source) (datasource.Source, error) {
	switch strings.TrimSpace(s.Kind) {
	case "file":
		return file.NewLocal(s.File.Path).WithMember(s.File.Member), nil
	case "http":
		c := httpds.NewClient(httpds.Config{
			Timeout:            time.Duration(s.HTTP.TimeoutSeconds) * time.Second,
			MaxRetries:         s.HTTP.MaxRetries,
			InsecureSkipVerify: s.HTTP.InsecureSkipVerify,
		})
		src := httpds.NewSource(c, s.HTTP.URL)
		src.Member = s.HTTP.Member
		src.CacheDir = s.HTTP.CacheDir
		return src, nil
	case "s3":
		src, err := s3ds.New(ctx, s3ds.Config{
			Bucket:    s.S3.Bucket,
			Key:       s.S3.Key,
			Member:    s.S3.Member,
			Region:    s.S3.Region,
			Endpoint:  s.S3.Endpoint,
			PathStyle: s.S3.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return nil, fmt.Errorf("unsupported source kind %q", s.Kind)
}

// loadTable reads the configured dataset once and records load metrics.
func loadTable(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*records.Table, error) {
	start := time.Now()
	t, err := readTable(ctx, cfg)
	metrics.RecordStep(cfg.Job, "load", err, time.Since(start))
	if err != nil {
		return nil, err
	}

	st := t.Stats()
	metrics.RecordRecords(cfg.Job, "loaded", int64(st.Rows))
	metrics.RecordRecords(cfg.Job, "dropped", int64(st.DroppedRows))
	metrics.RecordRecords(cfg.Job, "skipped", int64(st.SkippedRows))
	log.WithFields(logrus.Fields{
		"source":   cfg.Source.Kind,
		"rows":     st.Rows,
		"dropped":  st.DroppedRows,
		"skipped":  st.SkippedRows,
		"duration": time.Since(start).Truncate(time.Millisecond).String(),
	}).Info("dataset loaded")
	return t, nil
}

func readTable(ctx context.Context, cfg config.Config) (*records.Table, error) {
	if cfg.Source.Kind == "sql" {
		return records.LoadSQL(ctx, sqlds.Config{
			Driver: cfg.Source.SQL.Driver,
			DSN:    cfg.Source.SQL.DSN,
			Table:  cfg.Source.SQL.Table,
			Query:  cfg.Source.SQL.Query,
		})
	}
	src, err := newSource(ctx, cfg.Source)
	if err != nil {
		return nil, err
	}
	return records.Load(ctx, src, cfg.Parser.Options)
}

// newDashboard loads the dataset and returns a Dashboard over it.
func newDashboard(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*dashboard.Dashboard, error) {
	t, err := loadTable(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return dashboard.New(t, cfg, log), nil
}

// setupMetrics installs the configured backend. An unusable backend is
// logged and metrics stay disabled.
func setupMetrics(cfg config.Config, log logrus.FieldLogger) {
	m := cfg.Metrics
	switch strings.TrimSpace(m.Backend) {
	case "pushgateway":
		url := m.PushgatewayURL
		if url == "" {
			url = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(cfg.Job, url)
		if err != nil {
			log.WithError(err).Warn("metrics: pushgateway backend unavailable; using nop")
			return
		}
		metrics.SetBackend(b)
		log.WithFields(logrus.Fields{"backend": m.Backend, "url": url, "job": cfg.Job}).Debug("metrics enabled")

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       m.Datadog.Addr,
			Namespace:  m.Datadog.Namespace,
			GlobalTags: m.Datadog.Tags,
		})
		if err != nil {
			log.WithError(err).Warn("metrics: datadog backend unavailable; using nop")
			return
		}
		metrics.SetBackend(b)
		log.WithFields(logrus.Fields{"backend": m.Backend, "addr": m.Datadog.Addr}).Debug("metrics enabled")

	case "", "none":
		log.Debug("metrics: disabled")

	default:
		log.Warnf("metrics: unknown backend %q; metrics disabled", m.Backend)
	}
}

func flushMetrics(log logrus.FieldLogger) {
	if err := metrics.Flush(); err != nil {
		log.WithError(err).Warn("metrics: flush error")
	}
}
