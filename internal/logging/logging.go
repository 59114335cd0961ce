// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"echoair/internal/config"
)

// New returns a logrus logger writing to w with the configured level and
// format ("text" or "json").
func New(cfg config.Log, w io.Writer) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(w)

	lvl := strings.TrimSpace(cfg.Level)
	if lvl == "" {
		lvl = "info"
	}
	level, err := logrus.ParseLevel(lvl)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
			DisableSorting:  true,
		})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	default:
		return nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}
	return l, nil
}

// Discard returns a logger that drops everything; used by tests and library
// callers that pass no logger.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
