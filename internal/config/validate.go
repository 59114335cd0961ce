// Package config provides configuration models and helpers for the dashboard.
//
// This file adds a lightweight linter for Config values. It performs static
// checks and returns a list of issues (errors and warnings) that callers can
// surface in the CLI or tests.
package config

import (
	"fmt"
	"slices"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a problem worth surfacing that does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "source.file.path",
// "dashboard.top_n_choices[2]"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be returned as an error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateConfig performs static validation of c. It does not mutate c.
func ValidateConfig(c Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and log lines",
		})
	}
	issues = append(issues, validateSource(c.Source)...)
	issues = append(issues, validateParser(c.Source, c.Parser)...)
	issues = append(issues, validateDashboard(c.Dashboard)...)
	issues = append(issues, validateMetrics(c.Metrics)...)
	issues = append(issues, validateServer(c.Server)...)
	issues = append(issues, validateLog(c.Log)...)
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue
	errAt := func(path, msg string) {
		issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: msg})
	}

	switch strings.TrimSpace(s.Kind) {
	case "":
		errAt("source.kind", "source.kind must not be empty")
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			errAt("source.file.path", "file source requires a non-empty path")
		}
	case "http":
		u := strings.TrimSpace(s.HTTP.URL)
		if u == "" {
			errAt("source.http.url", "http source requires a url")
		} else if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			errAt("source.http.url", fmt.Sprintf("url %q must start with http:// or https://", u))
		}
		if s.HTTP.MaxRetries < 0 {
			errAt("source.http.max_retries", "max_retries must not be negative")
		}
		if s.HTTP.InsecureSkipVerify {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "source.http.insecure_skip_verify",
				Message:  "TLS verification is disabled for the dataset download",
			})
		}
	case "s3":
		if strings.TrimSpace(s.S3.Bucket) == "" {
			errAt("source.s3.bucket", "s3 source requires a bucket")
		}
		if strings.TrimSpace(s.S3.Key) == "" {
			errAt("source.s3.key", "s3 source requires an object key")
		}
	case "sql":
		known := []string{"sqlite", "postgres", "mssql", "mysql"}
		if !slices.Contains(known, s.SQL.Driver) {
			errAt("source.sql.driver", fmt.Sprintf("unknown sql driver %q; want one of %s", s.SQL.Driver, strings.Join(known, ", ")))
		}
		if strings.TrimSpace(s.SQL.DSN) == "" {
			errAt("source.sql.dsn", "sql source requires a dsn")
		}
		if strings.TrimSpace(s.SQL.Table) == "" && strings.TrimSpace(s.SQL.Query) == "" {
			errAt("source.sql", "sql source requires a table or a query")
		}
	default:
		errAt("source.kind", fmt.Sprintf("unknown source kind %q", s.Kind))
	}
	return issues
}

func validateParser(s Source, p Parser) []Issue {
	if s.Kind == "sql" {
		// Rows come typed from the database; the parser block is unused.
		return nil
	}
	var issues []Issue
	if strings.TrimSpace(p.Kind) == "" {
		return append(issues, Issue{Severity: SeverityError, Path: "parser.kind", Message: "parser.kind must not be empty"})
	}
	if p.Kind != "csv" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("unsupported parser kind %q; only csv is implemented", p.Kind),
		})
	}
	if c := p.Options.String("comma", ","); len([]rune(c)) != 1 && c != `\t` {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.comma",
			Message:  fmt.Sprintf("comma must be a single character, got %q", c),
		})
	}
	return issues
}

func validateDashboard(d Dashboard) []Issue {
	var issues []Issue

	if len(d.TopNChoices) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "dashboard.top_n_choices",
			Message:  "at least one top-N choice is required",
		})
	}
	for i, n := range d.TopNChoices {
		if n <= 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("dashboard.top_n_choices[%d]", i),
				Message:  fmt.Sprintf("top-N choice must be positive, got %d", n),
			})
		}
	}
	if len(d.TopNChoices) > 0 && !slices.Contains(d.TopNChoices, d.DefaultTopN) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "dashboard.default_top_n",
			Message:  fmt.Sprintf("default_top_n=%d is not one of top_n_choices %v", d.DefaultTopN, d.TopNChoices),
		})
	}
	if strings.TrimSpace(d.DefaultProgram) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "dashboard.default_program",
			Message:  "no default program; the first program in sort order will be preselected",
		})
	}
	if slices.Contains(d.NonContinental, d.DefaultState) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "dashboard.default_state",
			Message:  fmt.Sprintf("default_state %q is excluded from the continental list and cannot be offered", d.DefaultState),
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend without url; http://localhost:9091 will be used",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.Datadog.Addr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.datadog.addr",
				Message:  "datadog backend requires a DogStatsD address",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", m.Backend),
		})
	}
	return issues
}

func validateServer(s Server) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Addr) == "" {
		issues = append(issues, Issue{Severity: SeverityError, Path: "server.addr", Message: "server.addr must not be empty"})
	}
	for path, v := range map[string]int{
		"server.read_timeout_seconds":     s.ReadTimeoutSeconds,
		"server.write_timeout_seconds":    s.WriteTimeoutSeconds,
		"server.shutdown_timeout_seconds": s.ShutdownTimeoutSeconds,
	} {
		if v < 0 {
			issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: "timeout must not be negative"})
		}
	}
	return issues
}

func validateLog(l Log) []Issue {
	switch l.Format {
	case "", "text", "json":
		return nil
	}
	return []Issue{{
		Severity: SeverityWarning,
		Path:     "log.format",
		Message:  fmt.Sprintf("unknown log format %q; text will be used", l.Format),
	}}
}
