// Package server exposes the dashboard over HTTP: an HTML page with the
// selectors, a JSON API, chart images and an Excel export.
//
// Routes:
//
//	GET /                           → page with selectors and results
//	GET /healthz                    → liveness, row count and fingerprint
//	GET /api/options                → selector choices for a partial selection
//	GET /api/summary                → full computed result as JSON
//	GET /api/chart/lorenz.{png,svg} → Lorenz curve image
//	GET /api/chart/series.{png,svg} → per-year comparison image
//	GET /api/export.xlsx            → workbook of the computed result
//
// Every API route reads the selection from the query string: program,
// pollutant, state, city, year, top. Blank fields take the defaults.
package server

import (
	"context"
	_ "embed"
	"html/template"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"echoair/internal/dashboard"
	"echoair/internal/metrics"
)

// Config controls server startup.
type Config struct {
	Addr         string
	Job          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server wraps http.Server around a Dashboard.
type Server struct {
	cfg  Config
	mux  *http.ServeMux
	tmpl *template.Template
	dash *dashboard.Dashboard
	log  logrus.FieldLogger
	http *http.Server
}

// NewServer constructs a Server with routes and the embedded page template.
func NewServer(cfg Config, d *dashboard.Dashboard, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		cfg:  cfg,
		mux:  http.NewServeMux(),
		tmpl: template.Must(template.New("index").Funcs(templateFuncs).Parse(indexHTML)),
		dash: d,
		log:  log,
	}
	s.routes()
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the routed handler with request logging and metrics.
func (s *Server) Handler() http.Handler { return s.instrument(s.mux) }

// ListenAndServe starts the HTTP server. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) ListenAndServe() error { return s.http.ListenAndServe() }

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error { return s.http.Shutdown(ctx) }

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/options", s.handleOptions)
	s.mux.HandleFunc("GET /api/summary", s.handleSummary)
	s.mux.HandleFunc("GET /api/chart/{file}", s.handleChart)
	s.mux.HandleFunc("GET /api/export.xlsx", s.handleExport)
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument tags each request with an id, logs it and records its status.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordRequest(s.cfg.Job, route, rec.code)
		entry := s.log.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.code,
			"duration":   time.Since(start).String(),
		})
		if rec.code >= http.StatusInternalServerError {
			entry.Error("request failed")
			return
		}
		entry.Info("request")
	})
}

//go:embed index.tmpl.html
var indexHTML string
